package prompts

import (
	"fmt"
	"strings"
)

// Options are the prompt-shaping inputs shared by all four stages.
type Options struct {
	Template   Template
	Context    string
	Confidence bool
}

const systemPromptTemplate = `Du bist ein Experte für die Digitalisierung von Workshop-Boards und Metaplan-Wänden.

%s

Analysiere das Bild nach folgendem strikten Ablauf:

### SCHRITT 1 – STRUKTURANALYSE
1. Beschreibe zuerst die Struktur: Spalten, Cluster, Matrix, Freiform oder Mindmap?
2. Haben die Farben der Zettel eine erkennbare Bedeutung? (z.B. Gelb=Fakten, Grün=Ideen, Rot=Kritik)
   Falls unklar: schreibe "generisch".
3. Gibt es Voting-Punkte/Klebepunkte? Wenn ja, zähle sie exakt nach Farbe und Position.
4. Dokumentiere Verbindungen: Pfeile oder Linien zwischen Zetteln.

### SCHRITT 2 – TRANSKRIPTION
Erstelle ein Markdown das die erkannte Struktur abbildet:
- Spalten → ## Überschriften
- Cluster → ## Cluster-Titel + verschachtelte Listen
- Zettel → * Listenpunkte (Text 1:1, inkl. Abkürzungen & Tippfehler)
- Unleserliches → [unleserlich] oder [?]
- Votes/Punkte → in Klammern: (3 rote Punkte, 1 grüner Punkt)
- Farben wenn relevant → (Farbe: Rot) als Annotation%s

### SCHRITT 5 – QUALITÄTSEINSCHÄTZUNG
Gib am Ende eine Gesamteinschätzung deiner Erkennungsqualität ab (0-100%%) und begründe sie kurz.`

const confidenceSection = `
- Unsichere Erkennungen → mit [?] markieren und Konfidenz in Prozent angeben: [?] (Konfidenz: 65%)`

// ContextBlock resolves the template key and free-text context into the
// board-context block:
//   - custom with context "X" yields exactly "Board-Kontext: X"
//   - a named template without context yields the template's fixed hint
//   - a named template with context yields hint, then the context appended
//   - default/unknown without context yields ""
func (r *Registry) ContextBlock(opts Options) string {
	hint := r.Hint(opts.Template)
	ctx := strings.TrimSpace(opts.Context)

	switch {
	case opts.Template == TemplateCustom && ctx != "":
		return "Board-Kontext: " + ctx
	case hint != "" && ctx != "":
		return hint + "\n\nZusätzlicher Kontext: " + ctx
	case hint != "":
		return hint
	case ctx != "":
		return "Board-Kontext: " + ctx
	default:
		return ""
	}
}

// contextSection wraps the context block for embedding into a prompt. The
// "Board-Kontext:" label is added only when the block does not already
// carry it.
func (r *Registry) contextSection(opts Options) string {
	block := r.ContextBlock(opts)
	if block == "" {
		return ""
	}
	if strings.HasPrefix(block, "Board-Kontext:") {
		return block + "\n"
	}
	return "Board-Kontext:\n" + block + "\n"
}

// SystemPrompt builds the shared system prompt for the two vision stages.
func (r *Registry) SystemPrompt(opts Options) string {
	confidence := ""
	if opts.Confidence {
		confidence = confidenceSection
	}
	return fmt.Sprintf(systemPromptTemplate, r.contextSection(opts), confidence)
}

// StructureInstruction is the stage-1 user instruction, attached to the image.
func StructureInstruction() string {
	return "Führe NUR Schritt 1 (STRUKTURANALYSE) durch. " +
		"Beschreibe Layout-Typ, Farb-Semantik, Voting-Punkte und Verbindungen. " +
		"Sei präzise und strukturiert."
}

// TranscriptionInstruction is the stage-2 user instruction. It embeds the
// stage-1 structure analysis verbatim and is attached to the image again.
func TranscriptionInstruction(structure string) string {
	return fmt.Sprintf(
		"Die Strukturanalyse hat folgendes ergeben:\n\n%s\n\n"+
			"Führe nun Schritt 2 (TRANSKRIPTION) durch. "+
			"Transkribiere ALLE Zettel/Karten 1:1, inklusive Tippfehler und Abkürzungen. "+
			"Nutze die erkannte Struktur als Gliederung (## für Spalten/Cluster, * für Zettel). "+
			"Annotiere Voting-Punkte und relevante Farben.",
		structure,
	)
}

// CleaningInstruction is the stage-3 user message: the five-point
// normalization contract plus the prior stage outputs. No image, no system
// prompt.
func (r *Registry) CleaningInstruction(opts Options, structure, raw string) string {
	return fmt.Sprintf(
		"%s\n"+
			"Du erhältst eine Rohdaten-Transkription eines Workshop-Boards. "+
			"Führe folgende Bereinigungen durch:\n\n"+
			"1. Löse Abkürzungen auf (NUR wenn Kontext eindeutig, sonst belassen)\n"+
			"2. Sortiere Einträge absteigend nach Votes/Stimmen (falls vorhanden)\n"+
			"3. Entferne Farb-Annotationen wenn inhaltlich irrelevant (Noise Reduction)\n"+
			"4. Reduziere Klebepunkte auf Zahlenwerte: '(3 rote Punkte, 1 grün)' → '(4 Stimmen)'\n"+
			"5. Behalte die Markdown-Struktur (##, *) bei\n\n"+
			"Strukturkontext:\n%s\n\n"+
			"Rohdaten:\n\n%s",
		r.contextSection(opts), structure, raw,
	)
}

// SummaryInstruction is the stage-4 user message: the fixed summary
// structure plus template name, hint and the prior stage outputs.
func (r *Registry) SummaryInstruction(opts Options, structure, cleaned string) string {
	hintLine := ""
	if hint := r.Hint(opts.Template); hint != "" {
		hintLine = "Template-Kontext: " + hint
	}
	return fmt.Sprintf(
		"%s\n"+
			"Board-Template: %s\n"+
			"%s\n\n"+
			"Erstelle eine strukturierte _Summary.md aus den bereinigten Board-Daten.\n\n"+
			"## Pflicht-Struktur der Summary:\n\n"+
			"### Executive Summary (max. 10 Zeilen)\n"+
			"- Kernaussage 'in a nutshell'\n"+
			"- Top 1-2 Themen oder Beschlüsse\n"+
			"- Größte Hürde oder Kontroverse (falls erkennbar)\n\n"+
			"### Detaillierter Bericht\n"+
			"- Stichpunkte → ausformulierte, vollständige Sätze\n"+
			"- Strukturiert nach Themenbereichen aus der Analyse\n"+
			"- Pfeile/Verbindungen verbalisieren: 'Thema A führt zu Thema B'\n"+
			"- Absteigende Sortierung nach Relevanz/Votes\n\n"+
			"Strukturanalyse:\n%s\n\n"+
			"Bereinigte Daten:\n\n%s",
		r.contextSection(opts), opts.Template, hintLine, structure, cleaned,
	)
}
