package prompts

import (
	"fmt"
	"sort"
	"strings"
)

// Template selects a board-type preset that biases the prompt context.
type Template string

const (
	TemplateDefault       Template = "default"
	TemplateRetrospective Template = "retrospective"
	TemplateBrainstorm    Template = "brainstorm"
	TemplateQuestionBoard Template = "question-board"
	TemplateAudit         Template = "audit"
	TemplateCustom        Template = "custom"
)

// defaultHints carries the built-in board descriptions. The prompts stay in
// German: the tool's output artifacts and its users are German-speaking.
var defaultHints = map[Template]string{
	TemplateRetrospective: "Dies ist ein Retrospektiven-Board. Typische Kategorien: " +
		"'Was lief gut', 'Was lief schlecht', 'Maßnahmen/Action Items'. " +
		"Achte auf Voting-Punkte zur Priorisierung von Maßnahmen.",
	TemplateBrainstorm: "Dies ist ein Ideensammlungs-Board (Brainstorming). " +
		"Zettel sind in thematische Cluster gruppiert. " +
		"Klebepunkte/Votes zeigen Priorisierung der Ideen.",
	TemplateQuestionBoard: "Dies ist ein Metaplan-Board. Fragen stehen oben, " +
		"Antworten als Karten darunter. Spalten strukturieren die Themen.",
	TemplateAudit: "Dies ist ein 5S-Audit-Board. Die 5 Kategorien: " +
		"Sortieren / Setzen / Säubern / Standardisieren / Selbstdisziplin. " +
		"Bewertungen oder Maßnahmen sind den Kategorien zugeordnet.",

	// default and custom carry no fixed hint. custom is filled from the
	// free-text context at composition time.
	TemplateDefault: "",
	TemplateCustom:  "",
}

// Registry resolves template keys to their hint texts. The built-in set can
// be extended or overridden from a config file.
type Registry struct {
	hints map[Template]string
}

func NewRegistry() *Registry {
	hints := make(map[Template]string, len(defaultHints))
	for k, v := range defaultHints {
		hints[k] = v
	}
	return &Registry{hints: hints}
}

// Register adds or overrides a template hint.
func (r *Registry) Register(key Template, hint string) {
	r.hints[key] = strings.TrimSpace(hint)
}

// Known reports whether key resolves to a registered template.
func (r *Registry) Known(key Template) bool {
	_, ok := r.hints[key]
	return ok
}

// Hint returns the fixed hint text for key, or "" for unknown keys.
func (r *Registry) Hint(key Template) string {
	return r.hints[key]
}

// Keys returns all registered template keys in sorted order.
func (r *Registry) Keys() []Template {
	out := make([]Template, 0, len(r.hints))
	for k := range r.hints {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate returns an error naming the valid choices when key is unknown.
func (r *Registry) Validate(key Template) error {
	if r.Known(key) {
		return nil
	}
	keys := make([]string, 0, len(r.hints))
	for _, k := range r.Keys() {
		keys = append(keys, string(k))
	}
	return fmt.Errorf("unknown board template %q (valid: %s)", key, strings.Join(keys, ", "))
}
