package board

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ArtifactInfo is the metadata preamble written at the top of every
// persisted document.
type ArtifactInfo struct {
	Board    string
	Model    string
	Template string
	Created  time.Time
}

// RawArtifactPath returns the deterministic location of the raw transcript
// for a board stem. Re-running the pipeline overwrites it.
func RawArtifactPath(outputDir, stem string) string {
	return filepath.Join(outputDir, stem+"_Raw.md")
}

// SummaryArtifactPath returns the deterministic location of the summary.
func SummaryArtifactPath(outputDir, stem string) string {
	return filepath.Join(outputDir, stem+"_Summary.md")
}

func header(title string, info ArtifactInfo) string {
	return fmt.Sprintf(
		"# %s: %s\n\n**Erstellt:** %s\n**Modell:** %s\n**Template:** %s\n\n---\n\n",
		title,
		info.Board,
		info.Created.Format("2006-01-02 15:04"),
		info.Model,
		info.Template,
	)
}

// WriteRaw persists the raw transcript artifact: header, the stage-1
// structure analysis, then the stage-2 transcription.
func WriteRaw(outputDir string, info ArtifactInfo, structure, transcription string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	content := header("Rohdaten-Transkription", info) +
		"## Strukturanalyse\n\n" + structure + "\n\n---\n\n" +
		"## Transkription\n\n" + transcription

	path := RawArtifactPath(outputDir, info.Board)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write raw artifact: %w", err)
	}
	return path, nil
}

// WriteSummary persists the executive-summary artifact.
func WriteSummary(outputDir string, info ArtifactInfo, summary string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	content := header("Executive Summary", info) + summary

	path := SummaryArtifactPath(outputDir, info.Board)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write summary artifact: %w", err)
	}
	return path, nil
}
