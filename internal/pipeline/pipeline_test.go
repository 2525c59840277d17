package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/workshop-tools/boardscan/internal/openrouter"
	"github.com/workshop-tools/boardscan/internal/pipeline"
	"github.com/workshop-tools/boardscan/internal/prompts"
)

// stubExecutor answers scripted per-call texts and can fail selected calls.
type stubExecutor struct {
	mu        sync.Mutex
	calls     [][]openrouter.Message
	responses []string
	failCalls map[int]error
}

func (s *stubExecutor) Execute(_ context.Context, msgs []openrouter.Message) (openrouter.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.calls)
	s.calls = append(s.calls, msgs)

	if err, ok := s.failCalls[idx]; ok {
		return openrouter.Result{}, err
	}
	text := fmt.Sprintf("antwort-%d", idx)
	if idx < len(s.responses) {
		text = s.responses[idx]
	}
	return openrouter.Result{Text: text, Model: "stub/model"}, nil
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubExecutor) call(i int) []openrouter.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

func flatten(msgs []openrouter.Message) string {
	var parts []string
	for _, m := range msgs {
		parts = append(parts, m.TextContent())
	}
	return strings.Join(parts, "\n")
}

func hasImage(msgs []openrouter.Message) bool {
	for _, m := range msgs {
		if m.HasImage() {
			return true
		}
	}
	return false
}

func writeBoardPhoto(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("fake-jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	return path
}

func newDigitizer(t *testing.T, outputDir string, exec pipeline.Executor) *pipeline.Digitizer {
	t.Helper()
	return pipeline.New(pipeline.Config{
		Model:     "google/gemini-2.0-flash",
		OutputDir: outputDir,
		Template:  prompts.TemplateRetrospective,
	}, nil, exec, nil)
}

func TestProcess_ThreadsStageOutputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	photo := writeBoardPhoto(t, dir, "retro.jpg")
	out := filepath.Join(dir, "output")

	exec := &stubExecutor{responses: []string{"STRUKTUR-TEXT", "ROH-TEXT", "SAUBER-TEXT", "SUMMARY-TEXT"}}
	d := newDigitizer(t, out, exec)

	artifacts, err := d.Process(context.Background(), photo)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if exec.callCount() != 4 {
		t.Fatalf("expected 4 stage calls, got %d", exec.callCount())
	}

	if !hasImage(exec.call(0)) {
		t.Fatal("structure stage must attach the image")
	}

	if !hasImage(exec.call(1)) {
		t.Fatal("transcription stage must re-attach the image")
	}
	if !strings.Contains(flatten(exec.call(1)), "STRUKTUR-TEXT") {
		t.Fatal("transcription payload must contain the structure output")
	}

	if hasImage(exec.call(2)) {
		t.Fatal("cleaning stage must not attach the image")
	}
	cleaning := flatten(exec.call(2))
	if !strings.Contains(cleaning, "STRUKTUR-TEXT") || !strings.Contains(cleaning, "ROH-TEXT") {
		t.Fatal("cleaning payload must contain structure and transcription outputs")
	}

	if hasImage(exec.call(3)) {
		t.Fatal("summary stage must not attach the image")
	}
	summary := flatten(exec.call(3))
	if !strings.Contains(summary, "STRUKTUR-TEXT") || !strings.Contains(summary, "SAUBER-TEXT") {
		t.Fatal("summary payload must contain structure and cleaned outputs")
	}

	rawContent, err := os.ReadFile(artifacts.RawPath)
	if err != nil {
		t.Fatalf("read raw artifact: %v", err)
	}
	if !strings.Contains(string(rawContent), "STRUKTUR-TEXT") || !strings.Contains(string(rawContent), "ROH-TEXT") {
		t.Fatal("raw artifact must contain structure and transcription")
	}

	summaryContent, err := os.ReadFile(artifacts.SummaryPath)
	if err != nil {
		t.Fatalf("read summary artifact: %v", err)
	}
	if !strings.Contains(string(summaryContent), "SUMMARY-TEXT") {
		t.Fatal("summary artifact must contain the summary output")
	}
}

func TestProcess_UnsupportedFormatMakesNoCalls(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "scan.gif")
	if err := os.WriteFile(path, []byte("gif"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	exec := &stubExecutor{}
	d := newDigitizer(t, filepath.Join(dir, "output"), exec)

	if _, err := d.Process(context.Background(), path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if exec.callCount() != 0 {
		t.Fatalf("expected zero model calls, got %d", exec.callCount())
	}
}

func TestProcess_MissingFileMakesNoCalls(t *testing.T) {
	t.Parallel()

	exec := &stubExecutor{}
	d := newDigitizer(t, t.TempDir(), exec)

	if _, err := d.Process(context.Background(), filepath.Join(t.TempDir(), "fehlt.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if exec.callCount() != 0 {
		t.Fatalf("expected zero model calls, got %d", exec.callCount())
	}
}

func TestProcess_LateFailureKeepsRawArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	photo := writeBoardPhoto(t, dir, "retro.jpg")
	out := filepath.Join(dir, "output")

	cause := errors.New("cleaning exploded")
	exec := &stubExecutor{
		responses: []string{"STRUKTUR", "ROH"},
		failCalls: map[int]error{2: cause},
	}
	d := newDigitizer(t, out, exec)

	_, err := d.Process(context.Background(), photo)
	if !errors.Is(err, cause) {
		t.Fatalf("cause must be chained, got %v", err)
	}

	rawContent, readErr := os.ReadFile(filepath.Join(out, "retro_Raw.md"))
	if readErr != nil {
		t.Fatalf("raw artifact must survive a late-stage failure: %v", readErr)
	}
	if !strings.Contains(string(rawContent), "ROH") {
		t.Fatal("raw artifact content must be intact")
	}

	if _, statErr := os.Stat(filepath.Join(out, "retro_Summary.md")); !os.IsNotExist(statErr) {
		t.Fatal("no summary artifact may exist after a failure")
	}
}

func TestProcess_EarlyFailureWritesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	photo := writeBoardPhoto(t, dir, "retro.jpg")
	out := filepath.Join(dir, "output")

	cause := errors.New("structure exploded")
	exec := &stubExecutor{failCalls: map[int]error{0: cause}}
	d := newDigitizer(t, out, exec)

	_, err := d.Process(context.Background(), photo)
	if !errors.Is(err, cause) {
		t.Fatalf("cause must be chained, got %v", err)
	}
	if exec.callCount() != 1 {
		t.Fatalf("pipeline must stop at the failed stage, got %d calls", exec.callCount())
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatal("no artifacts may exist after a structure failure")
	}
}
