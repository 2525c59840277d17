package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/workshop-tools/boardscan/internal/pipeline"
)

func TestProcessAll_IsolatesFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeBoardPhoto(t, dir, "a_board.jpg")
	b := writeBoardPhoto(t, dir, "b_board.jpg")
	c := writeBoardPhoto(t, dir, "c_board.jpg")
	out := filepath.Join(dir, "output")

	// Images run in sorted order, four calls each. Call index 4 is the
	// structure stage of the second image.
	cause := errors.New("model unavailable")
	exec := &stubExecutor{failCalls: map[int]error{4: cause}}
	d := newDigitizer(t, out, exec)

	summary := d.ProcessAll(context.Background(), []string{c, a, b})

	succeeded, failed := summary.Counts()
	if succeeded != 2 || failed != 1 {
		t.Fatalf("expected 2 succeeded / 1 failed, got %d / %d", succeeded, failed)
	}
	if summary.Failed[0].Image != b {
		t.Fatalf("failed image = %q, want %q", summary.Failed[0].Image, b)
	}
	if !errors.Is(summary.Failed[0].Err, cause) {
		t.Fatalf("failure cause must be chained, got %v", summary.Failed[0].Err)
	}

	for _, stem := range []string{"a_board", "c_board"} {
		if _, err := os.Stat(filepath.Join(out, stem+"_Raw.md")); err != nil {
			t.Fatalf("raw artifact for %s: %v", stem, err)
		}
		if _, err := os.Stat(filepath.Join(out, stem+"_Summary.md")); err != nil {
			t.Fatalf("summary artifact for %s: %v", stem, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "b_board_Raw.md")); !os.IsNotExist(err) {
		t.Fatal("failed image must not leave a raw artifact")
	}
}

func TestProcessAll_DeduplicatesAndSorts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeBoardPhoto(t, dir, "a_board.jpg")
	b := writeBoardPhoto(t, dir, "b_board.jpg")

	exec := &stubExecutor{}
	d := newDigitizer(t, filepath.Join(dir, "output"), exec)

	summary := d.ProcessAll(context.Background(), []string{b, a, b, a})

	succeeded, failed := summary.Counts()
	if succeeded != 2 || failed != 0 {
		t.Fatalf("expected 2 succeeded / 0 failed, got %d / %d", succeeded, failed)
	}
	if exec.callCount() != 8 {
		t.Fatalf("duplicates must be processed once, got %d calls", exec.callCount())
	}
	if summary.Succeeded[0].Image != a || summary.Succeeded[1].Image != b {
		t.Fatalf("batch order must be sorted, got %q then %q",
			summary.Succeeded[0].Image, summary.Succeeded[1].Image)
	}
}

func TestProcessAll_Empty(t *testing.T) {
	t.Parallel()

	exec := &stubExecutor{}
	d := newDigitizer(t, t.TempDir(), exec)

	summary := d.ProcessAll(context.Background(), nil)
	if s, f := summary.Counts(); s != 0 || f != 0 {
		t.Fatalf("empty batch must be a no-op, got %d / %d", s, f)
	}
}

func TestCollectImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeBoardPhoto(t, dir, "zeta.png")
	writeBoardPhoto(t, dir, "alpha.jpg")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	images, err := pipeline.CollectImages(dir)
	if err != nil {
		t.Fatalf("CollectImages: %v", err)
	}
	want := []string{filepath.Join(dir, "alpha.jpg"), filepath.Join(dir, "zeta.png")}
	if len(images) != len(want) || images[0] != want[0] || images[1] != want[1] {
		t.Fatalf("images = %v, want %v", images, want)
	}
}

func TestCollectImages_NotADirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := writeBoardPhoto(t, dir, "solo.jpg")
	if _, err := pipeline.CollectImages(file); err == nil {
		t.Fatal("expected error for non-directory path")
	}
	if _, err := pipeline.CollectImages(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
