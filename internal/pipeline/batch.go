package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/workshop-tools/boardscan/internal/board"
)

// ItemResult is one successfully processed batch entry.
type ItemResult struct {
	Image     string
	Artifacts Artifacts
}

// ItemFailure is one failed batch entry with its cause.
type ItemFailure struct {
	Image string
	Err   error
}

// Summary aggregates a batch run.
type Summary struct {
	Succeeded []ItemResult
	Failed    []ItemFailure
}

// Counts returns the success/failure tally.
func (s Summary) Counts() (succeeded, failed int) {
	return len(s.Succeeded), len(s.Failed)
}

// ProcessAll applies the pipeline to every image sequentially, in
// lexicographic order of resolved paths with duplicates removed. One
// image's failure does not abort the batch.
func (d *Digitizer) ProcessAll(ctx context.Context, paths []string) Summary {
	var summary Summary
	for _, path := range normalizePaths(paths) {
		artifacts, err := d.Process(ctx, path)
		if err != nil {
			summary.Failed = append(summary.Failed, ItemFailure{Image: path, Err: err})
			continue
		}
		summary.Succeeded = append(summary.Succeeded, ItemResult{Image: path, Artifacts: artifacts})
	}
	return summary
}

func normalizePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		resolved, err := filepath.Abs(p)
		if err != nil {
			resolved = p
		}
		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	}
	sort.Strings(out)
	return out
}

// CollectImages lists the supported images directly inside dir, sorted.
func CollectImages(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("batch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("batch path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read batch directory: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if board.Supported(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
