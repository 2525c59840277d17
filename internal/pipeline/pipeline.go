package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/workshop-tools/boardscan/internal/board"
	"github.com/workshop-tools/boardscan/internal/observe"
	"github.com/workshop-tools/boardscan/internal/openrouter"
	"github.com/workshop-tools/boardscan/internal/prompts"
)

// Executor issues one logical request to the remote model. Satisfied by
// *openrouter.Client; stubbed in tests.
type Executor interface {
	Execute(ctx context.Context, msgs []openrouter.Message) (openrouter.Result, error)
}

// Config is the immutable per-run configuration of the orchestrator.
type Config struct {
	Model         string
	FallbackModel string
	OutputDir     string
	Template      prompts.Template
	Context       string
	Confidence    bool
	// MaxImageDim downscales oversized photos before upload; 0 disables.
	MaxImageDim int
}

// Artifacts are the two durable outputs of a successful run.
type Artifacts struct {
	RawPath     string
	SummaryPath string
}

// Digitizer runs the four-stage pipeline for one board photo: structure
// analysis, raw transcription, cleaning/enrichment, summary synthesis.
type Digitizer struct {
	cfg  Config
	reg  *prompts.Registry
	exec Executor
	sink observe.Sink
	now  func() time.Time
}

// New constructs a Digitizer. reg may be nil for the built-in template
// registry; sink may be nil to discard events.
func New(cfg Config, reg *prompts.Registry, exec Executor, sink observe.Sink) *Digitizer {
	if reg == nil {
		reg = prompts.NewRegistry()
	}
	if sink == nil {
		sink = observe.NopSink{}
	}
	return &Digitizer{
		cfg:  cfg,
		reg:  reg,
		exec: exec,
		sink: sink,
		now:  time.Now,
	}
}

func (d *Digitizer) promptOpts() prompts.Options {
	return prompts.Options{
		Template:   d.cfg.Template,
		Context:    d.cfg.Context,
		Confidence: d.cfg.Confidence,
	}
}

// Process runs all four stages for the image at path and persists the two
// artifacts. The raw artifact is written as soon as stage 2 succeeds, so a
// later-stage failure still leaves a usable transcript on disk. Any stage
// failure aborts the run for this image with the cause chained.
func (d *Digitizer) Process(ctx context.Context, path string) (Artifacts, error) {
	// Local preconditions: no network attempt is made when they fail.
	if _, err := board.MediaType(path); err != nil {
		return Artifacts{}, err
	}
	if _, err := os.Stat(path); err != nil {
		return Artifacts{}, fmt.Errorf("image not found: %w", err)
	}

	img, err := board.Load(path, d.cfg.MaxImageDim)
	if err != nil {
		return Artifacts{}, err
	}

	opts := d.promptOpts()
	system := d.reg.SystemPrompt(opts)

	structure, err := d.runStage(ctx, img.Path, "structure", []openrouter.Message{
		openrouter.SystemMessage(system),
		openrouter.VisionMessage(img.DataURI(), prompts.StructureInstruction()),
	})
	if err != nil {
		return Artifacts{}, fmt.Errorf("structure analysis: %w", err)
	}

	// The image is embedded again on purpose: transcription quality depends
	// on fresh visual access, not only on the stage-1 text.
	raw, err := d.runStage(ctx, img.Path, "transcription", []openrouter.Message{
		openrouter.SystemMessage(system),
		openrouter.VisionMessage(img.DataURI(), prompts.TranscriptionInstruction(structure)),
	})
	if err != nil {
		return Artifacts{}, fmt.Errorf("raw transcription: %w", err)
	}

	info := board.ArtifactInfo{
		Board:    img.Stem,
		Model:    d.cfg.Model,
		Template: string(d.cfg.Template),
		Created:  d.now(),
	}
	rawPath, err := board.WriteRaw(d.cfg.OutputDir, info, structure, raw)
	if err != nil {
		return Artifacts{}, err
	}

	cleaned, err := d.runStage(ctx, img.Path, "cleaning", []openrouter.Message{
		openrouter.TextMessage(d.reg.CleaningInstruction(opts, structure, raw)),
	})
	if err != nil {
		return Artifacts{RawPath: rawPath}, fmt.Errorf("cleaning: %w", err)
	}

	summary, err := d.runStage(ctx, img.Path, "summary", []openrouter.Message{
		openrouter.TextMessage(d.reg.SummaryInstruction(opts, structure, cleaned)),
	})
	if err != nil {
		return Artifacts{RawPath: rawPath}, fmt.Errorf("summary synthesis: %w", err)
	}

	summaryPath, err := board.WriteSummary(d.cfg.OutputDir, info, summary)
	if err != nil {
		return Artifacts{RawPath: rawPath}, err
	}

	return Artifacts{RawPath: rawPath, SummaryPath: summaryPath}, nil
}

func (d *Digitizer) runStage(ctx context.Context, image, stage string, msgs []openrouter.Message) (string, error) {
	start := d.now()
	res, err := d.exec.Execute(ctx, msgs)
	d.sink.Record(observe.Event{
		Time:    d.now(),
		Image:   image,
		Stage:   stage,
		Model:   res.Model,
		Outcome: stageOutcome(err),
		Err:     err,
		Detail:  "duration=" + time.Since(start).Round(time.Millisecond).String(),
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func stageOutcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
