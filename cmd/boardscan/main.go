package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/workshop-tools/boardscan/internal/config"
	"github.com/workshop-tools/boardscan/internal/observe"
	"github.com/workshop-tools/boardscan/internal/openrouter"
	"github.com/workshop-tools/boardscan/internal/pipeline"
	"github.com/workshop-tools/boardscan/internal/prompts"
	"github.com/workshop-tools/boardscan/internal/util"
	"github.com/workshop-tools/boardscan/internal/version"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	cfg, err := config.LoadEnv()
	if err != nil {
		configError(err)
		return 2
	}

	fs := flag.NewFlagSet("boardscan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { usage(os.Stderr, fs) }

	var (
		imagePath      string
		batchDir       string
		testMode       bool
		showVersion    bool
		templateKey    string
		contextText    string
		model          string
		fallbackModel  string
		outputDir      string
		configPath     string
		confidence     bool
		maxTokens      int
		maxImageDim    int
		requestTimeout time.Duration
	)

	fs.StringVar(&imagePath, "image", "", "Path to one board photo (jpg, png, webp)")
	fs.StringVar(&batchDir, "batch", "", "Directory of board photos; all supported images are processed")
	fs.BoolVar(&testMode, "test", false, "Check the API connection without processing an image")
	fs.BoolVar(&showVersion, "version", false, "Print the version and exit")
	fs.StringVar(&templateKey, "template", string(prompts.TemplateCustom), "Board template key")
	fs.StringVar(&contextText, "context", "", "Additional board context, e.g. \"Lager-Team, rote Punkte = Votes\"")
	fs.StringVar(&model, "model", "", "Model id (overrides DEFAULT_MODEL)")
	fs.StringVar(&fallbackModel, "fallback-model", "", "Fallback model id (overrides FALLBACK_MODEL)")
	fs.StringVar(&outputDir, "output", "", "Output directory (overrides OUTPUT_DIR)")
	fs.StringVar(&configPath, "config", "", "YAML config file (settings + extra board templates)")
	fs.BoolVar(&confidence, "confidence", false, "Annotate uncertain recognitions with confidence scores")
	fs.IntVar(&maxTokens, "max-tokens", 0, "Max completion tokens (overrides MAX_TOKENS)")
	fs.IntVar(&maxImageDim, "max-image-dim", 0, "Downscale photos whose longest side exceeds this many pixels (overrides MAX_IMAGE_DIM)")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Per-request timeout (overrides REQUEST_TIMEOUT)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if showVersion {
		fmt.Println("boardscan " + version.Current)
		return 0
	}

	if configPath != "" {
		cfg, err = cfg.MergeFile(configPath)
		if err != nil {
			configError(err)
			return 2
		}
	}
	if model != "" {
		cfg.Model = model
	}
	if fallbackModel != "" {
		cfg.FallbackModel = fallbackModel
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if maxTokens > 0 {
		cfg.MaxTokens = maxTokens
	}
	if maxImageDim > 0 {
		cfg.MaxImageDim = maxImageDim
	}
	if requestTimeout > 0 {
		cfg.RequestTimeout = requestTimeout
	}

	if cfg.APIKey == "" {
		configError(fmt.Errorf("OPENROUTER_API_KEY is not set; create a .env file or export it"))
		return 2
	}

	modes := 0
	for _, set := range []bool{imagePath != "", batchDir != "", testMode} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		configError(fmt.Errorf("exactly one of --image, --batch or --test is required"))
		return 2
	}

	registry := prompts.NewRegistry()
	for key, hint := range cfg.Templates {
		registry.Register(prompts.Template(key), hint)
	}
	if err := registry.Validate(prompts.Template(templateKey)); err != nil {
		configError(err)
		return 2
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	sink := observe.NewLogSink(logger, observe.NewRunID())

	client, err := openrouter.NewClient(openrouter.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		FallbackModel:  cfg.FallbackModel,
		MaxTokens:      cfg.MaxTokens,
		RequestTimeout: cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
	}, sink)
	if err != nil {
		configError(err)
		return 2
	}

	if testMode {
		answer, err := client.CheckConnection(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connection test failed: %s\n", util.RedactSecrets(err.Error()))
			return 1
		}
		fmt.Printf("connection ok (model %s): %s\n", cfg.Model, answer)
		return 0
	}

	digitizer := pipeline.New(pipeline.Config{
		Model:         cfg.Model,
		FallbackModel: cfg.FallbackModel,
		OutputDir:     cfg.OutputDir,
		Template:      prompts.Template(templateKey),
		Context:       contextText,
		Confidence:    confidence,
		MaxImageDim:   cfg.MaxImageDim,
	}, registry, client, sink)

	if imagePath != "" {
		artifacts, err := digitizer.Process(ctx, imagePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed %s: %s\n", filepath.Base(imagePath), util.RedactSecrets(err.Error()))
			return 1
		}
		printArtifacts(imagePath, artifacts)
		return 0
	}

	images, err := pipeline.CollectImages(batchDir)
	if err != nil {
		configError(err)
		return 2
	}
	if len(images) == 0 {
		configError(fmt.Errorf("no supported images in %s", batchDir))
		return 2
	}
	fmt.Printf("batch mode: %d images found\n", len(images))

	summary := digitizer.ProcessAll(ctx, images)
	for _, item := range summary.Succeeded {
		printArtifacts(item.Image, item.Artifacts)
	}
	for _, item := range summary.Failed {
		fmt.Fprintf(os.Stderr, "failed %s: %s\n", filepath.Base(item.Image), util.RedactSecrets(item.Err.Error()))
	}

	succeeded, failed := summary.Counts()
	resolved, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		resolved = cfg.OutputDir
	}
	fmt.Printf("batch complete: %d succeeded, %d failed\noutput: %s\n", succeeded, failed, resolved)

	if succeeded == 0 {
		return 1
	}
	return 0
}

func printArtifacts(image string, a pipeline.Artifacts) {
	fmt.Printf("ok %s\n  raw:     %s\n  summary: %s\n", filepath.Base(image), a.RawPath, a.SummaryPath)
}

func configError(err error) {
	fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
}

func usage(w *os.File, fs *flag.FlagSet) {
	fmt.Fprintf(w, `boardscan: digitize workshop/metaplan board photos via the OpenRouter vision API

Usage:
  boardscan --image board.jpg [flags]
  boardscan --batch ./fotos [flags]
  boardscan --test

Environment:
  OPENROUTER_API_KEY   API credential (required)
  OPENROUTER_BASE_URL  API base URL override (proxies/testing)
  DEFAULT_MODEL        Primary model id (default %s)
  FALLBACK_MODEL       Fallback model id (default %s)
  OUTPUT_DIR           Artifact directory (default %s)
  MAX_TOKENS           Max completion tokens (default %d)
  REQUEST_TIMEOUT      Per-request timeout (default 2m)
  RATE_LIMIT_RPS       Global request rate limit, 0 disables
  MAX_IMAGE_DIM        Downscale threshold in pixels, 0 disables

Flags:
`, config.DefaultModel, config.DefaultFallbackModel, config.DefaultOutputDir, config.DefaultMaxTokens)
	fs.PrintDefaults()
}
