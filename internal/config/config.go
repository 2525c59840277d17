package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults mirror the original tool's .env.example.
const (
	DefaultModel         = "google/gemini-2.0-flash"
	DefaultFallbackModel = "anthropic/claude-sonnet-4-5"
	DefaultOutputDir     = "./output"
	DefaultMaxTokens     = 4000
)

// Config is the full configuration surface of the CLI. The credential is
// required; everything else has defaults.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	FallbackModel  string
	OutputDir      string
	MaxTokens      int
	RequestTimeout time.Duration
	RateLimitRPS   float64
	MaxImageDim    int

	// Templates are extra board templates registered from a config file,
	// keyed by template name.
	Templates map[string]string
}

// LoadEnv reads configuration from the environment. The credential is not
// validated here; pre-flight checks belong to the caller so --test and run
// modes can report it uniformly.
func LoadEnv() (Config, error) {
	maxTokens, err := envInt("MAX_TOKENS", DefaultMaxTokens)
	if err != nil {
		return Config{}, err
	}
	requestTimeout, err := envDuration("REQUEST_TIMEOUT", 120*time.Second)
	if err != nil {
		return Config{}, err
	}
	rateLimitRPS, err := envFloat("RATE_LIMIT_RPS", 0)
	if err != nil {
		return Config{}, err
	}
	maxImageDim, err := envInt("MAX_IMAGE_DIM", 0)
	if err != nil {
		return Config{}, err
	}

	return Config{
		APIKey:         strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		BaseURL:        strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL")),
		Model:          envString("DEFAULT_MODEL", DefaultModel),
		FallbackModel:  envString("FALLBACK_MODEL", DefaultFallbackModel),
		OutputDir:      envString("OUTPUT_DIR", DefaultOutputDir),
		MaxTokens:      maxTokens,
		RequestTimeout: requestTimeout,
		RateLimitRPS:   rateLimitRPS,
		MaxImageDim:    maxImageDim,
	}, nil
}

// fileConfig is the YAML config file shape. Zero values leave the current
// setting untouched.
type fileConfig struct {
	Model          string            `yaml:"model"`
	FallbackModel  string            `yaml:"fallback_model"`
	OutputDir      string            `yaml:"output_dir"`
	MaxTokens      int               `yaml:"max_tokens"`
	RequestTimeout string            `yaml:"request_timeout"`
	RateLimitRPS   float64           `yaml:"rate_limit_rps"`
	MaxImageDim    int               `yaml:"max_image_dim"`
	Templates      map[string]string `yaml:"templates"`
}

// MergeFile overlays settings from a YAML config file onto c.
func (c Config) MergeFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if v := strings.TrimSpace(f.Model); v != "" {
		c.Model = v
	}
	if v := strings.TrimSpace(f.FallbackModel); v != "" {
		c.FallbackModel = v
	}
	if v := strings.TrimSpace(f.OutputDir); v != "" {
		c.OutputDir = v
	}
	if f.MaxTokens > 0 {
		c.MaxTokens = f.MaxTokens
	}
	if v := strings.TrimSpace(f.RequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config file: invalid request_timeout %q: %w", v, err)
		}
		c.RequestTimeout = d
	}
	if f.RateLimitRPS > 0 {
		c.RateLimitRPS = f.RateLimitRPS
	}
	if f.MaxImageDim > 0 {
		c.MaxImageDim = f.MaxImageDim
	}
	if len(f.Templates) > 0 {
		if c.Templates == nil {
			c.Templates = make(map[string]string, len(f.Templates))
		}
		for k, v := range f.Templates {
			c.Templates[k] = v
		}
	}
	return c, nil
}

func envString(varName, fallback string) string {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
