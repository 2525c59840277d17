package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/workshop-tools/boardscan/internal/observe"
)

// DefaultBaseURL is the OpenRouter chat-completions API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Config holds the immutable request-execution policy.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	FallbackModel string
	MaxTokens     int
	// RequestTimeout bounds a single attempt. Expiry is a retryable failure,
	// not a cancellation signal.
	RequestTimeout time.Duration
	// MaxAttempts is the per-model attempt ceiling.
	MaxAttempts int
	// BackoffBase is the delay before the first retry; subsequent retries
	// multiply it by BackoffFactor. It is also the flat delay applied after
	// an unclassified HTTP error.
	BackoffBase   time.Duration
	BackoffFactor int
	// RateLimitRPS is a global request rate limit. Set to <=0 to disable.
	RateLimitRPS float64

	// HTTPClient overrides the transport. Used by tests.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4000
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 120 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2
	}
	return c
}

// Usage is the optional token accounting returned by the API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a successful request outcome.
type Result struct {
	Text  string
	Model string
	Usage *Usage
}

// Client executes chat-completion requests with retry, backoff and model
// fallback. It is stateless across calls except for the shared rate limiter.
type Client struct {
	cfg     Config
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	sink    observe.Sink
}

// NewClient validates cfg and constructs a client. sink receives one event
// per attempt; pass observe.NopSink{} to discard them.
func NewClient(cfg Config, sink observe.Sink) (*Client, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must include a host (got %q)", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.RequestTimeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	if sink == nil {
		sink = observe.NopSink{}
	}

	return &Client{
		cfg:     cfg,
		baseURL: base,
		http:    hc,
		limiter: limiter,
		sink:    sink,
	}, nil
}

// Execute runs one logical request against the configured primary model,
// falling back to the configured fallback model once the primary's attempt
// budget is exhausted.
func (c *Client) Execute(ctx context.Context, msgs []Message) (Result, error) {
	return c.ExecuteModel(ctx, msgs, c.cfg.Model)
}

// ExecuteModel is Execute with an explicit starting model. Exactly one
// Result or one terminal error is produced per call.
func (c *Client) ExecuteModel(ctx context.Context, msgs []Message, model string) (Result, error) {
	if len(msgs) == 0 {
		return Result{}, fmt.Errorf("empty message sequence")
	}

	models := []string{model}
	if fb := strings.TrimSpace(c.cfg.FallbackModel); fb != "" && fb != model {
		models = append(models, fb)
	}

	var lastErr error
	for i, m := range models {
		res, err := c.attemptLoop(ctx, msgs, m)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if classify(err) == classTerminal {
			return Result{}, err
		}
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		if i < len(models)-1 {
			c.sink.Record(observe.Event{
				Time:    time.Now(),
				Model:   m,
				Outcome: "fallback",
				Detail:  "next=" + models[i+1],
				Err:     err,
			})
		}
	}

	return Result{}, fmt.Errorf(
		"all %d attempts exhausted (models: %s): %w",
		c.cfg.MaxAttempts*len(models), strings.Join(models, ", "), lastErr,
	)
}

// attemptLoop runs the per-model attempt budget. Unclassified HTTP errors
// get a single flat-delay retry; transient failures get the full budget
// with exponential backoff; terminal failures return immediately.
func (c *Client) attemptLoop(ctx context.Context, msgs []Message, model string) (Result, error) {
	var lastErr error
	flatRetried := false

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Result{}, err
			}
		}

		res, err := c.post(ctx, model, msgs, c.cfg.MaxTokens)
		c.sink.Record(observe.Event{
			Time:    time.Now(),
			Model:   model,
			Attempt: attempt,
			Outcome: attemptOutcome(err),
			Err:     err,
		})
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		lastErr = err

		var delay time.Duration
		switch classify(err) {
		case classTerminal:
			return Result{}, err
		case classRetryableOnce:
			if flatRetried {
				return Result{}, err
			}
			flatRetried = true
			delay = c.cfg.BackoffBase
		case classRetryable:
			delay = c.backoff(attempt)
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return Result{}, ctx.Err()
		}
	}
	return Result{}, lastErr
}

// backoff returns the delay slept after attempt number `attempt` fails:
// BackoffBase, then multiplied by BackoffFactor per further attempt.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(c.cfg.BackoffFactor)
	}
	return delay
}

func attemptOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch classify(err) {
	case classTerminal:
		return "terminal"
	case classRetryableOnce:
		return "http_error"
	default:
		return "retryable"
	}
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// post performs one request/response exchange and classifies the outcome.
func (c *Client) post(ctx context.Context, model string, msgs []Message, maxTokens int) (Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	payload := chatRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: "chat/completions"})
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/workshop-tools/boardscan")
	req.Header.Set("X-Title", "Boardscan")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		// Timeouts and transport-level failures are retryable.
		return Result{}, &TransientError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &TransientError{Err: err}
	}
	if resp.StatusCode/100 != 2 {
		return Result{}, classifyStatus("chatCompletions", model, resp.StatusCode, resp.Status, rb)
	}

	var out chatResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return Result{}, fmt.Errorf("parse chat completion response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return Result{}, fmt.Errorf("empty completion from model %q", model)
	}

	return Result{
		Text:  out.Choices[0].Message.Content,
		Model: model,
		Usage: out.Usage,
	}, nil
}

// CheckConnection issues a single small text-only request against the
// primary model. No retries, no fallback; used by the CLI --test mode.
func (c *Client) CheckConnection(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := c.post(ctx, c.cfg.Model, []Message{TextMessage("Antworte mit: OK")}, 10)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}
