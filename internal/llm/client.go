package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/chris8332558/chris-metac-bot-template/internal/logging"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	maxRetries     = 5
)

// ErrEmptyResponse marks a well-formed completion envelope that carried
// no answer text. It is fatal to the call and never retried.
var ErrEmptyResponse = errors.New("llm: empty response")

// Config holds client settings.
type Config struct {
	APIKey             string
	BaseURL            string
	DefaultModel       string
	DefaultTemperature float64
	ConcurrentLimit    int64
	Timeout            time.Duration
	// TemperatureExcluded lists models whose requests must not carry a
	// temperature parameter at all.
	TemperatureExcluded []string
}

// Client wraps an OpenAI-compatible chat completion API behind a global
// concurrency ceiling shared by all callers.
type Client struct {
	api         *openai.Client
	apiKey      string
	model       string
	temperature float64
	noTemp      map[string]struct{}
	sem         *semaphore.Weighted
	timeout     time.Duration
	log         zerolog.Logger
}

// New creates a client from config. A missing API key is not an error
// here; Call reports it when a request is actually made.
func New(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limit := cfg.ConcurrentLimit
	if limit <= 0 {
		limit = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	noTemp := make(map[string]struct{}, len(cfg.TemperatureExcluded))
	for _, m := range cfg.TemperatureExcluded {
		noTemp[strings.TrimSpace(m)] = struct{}{}
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = baseURL

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.DefaultModel,
		temperature: cfg.DefaultTemperature,
		noTemp:      noTemp,
		sem:         semaphore.NewWeighted(limit),
		timeout:     timeout,
		log:         logging.Component("llm"),
	}
}

// CallOption adjusts a single call.
type CallOption func(*callSettings)

type callSettings struct {
	model       string
	temperature float64
}

// WithModel overrides the default model for one call.
func WithModel(model string) CallOption {
	return func(s *callSettings) { s.model = model }
}

// WithTemperature overrides the default sampling temperature for one
// call. It has no effect on models listed as temperature-excluded.
func WithTemperature(t float64) CallOption {
	return func(s *callSettings) { s.temperature = t }
}

// Call sends prompt as a single user message and returns the trimmed
// response text. Calls beyond the concurrency limit wait for a slot in
// arrival order. Transient transport failures are retried up to five
// times with exponential backoff; everything else propagates at once.
func (c *Client) Call(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("llm: API key is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("llm: prompt must be provided")
	}

	settings := callSettings{model: c.model, temperature: c.temperature}
	for _, opt := range opts {
		opt(&settings)
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	req := openai.ChatCompletionRequest{
		Model: settings.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if _, excluded := c.noTemp[settings.model]; !excluded {
		req.Temperature = float32(settings.temperature)
	}

	c.log.Debug().
		Str("model", settings.model).
		Float64("temperature", settings.temperature).
		Msg("calling model")

	var text string
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(callCtx, req)
		if err != nil {
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return backoff.Permanent(ErrEmptyResponse)
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}

	c.log.Debug().
		Str("model", settings.model).
		Int("response_len", len(text)).
		Msg("model responded")
	return text, nil
}

// isTransient reports whether an error is worth retrying: rate limits,
// server-side failures, and transport errors that never reached the API.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 ||
			reqErr.HTTPStatusCode == http.StatusTooManyRequests ||
			reqErr.HTTPStatusCode >= 500
	}
	return true
}
