// Package ai provides an HTTP client for chat-completion backends.
// Requests are rate limited and retried with a per-attempt timeout;
// when the primary model keeps failing the client retries once more on
// a fallback model before giving up.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"video2tool/domain"
	"video2tool/errors"
)

const (
	defaultMaxRetries     = 3
	defaultAttemptTimeout = 30 * time.Second
)

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	FallbackModel  string
	MaxRetries     int
	AttemptTimeout time.Duration
	// RequestsPerMinute throttles outbound calls before the provider
	// does it for us. Zero disables the limiter.
	RequestsPerMinute int
}

type Completer struct {
	log     *slog.Logger
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

func NewCompleter(log *slog.Logger, cfg Config) *Completer {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}
	return &Completer{
		log:     log,
		cfg:     cfg,
		client:  &http.Client{},
		limiter: limiter,
	}
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the prompt to the backend and returns the first
// choice. Attempts run against the configured model first, then once
// against the fallback model when one is configured.
func (c *Completer) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	model := c.cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		answer, err := c.attempt(ctx, model, prompt, opts)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		c.log.Warn("Completion attempt failed", "model", model, "attempt", attempt+1, "err", err)
	}

	if c.cfg.FallbackModel != "" && c.cfg.FallbackModel != model {
		c.log.Info("Switching to fallback model", "model", c.cfg.FallbackModel)
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		answer, err := c.attempt(ctx, c.cfg.FallbackModel, prompt, opts)
		if err == nil {
			return answer, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: %w", errors.ErrCompletionExhausted, lastErr)
}

func (c *Completer) attempt(ctx context.Context, model, prompt string, opts domain.CompletionOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	body, err := json.Marshal(completionRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("completion backend returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("completion backend returned %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion backend returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
