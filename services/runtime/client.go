package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// ModelRef names a model on a specific provider.
type ModelRef struct {
	Provider string
	Model    string
}

func (r ModelRef) String() string {
	return r.Provider + "/" + r.Model
}

// ParseModelRef parses a "provider/model" reference.
func ParseModelRef(s string) (ModelRef, error) {
	provider, model, ok := strings.Cut(s, "/")
	if !ok || provider == "" || model == "" {
		return ModelRef{}, fmt.Errorf("invalid model reference %q, want provider/model", s)
	}
	return ModelRef{Provider: provider, Model: model}, nil
}

// ClientConfig configures the provider client.
type ClientConfig struct {
	// Fallbacks are tried in order after the primary target fails.
	Fallbacks []ModelRef

	// MaxRetries bounds attempts per target for retryable failures.
	MaxRetries int

	// BaseDelay and MaxDelay shape the backoff between retries.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// EmbedProvider and EmbedModel route embedding requests.
	EmbedProvider string
	EmbedModel    string
}

// DefaultClientConfig returns sensible client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxRetries:    3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		EmbedProvider: "openai",
		EmbedModel:    "text-embedding-3-small",
	}
}

// Client routes completion and embedding requests through the provider
// registry with bounded retries and an ordered fallback list. Construct
// one per process and inject it; there is no package-level instance.
type Client struct {
	registry *Registry
	config   ClientConfig
	logger   *slog.Logger

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new provider client.
func NewClient(registry *Registry, config ClientConfig, logger *slog.Logger) *Client {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.EmbedProvider == "" {
		config.EmbedProvider = "openai"
	}
	return &Client{
		registry: registry,
		config:   config,
		logger:   logger.With("component", "runtime_client"),
		sleep:    sleepContext,
	}
}

// Complete runs a completion against the primary target, falling back
// through the configured list. Rate-limit and transient failures are
// retried with jittered exponential backoff; auth and unknown failures
// skip straight to the next target.
func (c *Client) Complete(ctx context.Context, primary ModelRef, params CompletionParams) (*CompletionResult, error) {
	targets := make([]ModelRef, 0, 1+len(c.config.Fallbacks))
	targets = append(targets, primary)
	for _, fb := range c.config.Fallbacks {
		if fb != primary {
			targets = append(targets, fb)
		}
	}

	var lastErr error
	for _, target := range targets {
		provider, ok := c.registry.Get(target.Provider)
		if !ok {
			lastErr = fmt.Errorf("provider not registered: %s", target.Provider)
			continue
		}

		result, err := c.completeWithRetry(ctx, provider, target, params)
		if err == nil {
			if target != primary {
				c.logger.Warn("completion served by fallback",
					"primary", primary.String(),
					"fallback", target.String())
			}
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("completion target exhausted",
			"target", target.String(),
			"error", err)
	}

	return nil, fmt.Errorf("all completion targets failed: %w", lastErr)
}

func (c *Client) completeWithRetry(ctx context.Context, provider Provider, target ModelRef, params CompletionParams) (*CompletionResult, error) {
	params.Model = target.Model

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		result, err := provider.Complete(ctx, params)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var perr *ProviderError
		if !errors.As(err, &perr) || !perr.Retryable() {
			return nil, err
		}
	}

	return nil, lastErr
}

// Embed runs an embedding request through the configured embedding
// provider with the same retry policy as completions.
func (c *Client) Embed(ctx context.Context, params EmbedParams) (*EmbedResult, error) {
	provider, ok := c.registry.Get(c.config.EmbedProvider)
	if !ok {
		return nil, fmt.Errorf("embedding provider not registered: %s", c.config.EmbedProvider)
	}

	if params.Model == "" {
		params.Model = c.config.EmbedModel
	}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		result, err := provider.Embed(ctx, params)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var perr *ProviderError
		if !errors.As(err, &perr) || !perr.Retryable() {
			return nil, err
		}
	}

	return nil, lastErr
}

// backoff returns the delay before the given attempt: exponential in
// the attempt number, capped, with the upper half jittered.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.config.BaseDelay << (attempt - 1)
	if delay > c.config.MaxDelay {
		delay = c.config.MaxDelay
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
