package providers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/loomgate/loomgate/internal/chatmodel"
	"github.com/loomgate/loomgate/internal/tracing"
	"golang.org/x/time/rate"
)

// DefaultMaxModelRetries and DefaultRetryDelay anchor ProviderChain's backoff
// formulas (spec §4.3).
const (
	DefaultMaxModelRetries = 3
	DefaultRetryDelay      = 2 * time.Second
	rateLimitBackoffCap    = 30 * time.Second
	preFallbackPause       = 5 * time.Second
)

// FallbackTarget is one (provider, model list) tuple tried after the
// primary provider's model list is exhausted.
type FallbackTarget struct {
	Provider Provider
	Models   []string
}

// ProviderChain implements spec §4.3: try a caller-requested model first,
// then the primary provider's configured model list, then each fallback
// provider's model list in order — all under the same retry/backoff policy.
type ProviderChain struct {
	Primary         Provider
	PrimaryModels   []string
	Fallbacks       []FallbackTarget
	MaxModelRetries int
	RetryDelay      time.Duration

	limiters map[string]*rate.Limiter
	log      *slog.Logger
}

// NewChain builds a ProviderChain with spec defaults.
func NewChain(primary Provider, primaryModels []string, fallbacks ...FallbackTarget) *ProviderChain {
	return &ProviderChain{
		Primary:         primary,
		PrimaryModels:   primaryModels,
		Fallbacks:       fallbacks,
		MaxModelRetries: DefaultMaxModelRetries,
		RetryDelay:      DefaultRetryDelay,
		limiters:        make(map[string]*rate.Limiter),
		log:             slog.Default().With("component", "provider_chain"),
	}
}

// limiterFor returns (creating if needed) a per provider+model rate limiter.
// Each target gets a generous default (5 req/s, burst 5) — just enough to
// keep a runaway retry loop from hammering a provider between classified
// backoffs, not a hard product-level rate policy.
func (c *ProviderChain) limiterFor(key string) *rate.Limiter {
	if c.limiters == nil {
		c.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := c.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(5), 5)
		c.limiters[key] = l
	}
	return l
}

// Chat runs the full provider-chain algorithm and returns the first
// successful response, or the last error after every target is exhausted.
func (c *ProviderChain) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var lastErr error

	tryModels := func(provider Provider, models []string) (*ChatResponse, error) {
		for _, model := range models {
			r := req
			r.Model = model
			resp, err, rateLimited := c.attemptModel(ctx, provider, r)
			if err == nil {
				return resp, nil
			}
			lastErr = err
			if rateLimited {
				c.pauseBeforeFallback(ctx)
			}
		}
		return nil, lastErr
	}

	models := c.PrimaryModels
	if req.Model != "" {
		models = append([]string{req.Model}, c.PrimaryModels...)
	}
	if resp, err := tryModels(c.Primary, models); err == nil {
		return resp, nil
	}

	for _, fb := range c.Fallbacks {
		if resp, err := tryModels(fb.Provider, fb.Models); err == nil {
			return resp, nil
		}
	}

	return nil, lastErr
}

func (c *ProviderChain) pauseBeforeFallback(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(preFallbackPause):
	}
}

// attemptModel runs up to MaxModelRetries attempts of one (provider, model)
// pair, applying the spec's classification-dependent backoff between
// attempts. Returns the response, the final error (nil on success), and
// whether the last observed failure classified as rate-limit.
func (c *ProviderChain) attemptModel(ctx context.Context, provider Provider, req ChatRequest) (*ChatResponse, error, bool) {
	maxRetries := c.MaxModelRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxModelRetries
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	limiterKey := provider.Name() + ":" + req.Model
	limiter := c.limiterFor(limiterKey)

	var lastErr error
	rateLimited := false

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err, false
		}

		spanCtx, span := tracing.Start(ctx, "llm_call", provider.Name()+"/"+req.Model)
		resp, err := provider.Chat(spanCtx, req)
		span.WithModel(req.Model, provider.Name()).End(err)
		if err == nil {
			return resp, nil, false
		}

		lastErr = err
		rateLimited = isRateLimitError(err)
		c.log.Warn("model attempt failed",
			"provider", provider.Name(), "model", req.Model,
			"attempt", attempt+1, "rate_limited", rateLimited, "error", err)

		if attempt == maxRetries-1 {
			break
		}

		var backoff time.Duration
		if rateLimited {
			backoff = delay * time.Duration(1<<uint(attempt+2))
			if backoff > rateLimitBackoffCap {
				backoff = rateLimitBackoffCap
			}
		} else {
			backoff = delay * time.Duration(attempt+1)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err(), rateLimited
		case <-time.After(backoff):
		}
	}

	return nil, lastErr, rateLimited
}

// isRateLimitError classifies an error per spec §4.3: HTTP 429, or an error
// message mentioning "rate" or "too many".
func isRateLimitError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.IsRateLimit() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate") || strings.Contains(msg, "too many")
}

// Summarize satisfies compaction.Summarizer: a single-turn completion at the
// compaction prompt's fixed sampling parameters.
func (c *ProviderChain) Summarize(ctx context.Context, model, prompt string) (string, error) {
	req := ChatRequest{
		Messages:    []chatmodel.Message{chatmodel.NewUser(prompt)},
		Model:       model,
		Temperature: 0.3,
		MaxTokens:   2048,
	}
	resp, err := c.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
