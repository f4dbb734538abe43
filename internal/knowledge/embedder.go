package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	chromem "github.com/philippgille/chromem-go"

	"github.com/reelwise/reelwise/internal/log"
)

// NewEmbeddingFunc creates a chromem-go EmbeddingFunc from a Genkit ai.Embedder.
// The returned function bridges Genkit's embedding API with chromem-go's requirements.
//
// Note: chromem-go automatically normalizes vectors, so no manual normalization is needed.
func NewEmbeddingFunc(embedder ai.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		req := &ai.EmbedRequest{
			Input: []*ai.Document{
				ai.DocumentFromText(text, nil),
			},
		}

		resp, err := embedder.Embed(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("embed failed: %w", err)
		}

		if len(resp.Embeddings) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}

		return resp.Embeddings[0].Embedding, nil
	}
}

// RetryEmbedder wraps an ai.Embedder with bounded exponential backoff.
// Transient provider failures (rate limits, 5xx, network resets) are
// retried; anything else fails immediately. A failed embedding after all
// retries surfaces as an upstream error on the calling turn.
type RetryEmbedder struct {
	inner           ai.Embedder
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          log.Logger
}

// NewRetryEmbedder wraps embedder with maxRetries retry attempts.
// Negative values disable retrying.
func NewRetryEmbedder(embedder ai.Embedder, maxRetries int, logger log.Logger) *RetryEmbedder {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &RetryEmbedder{
		inner:           embedder,
		maxRetries:      maxRetries,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     10 * time.Second,
		logger:          logger,
	}
}

// Name implements ai.Embedder.
func (r *RetryEmbedder) Name() string { return r.inner.Name() }

// Register implements ai.Embedder.
func (r *RetryEmbedder) Register(reg api.Registry) { r.inner.Register(reg) }

// Embed implements ai.Embedder with retry on transient errors.
func (r *RetryEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	var lastErr error
	delay := r.initialInterval

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := r.inner.Embed(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableEmbedError(err) {
			return nil, fmt.Errorf("embed: %w", err)
		}

		// Last attempt - don't sleep
		if attempt == r.maxRetries {
			break
		}

		r.logger.Debug("retrying embedding after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during embed retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, r.maxInterval)
		}
	}

	return nil, fmt.Errorf("embed after %d retries: %w", r.maxRetries, lastErr)
}

// embedRetryablePatterns groups transient error substrings by category.
// Matched case-insensitively against err.Error().
//
// NOTE: This uses string matching because Genkit and embedding provider SDKs
// do not expose typed/sentinel errors for transient failures.
var embedRetryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableEmbedError reports whether err is transient and should trigger a retry.
func retryableEmbedError(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, group := range embedRetryablePatterns {
		for _, sub := range group {
			if strings.Contains(lower, sub) {
				return true
			}
		}
	}
	return false
}
