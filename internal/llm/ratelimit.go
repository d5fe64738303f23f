package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to a Generator so upstream request quotas are respected.
type RateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimited wraps next allowing requestsPerSecond calls with the given burst.
// A non-positive rate disables limiting.
func NewRateLimited(next Generator, requestsPerSecond float64, burst int) *RateLimited {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Generate waits for a token then calls the wrapped generator.
func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Generate(ctx, prompt)
}
