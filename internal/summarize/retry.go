package summarize

import (
	"context"
	"time"

	"edurag/internal/llm"
)

// RetryPolicy configures exponential backoff for generator calls.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy retries twice, starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second}
}

// WithRetry wraps g so failed calls are retried with exponential backoff.
// The last error is returned once attempts run out, ctx is done, or the backend
// rejects the request in a way repeating cannot fix.
func WithRetry(g llm.Generator, policy RetryPolicy) llm.Generator {
	if policy.Attempts <= 1 {
		return g
	}
	return llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		delay := policy.InitialDelay
		var lastErr error
		for attempt := 1; attempt <= policy.Attempts; attempt++ {
			out, err := g.Generate(ctx, prompt)
			if err == nil {
				return out, nil
			}
			lastErr = err
			if attempt == policy.Attempts || llm.IsPermanent(err) {
				break
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			delay *= 2
			if policy.MaxDelay > 0 && delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}
		return "", lastErr
	})
}
