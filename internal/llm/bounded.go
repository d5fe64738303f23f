package llm

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Bounded caps how many calls to a Generator run at once. Callers sharing one Bounded
// share its cap.
type Bounded struct {
	next Generator
	sem  *semaphore.Weighted
}

// NewBounded wraps next allowing at most n concurrent calls. n below 1 is treated as 1.
func NewBounded(next Generator, n int) *Bounded {
	if n < 1 {
		n = 1
	}
	return &Bounded{next: next, sem: semaphore.NewWeighted(int64(n))}
}

// Generate waits for a free slot then calls the wrapped generator.
func (b *Bounded) Generate(ctx context.Context, prompt string) (string, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("concurrency wait: %w", err)
	}
	defer b.sem.Release(1)
	return b.next.Generate(ctx, prompt)
}
