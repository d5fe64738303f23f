package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBounded_CapsConcurrentCalls(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := NewBounded(GeneratorFunc(func(context.Context, string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	}), 2)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := gen.Generate(context.Background(), "p"); err != nil {
				t.Errorf("Generate() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 || got < 1 {
		t.Errorf("peak concurrent calls = %d, want 1..2", got)
	}
}

func TestBounded_WaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gen := NewBounded(GeneratorFunc(func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "ok", nil
	}), 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = gen.Generate(context.Background(), "holds the only slot")
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := gen.Generate(ctx, "waits")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Generate() error = %v, want deadline exceeded", err)
	}

	close(release)
	<-done
}
