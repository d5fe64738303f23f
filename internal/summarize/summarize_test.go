package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edurag/internal/llm"
)

func words(n int, w string) string {
	return strings.TrimSpace(strings.Repeat(w+" ", n))
}

type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.reply(prompt)
}

func (g *recordingGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func TestSplitBlocks(t *testing.T) {
	blocks := SplitBlocks(words(2500, "w"), 1200)
	require.Len(t, blocks, 3)
	assert.Len(t, strings.Fields(blocks[0]), 1200)
	assert.Len(t, strings.Fields(blocks[2]), 100)

	assert.Empty(t, SplitBlocks("   ", 10))
	assert.Equal(t, []string{"a b"}, SplitBlocks("a\n\tb", 10))
}

func TestSummarize_SingleBlock(t *testing.T) {
	gen := &recordingGenerator{reply: func(string) (string, error) { return "  the gist  ", nil }}
	s := New(gen, DefaultOptions())

	out, err := s.Summarize(context.Background(), "Newton's laws describe motion.")
	require.NoError(t, err)
	assert.Equal(t, "the gist", out)
	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "[START CONTENT]\nNewton's laws describe motion.\n[END CONTENT]")
}

func TestSummarize_RecursesUntilMaxDepth(t *testing.T) {
	gen := &recordingGenerator{reply: func(string) (string, error) { return words(6, "s"), nil }}
	s := New(gen, Options{BlockWords: 10, MaxDepth: 2, MaxFinalWords: 1000})

	out, err := s.Summarize(context.Background(), words(30, "w"))
	require.NoError(t, err)
	// Depth 1: 3 blocks -> 18 words. Depth 2: 2 blocks -> 12 words, then stop.
	assert.Equal(t, 5, gen.calls())
	assert.Len(t, strings.Fields(out), 12)
}

func TestSummarize_NoRecursionWhenShortEnough(t *testing.T) {
	gen := &recordingGenerator{reply: func(string) (string, error) { return "short", nil }}
	s := New(gen, Options{BlockWords: 10, MaxDepth: 3, MaxFinalWords: 1000})

	out, err := s.Summarize(context.Background(), words(25, "w"))
	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls())
	assert.Equal(t, "short\nshort\nshort", out)
}

func TestSummarize_FailedBlockDegrades(t *testing.T) {
	gen := &recordingGenerator{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "bad") {
			return "", errors.New("upstream 500")
		}
		return "good summary", nil
	}}
	s := New(gen, Options{BlockWords: 3, MaxFinalWords: 1000})

	out, err := s.Summarize(context.Background(), "ok ok ok bad bad bad")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls())
	assert.Equal(t, "good summary", strings.TrimSpace(out))
}

func TestSummarize_AllBlocksFail(t *testing.T) {
	gen := &recordingGenerator{reply: func(string) (string, error) { return "", errors.New("down") }}
	s := New(gen, DefaultOptions())

	_, err := s.Summarize(context.Background(), "some text")
	assert.ErrorIs(t, err, ErrEmptySummary)
}

func TestSummarize_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return "x", nil
	})
	s := New(gen, Options{BlockWords: 1, Workers: 2, MaxDepth: 1, MaxFinalWords: 1000})

	_, err := s.Summarize(context.Background(), words(8, "w"))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(0), inFlight.Load())
}

func TestSummarize_FinalCompression(t *testing.T) {
	var calls atomic.Int32
	gen := llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		if calls.Add(1) == 1 {
			return words(8, "long"), nil
		}
		return strings.Repeat("x", 100), nil
	})
	s := New(gen, Options{BlockWords: 100, MaxFinalWords: 5})

	out, err := s.Summarize(context.Background(), "source text")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, strings.Repeat("x", 40), out)
}

func TestSummarize_Instructions(t *testing.T) {
	gen := &recordingGenerator{reply: func(string) (string, error) { return "ok", nil }}
	s := New(gen, Options{Instructions: "Focus on thermodynamics."})

	_, err := s.Summarize(context.Background(), "heat")
	require.NoError(t, err)
	assert.Contains(t, gen.prompts[0], "- Focus on thermodynamics.\n")
}

func TestSummarize_Cancelled(t *testing.T) {
	gen := &recordingGenerator{reply: func(string) (string, error) { return "ok", nil }}
	s := New(gen, Options{BlockWords: 1, Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Summarize(ctx, words(5, "w"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilterExamQuestions(t *testing.T) {
	in := "Intro to optics.\n\nExam Questions:\n1. What is light?\n\nRefraction bends light.\n\nSample examination questions follow."
	assert.Equal(t, "Intro to optics.\n\nRefraction bends light.", FilterExamQuestions(in))
	assert.Equal(t, "examples of questions", FilterExamQuestions("examples of questions"))
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("physics", []string{"b.pdf", "a.pdf"}, "groq", "")
	b := CacheKey("physics", []string{"a.pdf", "b.pdf"}, "groq", "")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, CacheKey("physics", []string{"a.pdf", "b.pdf"}, "gemini", ""))
	assert.NotEqual(t, a, CacheKey("physics", []string{"a.pdf", "b.pdf"}, "groq", "more detail"))
	assert.NotEqual(t, a, CacheKey("chemistry", []string{"a.pdf", "b.pdf"}, "groq", ""))
}

func TestWithRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("succeeds after failures", func(t *testing.T) {
		var calls int
		g := WithRetry(llm.GeneratorFunc(func(context.Context, string) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("rate limited")
			}
			return "done", nil
		}), policy)

		out, err := g.Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "done", out)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error", func(t *testing.T) {
		var calls int
		g := WithRetry(llm.GeneratorFunc(func(context.Context, string) (string, error) {
			calls++
			return "", errors.New("still down")
		}), policy)

		_, err := g.Generate(context.Background(), "p")
		assert.EqualError(t, err, "still down")
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent rejection is not retried", func(t *testing.T) {
		var calls int
		g := WithRetry(llm.GeneratorFunc(func(context.Context, string) (string, error) {
			calls++
			return "", &llm.StatusError{StatusCode: 401, Body: "invalid api key"}
		}), policy)

		_, err := g.Generate(context.Background(), "p")
		assert.True(t, llm.IsPermanent(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls int
		g := WithRetry(llm.GeneratorFunc(func(context.Context, string) (string, error) {
			calls++
			cancel()
			return "", errors.New("fail")
		}), RetryPolicy{Attempts: 5, InitialDelay: time.Hour})

		_, err := g.Generate(ctx, "p")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
