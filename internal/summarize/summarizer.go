package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"edurag/internal/contextutil"
	"edurag/internal/llm"
)

const (
	// DefaultBlockWords is the size of one block handed to the generator.
	DefaultBlockWords = 1200
	// DefaultMaxDepth bounds how many times combined summaries are summarized again.
	DefaultMaxDepth = 2
	// DefaultWorkers caps concurrent generator calls per summary.
	DefaultWorkers = 2
	// DefaultMaxFinalWords triggers one last compression pass.
	DefaultMaxFinalWords = 1800
)

// ErrEmptySummary is returned when nothing could be summarized.
var ErrEmptySummary = errors.New("summary is empty")

const leafPrompt = `
Carefully read the following academic content and produce a **deep, comprehensive summary**:
- Capture all key concepts, definitions, and explanations.
- Organize using headings if the content contains chapters or sections.
- The summary should be detailed enough that a professor could create exam questions from it.
- Do NOT include any section or block named "Exam Questions", "Examination Questions", or similar. Omit any list of exam questions found in the text.
%s
[START CONTENT]
%s
[END CONTENT]
`

// Options tunes the summarization fold.
type Options struct {
	BlockWords    int
	MaxDepth      int
	Workers       int
	MaxFinalWords int
	// Instructions are appended to every leaf prompt when set.
	Instructions string
}

// DefaultOptions returns the settings used when none are given.
func DefaultOptions() Options {
	return Options{
		BlockWords:    DefaultBlockWords,
		MaxDepth:      DefaultMaxDepth,
		Workers:       DefaultWorkers,
		MaxFinalWords: DefaultMaxFinalWords,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BlockWords <= 0 {
		o.BlockWords = d.BlockWords
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.MaxFinalWords <= 0 {
		o.MaxFinalWords = d.MaxFinalWords
	}
	return o
}

// Summarizer condenses long text with a bounded-depth fold:
// split into blocks, summarize blocks concurrently, join, and repeat while the
// result is still longer than one block.
type Summarizer struct {
	generator llm.Generator
	opts      Options
	logger    *slog.Logger
}

// New creates a Summarizer. Wrap generator with WithRetry to retry leaf calls.
func New(generator llm.Generator, opts Options) *Summarizer {
	return &Summarizer{
		generator: generator,
		opts:      opts.withDefaults(),
		logger:    slog.Default(),
	}
}

func (s *Summarizer) getLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return s.logger
}

// Summarize returns the filtered, length-bounded summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	logger := s.getLogger(ctx)
	logger.InfoContext(ctx, "summarization started", "words", wordCount(text))

	summary, err := s.fold(ctx, text, 1)
	if err != nil {
		return "", err
	}
	summary = FilterExamQuestions(summary)

	if n := wordCount(summary); n > s.opts.MaxFinalWords {
		logger.InfoContext(ctx, "final summary too long, compressing", "words", n)
		fields := strings.Fields(summary)
		head := strings.Join(fields[:min(len(fields), 2*s.opts.MaxFinalWords)], " ")
		compressed, err := s.leaf(ctx, head)
		if err != nil {
			return "", fmt.Errorf("compress summary: %w", err)
		}
		summary = truncateRunes(compressed, 8*s.opts.MaxFinalWords)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", ErrEmptySummary
	}
	logger.InfoContext(ctx, "summarization completed", "words", wordCount(summary))
	return summary, nil
}

func (s *Summarizer) fold(ctx context.Context, text string, depth int) (string, error) {
	logger := s.getLogger(ctx)
	blocks := SplitBlocks(text, s.opts.BlockWords)
	logger.DebugContext(ctx, "summarizing blocks", "depth", depth, "blocks", len(blocks))

	summaries := make([]string, len(blocks))
	sem := semaphore.NewWeighted(int64(s.opts.Workers))
	var acquireErr error
	for i, block := range blocks {
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		go func() {
			defer sem.Release(1)
			out, err := s.leaf(ctx, block)
			if err != nil {
				logger.WarnContext(ctx, "block summarization failed", "depth", depth, "block", i+1, "error", err)
				return
			}
			summaries[i] = strings.TrimSpace(out)
		}()
	}
	// Wait for every in-flight block.
	_ = sem.Acquire(context.WithoutCancel(ctx), int64(s.opts.Workers))
	if acquireErr != nil {
		return "", acquireErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	combined := strings.Join(summaries, "\n")
	if depth < s.opts.MaxDepth && wordCount(combined) > s.opts.BlockWords {
		return s.fold(ctx, combined, depth+1)
	}
	return combined, nil
}

func (s *Summarizer) leaf(ctx context.Context, block string) (string, error) {
	extra := ""
	if s.opts.Instructions != "" {
		extra = "- " + s.opts.Instructions + "\n"
	}
	return s.generator.Generate(ctx, fmt.Sprintf(leafPrompt, extra, block))
}

// SplitBlocks splits text into consecutive blocks of at most size words.
func SplitBlocks(text string, size int) []string {
	words := strings.Fields(text)
	if size <= 0 {
		size = DefaultBlockWords
	}
	blocks := make([]string, 0, (len(words)+size-1)/size)
	for i := 0; i < len(words); i += size {
		end := min(i+size, len(words))
		blocks = append(blocks, strings.Join(words[i:end], " "))
	}
	return blocks
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
