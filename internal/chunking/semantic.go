package chunking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"edurag/internal/contextutil"
)

const (
	// DefaultPercentile is the distance percentile above which a boundary is cut.
	DefaultPercentile = 95.0
	// DefaultBufferSize is the number of neighbouring sentences combined on each side
	// of a sentence before it is embedded.
	DefaultBufferSize = 1
	// DefaultMinChars drops chunks shorter than this after normalization.
	DefaultMinChars = 10
	// ParsedBySemantic is the parsed_by label for chunks built by SemanticChunker.
	ParsedBySemantic = "semantic-percentile"
)

// EmbedFunc turns texts into vectors, one per input, in order.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Chunk is the persisted retrieval unit.
type Chunk struct {
	ID       string `json:"id"`
	SourceID string `json:"source"`
	// Page is 1-based; 0 when the source has no page structure.
	Page      int       `json:"page"`
	Index     int       `json:"chunk_index"`
	Text      string    `json:"text"`
	Hash      string    `json:"hash"`
	ParsedBy  string    `json:"parsed_by"`
	Embedding []float32 `json:"-"`
}

// Options tune the semantic chunker.
type Options struct {
	Percentile float64
	BufferSize int
	MinChars   int
	// MaxChars forces a cut once a chunk would grow past it. 0 disables the limit.
	MaxChars int
	ParsedBy string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Percentile: DefaultPercentile,
		BufferSize: DefaultBufferSize,
		MinChars:   DefaultMinChars,
		ParsedBy:   ParsedBySemantic,
	}
}

// SemanticChunker cuts documents at topic shifts detected from embedding distances
// between consecutive sentence groups.
type SemanticChunker struct {
	embed EmbedFunc
	opts  Options
}

// NewSemanticChunker creates a chunker. Zero-valued options fall back to defaults.
func NewSemanticChunker(embed EmbedFunc, opts Options) *SemanticChunker {
	def := DefaultOptions()
	if opts.Percentile <= 0 || opts.Percentile > 100 {
		opts.Percentile = def.Percentile
	}
	if opts.BufferSize < 0 {
		opts.BufferSize = def.BufferSize
	}
	if opts.MinChars < 0 {
		opts.MinChars = 0
	}
	if opts.MaxChars < 0 {
		opts.MaxChars = 0
	}
	if opts.ParsedBy == "" {
		opts.ParsedBy = def.ParsedBy
	}
	return &SemanticChunker{embed: embed, opts: opts}
}

// unit is one sentence of a page.
type unit struct {
	sourceID string
	page     int
	text     string
}

// Chunk turns the ordered pre-chunks of one document into semantic chunks.
// An embedding failure fails the whole document and no chunks are returned.
func (c *SemanticChunker) Chunk(ctx context.Context, pre []PreChunk) ([]Chunk, error) {
	units := sentenceUnits(pre)
	if len(units) == 0 {
		return nil, nil
	}

	groups := [][]unit{units}
	if len(units) > 1 {
		vectors, err := c.embed(ctx, bufferedTexts(units, c.opts.BufferSize))
		if err != nil {
			return nil, fmt.Errorf("embed sentences: %w", err)
		}
		if len(vectors) != len(units) {
			return nil, fmt.Errorf("embed sentences: got %d vectors for %d sentences", len(vectors), len(units))
		}

		distances := make([]float64, len(units)-1)
		for i := range distances {
			distances[i] = cosineDistance(vectors[i], vectors[i+1])
		}
		threshold := percentile(distances, c.opts.Percentile)

		groups = nil
		current := []unit{units[0]}
		for i := 1; i < len(units); i++ {
			prev, next := units[i-1], units[i]
			cut := distances[i-1] > threshold ||
				prev.sourceID != next.sourceID ||
				prev.page != next.page ||
				c.exceedsMax(current, next)
			if cut {
				groups = append(groups, current)
				current = nil
			}
			current = append(current, next)
		}
		groups = append(groups, current)
	}

	return c.buildChunks(ctx, groups), nil
}

func (c *SemanticChunker) exceedsMax(current []unit, next unit) bool {
	if c.opts.MaxChars <= 0 || len(current) == 0 {
		return false
	}
	n := utf8.RuneCountInString(next.text)
	for _, u := range current {
		n += utf8.RuneCountInString(u.text) + 1
	}
	return n > c.opts.MaxChars
}

// buildChunks keeps the first chunk of each id. A later chunk with the same id repeats
// text already indexed for that page and is logged, not stored.
func (c *SemanticChunker) buildChunks(ctx context.Context, groups [][]unit) []Chunk {
	chunks := make([]Chunk, 0, len(groups))
	seen := make(map[string]struct{}, len(groups))
	dropped, droppedChars := 0, 0
	for _, g := range groups {
		parts := make([]string, len(g))
		for i, u := range g {
			parts[i] = u.text
		}
		text := Normalize(strings.Join(parts, " "))
		if text == "" || utf8.RuneCountInString(text) < c.opts.MinChars {
			continue
		}

		first := g[0]
		hash := ContentHash(text)
		id := ChunkID(first.sourceID, first.page, hash)
		if _, dup := seen[id]; dup {
			dropped++
			droppedChars += utf8.RuneCountInString(text)
			continue
		}
		seen[id] = struct{}{}

		chunks = append(chunks, Chunk{
			ID:       id,
			SourceID: first.sourceID,
			Page:     first.page,
			Index:    len(chunks),
			Text:     text,
			Hash:     hash,
			ParsedBy: c.opts.ParsedBy,
		})
	}
	if dropped > 0 {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "dropped repeated chunks",
			"source", chunks[0].SourceID, "dropped", dropped, "dropped_chars", droppedChars)
	}
	return chunks
}

// sentenceUnits splits every window into sentences and removes the text that
// overlapping windows repeat, so each character of a page lands in at most one unit.
func sentenceUnits(pre []PreChunk) []unit {
	type pageKey struct {
		source string
		page   int
	}
	covered := make(map[pageKey]int)

	var units []unit
	for i, pc := range pre {
		key := pageKey{pc.SourceID, pc.Page}
		nextStart := -1
		if i+1 < len(pre) && pre[i+1].SourceID == pc.SourceID && pre[i+1].Page == pc.Page {
			nextStart = pre[i+1].Start
		}

		spans := sentenceSpans(pc.Text)
		for j, sp := range spans {
			start, end := pc.Start+sp.start, pc.Start+sp.end

			// The trailing sentence may be cut by the window edge; the next window
			// holds all of it, so leave it to that window.
			if j == len(spans)-1 && nextStart >= 0 && nextStart <= start {
				continue
			}

			if end <= covered[key] {
				continue
			}
			if start < covered[key] {
				start = covered[key]
			}
			text := strings.TrimSpace(pc.Text[start-pc.Start : end-pc.Start])
			if text == "" {
				continue
			}
			covered[key] = end
			units = append(units, unit{sourceID: pc.SourceID, page: pc.Page, text: text})
		}
	}
	return units
}

type span struct {
	start int
	end   int
}

// sentenceSpans returns trimmed sentence spans of text. A sentence ends at '.', '!' or '?'
// followed by whitespace, or at a blank line.
func sentenceSpans(text string) []span {
	var spans []span
	start := 0
	emit := func(end int) {
		sub := text[start:end]
		left := strings.TrimLeftFunc(sub, unicode.IsSpace)
		s := start + len(sub) - len(left)
		e := s + len(strings.TrimRightFunc(left, unicode.IsSpace))
		if s < e {
			spans = append(spans, span{start: s, end: e})
		}
		start = end
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && isASCIISpace(text[i+1]) {
				emit(i + 1)
			}
		case '\n':
			if i+1 < len(text) && text[i+1] == '\n' && i > start {
				emit(i)
			}
		}
	}
	if start < len(text) {
		emit(len(text))
	}
	return spans
}

func isASCIISpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == '\f' || b == '\v'
}

// bufferedTexts combines each unit with bufferSize neighbours on both sides.
func bufferedTexts(units []unit, bufferSize int) []string {
	out := make([]string, len(units))
	for i := range units {
		lo := max(0, i-bufferSize)
		hi := min(len(units), i+bufferSize+1)
		parts := make([]string, 0, hi-lo)
		for _, u := range units[lo:hi] {
			parts = append(parts, u.text)
		}
		out[i] = strings.Join(parts, " ")
	}
	return out
}

// cosineDistance is 1 - cosine similarity. Zero vectors are treated as identical.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	d := 1 - dot/denom
	if d < 0 {
		return 0
	}
	return d
}

// percentile returns the p-th percentile of values using linear interpolation.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(p, 100))
	idx := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
