package chunking

import (
	"sort"
	"strings"
	"unicode"
)

const (
	// DefaultWindowSize is the pre-chunk window size in characters.
	DefaultWindowSize = 2000
	// DefaultOverlap is the number of characters shared by consecutive windows.
	DefaultOverlap = 50
)

// Window is a bounded, overlapping slice of a page's text.
// Start and End are byte offsets into the split text, Text == text[Start:End].
type Window struct {
	Text  string
	Start int
	End   int
}

// PreChunk is a window tagged with the page it was cut from.
type PreChunk struct {
	SourceID string
	Page     int
	Window
}

// separator is a preferred break; keep is how many of its bytes stay in the earlier window.
type separator struct {
	text string
	keep int
}

// separatorGroups in order of preference. Within a group the latest break wins.
var separatorGroups = [][]separator{
	{{"\n\n", 2}},
	{{"\n", 1}},
	{{". ", 1}, {"! ", 1}, {"? ", 1}},
	{{" ", 1}},
}

// Split cuts text into windows of at most size characters, consecutive windows sharing
// roughly overlap characters. Breaks prefer paragraph, line, sentence and word boundaries
// in that order. Whitespace-only windows are skipped. Split is pure: the same input always
// yields the same windows.
func Split(text string, size, overlap int) []Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	// offs[i] is the byte offset of rune i; offs[n] == len(text).
	offs := make([]int, 0, len(text)+1)
	for i := range text {
		offs = append(offs, i)
	}
	offs = append(offs, len(text))
	n := len(offs) - 1

	var windows []Window
	start := 0
	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else {
			end = breakPoint(text, offs, start, end, size)
		}

		if w, ok := trimWindow(text, offs[start], offs[end]); ok {
			windows = append(windows, w)
		}
		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = snapToWord(text, offs, next, end)
	}
	return windows
}

// PreChunkPage splits one page into windows tagged with its source and page number.
// Hyphen line breaks are joined first so a window edge can never split a hyphenated word
// into two sentences.
func PreChunkPage(sourceID string, page int, text string, size, overlap int) []PreChunk {
	windows := Split(JoinHyphenBreaks(text), size, overlap)
	out := make([]PreChunk, 0, len(windows))
	for _, w := range windows {
		out = append(out, PreChunk{SourceID: sourceID, Page: page, Window: w})
	}
	return out
}

// breakPoint returns the rune index to end a window that would otherwise end at hardEnd.
// Only breaks in the second half of the window are considered so windows stay close to size.
func breakPoint(text string, offs []int, start, hardEnd, size int) int {
	lo := start + size/2
	region := text[offs[lo]:offs[hardEnd]]

	for _, group := range separatorGroups {
		best := -1
		for _, sep := range group {
			idx := strings.LastIndex(region, sep.text)
			if idx < 0 {
				continue
			}
			if cut := idx + sep.keep; cut > best {
				best = cut
			}
		}
		if best > 0 {
			pos := sort.SearchInts(offs, offs[lo]+best)
			if pos > start && pos <= hardEnd {
				return pos
			}
		}
	}
	return hardEnd
}

// snapToWord moves pos forward to the start of the next word unless it already sits on
// a word boundary. It never moves past limit.
func snapToWord(text string, offs []int, pos, limit int) int {
	atBoundary := func(i int) bool {
		if i == 0 || i >= len(offs)-1 {
			return true
		}
		prev := rune(text[offs[i-1]])
		if offs[i]-offs[i-1] == 1 && unicode.IsSpace(prev) {
			return true
		}
		cur := text[offs[i]]
		return cur < 0x80 && unicode.IsSpace(rune(cur))
	}
	for pos < limit && !atBoundary(pos) {
		pos++
	}
	return pos
}

// trimWindow trims whitespace from text[start:end] and reports whether anything is left.
func trimWindow(text string, start, end int) (Window, bool) {
	sub := text[start:end]
	left := strings.TrimLeftFunc(sub, unicode.IsSpace)
	start += len(sub) - len(left)
	trimmed := strings.TrimRightFunc(left, unicode.IsSpace)
	if trimmed == "" {
		return Window{}, false
	}
	return Window{Text: trimmed, Start: start, End: start + len(trimmed)}, true
}
