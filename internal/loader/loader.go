// Package loader extracts per-page text from source documents.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"edurag/internal/contextutil"
)

// MinPageChars is the minimum trimmed length for a page to be kept.
// Shorter pages are scanned covers, blank separators or page furniture.
const MinPageChars = 10

// ErrUnsupportedFormat is returned for file extensions no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Page is the text of one page of a source document.
type Page struct {
	SourceID string
	// Number is 1-based. Formats without pages produce a single page numbered 1.
	Number int
	Text   string
}

// extractFunc turns raw file content into ordered page texts.
type extractFunc func(path string, content []byte) ([]string, error)

var extractors = map[string]extractFunc{
	".pdf":      extractPDF,
	".md":       extractMarkdown,
	".markdown": extractMarkdown,
	".txt":      extractPlain,
	".xlsx":     extractExcel,
	".docx":     extractDOCX,
	".odt":      extractOffice,
	".rtf":      extractOffice,
}

// SupportedExtensions returns the lower-case extensions Load accepts, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupported reports whether path has an extension Load can handle.
func IsSupported(path string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Loader reads documents from disk.
type Loader struct {
	logger *slog.Logger
}

// New creates a Loader.
func New() *Loader {
	return &Loader{logger: slog.Default()}
}

func (l *Loader) getLogger(ctx context.Context) *slog.Logger {
	if ctxLogger, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok {
		return ctxLogger
	}
	return l.logger
}

// Load extracts the pages of the document at path. The source ID is the file's base name.
// Pages with fewer than MinPageChars characters of text are skipped.
func (l *Loader) Load(ctx context.Context, path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	extract, ok := extractors[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	texts, err := extract(path, content)
	if err != nil {
		return nil, err
	}

	sourceID := filepath.Base(path)
	pages := make([]Page, 0, len(texts))
	skipped := 0
	for i, text := range texts {
		if utf8.RuneCountInString(strings.TrimSpace(text)) < MinPageChars {
			skipped++
			continue
		}
		pages = append(pages, Page{SourceID: sourceID, Number: i + 1, Text: text})
	}

	l.getLogger(ctx).DebugContext(ctx, "document loaded",
		"source", sourceID,
		"pages", len(pages),
		"skipped_pages", skipped,
	)
	return pages, nil
}

// extractPlain returns content as a single page, replacing invalid UTF-8.
func extractPlain(_ string, content []byte) ([]string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	return []string{string(content)}, nil
}
