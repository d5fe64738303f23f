package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// extractPDF returns one text per PDF page. Null pages yield an empty text so page
// numbers stay aligned with the document.
func extractPDF(_ string, content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := r.NumPage()
	pages := make([]string, numPages)
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		pages[i] = text
	}
	return pages, nil
}

// extractExcel returns one page per sheet, cells tab-separated and rows newline-separated.
func extractExcel(_ string, content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	var pages []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var buf strings.Builder
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
		pages = append(pages, buf.String())
	}
	return pages, nil
}

// extractOffice handles ODT and RTF through cat, which reads from the file path.
func extractOffice(path string, _ []byte) ([]string, error) {
	txt, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("extract office document: %w", err)
	}
	return []string{txt}, nil
}

// docxTextRun matches <w:t>text</w:t> including attributes such as xml:space.
var docxTextRun = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// docxParagraphEnd marks paragraph boundaries in word/document.xml.
var docxParagraphEnd = regexp.MustCompile(`</w:p>`)

// extractDOCX reads word/document.xml and keeps paragraph breaks so sentence and
// paragraph boundaries survive into chunking. Run text is XML-escaped in the file.
func extractDOCX(_ string, content []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("extract DOCX: open %s: %w", f.Name, err)
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
		}
		break
	}
	if docXML == nil {
		return nil, fmt.Errorf("extract DOCX: word/document.xml not found")
	}

	var b strings.Builder
	for _, para := range docxParagraphEnd.Split(string(docXML), -1) {
		runs := docxTextRun.FindAllStringSubmatch(para, -1)
		if len(runs) == 0 {
			continue
		}
		for _, run := range runs {
			b.WriteString(html.UnescapeString(run[1]))
		}
		b.WriteString("\n\n")
	}
	return []string{b.String()}, nil
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// extractMarkdown renders markdown to plain text: block elements are separated by blank
// lines, table cells by tabs, and markup characters are dropped.
func extractMarkdown(_ string, content []byte) ([]string, error) {
	doc := markdown.Parser().Parse(text.NewReader(content))

	var b strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(v.Segment.Value(content))
				if v.SoftLineBreak() || v.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(v.Value)
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(content))
				}
				b.WriteString("\n")
				return ast.WalkSkipChildren, nil
			}
		case *east.TableCell:
			if !entering {
				b.WriteByte('\t')
			}
		case *east.TableRow, *east.TableHeader:
			if !entering {
				b.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock, *east.Table:
			if !entering {
				b.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return []string{b.String()}, nil
}
