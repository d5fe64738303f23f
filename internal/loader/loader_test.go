package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Plain(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("Thermodynamics studies heat and work."))

	pages, err := New().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("Load() pages = %d, want 1", len(pages))
	}
	if pages[0].SourceID != "notes.txt" || pages[0].Number != 1 {
		t.Errorf("page = %+v", pages[0])
	}
	if pages[0].Text != "Thermodynamics studies heat and work." {
		t.Errorf("Text = %q", pages[0].Text)
	}
}

func TestLoad_SkipsShortPages(t *testing.T) {
	path := writeFile(t, "blank.txt", []byte("  tiny \n"))

	pages, err := New().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected short page to be skipped, got %d pages", len(pages))
	}
}

func TestLoad_Markdown(t *testing.T) {
	md := "# Optics\n\nLight **bends** when it enters glass.\n\n- Reflection\n- Refraction\n\n```\nn1 sin a = n2 sin b\n```\n"
	path := writeFile(t, "optics.md", []byte(md))

	pages, err := New().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(pages))
	}
	text := pages[0].Text
	for _, want := range []string{"Optics", "Light bends when it enters glass.", "Reflection", "Refraction", "n1 sin a = n2 sin b"} {
		if !strings.Contains(text, want) {
			t.Errorf("markdown text %q missing %q", text, want)
		}
	}
	if strings.Contains(text, "**") || strings.Contains(text, "#") {
		t.Errorf("markdown markup leaked into text: %q", text)
	}
}

func TestLoad_Excel(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	_ = f.SetCellValue("Sheet1", "A1", "Element")
	_ = f.SetCellValue("Sheet1", "B1", "Atomic number")
	_ = f.SetCellValue("Sheet1", "A2", "Hydrogen")
	_ = f.SetCellValue("Sheet1", "B2", 1)
	if _, err := f.NewSheet("Sheet2"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	_ = f.SetCellValue("Sheet2", "A1", "Helium is a noble gas")

	path := filepath.Join(t.TempDir(), "elements.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	pages, err := New().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want one per sheet", len(pages))
	}
	if !strings.Contains(pages[0].Text, "Hydrogen\t1") {
		t.Errorf("sheet 1 text = %q", pages[0].Text)
	}
	if pages[1].Number != 2 || !strings.Contains(pages[1].Text, "Helium") {
		t.Errorf("sheet 2 page = %+v", pages[1])
	}
}

func TestLoad_DOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	_, _ = w.Write([]byte(`<w:document><w:body>` +
		`<w:p w:rsidR="00A1"><w:r><w:t>Cells are the basic</w:t></w:r><w:r><w:t xml:space="preserve"> unit of life.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Mitochondria produce energy.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Salt &amp; water &lt;1%&gt; &quot;mix&quot;.</w:t></w:r></w:p>` +
		`</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	path := writeFile(t, "biology.docx", buf.Bytes())

	pages, err := New().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(pages))
	}
	want := "Cells are the basic unit of life.\n\nMitochondria produce energy.\n\nSalt & water <1%> \"mix\".\n\n"
	if pages[0].Text != want {
		t.Errorf("Text = %q, want %q", pages[0].Text, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "image.png", []byte{0x89, 0x50})
		_, err := New().Load(context.Background(), path)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("error = %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
		if err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		path := writeFile(t, "broken.pdf", []byte("not a pdf"))
		_, err := New().Load(context.Background(), path)
		if err == nil {
			t.Error("expected error for corrupt PDF")
		}
	})
}

func TestIsSupported(t *testing.T) {
	tests := map[string]bool{
		"a.pdf":        true,
		"A.PDF":        true,
		"notes.md":     true,
		"sheet.xlsx":   true,
		"essay.docx":   true,
		"letter.odt":   true,
		"doc.rtf":      true,
		"plain.txt":    true,
		"image.png":    false,
		"no_extension": false,
	}
	for path, want := range tests {
		if got := IsSupported(path); got != want {
			t.Errorf("IsSupported(%q) = %v, want %v", path, got, want)
		}
	}

	exts := SupportedExtensions()
	if len(exts) != len(extractors) || exts[0] != ".docx" {
		t.Errorf("SupportedExtensions() = %v", exts)
	}
}
