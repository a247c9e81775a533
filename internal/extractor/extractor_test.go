package extractor

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"unirag/internal/apperr"
)

// buildDocx assembles a minimal docx archive around the given document body.
func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	entries := map[string]string{
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
			`<w:body>` + body + `</w:body></w:document>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	}
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	for _, name := range []string{"notes.txt", "sheet.xlsx", "readme.md", "archive"} {
		_, err := Extract([]byte("content"), name)
		if err == nil {
			t.Fatalf("expected error for %s", name)
		}
		if !apperr.Is(err, apperr.UnsupportedFormat) {
			t.Fatalf("expected unsupported format error for %s, got %v", name, err)
		}
	}
}

func TestExtract_CorruptPDF(t *testing.T) {
	_, err := Extract([]byte("this is not a pdf at all"), "broken.pdf")
	if err == nil {
		t.Fatalf("expected error for corrupt pdf")
	}
	if !apperr.Is(err, apperr.ExtractionError) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestExtract_CorruptDOCX(t *testing.T) {
	_, err := Extract([]byte("this is not a zip archive"), "broken.docx")
	if err == nil {
		t.Fatalf("expected error for corrupt docx")
	}
	if !apperr.Is(err, apperr.ExtractionError) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestExtract_DOCX(t *testing.T) {
	data := buildDocx(t,
		`<w:p><w:r><w:t>Minimum attendance is 75%.</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Exams require a valid ID card.</w:t></w:r></w:p>`)

	pages, err := Extract(data, "handbook.docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Number != 1 {
		t.Fatalf("expected page number 1, got %d", pages[0].Number)
	}
	if !strings.Contains(pages[0].Text, "75%") {
		t.Fatalf("expected text to contain the attendance figure, got %q", pages[0].Text)
	}
	if !strings.Contains(pages[0].Text, "ID card") {
		t.Fatalf("expected text from the second paragraph, got %q", pages[0].Text)
	}
}

func TestExtract_DOCXSplitRuns(t *testing.T) {
	// Word often splits one sentence across several runs.
	data := buildDocx(t,
		`<w:p><w:r><w:t>Minimum </w:t></w:r><w:r><w:t xml:space="preserve">attendance is </w:t></w:r><w:r><w:t>75%.</w:t></w:r></w:p>`)

	pages, err := Extract(data, "handbook.docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(pages[0].Text, "Minimum attendance is 75%.") {
		t.Fatalf("expected runs joined in order, got %q", pages[0].Text)
	}
}

func TestExtract_EmptyDOCX(t *testing.T) {
	data := buildDocx(t, `<w:p><w:r><w:t>   </w:t></w:r></w:p><w:p></w:p>`)

	_, err := Extract(data, "blank.docx")
	if err == nil {
		t.Fatalf("expected error for blank document")
	}
	if !apperr.Is(err, apperr.EmptyDocument) {
		t.Fatalf("expected empty document error, got %v", err)
	}
}

func TestNormalizeText(t *testing.T) {
	in := "  Line one  \n\n\n\n   Line   two   \nLine three  "
	want := "Line one\n\nLine two\nLine three"
	if got := normalizeText(in); got != want {
		t.Fatalf("normalizeText() = %q, want %q", got, want)
	}
}
