package extractor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"unirag/internal/apperr"
	"unirag/internal/models"
)

// Operates entirely in memory; no temp files to clean up on any exit path.

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(` {2,}`)
)

// Extract turns raw file bytes into ordered pages of text. The declared type
// is taken from the filename extension; anything outside {pdf, docx} is an
// UnsupportedFormat error.
func Extract(data []byte, filename string) ([]models.Page, error) {
	var (
		pages []models.Page
		err   error
	)

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		pages, err = extractPDF(data)
	case ".docx":
		pages, err = extractDOCX(data)
	default:
		return nil, apperr.Newf(apperr.UnsupportedFormat,
			"unsupported file format %q, supported formats are .pdf and .docx", ext)
	}
	if err != nil {
		return nil, err
	}

	cleaned := make([]models.Page, 0, len(pages))
	for _, p := range pages {
		p.Text = normalizeText(p.Text)
		if p.Text != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return nil, apperr.Newf(apperr.EmptyDocument, "no text content found in %s", filename)
	}
	return cleaned, nil
}

func extractPDF(data []byte) (pages []models.Page, err error) {
	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = apperr.Newf(apperr.ExtractionError, "corrupt or unreadable pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Wrap(apperr.ExtractionError, "corrupt or unreadable pdf", err)
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, apperr.Wrap(apperr.ExtractionError,
				fmt.Sprintf("failed to read pdf page %d", i), err)
		}
		pages = append(pages, models.Page{Number: i, Text: text})
	}
	return pages, nil
}

// extractDOCX reads the whole document as a single page; DOCX has no stable
// page boundaries.
func extractDOCX(data []byte) ([]models.Page, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Wrap(apperr.ExtractionError, "corrupt or unreadable docx", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	paragraphs := splitParagraphs(content)

	var text strings.Builder
	for _, p := range paragraphs {
		runText := extractRunText(p)
		if strings.TrimSpace(runText) == "" {
			continue
		}
		text.WriteString(runText)
		text.WriteString("\n\n")
	}
	return []models.Page{{Number: 1, Text: text.String()}}, nil
}

func splitParagraphs(xmlContent string) []string {
	return strings.Split(xmlContent, "</w:p>")
}

// extractRunText pulls the text of <w:t> runs out of a paragraph's XML.
func extractRunText(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<w:t")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		start := strings.Index(part, ">")
		if start < 0 {
			continue
		}
		end := strings.Index(part, "</w:t>")
		if end < 0 || end < start {
			continue
		}
		text.WriteString(part[start+1 : end])
	}
	return text.String()
}

// normalizeText collapses whitespace so blank-after-normalization documents
// can be recognized: runs of 3+ newlines become 2, runs of spaces become one,
// every line is trimmed.
func normalizeText(text string) string {
	text = multiNewline.ReplaceAllString(text, "\n\n")
	text = multiSpace.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
