// Package extract turns fetched documents into plain text and splits that
// text into typed clauses.
package extract

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/clausewatch/internal/model"
)

// Content types understood by FromContentType
const (
	ContentHTML  = "text/html"
	ContentPDF   = "application/pdf"
	ContentPlain = "text/plain"
)

// FromContentType extracts text according to a MIME content type. Parameters
// such as charset are ignored; unknown types are treated as plain text.
func FromContentType(contentType string, body []byte) (string, error) {
	mediaType, _, perr := mime.ParseMediaType(contentType)
	if perr != nil {
		// keep the bare type of a header with broken parameters
		mediaType, _, _ = strings.Cut(contentType, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	}

	var (
		text string
		err  error
	)
	switch mediaType {
	case ContentHTML, "application/xhtml+xml":
		text, err = HTMLText(string(body))
	case ContentPDF:
		text, err = PDFText(body)
	default:
		text = PlainText(body)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", &model.InputError{Reason: "no text extracted from " + mediaType, Err: model.ErrEmptyText}
	}
	return text, nil
}

// FromFile reads a local document and extracts its text, choosing the
// format from the file extension
func FromFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return FromContentType(ContentTypeForPath(path), content)
}

// ContentTypeForPath maps a file extension to a content type
func ContentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return ContentHTML
	case ".pdf":
		return ContentPDF
	default:
		return ContentPlain
	}
}

// PlainText replaces invalid UTF-8 sequences, unifies line endings and trims
// trailing spaces. Line structure is kept so numbered headings survive.
func PlainText(content []byte) string {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
