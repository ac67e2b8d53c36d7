package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxSize is the largest PDF ExtractText will load.
const MaxSize = 50 << 20

var (
	ErrEmpty    = errors.New("pdf is empty")
	ErrTooLarge = errors.New("pdf exceeds size limit")
)

// ExtractText returns the plain text of every page, pages separated by a blank line.
// A PDF with no extractable text yields "" and a nil error.
func ExtractText(r io.Reader) (text string, err error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", ErrEmpty
	}
	if len(b) > MaxSize {
		return "", ErrTooLarge
	}

	// the pdf package panics on some malformed cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := p.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("read page %d failed: %w", i, err)
		}
		if t := strings.TrimSpace(pageText); t != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
