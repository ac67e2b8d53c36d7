package source

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"gopherai-slides/internal/pkg/pdfextract"
	"gopherai-slides/internal/scrape"
)

type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeHTML     FileType = "html"
	FileTypeMarkdown FileType = "md"
	FileTypeText     FileType = "txt"
	FileTypeUnknown  FileType = "unknown"
)

// Extractor turns raw document bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

// DetectFileType prefers the file extension and falls back to the MIME type.
func DetectFileType(name, contentType string) FileType {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "pdf":
		return FileTypePDF
	case "html", "htm":
		return FileTypeHTML
	case "md", "markdown":
		return FileTypeMarkdown
	case "txt", "text":
		return FileTypeText
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FileTypeUnknown
	}
	switch mediaType {
	case "application/pdf":
		return FileTypePDF
	case "text/html", "application/xhtml+xml":
		return FileTypeHTML
	case "text/markdown", "text/x-markdown":
		return FileTypeMarkdown
	case "text/plain":
		return FileTypeText
	}
	return FileTypeUnknown
}

func defaultExtractors() map[FileType]Extractor {
	passthrough := ExtractorFunc(func(_ context.Context, data []byte) (string, error) {
		return string(data), nil
	})
	return map[FileType]Extractor{
		FileTypePDF: ExtractorFunc(func(_ context.Context, data []byte) (string, error) {
			return pdfextract.ExtractText(bytes.NewReader(data))
		}),
		FileTypeHTML:     ExtractorFunc(extractHTML),
		FileTypeMarkdown: passthrough,
		FileTypeText:     passthrough,
	}
}

func extractHTML(_ context.Context, data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html failed: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			blocks = append(blocks, t)
		}
	})
	if len(blocks) == 0 {
		return scrape.CleanText(doc.Text()), nil
	}
	return scrape.CleanText(strings.Join(blocks, "\n\n")), nil
}
