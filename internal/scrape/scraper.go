package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"gopherai-slides/internal/pkg/pdfextract"
)

const (
	DefaultTimeout = 30 * time.Second
	// MaxReadSize caps the response body at 5MB.
	MaxReadSize = int64(5 * 1024 * 1024)
	userAgent   = "gopherai-slides-scraper/1.0"
)

var (
	ErrInvalidURL         = errors.New("url must start with http:// or https://")
	ErrEmptyPage          = errors.New("page has no readable content")
	// ErrUnsupportedContent is returned for binary bodies other than PDF.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// Scraper fetches a URL and returns its readable content as markdown-ish text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

type HTTPScraper struct {
	client    *http.Client
	converter *md.Converter
}

func NewHTTPScraper(timeout time.Duration) *HTTPScraper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPScraper{
		client:    &http.Client{Timeout: timeout},
		converter: md.NewConverter("", true, nil),
	}
}

func (s *HTTPScraper) Scrape(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch failed: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxReadSize))
	if err != nil {
		return "", fmt.Errorf("read response failed: %w", err)
	}

	text, err := s.bodyText(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyPage
	}
	return text, nil
}

func (s *HTTPScraper) bodyText(contentType string, body []byte) (string, error) {
	switch kind := contentKind(contentType, body); kind {
	case "html":
		return s.HTMLToMarkdown(string(body))
	case "pdf":
		text, err := pdfextract.ExtractText(bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("extract pdf failed: %w", err)
		}
		return CleanText(text), nil
	case "text":
		return CleanText(string(body)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, kind)
	}
}

// HTMLToMarkdown drops non-content elements and converts the body to markdown.
func (s *HTTPScraper) HTMLToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html failed: %w", err)
	}
	doc.Find("script, style, noscript, iframe, svg").Remove()

	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	bodyHTML, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("render html failed: %w", err)
	}
	markdown, err := s.converter.ConvertString(bodyHTML)
	if err != nil {
		return "", fmt.Errorf("convert to markdown failed: %w", err)
	}
	return CleanText(markdown), nil
}

var (
	blankRunRe  = regexp.MustCompile(`\n\s*\n(\s*\n)*`)
	spaceRunRe  = regexp.MustCompile(`[ \t]+`)
	trailingSpc = regexp.MustCompile(` +\n`)
	leadingSpc  = regexp.MustCompile(`\n +`)
)

// CleanText collapses runs of blank lines and horizontal whitespace.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = trailingSpc.ReplaceAllString(s, "\n")
	s = leadingSpc.ReplaceAllString(s, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// contentKind classifies a body as html, pdf or text. Anything else is
// reported by its media type. A missing header falls back to sniffing.
func contentKind(contentType string, body []byte) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		ct = strings.ToLower(http.DetectContentType(body))
	}
	mediaType, _, _ := strings.Cut(ct, ";")
	mediaType = strings.TrimSpace(mediaType)
	switch {
	case strings.Contains(mediaType, "html"):
		return "html"
	case mediaType == "application/pdf":
		return "pdf"
	case strings.HasPrefix(mediaType, "text/"),
		strings.Contains(mediaType, "json"),
		strings.Contains(mediaType, "xml"),
		strings.Contains(mediaType, "markdown"):
		return "text"
	}
	return mediaType
}
