package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gopherai-slides/internal/logger"
	"gopherai-slides/internal/scrape"
	"gopherai-slides/internal/textsplit"
)

type Kind string

const (
	KindDocument Kind = "document"
	KindURL      Kind = "url"
	KindPrompt   Kind = "prompt"
)

const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
)

var ErrUnsupportedType = errors.New("unsupported document type")

// SourceError records why one source item produced no text.
type SourceError struct {
	Kind   Kind
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s source %q failed: %v", e.Kind, e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Document is an uploaded file.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is the outcome of one source item. Results never affect each other.
type Result struct {
	Kind   Kind
	Source string
	OK     bool
	Text   string
	Chunks int
	Err    error
}

type Normalizer struct {
	scraper     scrape.Scraper
	splitter    *textsplit.Splitter
	extractors  map[FileType]Extractor
	concurrency int
	timeout     time.Duration
	log         *logger.Logger
}

type Option func(*Normalizer)

func WithConcurrency(limit int) Option {
	return func(n *Normalizer) {
		if limit > 0 {
			n.concurrency = limit
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(n *Normalizer) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithExtractor registers or replaces the extractor for a file type.
func WithExtractor(ft FileType, e Extractor) Option {
	return func(n *Normalizer) {
		n.extractors[ft] = e
	}
}

func NewNormalizer(scraper scrape.Scraper, splitter *textsplit.Splitter, log *logger.Logger, opts ...Option) *Normalizer {
	if splitter == nil {
		splitter = textsplit.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	n := &Normalizer{
		scraper:     scraper,
		splitter:    splitter,
		extractors:  defaultExtractors(),
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
		log:         log.With("component", "source_normalizer"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeDocuments extracts text from every document. Documents are fatal:
// the first failure is returned as a *SourceError and no results are produced.
func (n *Normalizer) NormalizeDocuments(ctx context.Context, docs []Document) ([]Result, error) {
	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		text, err := n.extractDocument(ctx, doc)
		if err != nil {
			return nil, &SourceError{Kind: KindDocument, Source: doc.Name, Err: err}
		}
		results = append(results, Result{
			Kind:   KindDocument,
			Source: doc.Name,
			OK:     true,
			Text:   text,
			Chunks: len(n.splitter.Split(text)),
		})
	}
	return results, nil
}

func (n *Normalizer) extractDocument(ctx context.Context, doc Document) (string, error) {
	ft := DetectFileType(doc.Name, doc.ContentType)
	ex, ok := n.extractors[ft]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, doc.Name)
	}
	text, err := ex.Extract(ctx, doc.Data)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no extractable text")
	}
	return text, nil
}

// ScrapeURLs fetches every URL with bounded concurrency. It never fails as a
// whole: each failure is captured in its Result. Output order matches input.
func (n *Normalizer) ScrapeURLs(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	if len(urls) == 0 {
		return results
	}

	g := new(errgroup.Group)
	g.SetLimit(n.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = n.scrapeOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
			n.log.Warn("scrape failed", "url", r.Source, "error", r.Err)
		}
	}
	if failed > 0 {
		n.log.Warn("some urls could not be scraped", "failed", failed, "total", len(urls))
	}
	return results
}

func (n *Normalizer) scrapeOne(ctx context.Context, url string) Result {
	res := Result{Kind: KindURL, Source: url}
	if n.scraper == nil {
		res.Err = &SourceError{Kind: KindURL, Source: url, Err: errors.New("no scraper configured")}
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	text, err := n.scraper.Scrape(ctx, url)
	if err == nil && strings.TrimSpace(text) == "" {
		err = scrape.ErrEmptyPage
	}
	if err != nil {
		res.Err = &SourceError{Kind: KindURL, Source: url, Err: err}
		return res
	}
	res.OK = true
	res.Text = strings.TrimSpace(text)
	res.Chunks = len(n.splitter.Split(res.Text))
	return res
}

// PromptText is the prompt passthrough: it yields the trimmed prompt.
func PromptText(prompt string) string {
	return strings.TrimSpace(prompt)
}

// Aggregate joins the text of successful results and returns the failures.
// When everything failed the text is "".
func Aggregate(results []Result) (string, []Result) {
	var failed []Result
	for _, r := range results {
		if !r.OK {
			failed = append(failed, r)
		}
	}
	return JoinText(results), failed
}

// JoinText concatenates successful result texts separated by blank lines.
func JoinText(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.OK && strings.TrimSpace(r.Text) != "" {
			parts = append(parts, strings.TrimSpace(r.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}
