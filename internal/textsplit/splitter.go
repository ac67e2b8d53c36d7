// Package textsplit cuts normalized text into overlapping, rune-bounded chunks.
package textsplit

import (
	"fmt"
	"strings"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
	DefaultIDPrefix  = "chunk_"
)

// Chunk is a span of the input measured in runes. Start is inclusive, End exclusive.
type Chunk struct {
	ID    string
	Index int
	Text  string
	Start int
	End   int
}

type Splitter struct {
	chunkSize int
	overlap   int
	idPrefix  string
}

type Option func(*Splitter)

func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithIDPrefix changes the chunk id prefix so chunks from several sources can
// share one collection without id clashes.
func WithIDPrefix(prefix string) Option {
	return func(s *Splitter) {
		if prefix != "" {
			s.idPrefix = prefix
		}
	}
}

func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
		idPrefix:  DefaultIDPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// Split is a shorthand for New(WithChunkSize(chunkSize), WithOverlap(overlap)).Split(text).
func Split(text string, chunkSize, overlap int) []Chunk {
	return New(WithChunkSize(chunkSize), WithOverlap(overlap)).Split(text)
}

func (s *Splitter) ChunkSize() int { return s.chunkSize }

func (s *Splitter) Overlap() int { return s.overlap }

// Split walks the text with a stride of chunkSize-overlap. The last chunk always
// ends at the end of the input, so no trailing content is lost.
func (s *Splitter) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	step := s.chunkSize - s.overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			ID:    s.chunkID(len(chunks)),
			Index: len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Paragraphs splits on blank lines and drops empty paragraphs.
func (s *Splitter) Paragraphs(text string) []Chunk {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var chunks []Chunk
	offset := 0
	for _, part := range strings.Split(text, "\n\n") {
		start := offset
		offset += len([]rune(part)) + 2
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:    s.chunkID(len(chunks)),
			Index: len(chunks),
			Text:  trimmed,
			Start: start,
			End:   start + len([]rune(part)),
		})
	}
	return chunks
}

func (s *Splitter) chunkID(index int) string {
	return fmt.Sprintf("%s%d", s.idPrefix, index)
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
