package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopherai-slides/internal/ai"
	"gopherai-slides/internal/logger"
	"gopherai-slides/internal/vectorindex"
)

const (
	DefaultTopK = 4
	minTopK     = 3
	maxTopK     = 5
)

type AnswerCache interface {
	GetAnswer(ctx context.Context, presentationID, question string) (string, bool, error)
	SetAnswer(ctx context.Context, presentationID, question, answer string) error
}

// KnowledgeBaseRebuilder restores a missing knowledge base from the stored
// presentation, for indexes that do not survive restarts.
type KnowledgeBaseRebuilder interface {
	RebuildKnowledgeBase(ctx context.Context, presentationID string) (bool, error)
}

type QAService struct {
	generator ai.Generator
	embedder  ai.Embedder
	index     vectorindex.Index
	cache     AnswerCache
	rebuilder KnowledgeBaseRebuilder
	topK      int
	log       *logger.Logger
}

// NewQAService builds the question answering service. cache may be nil.
func NewQAService(generator ai.Generator, embedder ai.Embedder, index vectorindex.Index, cache AnswerCache, topK int, log *logger.Logger) *QAService {
	if log == nil {
		log = logger.Nop()
	}
	return &QAService{
		generator: generator,
		embedder:  embedder,
		index:     index,
		cache:     cache,
		topK:      clampTopK(topK),
		log:       log.With("service", "QAService"),
	}
}

func clampTopK(k int) int {
	switch {
	case k <= 0:
		return DefaultTopK
	case k < minTopK:
		return minTopK
	case k > maxTopK:
		return maxTopK
	}
	return k
}

// WithRebuilder lets Answer rebuild a missing knowledge base once before
// reporting ErrNoKnowledgeBase.
func (s *QAService) WithRebuilder(r KnowledgeBaseRebuilder) *QAService {
	s.rebuilder = r
	return s
}

// Answer responds to a question using only the presentation's knowledge base.
func (s *QAService) Answer(ctx context.Context, presentationID, question string) (string, error) {
	presentationID = strings.TrimSpace(presentationID)
	question = strings.TrimSpace(question)
	if presentationID == "" || question == "" {
		return "", ErrInvalidInput
	}

	if s.cache != nil {
		cached, ok, err := s.cache.GetAnswer(ctx, presentationID, question)
		if err != nil {
			s.log.Warn("read cached answer failed", "presentation_id", presentationID, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	vector, err := s.embedder.EmbedOne(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question failed: %w", err)
	}

	matches, err := s.retrieve(ctx, presentationID, vector)
	if errors.Is(err, ErrNoKnowledgeBase) && s.rebuilder != nil {
		rebuilt, rerr := s.rebuilder.RebuildKnowledgeBase(ctx, presentationID)
		if rerr != nil {
			s.log.Warn("rebuild knowledge base failed", "presentation_id", presentationID, "error", rerr)
		}
		if rebuilt {
			matches, err = s.retrieve(ctx, presentationID, vector)
		}
	}
	if err != nil {
		return "", err
	}

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	answer, err := s.generator.Complete(ctx, qaSystemPrompt, qaUserPrompt(strings.Join(texts, "\n\n"), question))
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.SetAnswer(ctx, presentationID, question, answer); err != nil {
			s.log.Warn("cache answer failed", "presentation_id", presentationID, "error", err)
		}
	}
	return answer, nil
}

func (s *QAService) retrieve(ctx context.Context, presentationID string, vector []float32) ([]vectorindex.Match, error) {
	matches, err := s.index.Query(ctx, vectorindex.CollectionName(presentationID), vector, s.topK)
	if errors.Is(err, vectorindex.ErrCollectionNotFound) {
		return nil, ErrNoKnowledgeBase
	}
	if err != nil {
		return nil, fmt.Errorf("query knowledge base failed: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrNoKnowledgeBase
	}
	return matches, nil
}
