package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-slides/internal/model"
	"gopherai-slides/internal/vectorindex"
)

type mapCache struct {
	answers map[string]string
	getErr  error
}

func (c *mapCache) GetAnswer(_ context.Context, pid, q string) (string, bool, error) {
	if c.getErr != nil {
		return "", false, c.getErr
	}
	a, ok := c.answers[pid+"|"+q]
	return a, ok, nil
}

func (c *mapCache) SetAnswer(_ context.Context, pid, q, a string) error {
	c.answers[pid+"|"+q] = a
	return nil
}

func seedKnowledgeBase(t *testing.T, idx vectorindex.Index, pid string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	name := vectorindex.CollectionName(pid)
	require.NoError(t, idx.EnsureCollection(ctx, name))
	records := make([]vectorindex.Record, len(texts))
	for i, text := range texts {
		records[i] = vectorindex.Record{ID: "chunk_" + string(rune('a'+i)), Vector: bagOfWords(text), Text: text}
	}
	require.NoError(t, idx.Upsert(ctx, name, records))
}

func TestClampTopK(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultTopK},
		{-2, DefaultTopK},
		{1, 3},
		{3, 3},
		{5, 5},
		{9, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampTopK(tt.in), "clampTopK(%d)", tt.in)
	}
}

func TestAnswerUsesRetrievedContextInOrder(t *testing.T) {
	gen := newFakeGenerator()
	idx := vectorindex.NewMemoryIndex()
	seedKnowledgeBase(t, idx, "p1",
		"solar panels convert sunlight into electricity",
		"wind turbines spin in the wind",
		"batteries store electricity for the night",
		"sunlight solar panels efficiency",
	)
	svc := NewQAService(gen, &hashEmbedder{}, idx, nil, 3, nil)

	answer, err := svc.Answer(context.Background(), "p1", "How do solar panels use sunlight?")
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", answer)

	prompt := gen.lastCall("qa")
	assert.Contains(t, prompt, "Question: How do solar panels use sunlight?")
	retrieved := strings.SplitN(prompt, "\n\nQuestion:", 2)[0]
	assert.Equal(t, 3, strings.Count(retrieved, "\n\n")+1, "three chunks joined by blank lines")
	assert.Contains(t, retrieved, "solar panels convert sunlight")
}

func TestAnswerWithoutKnowledgeBase(t *testing.T) {
	gen := newFakeGenerator()
	svc := NewQAService(gen, &hashEmbedder{}, vectorindex.NewMemoryIndex(), nil, 4, nil)

	_, err := svc.Answer(context.Background(), "never-indexed", "anything?")
	require.ErrorIs(t, err, ErrNoKnowledgeBase)
	assert.Equal(t, "no knowledge base for this presentation", err.Error())
	assert.Equal(t, 0, gen.callCount("qa"))
}

func TestAnswerEmptyCollection(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	require.NoError(t, idx.EnsureCollection(context.Background(), vectorindex.CollectionName("p1")))
	svc := NewQAService(newFakeGenerator(), &hashEmbedder{}, idx, nil, 4, nil)

	_, err := svc.Answer(context.Background(), "p1", "anything?")
	assert.ErrorIs(t, err, ErrNoKnowledgeBase)
}

func TestAnswerValidatesInput(t *testing.T) {
	svc := NewQAService(newFakeGenerator(), &hashEmbedder{}, vectorindex.NewMemoryIndex(), nil, 4, nil)
	_, err := svc.Answer(context.Background(), "", "q")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Answer(context.Background(), "p1", "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnswerEmbeddingFailure(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	seedKnowledgeBase(t, idx, "p1", "text")
	svc := NewQAService(newFakeGenerator(), &hashEmbedder{err: errors.New("down")}, idx, nil, 4, nil)

	_, err := svc.Answer(context.Background(), "p1", "q")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoKnowledgeBase)
}

func TestAnswerCache(t *testing.T) {
	gen := newFakeGenerator()
	idx := vectorindex.NewMemoryIndex()
	seedKnowledgeBase(t, idx, "p1", "solar panels")
	cache := &mapCache{answers: map[string]string{}}
	svc := NewQAService(gen, &hashEmbedder{}, idx, cache, 4, nil)
	ctx := context.Background()

	first, err := svc.Answer(ctx, "p1", "what are solar panels?")
	require.NoError(t, err)
	second, err := svc.Answer(ctx, "p1", "what are solar panels?")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.callCount("qa"))

	cache.getErr = errors.New("redis down")
	_, err = svc.Answer(ctx, "p1", "what are solar panels?")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.callCount("qa"))
}

func TestAnswerRebuildsMissingKnowledgeBase(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.repo.Create(ctx, &model.Presentation{ID: "restarted", Status: model.StatusPending}))
	require.NoError(t, h.repo.MarkCompleted(ctx, "restarted", "Solar", "# Solar\npanels convert sunlight\n\n---\n\n# Storage\nbatteries"))

	svc := NewQAService(h.gen, h.embedder, h.index, nil, 4, nil).WithRebuilder(h.svc)

	answer, err := svc.Answer(ctx, "restarted", "What do panels convert?")
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", answer)
	assert.Contains(t, h.gen.lastCall("qa"), "panels convert sunlight")

	_, err = svc.Answer(ctx, "unknown", "anything?")
	assert.ErrorIs(t, err, ErrNoKnowledgeBase)
}
