package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force cosine index kept in process memory.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension int
	records   map[string]Record
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryIndex) EnsureCollection(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = &memoryCollection{records: make(map[string]Record)}
	}
	return nil
}

func (m *MemoryIndex) CollectionExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *MemoryIndex) Upsert(_ context.Context, name string, records []Record) error {
	dim, err := validateRecords(records)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return notFound(name)
	}
	if c.dimension != 0 && c.dimension != dim {
		return fmt.Errorf("collection %q has dimension %d, got %d", name, c.dimension, dim)
	}
	c.dimension = dim
	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		c.records[r.ID] = Record{ID: r.ID, Vector: vec, Text: r.Text}
	}
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, name string, vector []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, notFound(name)
	}
	if topK <= 0 || len(c.records) == 0 {
		return []Match{}, nil
	}
	if c.dimension != len(vector) {
		return nil, fmt.Errorf("query dimension %d, collection %q has %d", len(vector), name, c.dimension)
	}

	matches := make([]Match, 0, len(c.records))
	for _, r := range c.records {
		matches = append(matches, Match{ID: r.ID, Text: r.Text, Score: cosine(r.Vector, vector)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemoryIndex) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
