package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrCollectionNotFound is matched by every backend's not-found error.
var ErrCollectionNotFound = errors.New("collection not found")

type CollectionNotFoundError struct {
	Name string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %q not found", e.Name)
}

func (e *CollectionNotFoundError) Is(target error) bool {
	return target == ErrCollectionNotFound
}

// Record is one embedded chunk. Upserting an existing ID overwrites it.
type Record struct {
	ID     string
	Vector []float32
	Text   string
}

type Match struct {
	ID    string
	Text  string
	Score float64
}

// Index stores records in named collections and ranks them by cosine similarity.
//
// Upsert is all-or-nothing per call: records are validated before anything is
// written, and a rejected batch leaves the collection as it was.
type Index interface {
	EnsureCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	Upsert(ctx context.Context, name string, records []Record) error
	Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error)
	DeleteCollection(ctx context.Context, name string) error
}

const collectionPrefix = "presentation_"

func CollectionName(presentationID string) string {
	return collectionPrefix + presentationID
}

func notFound(name string) error {
	return &CollectionNotFoundError{Name: name}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("collection name required")
	}
	return nil
}

// validateRecords checks a batch before any write and returns its dimension.
func validateRecords(records []Record) (int, error) {
	dim := 0
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			return 0, fmt.Errorf("record %d: id required", i)
		}
		if _, dup := seen[r.ID]; dup {
			return 0, fmt.Errorf("record %d: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = struct{}{}
		if len(r.Vector) == 0 {
			return 0, fmt.Errorf("record %q: empty vector", r.ID)
		}
		if dim == 0 {
			dim = len(r.Vector)
		} else if len(r.Vector) != dim {
			return 0, fmt.Errorf("record %q: dimension %d, want %d", r.ID, len(r.Vector), dim)
		}
	}
	return dim, nil
}
