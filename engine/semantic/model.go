package semantic

import (
	"context"
	"errors"
)

// ErrNoCollection is returned when an operation targets a collection that
// was never created.
var ErrNoCollection = errors.New("semantic: collection not found")

// Point is a single vector stored under a deterministic ID.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is a single similarity search result. Payload values come back as
// string, int64, float64, bool, []any or map[string]any.
type Hit struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Store is the vector store contract used by ingestion and retrieval.
type Store interface {
	// CreateCollection drops name if it exists and creates it empty.
	CreateCollection(ctx context.Context, name string, dim int) error
	// EnsureCollection creates name only if it is missing.
	EnsureCollection(ctx context.Context, name string, dim int) error
	DeleteCollection(ctx context.Context, name string) error
	// Upsert writes points and returns once they are searchable.
	Upsert(ctx context.Context, name string, points []Point) error
	Search(ctx context.Context, name string, vector []float32, topK int) ([]Hit, error)
}

var (
	_ Store = (*VectorStore)(nil)
	_ Store = (*MemStore)(nil)
)
