package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/upi-karir/karir/engine/domain"
)

// MemStore is an in-process Store with brute-force cosine search. Payloads
// pass through the same value conversion as the Qdrant store so callers
// observe identical types.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dim    int
	points map[string]Point
	order  []string
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{collections: make(map[string]*memCollection)}
}

func (m *MemStore) CreateCollection(_ context.Context, name string, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = &memCollection{dim: dim, points: make(map[string]Point)}
	return nil
}

func (m *MemStore) EnsureCollection(_ context.Context, name string, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = &memCollection{dim: dim, points: make(map[string]Point)}
	}
	return nil
}

func (m *MemStore) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func (m *MemStore) Upsert(ctx context.Context, name string, points []Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("semantic: upsert %s: %w", name, ErrNoCollection)
	}
	for _, p := range points {
		if len(p.Vector) != c.dim {
			return fmt.Errorf("semantic: upsert %s: got %d want %d: %w", name, len(p.Vector), c.dim, domain.ErrDimensionMismatch)
		}
	}
	for _, p := range points {
		if _, seen := c.points[p.ID]; !seen {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = Point{
			ID:      p.ID,
			Vector:  append([]float32(nil), p.Vector...),
			Payload: normalize(p.Payload),
		}
	}
	return nil
}

// Search ranks by cosine similarity. Ties keep insertion order.
func (m *MemStore) Search(ctx context.Context, name string, vector []float32, topK int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("semantic: search %s: %w", name, ErrNoCollection)
	}
	if len(vector) != c.dim {
		return nil, fmt.Errorf("semantic: search %s: got %d want %d: %w", name, len(vector), c.dim, domain.ErrDimensionMismatch)
	}

	hits := make([]Hit, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		hits = append(hits, Hit{ID: id, Score: cosine(vector, p.Vector), Payload: normalize(p.Payload)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of points in name.
func (m *MemStore) Count(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[name]; ok {
		return len(c.points)
	}
	return 0
}

// Get returns a stored point by ID.
func (m *MemStore) Get(name, id string) (Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return Point{}, false
	}
	p, ok := c.points[id]
	return p, ok
}

func normalize(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromValue(toValue(v))
	}
	return out
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
