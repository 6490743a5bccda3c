package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used when no database is configured
// and in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	records []Record
	ids     map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) EnsureCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(name)
	return nil
}

// collection must be called with the write lock held.
func (s *MemoryStore) collection(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{ids: make(map[string]struct{})}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Add(ctx context.Context, collection string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, dup := c.ids[r.ID]; dup {
			return fmt.Errorf("record %q already exists in %s", r.ID, collection)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate record id %q in batch", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		c.records = append(c.records, r)
		c.ids[r.ID] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}
	var out []Record
	for _, r := range c.records {
		if filter.matches(r.Metadata) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, vectors [][]float32, n int, filter Filter) ([][]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([][]Hit, len(vectors))
	c, ok := s.collections[collection]
	if !ok || n <= 0 {
		return results, nil
	}

	for qi, q := range vectors {
		hits := make([]Hit, 0, len(c.records))
		for _, r := range c.records {
			if !filter.matches(r.Metadata) {
				continue
			}
			hits = append(hits, Hit{ID: r.ID, Metadata: r.Metadata, Distance: CosineDistance(q, r.Vector)})
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
		if len(hits) > n {
			hits = hits[:n]
		}
		results[qi] = hits
	}
	return results, nil
}

// CosineDistance returns 1 - cos(a, b). Mismatched lengths or zero vectors
// are treated as orthogonal.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
