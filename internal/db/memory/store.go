// Package memory is the embedded backend: collections, points, and
// brute-force vector search held entirely in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vexhub/vexdb/internal/db"
	"github.com/vexhub/vexdb/pkg/models"
)

// Compile-time check: Store implements db.Store and db.KV.
var (
	_ db.Store = (*Store)(nil)
	_ db.KV    = (*Store)(nil)
)

// Store is the embedded backend.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	kv          map[string][]byte
}

// collection guards its own points so writes to different collections never
// contend. Points are stored whole and replaced whole: readers holding the
// read lock always see a complete point.
type collection struct {
	mu     sync.RWMutex
	schema models.CollectionSchema
	points map[string]models.Point
}

// NewStore creates an empty embedded store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]*collection),
		kv:          make(map[string][]byte),
	}
}

// Ping always succeeds for the embedded backend.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close releases nothing; present to satisfy the backend contract.
func (s *Store) Close() {}

func (s *Store) get(name string) (*collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	return col, ok
}

// EnsureCollection binds or extends the collection schema.
func (s *Store) EnsureCollection(_ context.Context, name string, schema models.CollectionSchema) error {
	s.mu.Lock()
	col, ok := s.collections[name]
	if !ok {
		col = &collection{points: make(map[string]models.Point)}
		s.collections[name] = col
	}
	s.mu.Unlock()

	col.mu.Lock()
	defer col.mu.Unlock()
	merged, err := col.schema.Merge(schema)
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", name, err)
	}
	col.schema = merged
	return nil
}

// Schema returns the bound schema of a collection.
func (s *Store) Schema(_ context.Context, name string) (models.CollectionSchema, bool, error) {
	col, ok := s.get(name)
	if !ok {
		return models.CollectionSchema{}, false, nil
	}
	col.mu.RLock()
	defer col.mu.RUnlock()
	return col.schema.Clone(), !col.schema.IsZero(), nil
}

// CollectionExists checks collection presence.
func (s *Store) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := s.get(name)
	return ok, nil
}

// DeleteCollection removes a collection and all its points.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// Upsert stores points, replacing existing ids in full (last write wins).
func (s *Store) Upsert(_ context.Context, name string, points []models.Point) error {
	col, ok := s.get(name)
	if !ok {
		return fmt.Errorf("upsert into %s: %w", name, models.ErrCollectionNotFound)
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	for _, p := range points {
		col.points[p.ID.Key()] = clonePoint(p)
	}
	return nil
}

// Retrieve returns the points for the given ids in request order; ids not
// present are silently omitted.
func (s *Store) Retrieve(_ context.Context, name string, ids []models.PointID) ([]models.Point, error) {
	col, ok := s.get(name)
	if !ok {
		return nil, fmt.Errorf("retrieve from %s: %w", name, models.ErrCollectionNotFound)
	}

	col.mu.RLock()
	defer col.mu.RUnlock()

	out := make([]models.Point, 0, len(ids))
	for _, id := range ids {
		if p, ok := col.points[id.Key()]; ok {
			out = append(out, clonePoint(p))
		}
	}
	return out, nil
}

// Count returns the number of points in a collection.
func (s *Store) Count(_ context.Context, name string) (int, error) {
	col, ok := s.get(name)
	if !ok {
		return 0, fmt.Errorf("count %s: %w", name, models.ErrCollectionNotFound)
	}
	col.mu.RLock()
	defer col.mu.RUnlock()
	return len(col.points), nil
}

// Search brute-forces a top-k scan over one vector field using the field's
// declared metric. Points lacking the field are skipped.
func (s *Store) Search(
	_ context.Context, name, field string, vector models.Vector, k int,
) ([]models.ScoredPoint, error) {
	if k <= 0 {
		return nil, fmt.Errorf("search %s: k must be positive", name)
	}
	col, ok := s.get(name)
	if !ok {
		return nil, fmt.Errorf("search %s: %w", name, models.ErrCollectionNotFound)
	}

	col.mu.RLock()
	defer col.mu.RUnlock()

	var metric models.Distance
	if !vector.IsSparse() {
		params, ok := col.schema.Dense[field]
		if !ok {
			return nil, fmt.Errorf("search %s: %q: %w", name, field, models.ErrFieldNotFound)
		}
		metric = params.Distance
	} else if _, ok := col.schema.Sparse[field]; !ok {
		return nil, fmt.Errorf("search %s: %q: %w", name, field, models.ErrFieldNotFound)
	}

	hits := make([]models.ScoredPoint, 0, len(col.points))
	for _, p := range col.points {
		v, ok := p.Vectors[field]
		if !ok {
			continue
		}

		var score float64
		if vector.IsSparse() {
			score = sparseDot(*vector.Sparse, *v.Sparse)
		} else {
			score = denseScore(metric, vector.Dense, v.Dense)
		}
		hits = append(hits, models.ScoredPoint{ID: p.ID, Score: score, Payload: clonePayload(p.Payload)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID.Less(hits[j].ID)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Get implements db.KV for the embedding cache.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set implements db.KV for the embedding cache.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	data := make([]byte, len(value))
	copy(data, value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = data
	return nil
}

// clonePoint copies a point deeply enough that callers can never mutate
// stored state through a returned or retained reference.
func clonePoint(p models.Point) models.Point {
	out := models.Point{ID: p.ID, Payload: clonePayload(p.Payload)}
	if p.Vectors != nil {
		out.Vectors = make(map[string]models.Vector, len(p.Vectors))
		for field, v := range p.Vectors {
			out.Vectors[field] = cloneVector(v)
		}
	}
	return out
}

func cloneVector(v models.Vector) models.Vector {
	out := models.Vector{}
	if v.Dense != nil {
		out.Dense = make([]float32, len(v.Dense))
		copy(out.Dense, v.Dense)
	}
	if v.Sparse != nil {
		sp := models.SparseVector{
			Indices: make([]uint32, len(v.Sparse.Indices)),
			Values:  make([]float32, len(v.Sparse.Values)),
		}
		copy(sp.Indices, v.Sparse.Indices)
		copy(sp.Values, v.Sparse.Values)
		out.Sparse = &sp
	}
	return out
}

func clonePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
