package memory

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/vexhub/vexdb/internal/db"
	"github.com/vexhub/vexdb/pkg/models"
)

const denseField = "fast-bge-small-en"
const sparseField = "fast-sparse-bm25"

func testSchema() models.CollectionSchema {
	return models.CollectionSchema{
		Dense:  map[string]models.VectorParams{denseField: {Dim: 3, Distance: models.DistanceCosine}},
		Sparse: map[string]models.SparseParams{sparseField: {Modifier: models.ModifierIDF}},
	}
}

func testPoint(id uint64, dense []float32) models.Point {
	return models.Point{
		ID:      models.NumID(id),
		Vectors: map[string]models.Vector{denseField: models.DenseVector(dense)},
		Payload: map[string]any{"document": "doc"},
	}
}

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, "demo", testSchema()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSchemaLifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, bound, err := s.Schema(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if bound {
		t.Fatal("unbound collection reported as bound")
	}

	if err := s.EnsureCollection(ctx, "demo", testSchema()); err != nil {
		t.Fatal(err)
	}

	schema, bound, err := s.Schema(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if !bound {
		t.Fatal("expected bound schema")
	}
	if schema.Dense[denseField].Dim != 3 {
		t.Errorf("unexpected schema: %+v", schema)
	}

	// Conflicting geometry under the same field name is rejected.
	err = s.EnsureCollection(ctx, "demo", models.CollectionSchema{
		Dense: map[string]models.VectorParams{denseField: {Dim: 5, Distance: models.DistanceCosine}},
	})
	if !errors.Is(err, models.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestUpsertRetrieveCount(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	points := []models.Point{
		testPoint(42, []float32{1, 0, 0}),
		testPoint(2000, []float32{0, 1, 0}),
	}
	if err := s.Upsert(ctx, "demo", points); err != nil {
		t.Fatal(err)
	}

	count, err := s.Count(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 points, got %d", count)
	}

	// Request order, missing ids omitted.
	got, err := s.Retrieve(ctx, "demo", []models.PointID{
		models.NumID(2000), models.NumID(7), models.NumID(42),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].ID != models.NumID(2000) || got[1].ID != models.NumID(42) {
		t.Errorf("retrieve order not request order: %v, %v", got[0].ID, got[1].ID)
	}
}

func TestUpsert_OverwriteById(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "demo", []models.Point{testPoint(42, []float32{1, 0, 0})}); err != nil {
		t.Fatal(err)
	}

	updated := testPoint(42, []float32{0, 0, 1})
	updated.Payload = map[string]any{"document": "new text"}
	if err := s.Upsert(ctx, "demo", []models.Point{updated}); err != nil {
		t.Fatal(err)
	}

	count, _ := s.Count(ctx, "demo")
	if count != 1 {
		t.Fatalf("overwrite must not grow the collection, count=%d", count)
	}

	got, err := s.Retrieve(ctx, "demo", []models.PointID{models.NumID(42)})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Payload["document"] != "new text" {
		t.Errorf("payload not replaced: %v", got[0].Payload)
	}
	if got[0].Vectors[denseField].Dense[2] != 1 {
		t.Errorf("vector not replaced: %v", got[0].Vectors[denseField])
	}
}

func TestUpsert_UnknownCollection(t *testing.T) {
	s := NewStore()
	err := s.Upsert(context.Background(), "nope", []models.Point{testPoint(1, []float32{1, 0, 0})})
	if !errors.Is(err, models.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestSearch_Dense(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "demo", []models.Point{
		testPoint(1, []float32{1, 0, 0}),
		testPoint(2, []float32{0.9, 0.1, 0}),
		testPoint(3, []float32{0, 0, 1}),
	}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "demo", denseField, models.DenseVector([]float32{1, 0, 0}), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != models.NumID(1) || hits[1].ID != models.NumID(2) {
		t.Errorf("unexpected ranking: %v, %v", hits[0].ID, hits[1].ID)
	}
	if math.Abs(hits[0].Score-1.0) > 1e-6 {
		t.Errorf("exact match cosine score = %f, want 1.0", hits[0].Score)
	}
	if hits[0].Payload["document"] != "doc" {
		t.Errorf("payload missing from hit: %v", hits[0].Payload)
	}
}

func TestSearch_DenseTieBreakById(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	// Identical vectors produce identical scores; order must fall back to id.
	if err := s.Upsert(ctx, "demo", []models.Point{
		testPoint(9, []float32{1, 0, 0}),
		testPoint(3, []float32{1, 0, 0}),
		testPoint(5, []float32{1, 0, 0}),
	}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "demo", denseField, models.DenseVector([]float32{1, 0, 0}), 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{3, 5, 9}
	for i, id := range want {
		if hits[i].ID != models.NumID(id) {
			t.Errorf("position %d: got %v, want %d", i, hits[i].ID, id)
		}
	}
}

func TestSearch_Sparse(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	sv := func(idx []uint32, val []float32) models.Vector {
		return models.SparseVec(models.SparseVector{Indices: idx, Values: val})
	}
	points := []models.Point{
		{ID: models.NumID(1), Vectors: map[string]models.Vector{sparseField: sv([]uint32{1, 2}, []float32{1, 1})}},
		{ID: models.NumID(2), Vectors: map[string]models.Vector{sparseField: sv([]uint32{2, 3}, []float32{2, 1})}},
		{ID: models.NumID(3), Vectors: map[string]models.Vector{sparseField: sv([]uint32{7}, []float32{5})}},
	}
	if err := s.Upsert(ctx, "demo", points); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "demo", sparseField, sv([]uint32{2}, []float32{1}), 10)
	if err != nil {
		t.Fatal(err)
	}
	// Point 3 shares no terms; it still scores 0 but ranks last.
	if hits[0].ID != models.NumID(2) || hits[0].Score != 2 {
		t.Errorf("unexpected top hit: %+v", hits[0])
	}
	if hits[1].ID != models.NumID(1) || hits[1].Score != 1 {
		t.Errorf("unexpected second hit: %+v", hits[1])
	}
}

func TestSearch_UnknownField(t *testing.T) {
	s := seeded(t)
	_, err := s.Search(context.Background(), "demo", "fast-other", models.DenseVector([]float32{1, 0, 0}), 5)
	if !errors.Is(err, models.ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}
}

func TestSearch_UnknownCollection(t *testing.T) {
	s := NewStore()
	_, err := s.Search(context.Background(), "nope", denseField, models.DenseVector([]float32{1}), 5)
	if !errors.Is(err, models.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestConcurrentUpsertAndSearch(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = s.Upsert(ctx, "demo", []models.Point{testPoint(uint64(w*100+i), []float32{1, 0, 0})})
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				hits, err := s.Search(ctx, "demo", denseField, models.DenseVector([]float32{1, 0, 0}), 5)
				if err != nil {
					t.Errorf("search: %v", err)
					return
				}
				for _, h := range hits {
					// A torn point would surface as a missing payload here.
					if h.Payload == nil {
						t.Error("observed partially-written point")
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestKV(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected key-not-found, got %v", err)
	}
	if err := s.Set(ctx, "k", []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	data, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 || data[0] != 1 {
		t.Errorf("unexpected value: %v", data)
	}
}
