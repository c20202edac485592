// Package dbtest is a conformance suite for db.Store implementations. Both
// backends must pass it with identical result id orderings; raw scores may
// differ within numerical tolerance, so the suite asserts rank order and
// monotonicity, never exact score values.
package dbtest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/vexhub/vexdb/internal/db"
	"github.com/vexhub/vexdb/pkg/models"
)

// Factory creates a fresh store per subtest. Implementations backed by a
// shared database must isolate state (unique collection names or a flush).
type Factory func(t *testing.T) db.Store

const (
	denseField  = "fast-bge-small-en"
	sparseField = "fast-sparse-bm25"
)

// newCollection yields a unique collection name so suite runs never collide
// on a shared backend, and removes it afterwards.
func newCollection(t *testing.T, store db.Store) string {
	t.Helper()
	name := "conf-" + uuid.NewString()[:8]
	t.Cleanup(func() { _ = store.DeleteCollection(context.Background(), name) })
	return name
}

func testSchema() models.CollectionSchema {
	return models.CollectionSchema{
		Dense: map[string]models.VectorParams{
			denseField: {Dim: 3, Distance: models.DistanceCosine},
		},
		Sparse: map[string]models.SparseParams{
			sparseField: {Modifier: models.ModifierIDF},
		},
	}
}

func point(id uint64, dense []float32, sparse *models.SparseVector, doc string) models.Point {
	vectors := map[string]models.Vector{denseField: models.DenseVector(dense)}
	if sparse != nil {
		vectors[sparseField] = models.SparseVec(*sparse)
	}
	return models.Point{
		ID:      models.NumID(id),
		Vectors: vectors,
		Payload: map[string]any{"document": doc},
	}
}

// Run exercises the full db.Store contract against the factory's stores.
func Run(t *testing.T, factory Factory) {
	t.Run("SchemaLifecycle", func(t *testing.T) { testSchemaLifecycle(t, factory) })
	t.Run("UpsertRetrieve", func(t *testing.T) { testUpsertRetrieve(t, factory) })
	t.Run("OverwriteByID", func(t *testing.T) { testOverwriteByID(t, factory) })
	t.Run("OverwriteVisibility", func(t *testing.T) { testOverwriteVisibility(t, factory) })
	t.Run("DeleteCollection", func(t *testing.T) { testDeleteCollection(t, factory) })
	t.Run("DenseSearchOrder", func(t *testing.T) { testDenseSearchOrder(t, factory) })
	t.Run("SparseSearchOrder", func(t *testing.T) { testSparseSearchOrder(t, factory) })
	t.Run("SearchErrors", func(t *testing.T) { testSearchErrors(t, factory) })
}

func testSchemaLifecycle(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	name := newCollection(t, store)

	_, bound, err := store.Schema(ctx, name)
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if bound {
		t.Fatal("fresh collection reports bound schema")
	}

	exists, err := store.CollectionExists(ctx, name)
	if err != nil || exists {
		t.Fatalf("CollectionExists before bind = %v, %v", exists, err)
	}

	if err := store.EnsureCollection(ctx, name, testSchema()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	schema, bound, err := store.Schema(ctx, name)
	if err != nil {
		t.Fatalf("Schema after bind: %v", err)
	}
	if !bound {
		t.Fatal("schema not bound after EnsureCollection")
	}
	if schema.Dense[denseField].Dim != 3 {
		t.Errorf("dense dim = %d, want 3", schema.Dense[denseField].Dim)
	}
	if schema.Sparse[sparseField].Modifier != models.ModifierIDF {
		t.Errorf("sparse modifier = %q, want idf", schema.Sparse[sparseField].Modifier)
	}

	// Appending a new dense field keeps the existing ones.
	extended := schema.Clone()
	extended.Dense["fast-bge-base-en"] = models.VectorParams{Dim: 4, Distance: models.DistanceDot}
	if err := store.EnsureCollection(ctx, name, extended); err != nil {
		t.Fatalf("EnsureCollection append: %v", err)
	}
	schema, _, err = store.Schema(ctx, name)
	if err != nil {
		t.Fatalf("Schema after append: %v", err)
	}
	if len(schema.Dense) != 2 {
		t.Errorf("dense fields = %d, want 2", len(schema.Dense))
	}
}

func testUpsertRetrieve(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	name := newCollection(t, store)

	if err := store.EnsureCollection(ctx, name, testSchema()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	points := []models.Point{
		point(1, []float32{1, 0, 0}, &models.SparseVector{Indices: []uint32{7}, Values: []float32{2}}, "one"),
		point(2, []float32{0, 1, 0}, nil, "two"),
	}
	if err := store.Upsert(ctx, name, points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	count, err := store.Count(ctx, name)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("Count = %d, want 2", count)
	}

	// Request order, missing ids omitted.
	got, err := store.Retrieve(ctx, name, []models.PointID{
		models.NumID(2), models.NumID(99), models.NumID(1),
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Retrieve returned %d points, want 2", len(got))
	}
	if got[0].ID != models.NumID(2) || got[1].ID != models.NumID(1) {
		t.Fatalf("retrieve order = %v, %v", got[0].ID, got[1].ID)
	}
	if got[1].Payload["document"] != "one" {
		t.Errorf("payload = %v", got[1].Payload)
	}
	if len(got[0].Vectors[denseField].Dense) != 3 {
		t.Errorf("dense vector lost on roundtrip: %+v", got[0].Vectors)
	}
	if got[1].Vectors[sparseField].Sparse == nil {
		t.Errorf("sparse vector lost on roundtrip: %+v", got[1].Vectors)
	}
}

func testOverwriteByID(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	name := newCollection(t, store)

	if err := store.EnsureCollection(ctx, name, testSchema()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	first := point(5, []float32{1, 0, 0},
		&models.SparseVector{Indices: []uint32{1}, Values: []float32{1}}, "first")
	if err := store.Upsert(ctx, name, []models.Point{first}); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	// Overwrite drops the sparse vector entirely; no stale field survives.
	second := point(5, []float32{0, 1, 0}, nil, "second")
	if err := store.Upsert(ctx, name, []models.Point{second}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	count, err := store.Count(ctx, name)
	if err != nil || count != 1 {
		t.Fatalf("Count after overwrite = %d, %v", count, err)
	}

	got, err := store.Retrieve(ctx, name, []models.PointID{models.NumID(5)})
	if err != nil || len(got) != 1 {
		t.Fatalf("Retrieve = %v, %v", got, err)
	}
	if got[0].Payload["document"] != "second" {
		t.Errorf("payload = %v", got[0].Payload)
	}
	if _, stale := got[0].Vectors[sparseField]; stale {
		t.Error("stale sparse vector survived overwrite")
	}
}

// testOverwriteVisibility hammers one id with alternating versions while a
// reader polls it. The reader must always find the point, and payload and
// vector must belong to the same version.
func testOverwriteVisibility(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	name := newCollection(t, store)

	if err := store.EnsureCollection(ctx, name, testSchema()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	versions := []models.Point{
		point(1, []float32{1, 0, 0}, nil, "v0"),
		point(1, []float32{0, 1, 0}, nil, "v1"),
	}
	if err := store.Upsert(ctx, name, versions[:1]); err != nil {
		t.Fatalf("initial Upsert: %v", err)
	}

	writeErr := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if err := store.Upsert(ctx, name, []models.Point{versions[i%2]}); err != nil {
				writeErr <- err
				return
			}
		}
	}()

	for alive := true; alive; {
		select {
		case <-done:
			alive = false
		default:
		}

		got, err := store.Retrieve(ctx, name, []models.PointID{models.NumID(1)})
		if err != nil {
			t.Fatalf("Retrieve during overwrite: %v", err)
		}
		if len(got) != 1 {
			t.Fatal("point went missing mid-overwrite")
		}
		doc, _ := got[0].Payload["document"].(string)
		dense := got[0].Vectors[denseField].Dense
		switch doc {
		case "v0":
			if len(dense) != 3 || dense[0] != 1 {
				t.Fatalf("torn point: payload v0 with vector %v", dense)
			}
		case "v1":
			if len(dense) != 3 || dense[1] != 1 {
				t.Fatalf("torn point: payload v1 with vector %v", dense)
			}
		default:
			t.Fatalf("unexpected payload %q", doc)
		}
	}

	select {
	case err := <-writeErr:
		t.Fatalf("writer Upsert: %v", err)
	default:
	}
}

func testDeleteCollection(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	name := newCollection(t, store)

	if err := store.EnsureCollection(ctx, name, testSchema()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if err := store.Upsert(ctx, name, []models.Point{
		point(1, []float32{1, 0, 0}, nil, "doomed"),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := store.DeleteCollection(ctx, name); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	exists, err := store.CollectionExists(ctx, name)
	if err != nil || exists {
		t.Fatalf("CollectionExists after delete = %v, %v", exists, err)
	}
	if _, err := store.Count(ctx, name); !errors.Is(err, models.ErrCollectionNotFound) {
		t.Fatalf("Count after delete = %v, want ErrCollectionNotFound", err)
	}

	// Deleting an absent collection is a no-op.
	if err := store.DeleteCollection(ctx, name); err != nil {
		t.Fatalf("second DeleteCollection: %v", err)
	}
}

func testDenseSearchOrder(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	name := newCollection(t, store)

	if err := store.EnsureCollection(ctx, name, testSchema()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if err := store.Upsert(ctx, name, []models.Point{
		point(1, []float32{1, 0, 0}, nil, "east"),
		point(2, []float32{0.9, 0.4, 0}, nil, "northeast"),
		point(3, []float32{0, 1, 0}, nil, "north"),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := store.Search(ctx, name, denseField, models.DenseVector([]float32{1, 0.1, 0}), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	wantOrder := []models.PointID{models.NumID(1), models.NumID(2), models.NumID(3)}
	for i, want := range wantOrder {
		if hits[i].ID != want {
			t.Fatalf("rank %d = %v, want %v (all hits: %+v)", i, hits[i].ID, want, hits)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("scores not descending: %v", hits)
		}
	}
	if hits[0].Payload["document"] != "east" {
		t.Errorf("top payload = %v", hits[0].Payload)
	}

	// k truncates.
	hits, err = store.Search(ctx, name, denseField, models.DenseVector([]float32{1, 0.1, 0}), 2)
	if err != nil {
		t.Fatalf("Search k=2: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits with k=2", len(hits))
	}
}

func testSparseSearchOrder(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	name := newCollection(t, store)

	if err := store.EnsureCollection(ctx, name, testSchema()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if err := store.Upsert(ctx, name, []models.Point{
		point(1, []float32{1, 0, 0},
			&models.SparseVector{Indices: []uint32{10, 20}, Values: []float32{3, 1}}, "both terms"),
		point(2, []float32{0, 1, 0},
			&models.SparseVector{Indices: []uint32{10}, Values: []float32{1}}, "one term"),
		point(3, []float32{0, 0, 1}, nil, "no sparse vector"),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	query := models.SparseVec(models.SparseVector{Indices: []uint32{10, 20}, Values: []float32{1, 1}})
	hits, err := store.Search(ctx, name, sparseField, query, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Point 3 carries no sparse vector and must not appear.
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2: %+v", len(hits), hits)
	}
	if hits[0].ID != models.NumID(1) || hits[1].ID != models.NumID(2) {
		t.Fatalf("sparse order = %v, %v", hits[0].ID, hits[1].ID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Fatalf("sparse scores not descending: %+v", hits)
	}
}

func testSearchErrors(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	name := newCollection(t, store)

	_, err := store.Search(ctx, "conf-"+uuid.NewString()[:8], denseField, models.DenseVector([]float32{1, 0, 0}), 5)
	if !errors.Is(err, models.ErrCollectionNotFound) {
		t.Errorf("unbound collection err = %v, want ErrCollectionNotFound", err)
	}

	if err := store.EnsureCollection(ctx, name, testSchema()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	_, err = store.Search(ctx, name, "fast-no-such-field", models.DenseVector([]float32{1, 0, 0}), 5)
	if !errors.Is(err, models.ErrFieldNotFound) {
		t.Errorf("unknown field err = %v, want ErrFieldNotFound", err)
	}
}
