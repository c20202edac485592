package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/vexhub/vexdb/internal/registry"
	"github.com/vexhub/vexdb/pkg/models"
)

// --- Mocks ---

type mockEmbedder struct {
	denseFn   func(ctx context.Context, model string, texts []string) ([][]float32, error)
	sparseFn  func(ctx context.Context, model string, texts []string) ([]models.SparseVector, error)
	denseDim  int
	denseErr  error
	sparseErr error
}

func (m *mockEmbedder) EmbedDense(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if m.denseFn != nil {
		return m.denseFn(ctx, model, texts)
	}
	if m.denseErr != nil {
		return nil, m.denseErr
	}
	dim := m.denseDim
	if dim == 0 {
		dim = 384
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
		out[i][0] = float32(i + 1)
	}
	return out, nil
}

func (m *mockEmbedder) EmbedSparse(ctx context.Context, model string, texts []string) ([]models.SparseVector, error) {
	if m.sparseFn != nil {
		return m.sparseFn(ctx, model, texts)
	}
	if m.sparseErr != nil {
		return nil, m.sparseErr
	}
	out := make([]models.SparseVector, len(texts))
	for i := range texts {
		out[i] = models.SparseVector{Indices: []uint32{uint32(i)}, Values: []float32{1}}
	}
	return out, nil
}

func newService(t *testing.T, emb TextEmbedder) (*Service, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	return New(reg, emb), reg
}

func TestEmbedDocuments_DenseOnly(t *testing.T) {
	svc, _ := newService(t, &mockEmbedder{})

	texts := []string{"first", "second"}
	meta := []map[string]any{{"source": "a"}, {"source": "b"}}

	points, snap, err := svc.EmbedDocuments(context.Background(), texts, meta, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if snap.Sparse != nil {
		t.Error("sparse should be disabled by default")
	}

	for i, p := range points {
		if p.ID.IsZero() {
			t.Errorf("point %d has no auto-generated id", i)
		}
		if _, ok := p.Vectors["fast-bge-small-en"]; !ok {
			t.Errorf("point %d lacks default dense field: %v", i, p.Vectors)
		}
		if len(p.Vectors) != 1 {
			t.Errorf("point %d has unexpected vectors: %v", i, p.Vectors)
		}
		if p.Payload["document"] != texts[i] {
			t.Errorf("point %d payload document = %v", i, p.Payload["document"])
		}
		if p.Payload["source"] != meta[i]["source"] {
			t.Errorf("point %d payload metadata missing: %v", i, p.Payload)
		}
	}
}

func TestEmbedDocuments_WithSparse(t *testing.T) {
	svc, reg := newService(t, &mockEmbedder{})
	if err := reg.SetSparse("Qdrant/bm25"); err != nil {
		t.Fatal(err)
	}

	points, snap, err := svc.EmbedDocuments(context.Background(), []string{"doc"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Sparse == nil || snap.Sparse.Name != "Qdrant/bm25" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if _, ok := points[0].Vectors["fast-sparse-bm25"]; !ok {
		t.Errorf("sparse vector field missing: %v", points[0].Vectors)
	}
	if len(points[0].Vectors) != 2 {
		t.Errorf("expected dense + sparse vectors, got %v", points[0].Vectors)
	}
}

func TestEmbedDocuments_InputValidation(t *testing.T) {
	svc, _ := newService(t, &mockEmbedder{})
	ctx := context.Background()

	t.Run("metadata length mismatch", func(t *testing.T) {
		_, _, err := svc.EmbedDocuments(ctx, []string{"a", "b"}, []map[string]any{{}}, nil)
		if !errors.Is(err, models.ErrInputMismatch) {
			t.Fatalf("expected ErrInputMismatch, got %v", err)
		}
	})

	t.Run("ids length mismatch", func(t *testing.T) {
		_, _, err := svc.EmbedDocuments(ctx, []string{"a", "b"}, nil, []models.PointID{models.NumID(1)})
		if !errors.Is(err, models.ErrInputMismatch) {
			t.Fatalf("expected ErrInputMismatch, got %v", err)
		}
	})

	t.Run("duplicate ids in batch", func(t *testing.T) {
		_, _, err := svc.EmbedDocuments(ctx, []string{"a", "b"}, nil,
			[]models.PointID{models.NumID(7), models.NumID(7)})
		if !errors.Is(err, models.ErrInputMismatch) {
			t.Fatalf("expected ErrInputMismatch, got %v", err)
		}
	})
}

func TestEmbedDocuments_NoEmbedder(t *testing.T) {
	svc, _ := newService(t, nil)
	_, _, err := svc.EmbedDocuments(context.Background(), []string{"a"}, nil, nil)
	if !errors.Is(err, models.ErrEmbedderNotConfigured) {
		t.Fatalf("expected ErrEmbedderNotConfigured, got %v", err)
	}
}

func TestEmbedDocuments_DimMismatchFromProvider(t *testing.T) {
	svc, _ := newService(t, &mockEmbedder{denseDim: 7})
	_, _, err := svc.EmbedDocuments(context.Background(), []string{"a"}, nil, nil)
	if !errors.Is(err, models.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestEmbedDocuments_ProviderError(t *testing.T) {
	boom := errors.New("provider down")
	svc, _ := newService(t, &mockEmbedder{denseErr: boom})
	_, _, err := svc.EmbedDocuments(context.Background(), []string{"a"}, nil, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestEmbedQueries_OrderAndShape(t *testing.T) {
	calls := 0
	emb := &mockEmbedder{
		denseFn: func(_ context.Context, _ string, texts []string) ([][]float32, error) {
			calls++
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = make([]float32, 384)
				out[i][0] = float32(i + 1)
			}
			return out, nil
		},
	}
	svc, reg := newService(t, emb)
	if err := reg.SetSparse("Qdrant/bm25"); err != nil {
		t.Fatal(err)
	}

	texts := []string{"first query", "second query", "third query"}
	specs, _, err := svc.EmbedQueries(context.Background(), texts, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != len(texts) {
		t.Fatalf("expected %d specs, got %d", len(texts), len(specs))
	}
	for i, spec := range specs {
		if len(spec.Queries) != 2 {
			t.Fatalf("spec %d: expected dense + sparse sub-queries, got %d", i, len(spec.Queries))
		}
		if spec.Queries[0].Field != "fast-bge-small-en" || spec.Queries[1].Field != "fast-sparse-bm25" {
			t.Errorf("spec %d: unexpected field order: %s, %s", i, spec.Queries[0].Field, spec.Queries[1].Field)
		}
		// Index-preserving: the i-th spec embeds the i-th text.
		if spec.Queries[0].Vector.Dense[0] != float32(i+1) {
			t.Errorf("spec %d carries the wrong query vector", i)
		}
		if spec.Limit != 10 || spec.Fusion != models.FusionRRF {
			t.Errorf("spec %d: unexpected settings: %+v", i, spec)
		}
	}
	if calls != 1 {
		t.Errorf("expected a single batched dense call, got %d", calls)
	}
}

func TestEmbedQuery_SnapshotConsistency(t *testing.T) {
	svc, reg := newService(t, &mockEmbedder{})

	spec, snap, err := svc.EmbedQuery(context.Background(), "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(spec.Queries) != 1 {
		t.Fatalf("dense-only config must yield one sub-query, got %d", len(spec.Queries))
	}

	// A model switch after the call must not affect the returned snapshot.
	if err := reg.SetDense("BAAI/bge-base-en-v1.5"); err != nil {
		t.Fatal(err)
	}
	if snap.Dense.Name != registry.DefaultDenseModel {
		t.Errorf("snapshot leaked a later model switch: %s", snap.Dense.Name)
	}
}
