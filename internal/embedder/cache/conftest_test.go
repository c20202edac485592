package cache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/vexhub/vexdb/internal/db"
	"github.com/vexhub/vexdb/pkg/models"
)

type mockEmbedder struct {
	denseFn     func(ctx context.Context, model string, texts []string) ([][]float32, error)
	sparseFn    func(ctx context.Context, model string, texts []string) ([]models.SparseVector, error)
	denseCalls  int
	sparseCalls int
}

func (m *mockEmbedder) EmbedDense(ctx context.Context, model string, texts []string) ([][]float32, error) {
	m.denseCalls++
	if m.denseFn != nil {
		return m.denseFn(ctx, model, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 0}
	}
	return out, nil
}

func (m *mockEmbedder) EmbedSparse(ctx context.Context, model string, texts []string) ([]models.SparseVector, error) {
	m.sparseCalls++
	if m.sparseFn != nil {
		return m.sparseFn(ctx, model, texts)
	}
	out := make([]models.SparseVector, len(texts))
	for i := range texts {
		out[i] = models.SparseVector{Indices: []uint32{uint32(i)}, Values: []float32{1}}
	}
	return out, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	data  map[string][]byte
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	if data, ok := m.data[key]; ok {
		return data, nil
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	return nil
}

func newTestEmbedder(t *testing.T, inner *mockEmbedder) (*Embedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, nil, zap.NewNop())
	return ce, ms
}
