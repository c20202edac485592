package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/vexhub/vexdb/internal/metrics"
	"github.com/vexhub/vexdb/pkg/models"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// embeddingResponse mirrors the OpenAI-compatible API embedding response.
type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func newTestServer(t *testing.T, data []embeddingData) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		resp := embeddingResponse{Object: "list", Model: "test-model", Data: data}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbedDense_Batch(t *testing.T) {
	server := newTestServer(t, []embeddingData{
		{Object: "embedding", Embedding: []float32{0.1, 0.2}, Index: 0},
		{Object: "embedding", Embedding: []float32{0.3, 0.4}, Index: 1},
	})
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:   "test-key",
		BaseURL:  server.URL,
		Provider: "test",
		Logger:   zap.NewNop(),
	})

	vecs, err := emb.EmbedDense(context.Background(), "test-model", []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedDense failed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 0.1 || vecs[1][0] != 0.3 {
		t.Errorf("unexpected vectors: %v", vecs)
	}
}

func TestEmbedDense_ReordersByIndex(t *testing.T) {
	server := newTestServer(t, []embeddingData{
		{Object: "embedding", Embedding: []float32{0.3, 0.4}, Index: 1},
		{Object: "embedding", Embedding: []float32{0.1, 0.2}, Index: 0},
	})
	defer server.Close()

	emb := NewEmbedder(&Config{APIKey: "test-key", BaseURL: server.URL, Provider: "test"})

	vecs, err := emb.EmbedDense(context.Background(), "test-model", []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedDense failed: %v", err)
	}
	if vecs[0][0] != 0.1 || vecs[1][0] != 0.3 {
		t.Errorf("response not reordered by index: %v", vecs)
	}
}

func TestEmbedDense_CountMismatch(t *testing.T) {
	server := newTestServer(t, []embeddingData{
		{Object: "embedding", Embedding: []float32{0.1}, Index: 0},
	})
	defer server.Close()

	emb := NewEmbedder(&Config{APIKey: "test-key", BaseURL: server.URL, Provider: "test"})

	_, err := emb.EmbedDense(context.Background(), "test-model", []string{"a", "b"})
	if !errors.Is(err, models.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
}

func TestEmbedDense_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail": "rate limit exceeded"}`))
	}))
	defer server.Close()

	emb := NewEmbedder(&Config{APIKey: "test-key", BaseURL: server.URL, Provider: "test"})

	_, err := emb.EmbedDense(context.Background(), "test-model", []string{"hello"})
	if !errors.Is(err, models.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
}

func TestEmbedDense_Empty(t *testing.T) {
	emb := NewEmbedder(&Config{APIKey: "test-key", Provider: "test"})
	vecs, err := emb.EmbedDense(context.Background(), "test-model", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil result, got %v", vecs)
	}
}

func TestEmbedSparse_Unsupported(t *testing.T) {
	emb := NewEmbedder(&Config{APIKey: "test-key", Provider: "test"})
	_, err := emb.EmbedSparse(context.Background(), "Qdrant/bm25", []string{"hello"})
	if !errors.Is(err, models.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}
