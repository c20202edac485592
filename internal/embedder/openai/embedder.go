// Package openai provides dense embeddings through any OpenAI-compatible
// embeddings API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/vexhub/vexdb/internal/metrics"
	"github.com/vexhub/vexdb/pkg/models"
)

// Embedder calls an OpenAI-compatible embeddings endpoint. The provider
// serves dense models only; sparse embedding requests are rejected so the
// pipeline can fail fast instead of silently skipping a configured field.
type Embedder struct {
	client   *openai.Client
	user     string
	provider string
	logger   *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	User     string
	Provider string
	Logger   *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:   openai.NewClientWithConfig(clientCfg),
		user:     cfg.User,
		provider: cfg.Provider,
		logger:   logger,
	}
}

// EmbedDense embeds a batch of texts with one API call.
func (e *Embedder) EmbedDense(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		return nil, parseAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		return nil, fmt.Errorf("embedding response has %d vectors for %d texts: %w",
			len(resp.Data), len(texts), models.ErrEmbeddingProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(duration.Seconds())
	metrics.EmbeddingTextsTotal.WithLabelValues(e.provider, model).Add(float64(len(texts)))

	// The API may reorder data entries; Index restores request order.
	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embedding response index %d out of range: %w",
				item.Index, models.ErrEmbeddingProvider)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// EmbedSparse is not supported by OpenAI-compatible APIs.
func (e *Embedder) EmbedSparse(_ context.Context, model string, _ []string) ([]models.SparseVector, error) {
	return nil, fmt.Errorf("provider %q cannot embed sparse model %q: %w",
		e.provider, model, models.ErrUnsupportedOperation)
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with models.ErrEmbeddingProvider for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := models.ErrEmbeddingProvider

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail pulls the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
