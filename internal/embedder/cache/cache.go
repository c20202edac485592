// Package cache decorates an embedding provider with a key-value cache, so
// repeated ingestion of the same text never pays for a second provider call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vexhub/vexdb/internal/db"
	"github.com/vexhub/vexdb/pkg/models"
)

const (
	denseKeyPrefix  = "vexdb:cache:dense:"
	sparseKeyPrefix = "vexdb:cache:sparse:"
)

// embedder mirrors the pipeline's provider contract so the decorator slots
// in transparently.
type embedder interface {
	EmbedDense(ctx context.Context, model string, texts []string) ([][]float32, error)
	EmbedSparse(ctx context.Context, model string, texts []string) ([]models.SparseVector, error)
}

// store is the consumer interface for the cache backend.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Embedder caches embeddings in a key-value store, keyed by model and text.
type Embedder struct {
	inner      embedder
	store      store
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(inner embedder, s store, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Embedder {
	return &Embedder{
		inner:      inner,
		store:      s,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// EmbedDense serves cached vectors and forwards only the misses to the inner
// provider, preserving input order in the result.
func (c *Embedder) EmbedDense(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := cacheKey(denseKeyPrefix, model, text)
		data, ok := c.getFromCache(ctx, key)
		if ok {
			vec, err := bytesToVector(data)
			if err == nil {
				c.incCache("hit")
				out[i] = vec
				continue
			}
			c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		}
		c.incCache("miss")
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.inner.EmbedDense(ctx, model, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embed dense: %w", err)
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embed dense: provider returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = fresh[j]
		c.putToCache(ctx, cacheKey(denseKeyPrefix, model, missTexts[j]), vectorToBytes(fresh[j]))
	}
	return out, nil
}

// EmbedSparse mirrors EmbedDense with JSON-encoded cache entries.
func (c *Embedder) EmbedSparse(ctx context.Context, model string, texts []string) ([]models.SparseVector, error) {
	out := make([]models.SparseVector, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := cacheKey(sparseKeyPrefix, model, text)
		data, ok := c.getFromCache(ctx, key)
		if ok {
			var sv models.SparseVector
			if err := json.Unmarshal(data, &sv); err == nil {
				c.incCache("hit")
				out[i] = sv
				continue
			} else {
				c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
			}
		}
		c.incCache("miss")
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.inner.EmbedSparse(ctx, model, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embed sparse: %w", err)
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embed sparse: provider returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = fresh[j]
		if data, err := json.Marshal(fresh[j]); err == nil {
			c.putToCache(ctx, cacheKey(sparseKeyPrefix, model, missTexts[j]), data)
		}
	}
	return out, nil
}

func (c *Embedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *Embedder) getFromCache(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (c *Embedder) putToCache(ctx context.Context, key string, data []byte) {
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func cacheKey(prefix, model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return prefix + hex.EncodeToString(h.Sum(nil))
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
