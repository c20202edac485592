// Package vexdb is the embeddable document-to-vector engine: ingest raw
// texts, embed them with the active model pair, and serve hybrid dense+sparse
// retrieval with reciprocal rank fusion. The same Client API runs on an
// embedded in-process backend or on Redis 8+ with RediSearch.
package vexdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vexhub/vexdb/internal/db"
	dbMemory "github.com/vexhub/vexdb/internal/db/memory"
	dbRedis "github.com/vexhub/vexdb/internal/db/redis"
	cacheEmb "github.com/vexhub/vexdb/internal/embedder/cache"
	"github.com/vexhub/vexdb/internal/metrics"
	"github.com/vexhub/vexdb/internal/registry"
	"github.com/vexhub/vexdb/internal/usecase/embed"
	"github.com/vexhub/vexdb/internal/usecase/ingest"
	"github.com/vexhub/vexdb/internal/usecase/query"
	"github.com/vexhub/vexdb/pkg/models"
)

const defaultReadinessTimeout = 10 * time.Second

// TextEmbedder runs model inference for the engine. Implementations call a
// local runtime or a remote provider; both methods return one vector per
// input text, in input order.
type TextEmbedder interface {
	EmbedDense(ctx context.Context, model string, texts []string) ([][]float32, error)
	EmbedSparse(ctx context.Context, model string, texts []string) ([]models.SparseVector, error)
}

// CollectionInfo describes a bound collection: its vector schema and point count.
type CollectionInfo struct {
	Schema models.CollectionSchema
	Count  int
}

// Client is the vexdb entry point.
type Client struct {
	store     db.Store
	reg       *registry.Registry
	embedSvc  *embed.Service
	ingestSvc *ingest.Service
	querySvc  *query.Service
	logger    *zap.Logger
}

// New creates a Client. With no options it runs fully in-process on the
// embedded backend with no embedder configured; such a client serves Count,
// Retrieve and collection calls, and fails Add and Query with
// ErrEmbedderNotConfigured.
//
// The provided context bounds the initial readiness check of networked
// backends.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: "memory"}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if rw, ok := store.(db.ReadyWaiter); ok {
		if err := rw.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("vexdb: database not ready: %w", err)
		}
	}

	c, err := wireClient(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "memory":
		return dbMemory.NewStore(), nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Username: cfg.username,
			Password: cfg.password,
			DB:       cfg.db,
		})
		if err != nil {
			return nil, fmt.Errorf("vexdb: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("vexdb: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig) (*Client, error) {
	reg := registry.New()
	if cfg.denseModel != "" {
		if err := reg.SetDense(cfg.denseModel); err != nil {
			return nil, fmt.Errorf("vexdb: %w", err)
		}
	}
	if cfg.sparseModel != "" {
		if err := reg.SetSparse(cfg.sparseModel); err != nil {
			return nil, fmt.Errorf("vexdb: %w", err)
		}
	}

	var embedder embed.TextEmbedder
	if cfg.embedder != nil {
		metrics.RegisterEmbeddingMetrics()
		embedder = cfg.embedder
		if cfg.cacheEnabled {
			kv, ok := store.(db.KV)
			if !ok {
				return nil, errors.New("vexdb: backend does not support the embedding cache")
			}
			embedder = cacheEmb.New(cfg.embedder, kv, metrics.EmbeddingCacheTotal, cfg.logger)
		}
	}

	return &Client{
		store:     store,
		reg:       reg,
		embedSvc:  embed.New(reg, embedder),
		ingestSvc: ingest.New(store),
		querySvc: query.New(store, query.Config{
			RRFK:         cfg.rrfK,
			Oversampling: cfg.oversampling,
		}),
		logger: cfg.logger,
	}, nil
}

// Close releases backend resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Add embeds a document batch with the active models and upserts the
// resulting points into the collection, binding (or extending) its schema on
// the way. It returns the point ids in document order; ids not supplied by
// the caller are generated UUID strings.
//
// metadata and ids are optional; when given they must match len(documents).
// The stored payload of each point is its metadata plus the raw text under
// the "document" key.
func (c *Client) Add(
	ctx context.Context, collection string, documents []string,
	metadata []map[string]any, ids []models.PointID,
) ([]models.PointID, error) {
	points, snap, err := c.embedSvc.EmbedDocuments(ctx, documents, metadata, ids)
	if err != nil {
		return nil, err
	}
	if err := c.ingestSvc.Upsert(ctx, collection, points, snap); err != nil {
		return nil, err
	}

	out := make([]models.PointID, len(points))
	for i, p := range points {
		out[i] = p.ID
	}
	return out, nil
}

// Query embeds the query text and runs a hybrid search against the
// collection: one dense sub-query always, plus a sparse one when a sparse
// model is active, fused with reciprocal rank fusion. Single-model queries
// return raw metric scores.
func (c *Client) Query(
	ctx context.Context, collection, text string, opts ...QueryOption,
) ([]models.RankedResult, error) {
	qc := queryConfig{limit: DefaultQueryLimit}
	for _, o := range opts {
		o.applyQuery(&qc)
	}

	spec, _, err := c.embedSvc.EmbedQuery(ctx, text, qc.limit)
	if err != nil {
		return nil, err
	}
	if qc.field != "" {
		if spec, err = restrictToField(spec, qc.field); err != nil {
			return nil, err
		}
	}
	return c.querySvc.Query(ctx, collection, spec)
}

// restrictToField narrows a spec to one sub-query. The field must have been
// produced by an active model; anything else is indistinguishable from a
// typo and fails rather than searching nothing.
func restrictToField(spec models.QuerySpec, field string) (models.QuerySpec, error) {
	for _, sub := range spec.Queries {
		if sub.Field == field {
			spec.Queries = []models.SubQuery{sub}
			return spec, nil
		}
	}
	return models.QuerySpec{}, fmt.Errorf("query field %q is not served by an active model: %w",
		field, models.ErrFieldNotFound)
}

// QueryBatch runs independent queries and returns one result list per text,
// in input order.
func (c *Client) QueryBatch(
	ctx context.Context, collection string, texts []string, opts ...QueryOption,
) ([][]models.RankedResult, error) {
	qc := queryConfig{limit: DefaultQueryLimit}
	for _, o := range opts {
		o.applyQuery(&qc)
	}

	specs, _, err := c.embedSvc.EmbedQueries(ctx, texts, qc.limit)
	if err != nil {
		return nil, err
	}
	return c.querySvc.QueryBatch(ctx, collection, specs)
}

// Count returns the number of points in a collection.
func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	return c.ingestSvc.Count(ctx, collection)
}

// Retrieve returns points by id in request order; missing ids are omitted.
func (c *Client) Retrieve(
	ctx context.Context, collection string, ids []models.PointID,
) ([]models.Point, error) {
	return c.ingestSvc.Retrieve(ctx, collection, ids)
}

// CollectionExists reports whether the collection has been bound.
func (c *Client) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := c.store.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("collection exists %s: %w", collection, err)
	}
	return exists, nil
}

// DeleteCollection removes the collection, its points and its bound schema.
// Deleting an absent collection is a no-op.
func (c *Client) DeleteCollection(ctx context.Context, collection string) error {
	if err := c.store.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	return nil
}

// GetCollectionInfo returns the bound schema and point count of a collection.
func (c *Client) GetCollectionInfo(ctx context.Context, collection string) (CollectionInfo, error) {
	schema, bound, err := c.store.Schema(ctx, collection)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("collection info %s: %w", collection, err)
	}
	if !bound {
		return CollectionInfo{}, fmt.Errorf("collection info %s: %w", collection, models.ErrCollectionNotFound)
	}
	count, err := c.store.Count(ctx, collection)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("collection info %s: %w", collection, err)
	}
	return CollectionInfo{Schema: schema, Count: count}, nil
}

// SetModel switches the active dense model. Already-written collections keep
// their bound fields; the next Add introduces the new model's field.
func (c *Client) SetModel(name string) error {
	return c.reg.SetDense(name)
}

// SetSparseModel switches the active sparse model; an empty name disables
// sparse embedding and returns queries to dense-only.
func (c *Client) SetSparseModel(name string) error {
	return c.reg.SetSparse(name)
}

// RegisterModel adds a custom model to the catalog. Re-registering an
// identical descriptor is a no-op; conflicting geometry for a known name is
// rejected.
func (c *Client) RegisterModel(d models.ModelDescriptor) error {
	_, err := c.reg.Register(d)
	return err
}

// GetEmbeddingSize returns the fixed vector dimension of a dense or
// multivector model. With no argument it reports on the active dense model.
// Sparse models have no fixed size and return ErrUnsupportedOperation.
func (c *Client) GetEmbeddingSize(model ...string) (int, error) {
	name := c.reg.ActiveDense()
	if len(model) > 0 && model[0] != "" {
		name = model[0]
	}
	return c.reg.DimensionOf(name)
}

// VectorFieldName returns the dense vector field a model binds, for callers
// that inspect schemas directly.
func (c *Client) VectorFieldName(model string) string {
	return models.DenseFieldName(model)
}

// SparseVectorFieldName returns the sparse vector field a model binds.
func (c *Client) SparseVectorFieldName(model string) string {
	return models.SparseFieldName(model)
}
