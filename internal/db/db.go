// Package db defines the storage contract shared by the embedded and
// networked backends. Both implementations must be substitutable: given the
// same inputs they return result lists with the same point ids in the same
// rank order (raw scores may differ within numerical tolerance).
package db

import (
	"context"
	"time"

	"github.com/vexhub/vexdb/pkg/models"
)

// Store is the backend facade. Consumers depend on the narrow sub-interfaces
// declared in their own contracts; Store exists for wiring.
type Store interface {
	CollectionStore
	PointStore
	Searcher
	Pinger
	Close()
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyWaiter is implemented by backends that need a readiness probe before
// first use (the networked backend).
type ReadyWaiter interface {
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// CollectionStore owns collection lifecycle and the bound vector schema.
type CollectionStore interface {
	// EnsureCollection binds the schema on first call and appends new fields
	// on later calls. It never narrows or changes already-bound fields; the
	// caller validates the merge before invoking it.
	EnsureCollection(ctx context.Context, name string, schema models.CollectionSchema) error

	// Schema returns the bound schema. bound is false for collections that
	// have never been written to.
	Schema(ctx context.Context, name string) (schema models.CollectionSchema, bound bool, err error)

	CollectionExists(ctx context.Context, name string) (bool, error)
	DeleteCollection(ctx context.Context, name string) error
}

// PointStore owns point persistence. Upsert replaces whole points atomically:
// a concurrent reader sees either the previous point or the new one, never a
// mix. Retrieve returns points in request order, silently omitting missing
// ids; both backends follow request order so ranked comparisons line up.
type PointStore interface {
	Upsert(ctx context.Context, collection string, points []models.Point) error
	Retrieve(ctx context.Context, collection string, ids []models.PointID) ([]models.Point, error)
	Count(ctx context.Context, collection string) (int, error)
}

// Searcher runs a top-k nearest-neighbor search over one vector field using
// the field's declared distance metric. Results are ordered by descending
// score, ties broken by ascending point id.
type Searcher interface {
	Search(ctx context.Context, collection, field string, vector models.Vector, k int) ([]models.ScoredPoint, error)
}

// KV is a plain key-value surface, used by the embedding cache. The embedded
// backend serves it from memory, the networked backend from Redis strings.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
