package ingest

import (
	"context"

	"github.com/vexhub/vexdb/pkg/models"
)

// Store is the storage contract used by ingestion (narrow consumer view of
// the backend).
type Store interface {
	EnsureCollection(ctx context.Context, name string, schema models.CollectionSchema) error
	Schema(ctx context.Context, name string) (models.CollectionSchema, bool, error)
	Upsert(ctx context.Context, collection string, points []models.Point) error
	Retrieve(ctx context.Context, collection string, ids []models.PointID) ([]models.Point, error)
	Count(ctx context.Context, collection string) (int, error)
}
