package query

import (
	"context"

	"github.com/vexhub/vexdb/pkg/models"
)

// Store is the storage contract used by the query engine (narrow consumer
// view of the backend).
type Store interface {
	Schema(ctx context.Context, name string) (models.CollectionSchema, bool, error)
	Search(ctx context.Context, collection, field string, vector models.Vector, k int) ([]models.ScoredPoint, error)
}
