// Package ingest writes embedded points into collections, binding each
// collection's vector schema from the model configuration that produced the
// points. A collection moves Uninitialized → SchemaBound exactly once, on its
// first successful upsert; every later write validates against the bound
// schema.
package ingest

import (
	"context"
	"fmt"

	"github.com/vexhub/vexdb/internal/registry"
	"github.com/vexhub/vexdb/pkg/models"
)

// Service is the point store adapter.
type Service struct {
	store Store
}

// New creates an ingest service.
func New(store Store) *Service {
	return &Service{store: store}
}

// Upsert validates the whole batch against the collection schema and writes
// it. All-or-nothing: any validation failure aborts the call before a single
// point reaches the store. snap is the model configuration the points were
// embedded with; it supplies the geometry when the schema is first bound.
func (s *Service) Upsert(
	ctx context.Context, collection string, points []models.Point, snap registry.Snapshot,
) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("upsert into %s: %w", collection, err)
		}
	}

	schema, bound, err := s.store.Schema(ctx, collection)
	if err != nil {
		return fmt.Errorf("read schema of %s: %w", collection, err)
	}

	derived, err := deriveSchema(points, schema, snap)
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}

	merged, err := schema.Merge(derived)
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}

	for _, p := range points {
		if err := merged.ValidatePoint(p); err != nil {
			return fmt.Errorf("upsert into %s: %w", collection, err)
		}
	}

	// Bind (or extend) the schema only after the whole batch validated.
	if !bound || len(merged.Dense) != len(schema.Dense) || len(merged.Sparse) != len(schema.Sparse) {
		if err := s.store.EnsureCollection(ctx, collection, merged); err != nil {
			return fmt.Errorf("bind schema of %s: %w", collection, err)
		}
	}

	if err := s.store.Upsert(ctx, collection, points); err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}
	return nil
}

// Count returns the number of points in a collection.
func (s *Service) Count(ctx context.Context, collection string) (int, error) {
	count, err := s.store.Count(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return count, nil
}

// Retrieve returns points by id in request order; missing ids are omitted.
func (s *Service) Retrieve(
	ctx context.Context, collection string, ids []models.PointID,
) ([]models.Point, error) {
	points, err := s.store.Retrieve(ctx, collection, ids)
	if err != nil {
		return nil, fmt.Errorf("retrieve from %s: %w", collection, err)
	}
	return points, nil
}

// deriveSchema resolves geometry for every vector field the batch touches.
// Fields already bound keep their geometry; new fields must be traceable to
// the active model snapshot. A field that is neither bound nor derivable is
// an implicitly introduced unknown, which is a schema mismatch.
func deriveSchema(
	points []models.Point, bound models.CollectionSchema, snap registry.Snapshot,
) (models.CollectionSchema, error) {
	denseField := snap.DenseField()
	sparseField := snap.SparseField()

	derived := models.CollectionSchema{}
	for _, p := range points {
		for field, v := range p.Vectors {
			if bound.HasField(field) {
				continue
			}
			switch {
			case !v.IsSparse() && field == denseField:
				if derived.Dense == nil {
					derived.Dense = make(map[string]models.VectorParams)
				}
				derived.Dense[field] = models.VectorParams{
					Dim:      snap.Dense.Dim,
					Distance: snap.Dense.Distance,
				}
			case v.IsSparse() && snap.Sparse != nil && field == sparseField:
				if derived.Sparse == nil {
					derived.Sparse = make(map[string]models.SparseParams)
				}
				derived.Sparse[field] = models.SparseParams{Modifier: snap.Sparse.Modifier}
			default:
				return models.CollectionSchema{}, &models.SchemaMismatchError{
					Field: field,
					Want:  "field bound in schema or derived from the active models",
					Got:   "unknown field",
				}
			}
		}
	}
	return derived, nil
}
