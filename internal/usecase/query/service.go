// Package query executes named-vector sub-queries against a collection and
// fuses their rankings into a single deterministic result list.
package query

import (
	"context"
	"fmt"

	"github.com/vexhub/vexdb/pkg/models"
)

// DefaultOversampling is the factor applied to the result limit when sizing
// each sub-query's top-k, improving fusion recall.
const DefaultOversampling = 2

// Config holds the fusion tuning knobs.
type Config struct {
	// RRFK is the reciprocal rank fusion constant; DefaultRRFK when zero.
	RRFK int
	// Oversampling multiplies the limit to size per-field sub-searches;
	// DefaultOversampling when zero.
	Oversampling int
}

func (c Config) withDefaults() Config {
	if c.RRFK <= 0 {
		c.RRFK = DefaultRRFK
	}
	if c.Oversampling <= 0 {
		c.Oversampling = DefaultOversampling
	}
	return c
}

// Service is the hybrid query engine.
type Service struct {
	store Store
	cfg   Config
}

// New creates a query service.
func New(store Store, cfg Config) *Service {
	return &Service{store: store, cfg: cfg.withDefaults()}
}

// Query runs every sub-query of the spec and fuses the rankings. A query
// against an unbound collection or an undeclared field fails, so callers can
// tell misconfiguration apart from "no matches".
func (s *Service) Query(
	ctx context.Context, collection string, spec models.QuerySpec,
) ([]models.RankedResult, error) {
	if len(spec.Queries) == 0 {
		return nil, fmt.Errorf("%w: query needs at least one sub-query", models.ErrUnsupportedOperation)
	}
	if spec.Limit <= 0 {
		return nil, fmt.Errorf("query %s: limit must be positive", collection)
	}

	schema, bound, err := s.store.Schema(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("read schema of %s: %w", collection, err)
	}
	if !bound {
		return nil, fmt.Errorf("query %s: %w", collection, models.ErrCollectionNotFound)
	}
	for _, sub := range spec.Queries {
		if err := validateSubQuery(schema, sub); err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
	}

	k := spec.Limit * s.cfg.Oversampling

	fields := make([]string, len(spec.Queries))
	lists := make([][]models.ScoredPoint, len(spec.Queries))
	for i, sub := range spec.Queries {
		hits, err := s.store.Search(ctx, collection, sub.Field, sub.Vector, k)
		if err != nil {
			return nil, fmt.Errorf("search %s/%s: %w", collection, sub.Field, err)
		}
		fields[i] = sub.Field
		lists[i] = hits
	}

	return fuseRRF(fields, lists, spec.Limit, s.cfg.RRFK), nil
}

// QueryBatch runs independent queries and returns one result list per spec,
// in spec order.
func (s *Service) QueryBatch(
	ctx context.Context, collection string, specs []models.QuerySpec,
) ([][]models.RankedResult, error) {
	out := make([][]models.RankedResult, len(specs))
	for i, spec := range specs {
		results, err := s.Query(ctx, collection, spec)
		if err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i, err)
		}
		out[i] = results
	}
	return out, nil
}

func validateSubQuery(schema models.CollectionSchema, sub models.SubQuery) error {
	if sub.Vector.IsZero() {
		return fmt.Errorf("sub-query %q has no vector", sub.Field)
	}
	if sub.Vector.IsSparse() {
		if _, ok := schema.Sparse[sub.Field]; !ok {
			if _, dense := schema.Dense[sub.Field]; dense {
				return &models.SchemaMismatchError{Field: sub.Field, Want: "dense query vector", Got: "sparse query vector"}
			}
			return fmt.Errorf("%q: %w", sub.Field, models.ErrFieldNotFound)
		}
		return nil
	}
	params, ok := schema.Dense[sub.Field]
	if !ok {
		if _, sparse := schema.Sparse[sub.Field]; sparse {
			return &models.SchemaMismatchError{Field: sub.Field, Want: "sparse query vector", Got: "dense query vector"}
		}
		return fmt.Errorf("%q: %w", sub.Field, models.ErrFieldNotFound)
	}
	if len(sub.Vector.Dense) != params.Dim {
		return &models.SchemaMismatchError{
			Field: sub.Field,
			Want:  fmt.Sprintf("dim %d", params.Dim),
			Got:   fmt.Sprintf("dim %d", len(sub.Vector.Dense)),
		}
	}
	return nil
}
