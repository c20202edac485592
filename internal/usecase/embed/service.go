// Package embed converts documents and query texts into named vectors using
// the active model configuration. Pure computation: storage happens in the
// ingest usecase, search in the query usecase.
package embed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vexhub/vexdb/internal/registry"
	"github.com/vexhub/vexdb/pkg/models"
)

// Service is the embedding pipeline.
type Service struct {
	reg      *registry.Registry
	embedder TextEmbedder
}

// New creates an embedding pipeline. embedder may be nil; every call then
// fails fast with ErrEmbedderNotConfigured instead of degrading silently.
func New(reg *registry.Registry, embedder TextEmbedder) *Service {
	return &Service{reg: reg, embedder: embedder}
}

// EmbedDocuments turns a document batch into points carrying one vector per
// active model. The returned snapshot is the configuration the batch was
// embedded with; callers pass it on so schema derivation uses the exact same
// capture.
//
// metadata and ids are optional but must match len(texts) when given; ids
// must be unique within the batch. Auto-generated ids are UUID strings.
func (s *Service) EmbedDocuments(
	ctx context.Context, texts []string, metadata []map[string]any, ids []models.PointID,
) ([]models.Point, registry.Snapshot, error) {
	if s.embedder == nil {
		return nil, registry.Snapshot{}, fmt.Errorf(
			"embed documents: %w", models.ErrEmbedderNotConfigured,
		)
	}
	if metadata != nil && len(metadata) != len(texts) {
		return nil, registry.Snapshot{}, fmt.Errorf(
			"%w: %d documents but %d metadata entries",
			models.ErrInputMismatch, len(texts), len(metadata),
		)
	}
	if ids != nil {
		if len(ids) != len(texts) {
			return nil, registry.Snapshot{}, fmt.Errorf(
				"%w: %d documents but %d ids",
				models.ErrInputMismatch, len(texts), len(ids),
			)
		}
		if err := checkUniqueIDs(ids); err != nil {
			return nil, registry.Snapshot{}, err
		}
	}

	snap := s.reg.Snapshot()

	dense, err := s.embedder.EmbedDense(ctx, snap.Dense.Name, texts)
	if err != nil {
		return nil, registry.Snapshot{}, fmt.Errorf("embed documents with %s: %w", snap.Dense.Name, err)
	}
	if len(dense) != len(texts) {
		return nil, registry.Snapshot{}, fmt.Errorf(
			"%w: embedder returned %d dense vectors for %d documents",
			models.ErrInputMismatch, len(dense), len(texts),
		)
	}

	var sparse []models.SparseVector
	if snap.Sparse != nil {
		sparse, err = s.embedder.EmbedSparse(ctx, snap.Sparse.Name, texts)
		if err != nil {
			return nil, registry.Snapshot{}, fmt.Errorf(
				"embed documents with %s: %w", snap.Sparse.Name, err,
			)
		}
		if len(sparse) != len(texts) {
			return nil, registry.Snapshot{}, fmt.Errorf(
				"%w: embedder returned %d sparse vectors for %d documents",
				models.ErrInputMismatch, len(sparse), len(texts),
			)
		}
	}

	denseField := snap.DenseField()
	sparseField := snap.SparseField()

	points := make([]models.Point, len(texts))
	for i, text := range texts {
		if len(dense[i]) != snap.Dense.Dim {
			return nil, registry.Snapshot{}, fmt.Errorf(
				"embedder produced dim %d for model %s (catalog says %d): %w",
				len(dense[i]), snap.Dense.Name, snap.Dense.Dim, models.ErrSchemaMismatch,
			)
		}

		id := models.StrID(uuid.NewString())
		if ids != nil {
			id = ids[i]
		}

		vectors := map[string]models.Vector{denseField: models.DenseVector(dense[i])}
		if sparse != nil {
			if err := sparse[i].Validate(); err != nil {
				return nil, registry.Snapshot{}, fmt.Errorf("document %d: %w", i, err)
			}
			vectors[sparseField] = models.SparseVec(sparse[i])
		}

		payload := map[string]any{"document": text}
		if metadata != nil {
			for k, v := range metadata[i] {
				payload[k] = v
			}
		}

		points[i] = models.Point{ID: id, Vectors: vectors, Payload: payload}
	}

	return points, snap, nil
}

// EmbedQuery resolves one query text into a QuerySpec under the current
// configuration: a dense sub-query always, a sparse one when configured.
func (s *Service) EmbedQuery(ctx context.Context, text string, limit int) (models.QuerySpec, registry.Snapshot, error) {
	specs, snap, err := s.EmbedQueries(ctx, []string{text}, limit)
	if err != nil {
		return models.QuerySpec{}, registry.Snapshot{}, err
	}
	return specs[0], snap, nil
}

// EmbedQueries resolves a query batch. Each text is independent; output order
// matches input order exactly, which later congruence comparisons rely on.
func (s *Service) EmbedQueries(ctx context.Context, texts []string, limit int) ([]models.QuerySpec, registry.Snapshot, error) {
	if s.embedder == nil {
		return nil, registry.Snapshot{}, fmt.Errorf("embed queries: %w", models.ErrEmbedderNotConfigured)
	}

	snap := s.reg.Snapshot()

	dense, err := s.embedder.EmbedDense(ctx, snap.Dense.Name, texts)
	if err != nil {
		return nil, registry.Snapshot{}, fmt.Errorf("embed queries with %s: %w", snap.Dense.Name, err)
	}
	if len(dense) != len(texts) {
		return nil, registry.Snapshot{}, fmt.Errorf(
			"%w: embedder returned %d dense vectors for %d queries",
			models.ErrInputMismatch, len(dense), len(texts),
		)
	}

	var sparse []models.SparseVector
	if snap.Sparse != nil {
		sparse, err = s.embedder.EmbedSparse(ctx, snap.Sparse.Name, texts)
		if err != nil {
			return nil, registry.Snapshot{}, fmt.Errorf("embed queries with %s: %w", snap.Sparse.Name, err)
		}
		if len(sparse) != len(texts) {
			return nil, registry.Snapshot{}, fmt.Errorf(
				"%w: embedder returned %d sparse vectors for %d queries",
				models.ErrInputMismatch, len(sparse), len(texts),
			)
		}
	}

	specs := make([]models.QuerySpec, len(texts))
	for i := range texts {
		// Sub-query order is stable: dense first, then sparse.
		queries := []models.SubQuery{{Field: snap.DenseField(), Vector: models.DenseVector(dense[i])}}
		if sparse != nil {
			queries = append(queries, models.SubQuery{
				Field:  snap.SparseField(),
				Vector: models.SparseVec(sparse[i]),
			})
		}
		specs[i] = models.QuerySpec{Queries: queries, Fusion: models.FusionRRF, Limit: limit}
	}

	return specs, snap, nil
}

func checkUniqueIDs(ids []models.PointID) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			return fmt.Errorf("%w: empty id in batch", models.ErrInputMismatch)
		}
		key := id.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate id %s in batch", models.ErrInputMismatch, id)
		}
		seen[key] = struct{}{}
	}
	return nil
}
