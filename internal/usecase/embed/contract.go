package embed

import (
	"context"

	"github.com/vexhub/vexdb/pkg/models"
)

// TextEmbedder is the model inference capability. Implementations run the
// actual forward pass (or call a remote provider); the pipeline never touches
// model weights itself.
type TextEmbedder interface {
	// EmbedDense returns one fixed-length vector per input text, in input
	// order, for the given dense model.
	EmbedDense(ctx context.Context, model string, texts []string) ([][]float32, error)

	// EmbedSparse returns one sparse vector per input text, in input order,
	// for the given sparse model.
	EmbedSparse(ctx context.Context, model string, texts []string) ([]models.SparseVector, error)
}
