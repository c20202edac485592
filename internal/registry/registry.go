// Package registry is the process-wide model registry: it maps model
// identifiers to their vector geometry and tracks which dense and sparse
// models are active for the default vector fields.
package registry

import (
	"fmt"
	"sync"

	"github.com/vexhub/vexdb/pkg/models"
)

// Registry holds the model catalog and the active model selection.
// Safe for concurrent use; embed and query paths read it only through
// Snapshot so a call never observes a mid-flight model switch.
type Registry struct {
	mu     sync.RWMutex
	models map[string]models.ModelDescriptor
	dense  string
	sparse string
}

// New creates a registry seeded with the builtin catalog and the default
// dense model active, sparse disabled.
func New() *Registry {
	return &Registry{
		models: builtinCatalog(),
		dense:  DefaultDenseModel,
	}
}

// Get resolves a model identifier to its descriptor.
func (r *Registry) Get(name string) (models.ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.models[name]
	if !ok {
		return models.ModelDescriptor{}, fmt.Errorf("%w: %q", models.ErrUnknownModel, name)
	}
	return d, nil
}

// Register adds a model descriptor to the catalog, or returns the existing
// one when the same geometry is already registered. Re-registering an
// identifier with different geometry fails with ErrModelConflict.
func (r *Registry) Register(d models.ModelDescriptor) (models.ModelDescriptor, error) {
	if err := d.Validate(); err != nil {
		return models.ModelDescriptor{}, fmt.Errorf("register model: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.models[d.Name]
	if !ok {
		r.models[d.Name] = d
		return d, nil
	}
	if !existing.Equal(d) {
		return models.ModelDescriptor{}, fmt.Errorf("%w: %q", models.ErrModelConflict, d.Name)
	}
	return existing, nil
}

// SetDense switches the active dense model. The model must be registered and
// of dense kind; multivector models are not supported for the default field.
func (r *Registry) SetDense(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.models[name]
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownModel, name)
	}
	if d.Kind != models.KindDense {
		return fmt.Errorf("%w: %q is a %s model, the default dense field requires a dense model",
			models.ErrUnsupportedOperation, name, d.Kind)
	}
	r.dense = name
	return nil
}

// SetSparse switches the active sparse model. An empty name disables sparse
// vectors entirely; subsequent embed and query calls fall back to dense-only.
func (r *Registry) SetSparse(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		r.sparse = ""
		return nil
	}
	d, ok := r.models[name]
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownModel, name)
	}
	if d.Kind != models.KindSparse {
		return fmt.Errorf("%w: %q is a %s model, the sparse field requires a sparse model",
			models.ErrUnsupportedOperation, name, d.Kind)
	}
	r.sparse = name
	return nil
}

// DimensionOf returns the fixed embedding size of a dense or multivector model.
func (r *Registry) DimensionOf(name string) (int, error) {
	d, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	if d.Kind == models.KindSparse {
		return 0, fmt.Errorf(
			"%w: sparse embeddings do not return a fixed embedding size and distance type",
			models.ErrUnsupportedOperation,
		)
	}
	return d.Dim, nil
}

// Snapshot is an immutable capture of the active model configuration,
// taken once at call entry by every embed and query operation.
type Snapshot struct {
	Dense  models.ModelDescriptor
	Sparse *models.ModelDescriptor
}

// DenseField returns the dense vector field name of the snapshot.
func (s Snapshot) DenseField() string {
	return models.DenseFieldName(s.Dense.Name)
}

// SparseField returns the sparse vector field name, or "" when sparse is
// disabled.
func (s Snapshot) SparseField() string {
	if s.Sparse == nil {
		return ""
	}
	return models.SparseFieldName(s.Sparse.Name)
}

// Snapshot captures the active configuration atomically.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{Dense: r.models[r.dense]}
	if r.sparse != "" {
		d := r.models[r.sparse]
		snap.Sparse = &d
	}
	return snap
}

// ActiveDense returns the active dense model identifier.
func (r *Registry) ActiveDense() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dense
}
