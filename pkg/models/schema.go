package models

import "fmt"

// VectorParams is the bound geometry of a dense vector field.
type VectorParams struct {
	Dim      int      `json:"dim"`
	Distance Distance `json:"distance"`
}

// SparseParams is the bound configuration of a sparse vector field.
type SparseParams struct {
	Modifier Modifier `json:"modifier,omitempty"`
}

// CollectionSchema maps vector field names to their geometry. A collection
// starts unbound; the first successful upsert binds a schema derived from the
// active models. Bound fields are immutable, new field names may be appended.
type CollectionSchema struct {
	Dense  map[string]VectorParams `json:"dense,omitempty"`
	Sparse map[string]SparseParams `json:"sparse,omitempty"`
}

// IsZero reports whether no fields are bound.
func (s CollectionSchema) IsZero() bool {
	return len(s.Dense) == 0 && len(s.Sparse) == 0
}

// Clone returns a deep copy.
func (s CollectionSchema) Clone() CollectionSchema {
	out := CollectionSchema{}
	if len(s.Dense) > 0 {
		out.Dense = make(map[string]VectorParams, len(s.Dense))
		for k, v := range s.Dense {
			out.Dense[k] = v
		}
	}
	if len(s.Sparse) > 0 {
		out.Sparse = make(map[string]SparseParams, len(s.Sparse))
		for k, v := range s.Sparse {
			out.Sparse[k] = v
		}
	}
	return out
}

// HasField reports whether the field name is bound under either kind.
func (s CollectionSchema) HasField(name string) bool {
	if _, ok := s.Dense[name]; ok {
		return true
	}
	_, ok := s.Sparse[name]
	return ok
}

// ValidatePoint checks every vector on the point against the bound schema.
func (s CollectionSchema) ValidatePoint(p Point) error {
	for field, v := range p.Vectors {
		if v.IsSparse() {
			if _, ok := s.Sparse[field]; !ok {
				if _, dense := s.Dense[field]; dense {
					return &SchemaMismatchError{
						Field: field, Want: "dense vector", Got: "sparse vector",
					}
				}
				return &SchemaMismatchError{Field: field, Want: "declared sparse field", Got: "unknown field"}
			}
			continue
		}
		params, ok := s.Dense[field]
		if !ok {
			if _, sparse := s.Sparse[field]; sparse {
				return &SchemaMismatchError{
					Field: field, Want: "sparse vector", Got: "dense vector",
				}
			}
			return &SchemaMismatchError{Field: field, Want: "declared dense field", Got: "unknown field"}
		}
		if len(v.Dense) != params.Dim {
			return &SchemaMismatchError{
				Field: field,
				Want:  fmt.Sprintf("dim %d", params.Dim),
				Got:   fmt.Sprintf("dim %d", len(v.Dense)),
			}
		}
	}
	return nil
}

// Merge appends the other schema's fields and returns the result. Fields
// present in both must declare identical geometry; a conflict fails with
// SchemaMismatchError and leaves the receiver untouched.
func (s CollectionSchema) Merge(other CollectionSchema) (CollectionSchema, error) {
	out := s.Clone()
	for field, params := range other.Dense {
		if _, sparse := out.Sparse[field]; sparse {
			return CollectionSchema{}, &SchemaMismatchError{
				Field: field, Want: "sparse vector", Got: "dense vector",
			}
		}
		existing, ok := out.Dense[field]
		if !ok {
			if out.Dense == nil {
				out.Dense = make(map[string]VectorParams)
			}
			out.Dense[field] = params
			continue
		}
		if existing != params {
			return CollectionSchema{}, &SchemaMismatchError{
				Field: field,
				Want:  fmt.Sprintf("dim %d distance %s", existing.Dim, existing.Distance),
				Got:   fmt.Sprintf("dim %d distance %s", params.Dim, params.Distance),
			}
		}
	}
	for field, params := range other.Sparse {
		if _, dense := out.Dense[field]; dense {
			return CollectionSchema{}, &SchemaMismatchError{
				Field: field, Want: "dense vector", Got: "sparse vector",
			}
		}
		existing, ok := out.Sparse[field]
		if !ok {
			if out.Sparse == nil {
				out.Sparse = make(map[string]SparseParams)
			}
			out.Sparse[field] = params
			continue
		}
		if existing != params {
			return CollectionSchema{}, &SchemaMismatchError{
				Field: field,
				Want:  fmt.Sprintf("modifier %q", existing.Modifier),
				Got:   fmt.Sprintf("modifier %q", params.Modifier),
			}
		}
	}
	return out, nil
}
