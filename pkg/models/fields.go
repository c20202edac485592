package models

import "strings"

// Vector field names are derived from the model identifier so that a
// collection created with one model pair is never silently queried with
// another: "BAAI/bge-small-en" binds the dense field "fast-bge-small-en",
// "Qdrant/bm25" binds the sparse field "fast-sparse-bm25".

// DenseFieldName derives the default dense vector field name for a model.
func DenseFieldName(model string) string {
	return "fast-" + fieldSlug(model)
}

// SparseFieldName derives the default sparse vector field name for a model.
func SparseFieldName(model string) string {
	return "fast-sparse-" + fieldSlug(model)
}

// fieldSlug keeps the last path segment of the model identifier, lowercased,
// with anything outside [a-z0-9_-] replaced by '-'.
func fieldSlug(model string) string {
	if i := strings.LastIndexByte(model, '/'); i >= 0 {
		model = model[i+1:]
	}
	model = strings.ToLower(model)

	var b strings.Builder
	b.Grow(len(model))
	for _, r := range model {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
