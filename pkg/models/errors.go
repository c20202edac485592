package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownModel signals an unregistered model identifier.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnsupportedOperation signals an operation the target model or query
	// shape cannot support.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrSchemaMismatch signals vector geometry conflicting with a bound
	// collection schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInputMismatch signals batch inputs of inconsistent lengths.
	ErrInputMismatch = errors.New("input length mismatch")
	// ErrCollectionNotFound signals a query against a collection that has no
	// bound schema yet.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrFieldNotFound signals a query against an undeclared vector field.
	ErrFieldNotFound = errors.New("vector field not found")
	// ErrEmbedderNotConfigured signals a missing embedding capability.
	ErrEmbedderNotConfigured = errors.New("embedder not configured")
	// ErrModelConflict signals re-registration of a model with different geometry.
	ErrModelConflict = errors.New("model already registered with different geometry")
	// ErrEmbeddingProvider signals a failed call to the embedding provider.
	ErrEmbeddingProvider = errors.New("embedding provider error")
)

// SchemaMismatchError wraps ErrSchemaMismatch with the offending field.
type SchemaMismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: field %q: want %s, got %s", ErrSchemaMismatch.Error(), e.Field, e.Want, e.Got)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }
