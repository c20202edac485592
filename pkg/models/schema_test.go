package models

import (
	"errors"
	"testing"
)

func boundSchema() CollectionSchema {
	return CollectionSchema{
		Dense:  map[string]VectorParams{"fast-bge-small-en": {Dim: 4, Distance: DistanceCosine}},
		Sparse: map[string]SparseParams{"fast-sparse-bm25": {Modifier: ModifierIDF}},
	}
}

func TestCollectionSchema_ValidatePoint(t *testing.T) {
	schema := boundSchema()

	tests := []struct {
		name    string
		point   Point
		wantErr bool
	}{
		{
			"matching dense and sparse",
			Point{ID: NumID(1), Vectors: map[string]Vector{
				"fast-bge-small-en": DenseVector([]float32{1, 2, 3, 4}),
				"fast-sparse-bm25":  SparseVec(SparseVector{Indices: []uint32{1}, Values: []float32{1}}),
			}},
			false,
		},
		{
			"wrong dimension",
			Point{ID: NumID(1), Vectors: map[string]Vector{
				"fast-bge-small-en": DenseVector([]float32{1, 2}),
			}},
			true,
		},
		{
			"unknown dense field",
			Point{ID: NumID(1), Vectors: map[string]Vector{
				"fast-other": DenseVector([]float32{1, 2, 3, 4}),
			}},
			true,
		},
		{
			"sparse vector on dense field",
			Point{ID: NumID(1), Vectors: map[string]Vector{
				"fast-bge-small-en": SparseVec(SparseVector{Indices: []uint32{1}, Values: []float32{1}}),
			}},
			true,
		},
		{
			"dense vector on sparse field",
			Point{ID: NumID(1), Vectors: map[string]Vector{
				"fast-sparse-bm25": DenseVector([]float32{1, 2, 3, 4}),
			}},
			true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := schema.ValidatePoint(tc.point)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidatePoint() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrSchemaMismatch) {
				t.Errorf("error does not unwrap to ErrSchemaMismatch: %v", err)
			}
		})
	}
}

func TestCollectionSchema_Merge(t *testing.T) {
	schema := boundSchema()

	t.Run("identical is a no-op", func(t *testing.T) {
		merged, err := schema.Merge(boundSchema())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(merged.Dense) != 1 || len(merged.Sparse) != 1 {
			t.Errorf("unexpected merged schema: %+v", merged)
		}
	})

	t.Run("appends new field", func(t *testing.T) {
		merged, err := schema.Merge(CollectionSchema{
			Dense: map[string]VectorParams{"fast-bge-base-en-v1-5": {Dim: 768, Distance: DistanceCosine}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(merged.Dense) != 2 {
			t.Errorf("expected 2 dense fields, got %d", len(merged.Dense))
		}
		// Receiver untouched.
		if len(schema.Dense) != 1 {
			t.Error("merge mutated the receiver")
		}
	})

	t.Run("existing field geometry is immutable", func(t *testing.T) {
		_, err := schema.Merge(CollectionSchema{
			Dense: map[string]VectorParams{"fast-bge-small-en": {Dim: 8, Distance: DistanceCosine}},
		})
		if !errors.Is(err, ErrSchemaMismatch) {
			t.Fatalf("expected ErrSchemaMismatch, got %v", err)
		}
		var mismatch *SchemaMismatchError
		if !errors.As(err, &mismatch) || mismatch.Field != "fast-bge-small-en" {
			t.Errorf("unexpected mismatch detail: %v", err)
		}
	})

	t.Run("kind flip is a conflict", func(t *testing.T) {
		_, err := schema.Merge(CollectionSchema{
			Sparse: map[string]SparseParams{"fast-bge-small-en": {}},
		})
		if !errors.Is(err, ErrSchemaMismatch) {
			t.Fatalf("expected ErrSchemaMismatch, got %v", err)
		}
	})

	t.Run("sparse modifier is immutable", func(t *testing.T) {
		_, err := schema.Merge(CollectionSchema{
			Sparse: map[string]SparseParams{"fast-sparse-bm25": {Modifier: ModifierNone}},
		})
		if !errors.Is(err, ErrSchemaMismatch) {
			t.Fatalf("expected ErrSchemaMismatch, got %v", err)
		}
	})
}

func TestModelDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    ModelDescriptor
		wantErr bool
	}{
		{"dense ok", ModelDescriptor{Name: "m", Kind: KindDense, Dim: 384, Distance: DistanceCosine}, false},
		{"sparse ok", ModelDescriptor{Name: "m", Kind: KindSparse}, false},
		{"multivector ok", ModelDescriptor{Name: "m", Kind: KindMultivector, Dim: 128, Distance: DistanceCosine}, false},
		{"missing name", ModelDescriptor{Kind: KindDense, Dim: 384, Distance: DistanceCosine}, true},
		{"dense without dim", ModelDescriptor{Name: "m", Kind: KindDense, Distance: DistanceCosine}, true},
		{"dense without distance", ModelDescriptor{Name: "m", Kind: KindDense, Dim: 384}, true},
		{"sparse with dim", ModelDescriptor{Name: "m", Kind: KindSparse, Dim: 10}, true},
		{"bad kind", ModelDescriptor{Name: "m", Kind: "fuzzy", Dim: 1, Distance: DistanceCosine}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.desc.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
