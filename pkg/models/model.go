// Package models holds the public domain types of vexdb: model descriptors,
// points, vectors, collection schemas, query specs, and the error taxonomy.
package models

import "fmt"

// ModelKind classifies the vector representation a model produces.
type ModelKind string

const (
	// KindDense produces fixed-length float vectors.
	KindDense ModelKind = "dense"
	// KindSparse produces variable-length (index, weight) vectors.
	KindSparse ModelKind = "sparse"
	// KindMultivector produces one fixed-length vector per token (late interaction).
	KindMultivector ModelKind = "multivector"
)

// IsValid checks if the model kind is supported.
func (k ModelKind) IsValid() bool {
	return k == KindDense || k == KindSparse || k == KindMultivector
}

// Distance is the similarity metric of a dense vector space.
type Distance string

const (
	// DistanceCosine scores by cosine similarity.
	DistanceCosine Distance = "cosine"
	// DistanceDot scores by inner product.
	DistanceDot Distance = "dot"
	// DistanceEuclid scores by (negated) Euclidean distance.
	DistanceEuclid Distance = "euclid"
)

// IsValid checks if the distance metric is supported.
func (d Distance) IsValid() bool {
	return d == DistanceCosine || d == DistanceDot || d == DistanceEuclid
}

// Datatype is the storage element type hint for a vector.
type Datatype string

const (
	// DatatypeFloat32 stores vector elements as float32 (the default).
	DatatypeFloat32 Datatype = "float32"
	// DatatypeUint8 stores vector elements as uint8 (quantized models).
	DatatypeUint8 Datatype = "uint8"
)

// Modifier adjusts sparse weights at query time.
type Modifier string

const (
	// ModifierNone applies no weight adjustment.
	ModifierNone Modifier = ""
	// ModifierIDF rescales term weights by inverse document frequency.
	ModifierIDF Modifier = "idf"
)

// ModelDescriptor is the immutable geometry of a registered embedding model.
// Dim and Distance are meaningful for dense and multivector models only.
type ModelDescriptor struct {
	Name     string
	Kind     ModelKind
	Dim      int
	Distance Distance
	Datatype Datatype
	Modifier Modifier
}

// Validate checks descriptor consistency for registration.
func (d ModelDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if !d.Kind.IsValid() {
		return fmt.Errorf("invalid model kind: %q", d.Kind)
	}
	switch d.Kind {
	case KindSparse:
		if d.Dim != 0 {
			return fmt.Errorf("sparse model %s must not declare a dimension", d.Name)
		}
	default:
		if d.Dim <= 0 {
			return fmt.Errorf("model %s must declare a positive dimension", d.Name)
		}
		if !d.Distance.IsValid() {
			return fmt.Errorf("model %s has invalid distance metric: %q", d.Name, d.Distance)
		}
	}
	return nil
}

// Equal reports whether two descriptors declare the same geometry.
func (d ModelDescriptor) Equal(other ModelDescriptor) bool {
	return d.Name == other.Name &&
		d.Kind == other.Kind &&
		d.Dim == other.Dim &&
		d.Distance == other.Distance &&
		d.Datatype == other.Datatype &&
		d.Modifier == other.Modifier
}
