package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PointID identifies a point within a collection.
// Either numeric or string; the zero value is no id at all.
type PointID struct {
	num   uint64
	str   string
	isNum bool
	set   bool
}

// NumID creates a numeric point id.
func NumID(n uint64) PointID {
	return PointID{num: n, isNum: true, set: true}
}

// StrID creates a string point id.
func StrID(s string) PointID {
	return PointID{str: s, set: true}
}

// IsZero reports whether the id is unset.
func (id PointID) IsZero() bool { return !id.set }

// IsNum reports whether the id is numeric.
func (id PointID) IsNum() bool { return id.isNum }

// Num returns the numeric value (0 for string ids).
func (id PointID) Num() uint64 { return id.num }

// Str returns the string value (empty for numeric ids).
func (id PointID) Str() string { return id.str }

// String renders the id for display.
func (id PointID) String() string {
	if id.isNum {
		return strconv.FormatUint(id.num, 10)
	}
	return id.str
}

// Key returns an unambiguous storage key: numeric ids as "n<value>",
// string ids as "s<value>". Both backends key points by this form.
func (id PointID) Key() string {
	if id.isNum {
		return "n" + strconv.FormatUint(id.num, 10)
	}
	return "s" + id.str
}

// ParseKey reverses Key.
func ParseKey(key string) (PointID, error) {
	if len(key) < 2 {
		return PointID{}, fmt.Errorf("malformed point key %q", key)
	}
	switch key[0] {
	case 'n':
		n, err := strconv.ParseUint(key[1:], 10, 64)
		if err != nil {
			return PointID{}, fmt.Errorf("malformed numeric point key %q: %w", key, err)
		}
		return NumID(n), nil
	case 's':
		return StrID(key[1:]), nil
	default:
		return PointID{}, fmt.Errorf("malformed point key %q", key)
	}
}

// Less imposes a total order on ids: numeric ids sort before string ids,
// numeric by value, string lexicographically. Used for deterministic
// tie-breaking in fused rankings.
func (id PointID) Less(other PointID) bool {
	if id.isNum != other.isNum {
		return id.isNum
	}
	if id.isNum {
		return id.num < other.num
	}
	return strings.Compare(id.str, other.str) < 0
}

// MarshalJSON encodes numeric ids as JSON numbers and string ids as strings.
func (id PointID) MarshalJSON() ([]byte, error) {
	if id.isNum {
		return json.Marshal(id.num)
	}
	return json.Marshal(id.str)
}

// UnmarshalJSON accepts either a JSON number or a string.
func (id *PointID) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = NumID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("point id must be an unsigned integer or a string: %w", err)
	}
	*id = StrID(s)
	return nil
}

// SparseVector is a term-weighted vector: parallel index/value lists,
// indices unique within the vector.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Validate checks list lengths and index uniqueness.
func (v SparseVector) Validate() error {
	if len(v.Indices) != len(v.Values) {
		return fmt.Errorf("sparse vector has %d indices but %d values", len(v.Indices), len(v.Values))
	}
	seen := make(map[uint32]struct{}, len(v.Indices))
	for _, idx := range v.Indices {
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("sparse vector has duplicate index %d", idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

// Vector is a single named-field vector payload: exactly one of Dense or
// Sparse is set.
type Vector struct {
	Dense  []float32     `json:"dense,omitempty"`
	Sparse *SparseVector `json:"sparse,omitempty"`
}

// DenseVector wraps a dense payload.
func DenseVector(values []float32) Vector {
	return Vector{Dense: values}
}

// SparseVec wraps a sparse payload.
func SparseVec(v SparseVector) Vector {
	return Vector{Sparse: &v}
}

// IsSparse reports whether the vector carries a sparse payload.
func (v Vector) IsSparse() bool { return v.Sparse != nil }

// IsZero reports whether the vector carries no payload at all.
func (v Vector) IsZero() bool { return v.Dense == nil && v.Sparse == nil }

// Point is a uniquely-identified record in a collection: named vectors plus
// an arbitrary payload (document text and metadata).
type Point struct {
	ID      PointID
	Vectors map[string]Vector
	Payload map[string]any
}

// Validate checks id presence and per-vector consistency.
func (p Point) Validate() error {
	if p.ID.IsZero() {
		return fmt.Errorf("point id is required")
	}
	if len(p.Vectors) == 0 {
		return fmt.Errorf("point %s has no vectors", p.ID)
	}
	for field, v := range p.Vectors {
		if v.IsZero() {
			return fmt.Errorf("point %s field %q has an empty vector", p.ID, field)
		}
		if v.Sparse != nil {
			if err := v.Sparse.Validate(); err != nil {
				return fmt.Errorf("point %s field %q: %w", p.ID, field, err)
			}
		}
	}
	return nil
}
