package memory

import (
	"math"

	"github.com/vexhub/vexdb/pkg/models"
)

// Score conversions mirror what the networked backend derives from FT.SEARCH
// distances, so rankings stay congruent across backends:
// cosine similarity clamped to [0,1], raw inner product, negated L2 distance.

func denseScore(metric models.Distance, query, stored []float32) float64 {
	switch metric {
	case models.DistanceCosine:
		return math.Max(0, cosineSimilarity(query, stored))
	case models.DistanceDot:
		return dotProduct(query, stored)
	case models.DistanceEuclid:
		return -euclideanDistance(query, stored)
	default:
		return 0
	}
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func dotProduct(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// sparseDot multiplies matching indices of two sparse vectors. Indices are
// unique within a vector, so a map lookup per query term is exact.
func sparseDot(query, stored models.SparseVector) float64 {
	weights := make(map[uint32]float64, len(stored.Indices))
	for i, idx := range stored.Indices {
		weights[idx] = float64(stored.Values[i])
	}

	var dot float64
	for i, idx := range query.Indices {
		if w, ok := weights[idx]; ok {
			dot += float64(query.Values[i]) * w
		}
	}
	return dot
}
