package models

// Fusion selects how multiple sub-query rankings are combined.
type Fusion string

const (
	// FusionRRF combines rankings via reciprocal rank fusion.
	FusionRRF Fusion = "rrf"
)

// SubQuery is one named-field nearest-neighbor search.
type SubQuery struct {
	Field  string
	Vector Vector
}

// QuerySpec is a fully-resolved query against one collection: one or more
// sub-queries plus fusion settings. Produced by the embedding pipeline from a
// raw query text and the active model configuration.
type QuerySpec struct {
	Queries []SubQuery
	Fusion  Fusion
	Limit   int
}

// ScoredPoint is a raw sub-search hit: point id, metric score, payload.
type ScoredPoint struct {
	ID      PointID
	Score   float64
	Payload map[string]any
}

// RankedResult is one entry of a fused result list. Score carries the fused
// value (or the raw metric score for single-field queries); SubScores keeps
// the per-field raw scores for diagnostics. Never persisted.
type RankedResult struct {
	ID        PointID
	Score     float64
	SubScores map[string]float64
	Payload   map[string]any
}
