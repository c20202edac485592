package query

import (
	"sort"

	"github.com/vexhub/vexdb/pkg/models"
)

// DefaultRRFK is the Reciprocal Rank Fusion constant (standard value from
// Cormack et al. 2009). Tunable via Config, never hard-coded at call sites.
const DefaultRRFK = 60

// fuseRRF merges the ranked lists of all sub-queries into one ordering.
// score(p) = sum over lists of 1/(k + rank_p), rank 1-based; a list that does
// not contain p contributes nothing. A single list is the degenerate case of
// the same procedure: its raw scores pass through unchanged, so single-field
// and fused queries agree where they overlap. Ties break on ascending point
// id so both backends produce identical orderings.
func fuseRRF(fields []string, lists [][]models.ScoredPoint, limit, rrfK int) []models.RankedResult {
	if len(lists) == 1 {
		return passthrough(fields[0], lists[0], limit)
	}

	type fused struct {
		result models.RankedResult
	}
	merged := make(map[string]*fused)

	for li, list := range lists {
		field := fields[li]
		for rank, hit := range list {
			contribution := 1.0 / float64(rrfK+rank+1)
			key := hit.ID.Key()

			f, ok := merged[key]
			if !ok {
				f = &fused{result: models.RankedResult{
					ID:        hit.ID,
					SubScores: make(map[string]float64, len(lists)),
					Payload:   hit.Payload,
				}}
				merged[key] = f
			}
			f.result.Score += contribution
			f.result.SubScores[field] = hit.Score
			if f.result.Payload == nil {
				f.result.Payload = hit.Payload
			}
		}
	}

	results := make([]models.RankedResult, 0, len(merged))
	for _, f := range merged {
		results = append(results, f.result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID.Less(results[j].ID)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// passthrough keeps the sub-query's own metric scores and ordering.
func passthrough(field string, list []models.ScoredPoint, limit int) []models.RankedResult {
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	results := make([]models.RankedResult, len(list))
	for i, hit := range list {
		results[i] = models.RankedResult{
			ID:        hit.ID,
			Score:     hit.Score,
			SubScores: map[string]float64{field: hit.Score},
			Payload:   hit.Payload,
		}
	}
	return results
}
