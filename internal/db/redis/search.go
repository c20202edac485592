package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/vexhub/vexdb/internal/db"
	"github.com/vexhub/vexdb/pkg/models"
)

// Search runs a top-k search over one vector field. Dense fields go through
// FT.SEARCH KNN; sparse fields are scored client-side by dot product over the
// collection's point hashes. Both paths order by descending score with ties
// broken by ascending id, matching the embedded backend.
func (s *Store) Search(
	ctx context.Context, collection, field string, vector models.Vector, k int,
) ([]models.ScoredPoint, error) {
	if k <= 0 {
		return nil, fmt.Errorf("search %s: k must be positive", collection)
	}

	schema, bound, err := s.Schema(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !bound {
		return nil, fmt.Errorf("search %s: %w", collection, models.ErrCollectionNotFound)
	}

	if vector.IsSparse() {
		if _, ok := schema.Sparse[field]; !ok {
			return nil, fmt.Errorf("search %s: %q: %w", collection, field, models.ErrFieldNotFound)
		}
		return s.searchSparse(ctx, collection, field, *vector.Sparse, k)
	}

	params, ok := schema.Dense[field]
	if !ok {
		return nil, fmt.Errorf("search %s: %q: %w", collection, field, models.ErrFieldNotFound)
	}
	return s.searchKNN(ctx, collection, field, params.Distance, vector.Dense, k)
}

func (s *Store) searchKNN(
	ctx context.Context, collection, field string, metric models.Distance, vector []float32, k int,
) ([]models.ScoredPoint, error) {
	query := fmt.Sprintf("*=>[KNN %d @%s $BLOB AS dist]", k, field)

	args := []string{
		indexName(collection), query,
		"RETURN", "3", fieldID, fieldPayload, "dist",
		"SORTBY", "dist",
		"LIMIT", "0", strconv.Itoa(k),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	hits, err := parseKNNResult(raw, metric)
	if err != nil {
		return nil, err
	}
	sortHits(hits)
	return hits, nil
}

// searchSparse scans the collection and scores each point that carries the
// field. Hashes are fetched in pipelined batches to bound round-trips.
func (s *Store) searchSparse(
	ctx context.Context, collection, field string, query models.SparseVector, k int,
) ([]models.ScoredPoint, error) {
	keys, err := s.scan(ctx, docPrefix(collection)+"*")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	var hits []models.ScoredPoint
	const batch = 200
	for start := 0; start < len(keys); start += batch {
		end := min(start+batch, len(keys))

		cmds := make([]rueidis.Completed, end-start)
		for i, key := range keys[start:end] {
			cmds[i] = s.b().Hgetall().Key(key).Build()
		}

		for _, res := range s.client.DoMulti(ctx, cmds...) {
			m, err := res.AsStrMap()
			if err != nil {
				return nil, &db.Error{Op: db.OpHGetAll, Err: err}
			}

			raw, ok := m[field]
			if !ok {
				continue
			}
			stored := decodeVector(raw)
			if !stored.IsSparse() {
				continue
			}

			p, err := decodePoint(m)
			if err != nil {
				return nil, err
			}
			hits = append(hits, models.ScoredPoint{
				ID:      p.ID,
				Score:   sparseDot(query, *stored.Sparse),
				Payload: p.Payload,
			})
		}
	}

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func parseKNNResult(raw []rueidis.RedisMessage, metric models.Distance) ([]models.ScoredPoint, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	hits := make([]models.ScoredPoint, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		m := parseFieldPairs(fields)

		idKey, ok := m[fieldID]
		if !ok {
			continue
		}
		id, err := models.ParseKey(idKey)
		if err != nil {
			return nil, err
		}

		hit := models.ScoredPoint{ID: id}
		if distStr, ok := m["dist"]; ok {
			if dist, err := strconv.ParseFloat(distStr, 64); err == nil {
				hit.Score = distToScore(metric, dist)
			}
		}
		if payload, ok := m[fieldPayload]; ok {
			if err := json.Unmarshal([]byte(payload), &hit.Payload); err != nil {
				return nil, fmt.Errorf("decode payload of %s: %w", idKey, err)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// distToScore converts FT.SEARCH vector distances into the score convention
// shared with the embedded backend, so rank orderings match across backends.
func distToScore(metric models.Distance, dist float64) float64 {
	switch metric {
	case models.DistanceDot:
		return 1 - dist // IP distance is 1 - inner product
	case models.DistanceEuclid:
		return -math.Sqrt(dist) // L2 distance is reported squared
	default:
		return max(0, 1-dist) // cosine distance, clamped to [0,1]
	}
}

func sortHits(hits []models.ScoredPoint) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID.Less(hits[j].ID)
	})
}

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
