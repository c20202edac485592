package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/vexhub/vexdb/internal/db"
	"github.com/vexhub/vexdb/pkg/models"
)

// classifyIndexErr maps the RediSearch index state errors, which the server
// reports as bare strings, onto matchable sentinels. Translation happens once
// here; callers match with errors.Is.
func classifyIndexErr(err error) error {
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "unknown index name"):
		return fmt.Errorf("%w: %v", db.ErrIndexNotFound, err)
	case isRedisErr(err, "index already exists"):
		return fmt.Errorf("%w: %v", db.ErrIndexExists, err)
	default:
		return err
	}
}

// EnsureCollection persists the merged schema and keeps the FT index in step
// with its dense fields. The caller has already validated the merge, so any
// field present in the stored schema but missing from the argument is a
// programming error upstream and is left untouched here.
func (s *Store) EnsureCollection(ctx context.Context, name string, schema models.CollectionSchema) error {
	prev, _, err := s.Schema(ctx, name)
	if err != nil {
		return err
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema of %s: %w", name, err)
	}

	cmd := s.b().Hset().Key(metaKey(name)).FieldValue().FieldValue(metaSchemaField, string(data)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}

	return s.ensureIndex(ctx, name, prev, schema)
}

// Schema returns the bound schema; bound is false when the collection has
// never been written to.
func (s *Store) Schema(ctx context.Context, name string) (models.CollectionSchema, bool, error) {
	cmd := s.b().Hgetall().Key(metaKey(name)).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return models.CollectionSchema{}, false, &db.Error{Op: db.OpHGetAll, Err: err}
	}

	raw, ok := m[metaSchemaField]
	if !ok {
		return models.CollectionSchema{}, false, nil
	}

	var schema models.CollectionSchema
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return models.CollectionSchema{}, false, fmt.Errorf("decode schema of %s: %w", name, err)
	}
	return schema, !schema.IsZero(), nil
}

// CollectionExists checks the collection meta key.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Exists().Key(metaKey(name)).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return count > 0, nil
}

// DeleteCollection drops the FT index, every point hash, and the meta key.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(indexName(name)).Build()
	err := classifyIndexErr(s.do(ctx, cmd).Error())
	if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}

	keys, err := s.scan(ctx, docPrefix(name)+"*")
	if err != nil {
		return err
	}
	keys = append(keys, metaKey(name))

	del := s.b().Del().Key(keys...).Build()
	if err := s.do(ctx, del).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// ensureIndex creates the FT index on first dense field and alters it when
// later schema merges append dense fields.
func (s *Store) ensureIndex(ctx context.Context, name string, prev, next models.CollectionSchema) error {
	added := make([]string, 0, len(next.Dense))
	for field := range next.Dense {
		if _, ok := prev.Dense[field]; !ok {
			added = append(added, field)
		}
	}
	if len(added) == 0 {
		return nil
	}

	if len(prev.Dense) == 0 {
		return s.createIndex(ctx, name, next)
	}

	for _, field := range added {
		if err := s.alterIndexAdd(ctx, name, field, next.Dense[field]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createIndex(ctx context.Context, name string, schema models.CollectionSchema) error {
	args := []string{
		indexName(name),
		"ON", "HASH",
		"PREFIX", "1", docPrefix(name),
		"SCHEMA",
	}
	for field, params := range schema.Dense {
		args = append(args, vectorFieldArgs(field, params)...)
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := classifyIndexErr(s.do(ctx, cmd).Error()); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

func (s *Store) alterIndexAdd(ctx context.Context, name, field string, params models.VectorParams) error {
	args := []string{indexName(name), "SCHEMA", "ADD"}
	args = append(args, vectorFieldArgs(field, params)...)

	cmd := s.b().Arbitrary("FT.ALTER").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "duplicate field") {
			return nil
		}
		return &db.Error{Op: db.OpAlterIndex, Err: err}
	}
	return nil
}

// vectorFieldArgs renders one dense field as FT schema arguments. FLAT keeps
// the search exact, so rankings line up with the embedded backend.
func vectorFieldArgs(field string, params models.VectorParams) []string {
	return []string{
		field, "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(params.Dim),
		"DISTANCE_METRIC", redisMetric(params.Distance),
	}
}

func redisMetric(d models.Distance) string {
	switch d {
	case models.DistanceDot:
		return "IP"
	case models.DistanceEuclid:
		return "L2"
	default:
		return "COSINE"
	}
}
