package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/redis/rueidis"

	"github.com/vexhub/vexdb/internal/db"
	"github.com/vexhub/vexdb/pkg/models"
)

// Upsert writes each point as one hash in a single DoMulti round-trip. A
// point hash is deleted before rewriting so stale vector fields from a
// previous version never survive the overwrite; the DEL and HSET run inside
// a MULTI/EXEC transaction so a concurrent reader sees either the previous
// point or the new one, never the gap between them.
func (s *Store) Upsert(ctx context.Context, collection string, points []models.Point) error {
	if len(points) == 0 {
		return nil
	}

	bound, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !bound {
		return fmt.Errorf("upsert into %s: %w", collection, models.ErrCollectionNotFound)
	}

	cmds := make([]rueidis.Completed, 0, cmdsPerPoint*len(points))
	for _, p := range points {
		key := docKey(collection, p.ID)
		fields, err := encodePoint(p)
		if err != nil {
			return fmt.Errorf("encode point %s: %w", p.ID, err)
		}

		hset := s.b().Hset().Key(key).FieldValue()
		for k, v := range fields {
			hset = hset.FieldValue(k, v)
		}
		cmds = append(cmds,
			s.b().Multi().Build(),
			s.b().Del().Key(key).Build(),
			hset.Build(),
			s.b().Exec().Build(),
		)
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: err}
		}
		// Queued command errors only surface in the EXEC reply.
		if i%cmdsPerPoint == cmdsPerPoint-1 {
			replies, err := res.ToArray()
			if err != nil {
				return &db.Error{Op: db.OpHSet, Err: err}
			}
			for _, reply := range replies {
				if err := reply.Error(); err != nil {
					return &db.Error{Op: db.OpHSet, Err: err}
				}
			}
		}
	}
	return nil
}

// cmdsPerPoint is the MULTI, DEL, HSET, EXEC quartet Upsert issues per point.
const cmdsPerPoint = 4

// Retrieve fetches points in request order, omitting missing ids.
func (s *Store) Retrieve(ctx context.Context, collection string, ids []models.PointID) ([]models.Point, error) {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("retrieve from %s: %w", collection, models.ErrCollectionNotFound)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(ids))
	for i, id := range ids {
		cmds[i] = s.b().Hgetall().Key(docKey(collection, id)).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	points := make([]models.Point, 0, len(ids))
	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: err}
		}
		if len(m) == 0 {
			continue // missing id
		}
		p, err := decodePoint(m)
		if err != nil {
			return nil, fmt.Errorf("decode point %s: %w", ids[i], err)
		}
		points = append(points, p)
	}
	return points, nil
}

// Count scans the collection's document prefix.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("count %s: %w", collection, models.ErrCollectionNotFound)
	}

	keys, err := s.scan(ctx, docPrefix(collection)+"*")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// encodePoint flattens a point into hash fields: dense vectors as little-
// endian float32 blobs under their field name, sparse vectors as JSON,
// payload as JSON under a reserved field.
func encodePoint(p models.Point) (map[string]string, error) {
	fields := map[string]string{fieldID: p.ID.Key()}

	for name, v := range p.Vectors {
		if v.IsSparse() {
			data, err := json.Marshal(v.Sparse)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			fields[name] = string(data)
			continue
		}
		fields[name] = vectorToBytes(v.Dense)
	}

	if p.Payload != nil {
		data, err := json.Marshal(p.Payload)
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		fields[fieldPayload] = string(data)
	}
	return fields, nil
}

// decodePoint reverses encodePoint. Vector kind is recovered from the value
// shape: sparse fields are JSON objects, dense fields are raw float32 blobs.
func decodePoint(fields map[string]string) (models.Point, error) {
	idKey, ok := fields[fieldID]
	if !ok {
		return models.Point{}, fmt.Errorf("point hash has no id field")
	}
	id, err := models.ParseKey(idKey)
	if err != nil {
		return models.Point{}, err
	}

	p := models.Point{ID: id, Vectors: make(map[string]models.Vector)}

	for name, value := range fields {
		switch name {
		case fieldID:
		case fieldPayload:
			if err := json.Unmarshal([]byte(value), &p.Payload); err != nil {
				return models.Point{}, fmt.Errorf("payload: %w", err)
			}
		default:
			p.Vectors[name] = decodeVector(value)
		}
	}
	return p, nil
}

func decodeVector(value string) models.Vector {
	if len(value) > 0 && value[0] == '{' {
		var sv models.SparseVector
		if err := json.Unmarshal([]byte(value), &sv); err == nil {
			return models.SparseVec(sv)
		}
	}
	return models.DenseVector(bytesToVector(value))
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func bytesToVector(s string) []float32 {
	v := make([]float32, len(s)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return v
}
