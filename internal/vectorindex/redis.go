package vectorindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	fieldID     = "id"
	fieldText   = "text"
	fieldVector = "vector"
	fieldScore  = "score"

	defaultEFConstruction = 200
	defaultM              = 16
)

type RedisConfig struct {
	// Prefix namespaces both index names and hash keys.
	Prefix    string
	Dimension int
}

// RedisIndex keeps one RediSearch HNSW index per collection over HASH keys.
// The client must speak RESP2; FT.SEARCH replies are parsed in that form.
type RedisIndex struct {
	client    *redis.Client
	prefix    string
	dimension int
}

func NewRedisIndex(client *redis.Client, cfg RedisConfig) (*RedisIndex, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("redis vector dimension must be positive")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "slides:vec:"
	}
	return &RedisIndex{client: client, prefix: prefix, dimension: cfg.Dimension}, nil
}

func (r *RedisIndex) EnsureCollection(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	exists, err := r.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	// FT.CREATE <idx> ON HASH PREFIX 1 <prefix><name>:
	//   SCHEMA vector VECTOR HNSW 10 TYPE FLOAT32 DIM <d> DISTANCE_METRIC COSINE EF_CONSTRUCTION 200 M 16
	//          id TAG text TEXT
	err = r.client.Do(ctx, "FT.CREATE", r.indexName(name),
		"ON", "HASH",
		"PREFIX", "1", r.keyPrefix(name),
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(r.dimension),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(defaultEFConstruction),
		"M", strconv.Itoa(defaultM),
		fieldID, "TAG",
		fieldText, "TEXT",
	).Err()
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "index already exists") {
		return fmt.Errorf("create redis index %s failed: %w", name, err)
	}
	return nil
}

func (r *RedisIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	err := r.client.Do(ctx, "FT.INFO", r.indexName(name)).Err()
	if err == nil {
		return true, nil
	}
	if isUnknownIndex(err) {
		return false, nil
	}
	return false, fmt.Errorf("redis index info %s failed: %w", name, err)
}

func (r *RedisIndex) Upsert(ctx context.Context, name string, records []Record) error {
	dim, err := validateRecords(records)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if dim != r.dimension {
		return fmt.Errorf("record dimension %d, redis indexes use %d", dim, r.dimension)
	}
	exists, err := r.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return notFound(name)
	}

	// MULTI/EXEC so a batch lands entirely or not at all.
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, rec := range records {
			pipe.HSet(ctx, r.keyPrefix(name)+rec.ID,
				fieldID, rec.ID,
				fieldText, rec.Text,
				fieldVector, encodeVector(rec.Vector),
			)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis upsert into %s failed: %w", name, err)
	}
	return nil
}

func (r *RedisIndex) Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	query := fmt.Sprintf("*=>[KNN %d @%s $vec AS %s]", topK, fieldVector, fieldScore)
	res, err := r.client.Do(ctx, "FT.SEARCH", r.indexName(name), query,
		"PARAMS", "2", "vec", encodeVector(vector),
		"SORTBY", fieldScore, "ASC",
		"RETURN", "3", fieldID, fieldText, fieldScore,
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, notFound(name)
		}
		return nil, fmt.Errorf("redis vector search in %s failed: %w", name, err)
	}
	return parseSearchReply(res)
}

func (r *RedisIndex) DeleteCollection(ctx context.Context, name string) error {
	err := r.client.Do(ctx, "FT.DROPINDEX", r.indexName(name), "DD").Err()
	if err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("drop redis index %s failed: %w", name, err)
	}
	return nil
}

func (r *RedisIndex) indexName(name string) string {
	return r.prefix + "idx:" + name
}

func (r *RedisIndex) keyPrefix(name string) string {
	return r.prefix + name + ":"
}

// parseSearchReply reads the RESP2 FT.SEARCH reply:
// [total, key1, [field, value, ...], key2, [...], ...].
// RediSearch reports cosine distance; it is converted back to similarity.
func parseSearchReply(res any) ([]Match, error) {
	values, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected FT.SEARCH reply %T", res)
	}
	out := make([]Match, 0, len(values)/2)
	for i := 1; i+1 < len(values); i += 2 {
		fields, ok := values[i+1].([]any)
		if !ok {
			continue
		}
		var m Match
		for j := 0; j+1 < len(fields); j += 2 {
			key, _ := fields[j].(string)
			val, _ := fields[j+1].(string)
			switch key {
			case fieldID:
				m.ID = val
			case fieldText:
				m.Text = val
			case fieldScore:
				dist, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, fmt.Errorf("parse score %q: %w", val, err)
				}
				m.Score = 1 - dist
			}
		}
		if m.ID == "" {
			m.ID, _ = values[i].(string)
		}
		out = append(out, m)
	}
	return out, nil
}

func isUnknownIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") ||
		strings.Contains(msg, "no such index") ||
		strings.Contains(msg, "not found")
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
