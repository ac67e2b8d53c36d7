package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	qdrantMaxErrorBody = 512
	payloadRecordID    = "record_id"
	payloadText        = "text"
)

var pointIDNamespace = uuid.MustParse("6f1c3a52-8d2e-4b7a-9c15-3e0f2a9d4b61")

type QdrantConfig struct {
	URL       string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// QdrantError carries the failing operation and HTTP status.
type QdrantError struct {
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *QdrantError) Error() string {
	if e.Cause != nil && e.Message == "" {
		return fmt.Sprintf("qdrant %s failed (status=%d): %v", e.Operation, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("qdrant %s failed (status=%d): %s", e.Operation, e.StatusCode, e.Message)
}

func (e *QdrantError) Unwrap() error {
	return e.Cause
}

// QdrantIndex maps each collection name to one Qdrant collection over the REST API.
type QdrantIndex struct {
	baseURL   string
	apiKey    string
	dimension int
	http      *http.Client
}

type qdrantEnvelope struct {
	Status json.RawMessage `json:"status"`
	Result json.RawMessage `json:"result"`
}

type qdrantSearchHit struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("qdrant url required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("qdrant vector dimension must be positive")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		baseURL:   base,
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

func (q *QdrantIndex) EnsureCollection(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	exists, err := q.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}
	status, err := q.doJSON(ctx, "create_collection", http.MethodPut, q.collectionPath(name, ""), body, nil)
	// another writer created it between the check and the PUT
	if status == http.StatusConflict {
		return nil
	}
	return err
}

func (q *QdrantIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	status, err := q.doJSON(ctx, "get_collection", http.MethodGet, q.collectionPath(name, ""), nil, nil)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, name string, records []Record) error {
	dim, err := validateRecords(records)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if dim != q.dimension {
		return fmt.Errorf("record dimension %d, qdrant collections use %d", dim, q.dimension)
	}

	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":     q.pointID(name, r.ID),
			"vector": r.Vector,
			"payload": map[string]any{
				payloadRecordID: r.ID,
				payloadText:     r.Text,
			},
		}
	}
	status, err := q.doJSON(ctx, "upsert", http.MethodPut, q.collectionPath(name, "/points?wait=true"), map[string]any{"points": points}, nil)
	if status == http.StatusNotFound {
		return notFound(name)
	}
	return err
}

func (q *QdrantIndex) Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var hits []qdrantSearchHit
	status, err := q.doJSON(ctx, "search", http.MethodPost, q.collectionPath(name, "/points/search"), req, &hits)
	if status == http.StatusNotFound {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		m := Match{Score: h.Score}
		if v, ok := h.Payload[payloadRecordID].(string); ok {
			m.ID = v
		} else {
			m.ID = strings.Trim(string(h.ID), `"`)
		}
		if v, ok := h.Payload[payloadText].(string); ok {
			m.Text = v
		}
		out = append(out, m)
	}
	return out, nil
}

func (q *QdrantIndex) DeleteCollection(ctx context.Context, name string) error {
	status, err := q.doJSON(ctx, "delete_collection", http.MethodDelete, q.collectionPath(name, ""), nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

// doJSON returns the HTTP status alongside the error so callers can map 404/409.
func (q *QdrantIndex) doJSON(ctx context.Context, op, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return 0, &QdrantError{Operation: op, Message: "encode request failed", Cause: err}
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return 0, &QdrantError{Operation: op, Message: "build request failed", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.http.Do(req)
	if err != nil {
		return 0, &QdrantError{Operation: op, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &QdrantError{Operation: op, StatusCode: resp.StatusCode, Message: "read response failed", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &QdrantError{Operation: op, StatusCode: resp.StatusCode, Message: truncateBody(raw)}
	}
	if out == nil {
		return resp.StatusCode, nil
	}

	var env qdrantEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, &QdrantError{Operation: op, StatusCode: resp.StatusCode, Message: "decode envelope failed", Cause: err}
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return resp.StatusCode, &QdrantError{Operation: op, StatusCode: resp.StatusCode, Message: "decode result failed", Cause: err}
	}
	return resp.StatusCode, nil
}

func (q *QdrantIndex) collectionPath(name, suffix string) string {
	return "/collections/" + url.PathEscape(name) + suffix
}

// pointID is deterministic so re-upserting a record overwrites its point.
func (q *QdrantIndex) pointID(collection, recordID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(collection+"|"+recordID)).String()
}

func truncateBody(raw []byte) string {
	if len(raw) <= qdrantMaxErrorBody {
		return string(raw)
	}
	return string(raw[:qdrantMaxErrorBody]) + "..."
}
