package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// DefaultEmbeddingBatchSize keeps requests under common provider input limits.
const DefaultEmbeddingBatchSize = 10

// EmbeddingConfig holds API settings for text-embedding (OpenAI-compatible).
type EmbeddingConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	BatchSize int
}

type OpenAICompatibleEmbedder struct {
	httpClient *http.Client
	cfg        EmbeddingConfig
}

func NewOpenAICompatibleEmbedder(cfg EmbeddingConfig, timeout time.Duration) *OpenAICompatibleEmbedder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAICompatibleEmbedder{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
	}
}

func (e *OpenAICompatibleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedInBatches(ctx, "openai", texts, e.cfg.BatchSize, e.embedBatch)
}

func (e *OpenAICompatibleEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, e, text)
}

func (e *OpenAICompatibleEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": e.cfg.Model,
		"input": batch,
	}
	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/embeddings"
	status, raw, err := postJSON(ctx, e.httpClient, url, e.cfg.APIKey, reqBody)
	if err != nil {
		return nil, &EmbeddingBackendError{Provider: "openai", StatusCode: status, Message: "embedding request failed", Cause: err}
	}
	if status >= 300 {
		return nil, &EmbeddingBackendError{Provider: "openai", StatusCode: status, Message: truncate(raw, maxErrorBody)}
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &EmbeddingBackendError{Provider: "openai", StatusCode: status, Message: "parse embedding json failed", Cause: err}
	}
	sort.SliceStable(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	out := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		out[i] = parsed.Data[i].Embedding
	}
	return out, nil
}

type batchEmbedFunc func(ctx context.Context, batch []string) ([][]float32, error)

// embedInBatches keeps the output aligned with the input and rejects ragged results.
func embedInBatches(ctx context.Context, provider string, texts []string, batchSize int, fn batchEmbedFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, &EmbeddingBackendError{Provider: provider, Message: fmt.Sprintf("input %d is empty", i)}
		}
	}
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := fn(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-i {
			return nil, &EmbeddingBackendError{
				Provider: provider,
				Message:  fmt.Sprintf("embedding count mismatch: sent %d got %d", end-i, len(vectors)),
			}
		}
		out = append(out, vectors...)
	}

	dim := len(out[0])
	for i, v := range out {
		if len(v) == 0 || len(v) != dim {
			return nil, &EmbeddingBackendError{
				Provider: provider,
				Message:  fmt.Sprintf("embedding %d has dimension %d, want %d", i, len(v), dim),
			}
		}
	}
	return out, nil
}

func embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
