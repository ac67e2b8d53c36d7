package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompatibleClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatibleClient(ChatConfig{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "m"}, time.Second)
	out, err := c.Complete(context.Background(), "be brief", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "m", got["model"])

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestOpenAICompatibleClientErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		rateLimited bool
		unauth      bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, rateLimited: true},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"bad key"}`, unauth: true},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewOpenAICompatibleClient(ChatConfig{BaseURL: srv.URL}, time.Second)
			_, err := c.Complete(context.Background(), "", "hi")
			require.Error(t, err)

			var be *GenerationBackendError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, "openai", be.Provider)
			assert.Equal(t, tt.rateLimited, be.RateLimited())
			assert.Equal(t, tt.unauth, be.Unauthorized())
		})
	}
}

func TestAnthropicClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sys", req.System)
		assert.Equal(t, 4096, req.MaxTokens)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"a"},{"type":"tool_use"},{"type":"text","text":"b"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(ChatConfig{BaseURL: srv.URL, APIKey: "key", Model: "claude"}, time.Second)
	out, err := c.Complete(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
}

func TestAnthropicClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"busy"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicClient(ChatConfig{BaseURL: srv.URL}, time.Second).Complete(context.Background(), "", "hi")
	var be *GenerationBackendError
	require.True(t, errors.As(err, &be))
	assert.True(t, be.RateLimited())
	assert.Contains(t, be.Error(), "rate_limit_error")
}

func TestOpenAICompatibleEmbedderBatchesAndOrders(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// answer in reverse order to check the index sort
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(len(req.Input[i])), 1}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	e := NewOpenAICompatibleEmbedder(EmbeddingConfig{BaseURL: srv.URL, BatchSize: 2}, time.Second)
	out, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, out, 3)
	assert.Equal(t, float32(1), out[0][0])
	assert.Equal(t, float32(2), out[1][0])
	assert.Equal(t, float32(3), out[2][0])
}

func TestEmbedInBatchesRejectsBadResults(t *testing.T) {
	ctx := context.Background()

	_, err := embedInBatches(ctx, "p", []string{"a", " "}, 10, nil)
	var be *EmbeddingBackendError
	require.True(t, errors.As(err, &be))

	_, err = embedInBatches(ctx, "p", []string{"a", "b"}, 10, func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	})
	require.True(t, errors.As(err, &be))
	assert.Contains(t, be.Message, "count mismatch")

	_, err = embedInBatches(ctx, "p", []string{"a", "b"}, 10, func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1, 2}, {1}}, nil
	})
	require.True(t, errors.As(err, &be))
	assert.Contains(t, be.Message, "dimension")

	out, err := embedInBatches(ctx, "p", nil, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOpenAIImageClientBase64(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req imagesGenerationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "b64_json", req.ResponseFormat)
		assert.Equal(t, "1024x1024", req.Size)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(png), "revised_prompt": "a cat"}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIImageClient(ImageConfig{BaseURL: srv.URL, Model: "dall-e-3", Size: "1024x1024"}, time.Second)
	img, err := c.GenerateImage(context.Background(), "cat")
	require.NoError(t, err)
	assert.Equal(t, png, img.Bytes)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, "a cat", img.RevisedPrompt)
}

func TestOpenAIImageClientDownloadsURL(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		var req imagesGenerationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.ResponseFormat)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{{"url": srv.URL + "/file.jpg"}}})
	})
	mux.HandleFunc("/file.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		_, _ = w.Write([]byte("jpeg"))
	})

	c := NewOpenAIImageClient(ImageConfig{BaseURL: srv.URL, Model: "gpt-image-1"}, time.Second)
	img, err := c.GenerateImage(context.Background(), "dog")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), img.Bytes)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, srv.URL+"/file.jpg", img.SourceURL)
}

func TestOpenAIImageClientFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"content policy"}`))
	}))
	defer srv.Close()

	c := NewOpenAIImageClient(ImageConfig{BaseURL: srv.URL}, time.Second)
	_, err := c.GenerateImage(context.Background(), "x")
	var be *GenerationBackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusBadRequest, be.StatusCode)

	_, err = c.GenerateImage(context.Background(), "  ")
	require.Error(t, err)
}

type fakeChatModel struct {
	got []*schema.Message
	out *schema.Message
	err error
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = input
	return f.out, f.err
}

func TestEinoGeneratorComplete(t *testing.T) {
	fake := &fakeChatModel{out: schema.AssistantMessage("slides", nil)}
	g := &EinoGenerator{provider: "gemini", chat: fake}

	out, err := g.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "slides", out)
	require.Len(t, fake.got, 2)
	assert.Equal(t, schema.System, fake.got[0].Role)
	assert.Equal(t, schema.User, fake.got[1].Role)

	fake.err = errors.New("quota")
	_, err = g.Complete(context.Background(), "", "user")
	var be *GenerationBackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "gemini", be.Provider)
}

type fakeEinoEmbedder struct{}

func (fakeEinoEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 0.5}
	}
	return out, nil
}

func TestEinoEmbedderConvertsVectors(t *testing.T) {
	e := NewEinoEmbedder("eino-openai", fakeEinoEmbedder{}, 1)
	vec, err := e.EmbedOne(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 0.5}, vec)
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	_, err := NewGenerator(context.Background(), Settings{Provider: "nope"})
	require.Error(t, err)
	_, err = NewEmbedder(context.Background(), Settings{EmbeddingProvider: "nope"})
	require.Error(t, err)

	g, err := NewGenerator(context.Background(), Settings{Provider: "anthropic"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, g)
}
