package ai

import (
	"context"
	"fmt"
	"strings"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// EinoGenerator adapts an eino chat model to Generator.
type EinoGenerator struct {
	provider string
	chat     chatModel
}

func NewEinoGenerator(provider string, chat model.BaseChatModel) *EinoGenerator {
	return &EinoGenerator{provider: provider, chat: chat}
}

// NewGeminiGenerator builds a Gemini-backed generator through the genai SDK.
func NewGeminiGenerator(ctx context.Context, cfg ChatConfig) (*EinoGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client failed: %w", err)
	}
	chat, err := geminiModel.NewChatModel(ctx, &geminiModel.Config{
		Client: client,
		Model:  modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini chat model failed: %w", err)
	}
	return NewEinoGenerator("gemini", chat), nil
}

func (g *EinoGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]*schema.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, schema.SystemMessage(systemPrompt))
	}
	messages = append(messages, schema.UserMessage(userPrompt))

	out, err := g.chat.Generate(ctx, messages)
	if err != nil {
		return "", &GenerationBackendError{Provider: g.provider, Message: "generate failed", Cause: err}
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", &GenerationBackendError{Provider: g.provider, Message: "empty completion"}
	}
	return out.Content, nil
}

// EinoEmbedder adapts an eino embedder (float64 vectors) to Embedder.
type EinoEmbedder struct {
	provider  string
	embedder  einoEmbedding.Embedder
	batchSize int
}

func NewEinoEmbedder(provider string, embedder einoEmbedding.Embedder, batchSize int) *EinoEmbedder {
	return &EinoEmbedder{provider: provider, embedder: embedder, batchSize: batchSize}
}

func NewEinoOpenAIEmbedder(ctx context.Context, cfg EmbeddingConfig) (*EinoEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}
	embedder, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create eino openai embedder failed: %w", err)
	}
	return NewEinoEmbedder("eino-openai", embedder, cfg.BatchSize), nil
}

func (e *EinoEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedInBatches(ctx, e.provider, texts, e.batchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		vectors, err := e.embedder.EmbedStrings(ctx, batch)
		if err != nil {
			return nil, &EmbeddingBackendError{Provider: e.provider, Message: "embed strings failed", Cause: err}
		}
		out := make([][]float32, len(vectors))
		for i, vec := range vectors {
			out[i] = make([]float32, len(vec))
			for j, v := range vec {
				out[i][j] = float32(v)
			}
		}
		return out, nil
	})
}

func (e *EinoEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, e, text)
}
