package ai

import (
	"context"
	"fmt"
	"time"
)

// Settings is the subset of configuration the gateways need.
type Settings struct {
	Provider          string
	Chat              ChatConfig
	EmbeddingProvider string
	Embedding         EmbeddingConfig
	Image             ImageConfig
	Timeout           time.Duration
	// ImageTimeout falls back to Timeout when zero.
	ImageTimeout time.Duration
}

// NewGenerator picks the text backend named by Settings.Provider.
func NewGenerator(ctx context.Context, s Settings) (Generator, error) {
	switch s.Provider {
	case "openai":
		return NewOpenAICompatibleClient(s.Chat, s.Timeout), nil
	case "anthropic":
		return NewAnthropicClient(s.Chat, s.Timeout), nil
	case "gemini":
		return NewGeminiGenerator(ctx, s.Chat)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", s.Provider)
	}
}

func NewEmbedder(ctx context.Context, s Settings) (Embedder, error) {
	switch s.EmbeddingProvider {
	case "openai":
		return NewOpenAICompatibleEmbedder(s.Embedding, s.Timeout), nil
	case "eino-openai":
		return NewEinoOpenAIEmbedder(ctx, s.Embedding)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", s.EmbeddingProvider)
	}
}

func NewImageGenerator(s Settings) ImageGenerator {
	timeout := s.ImageTimeout
	if timeout <= 0 {
		timeout = s.Timeout
	}
	return NewOpenAIImageClient(s.Image, timeout)
}
