package ai

import (
	"context"
	"fmt"
	"net/http"
)

// Generator turns a system and user prompt into completion text.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Embedder returns one vector per input text, all of the same dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// ImageGenerator synthesizes one image for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (Image, error)
}

type Image struct {
	Bytes         []byte
	MimeType      string
	SourceURL     string
	RevisedPrompt string
}

type GenerationBackendError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *GenerationBackendError) Error() string {
	return formatBackendError("generation", e.Provider, e.StatusCode, e.Message, e.Cause)
}

func (e *GenerationBackendError) Unwrap() error {
	return e.Cause
}

func (e *GenerationBackendError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func (e *GenerationBackendError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

type EmbeddingBackendError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *EmbeddingBackendError) Error() string {
	return formatBackendError("embedding", e.Provider, e.StatusCode, e.Message, e.Cause)
}

func (e *EmbeddingBackendError) Unwrap() error {
	return e.Cause
}

func formatBackendError(kind, provider string, status int, msg string, cause error) string {
	out := fmt.Sprintf("%s backend %s failed", kind, provider)
	if status != 0 {
		out += fmt.Sprintf(" (status %d)", status)
	}
	if msg != "" {
		out += ": " + msg
	} else if cause != nil {
		out += ": " + cause.Error()
	}
	return out
}

func truncate(raw []byte, max int) string {
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
