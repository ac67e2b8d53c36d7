package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxImageBytes = 20 << 20

type ImageConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Size    string
	// RequestsPerSecond throttles calls across all goroutines sharing the client.
	RequestsPerSecond float64
}

// OpenAIImageClient calls /images/generations and always returns image bytes,
// downloading them when the provider answers with a URL.
type OpenAIImageClient struct {
	httpClient *http.Client
	cfg        ImageConfig
	limiter    *rate.Limiter
}

type imagesGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func NewOpenAIImageClient(cfg ImageConfig, timeout time.Duration) *OpenAIImageClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &OpenAIImageClient{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (c *OpenAIImageClient) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	var out Image
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return out, c.fail(0, "image prompt required", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return out, c.fail(0, "rate limiter wait failed", err)
	}

	req := imagesGenerationRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		N:      1,
		Size:   c.cfg.Size,
	}
	// gpt-image models reject response_format and always answer in base64.
	if !strings.HasPrefix(strings.ToLower(c.cfg.Model), "gpt-image-") {
		req.ResponseFormat = "b64_json"
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/images/generations"
	status, raw, err := postJSON(ctx, c.httpClient, url, c.cfg.APIKey, req)
	if err != nil {
		return out, c.fail(status, "image request failed", err)
	}
	if status >= 300 {
		return out, c.fail(status, truncate(raw, maxErrorBody), nil)
	}

	var parsed imagesGenerationResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return out, c.fail(status, "parse image response failed", err)
	}
	if len(parsed.Data) == 0 {
		return out, c.fail(status, "no image returned", nil)
	}
	item := parsed.Data[0]
	out.RevisedPrompt = strings.TrimSpace(item.RevisedPrompt)

	if b64 := strings.TrimSpace(item.B64JSON); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(data) == 0 {
			return out, c.fail(status, "decode image base64 failed", err)
		}
		out.Bytes = data
		out.MimeType = "image/png"
		return out, nil
	}
	if u := strings.TrimSpace(item.URL); u != "" {
		data, mimeType, err := c.download(ctx, u)
		if err != nil {
			return out, c.fail(status, "download generated image failed", err)
		}
		out.Bytes = data
		out.MimeType = mimeType
		out.SourceURL = u
		return out, nil
	}
	return out, c.fail(status, "image response missing b64_json and url", nil)
}

func (c *OpenAIImageClient) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	mimeType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if mimeType == "" {
		mimeType = "image/png"
	}
	return data, mimeType, nil
}

func (c *OpenAIImageClient) fail(status int, msg string, cause error) error {
	return &GenerationBackendError{Provider: "openai-images", StatusCode: status, Message: msg, Cause: cause}
}
