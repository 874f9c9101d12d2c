package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"unipal-workers/internal/common/config"
)

// GeminiClient calls the Gemini API through google.golang.org/genai.
type GeminiClient struct {
	client *genai.Client
	cfg    config.GenAIConfig
}

func NewGeminiClient(ctx context.Context, cfg config.GenAIConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: apis.genai.api_key is required for gemini", ErrMissingAPIKey)
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOf(c.cfg))
	defer cancel()

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.cfg.Temperature)),
		MaxOutputTokens: int32(c.cfg.MaxTokens),
	}
	if systemInstruction != "" {
		gc.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), gc)
	if err != nil {
		return "", classify(ctx, err)
	}
	return resp.Text(), nil
}
