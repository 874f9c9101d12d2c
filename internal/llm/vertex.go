package llm

import (
	"context"
	"fmt"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"

	"unipal-workers/internal/common/config"
)

// VertexClient calls Gemini models hosted on Vertex AI.
type VertexClient struct {
	client *vertexgenai.Client
	cfg    config.GenAIConfig
}

func NewVertexClient(ctx context.Context, cfg config.GenAIConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: apis.genai.project_id is required for vertex", ErrMissingAPIKey)
	}
	client, err := vertexgenai.NewClient(ctx, cfg.ProjectID, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}
	return &VertexClient{client: client, cfg: cfg}, nil
}

func (c *VertexClient) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOf(c.cfg))
	defer cancel()

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(float32(c.cfg.Temperature))
	model.SetMaxOutputTokens(int32(c.cfg.MaxTokens))
	if systemInstruction != "" {
		model.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(systemInstruction)}}
	}

	resp, err := model.GenerateContent(ctx, vertexgenai.Text(prompt))
	if err != nil {
		return "", classify(ctx, err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(vertexgenai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		break
	}
	return sb.String(), nil
}

func (c *VertexClient) Close() error {
	return c.client.Close()
}
