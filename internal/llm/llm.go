// Package llm adapts the configured language model backend to a single
// prompt-in, text-out interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unipal-workers/internal/common/config"
)

var (
	ErrLLMTimeout    = errors.New("LLM_TIMEOUT")
	ErrLLMFailed     = errors.New("LLM_EXTRACTION_FAILED")
	ErrMissingAPIKey = errors.New("CONFIG_MISSING_API_KEY")
)

// Client completes a prompt. systemInstruction may be empty.
type Client interface {
	Complete(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// ClientFunc lets an ordinary function act as a Client.
type ClientFunc func(ctx context.Context, prompt, systemInstruction string) (string, error)

func (f ClientFunc) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	return f(ctx, prompt, systemInstruction)
}

// Closer is implemented by backends that hold connections.
type Closer interface {
	Close() error
}

// New builds the backend named by cfg.Provider.
func New(ctx context.Context, cfg config.GenAIConfig) (Client, error) {
	switch cfg.Provider {
	case "http", "":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: apis.genai.base_url is required for the http provider", ErrMissingAPIKey)
		}
		return NewHTTPClient(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	case "vertex":
		return NewVertexClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown genai provider %q", cfg.Provider)
	}
}

// classify maps a backend error onto the package sentinels.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrLLMTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrLLMFailed, err)
}

func timeoutOf(cfg config.GenAIConfig) time.Duration {
	if cfg.Timeout <= 0 {
		return 60 * time.Second
	}
	return config.GetDuration(cfg.Timeout)
}
