package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Completer answers a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	OllamaURL   string
	Model       string
	MaxTokens   int
	CallTimeout time.Duration
}

type ollamaCompleter struct {
	llm *ollama.LLM
	to  time.Duration
}

// NewOllama returns a Completer backed by an Ollama server.
func NewOllama(cfg Config) (Completer, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model name is required")
	}
	client, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.OllamaURL),
		ollama.WithKeepAlive("5m"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &ollamaCompleter{llm: client, to: cfg.CallTimeout}, nil
}

func (c *ollamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}
	resp, err := c.llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", c.annotateError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return resp.Choices[0].Content, nil
}

func (c *ollamaCompleter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.to <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.to)
}

func (c *ollamaCompleter) annotateError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("llm call timed out after %s: %w", c.to, err)
	}
	return err
}
