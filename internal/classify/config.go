package classify

import (
	"fmt"
	"time"

	"github.com/roivaz/prcohort/internal/config"
)

func LoadConfig() (Config, error) {
	timeout, err := config.ParseDuration(config.LLMCallTimeout(), 2*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid llm_call_timeout: %w", err)
	}
	return Config{
		OllamaURL:   config.OllamaURL(),
		Model:       config.ClassifyModel(),
		MaxTokens:   config.ClassifyMaxTokens(),
		CallTimeout: timeout,
	}, nil
}
