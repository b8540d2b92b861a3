package collect

import (
	"fmt"
	"time"

	"github.com/roivaz/prcohort/internal/config"
	"github.com/roivaz/prcohort/internal/logging"
)

type Config struct {
	Tokens      []string
	Timeout     time.Duration
	MaxAttempts int
}

func LoadConfig() (Config, error) {
	timeout, err := config.ParseDuration(config.GitHubTimeout(), defaultTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("invalid github_timeout: %w", err)
	}
	return Config{
		Tokens:      config.GitHubTokens(),
		Timeout:     timeout,
		MaxAttempts: config.GitHubMaxAttempts(),
	}, nil
}

// NewFetcherFromConfig builds a Fetcher with one client per configured token.
func NewFetcherFromConfig(cfg Config, log logging.Logger) *Fetcher {
	return NewFetcher(NewTokenPool(cfg.Tokens, cfg.Timeout), log, WithAttempts(cfg.MaxAttempts))
}
