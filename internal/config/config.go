package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultEnvFile = "config.env"

func Init(root *cobra.Command) {
	viper.AutomaticEnv()
	envFile := viper.GetString(KeyEnvFile)
	if envFile == "" {
		envFile = defaultEnvFile
	}
	_ = godotenv.Load(envFile)
	if root != nil {
		_ = viper.BindPFlags(root.PersistentFlags())
	}
	setDefaults()
}

func setDefaults() {
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyGitHubTimeout, "30s")
	viper.SetDefault(KeyGitHubMaxAttempts, 5)
	viper.SetDefault(KeyDBDebug, false)
	viper.SetDefault(KeyAutoMigrate, false)
	viper.SetDefault(KeyOllamaURL, "http://localhost:11434")
	viper.SetDefault(KeyClassifyModel, "phi3")
	viper.SetDefault(KeyClassifyMaxTokens, 1024)
	viper.SetDefault(KeyLLMCallTimeout, "2m")
	viper.SetDefault(KeyMatchWeights, "")
}

func LogLevel() string       { return viper.GetString(KeyLogLevel) }
func GitHubTimeout() string  { return viper.GetString(KeyGitHubTimeout) }
func GitHubMaxAttempts() int { return viper.GetInt(KeyGitHubMaxAttempts) }
func PostgresURL() string    { return viper.GetString(KeyPostgresURL) }
func DBDebug() bool          { return viper.GetBool(KeyDBDebug) }
func AutoMigrate() bool      { return viper.GetBool(KeyAutoMigrate) }
func OllamaURL() string      { return viper.GetString(KeyOllamaURL) }
func ClassifyModel() string  { return viper.GetString(KeyClassifyModel) }
func ClassifyMaxTokens() int { return viper.GetInt(KeyClassifyMaxTokens) }
func LLMCallTimeout() string { return viper.GetString(KeyLLMCallTimeout) }
func MatchWeights() string   { return viper.GetString(KeyMatchWeights) }

// GitHubTokens returns the configured personal access tokens in rotation order.
// Tokens are read from a comma separated list so several can share one variable.
func GitHubTokens() []string {
	raw := viper.GetString(KeyGitHubTokens)
	var tokens []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// ParseDuration parses a duration setting, returning fallback when it is unset.
func ParseDuration(value string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, err
	}
	return d, nil
}
