package config

const (
	KeyLogLevel          = "log_level"
	KeyEnvFile           = "env_file"
	KeyGitHubTokens      = "github_tokens"
	KeyGitHubTimeout     = "github_timeout"
	KeyGitHubMaxAttempts = "github_max_attempts"
	KeyPostgresURL       = "postgres_url"
	KeyDBDebug           = "db_debug"
	KeyAutoMigrate       = "auto_migrate"
	KeyOllamaURL         = "ollama_url"
	KeyClassifyModel     = "classify_model"
	KeyClassifyMaxTokens = "classify_max_tokens"
	KeyLLMCallTimeout    = "llm_call_timeout"
	KeyMatchWeights      = "match_weights"
)
