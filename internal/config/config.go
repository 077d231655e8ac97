package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"csvinsight/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Metrics MetricsConfig
	History HistoryConfig
	Log     LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port                  string
	AllowedOrigins        []string
	MaxUploadBytes        int64
	MaxConcurrentAnalyses int64
	ReadTimeout           time.Duration
	WriteTimeout          time.Duration
}

// LLMConfig selects and tunes the text generation provider
type LLMConfig struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RetryMax    int
	PromptsDir  string
}

// MetricsConfig tunes dataset loading and the metrics engine
type MetricsConfig struct {
	Parallel   bool
	ParseDates bool
}

// HistoryConfig points at the optional analysis history database.
// An empty DSN disables history.
type HistoryConfig struct {
	Driver string
	DSN    string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Enabled reports whether history persistence is configured
func (h HistoryConfig) Enabled() bool {
	return h.DSN != ""
}

// Load reads .env (when present) and the environment, then validates the
// result. Only the selected provider's API key is required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	llmConfig, err := loadLLMConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load LLM configuration")
	}

	config := &Config{
		Server:  *loadServerConfig(),
		LLM:     *llmConfig,
		Metrics: *loadMetricsConfig(),
		History: *loadHistoryConfig(),
		Log:     LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "INFO")},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// LoadOffline loads everything except the LLM credentials, for commands
// that never call a provider.
func LoadOffline() *Config {
	_ = godotenv.Load()
	return &Config{
		Server:  *loadServerConfig(),
		Metrics: *loadMetricsConfig(),
		History: *loadHistoryConfig(),
		Log:     LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "INFO")},
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:                  getEnvOrDefault("PORT", "8000"),
		AllowedOrigins:        getEnvListOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxUploadBytes:        int64(getEnvIntOrDefault("MAX_UPLOAD_MB", 20)) << 20,
		MaxConcurrentAnalyses: int64(getEnvIntOrDefault("MAX_CONCURRENT_ANALYSES", 4)),
		ReadTimeout:           getEnvDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:          getEnvDurationOrDefault("SERVER_WRITE_TIMEOUT", 3*time.Minute),
	}
}

func loadLLMConfig() (*LLMConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGemini))

	var apiKey, model string
	switch provider {
	case ProviderGemini:
		apiKey = os.Getenv("GEMINI_API_KEY")
		model = "gemini-2.0-flash"
		if apiKey == "" {
			return nil, errors.ConfigInvalid("GEMINI_API_KEY is required")
		}
	case ProviderOpenAI:
		apiKey = os.Getenv("OPENAI_API_KEY")
		model = "gpt-4o-mini"
		if apiKey == "" {
			return nil, errors.ConfigInvalid("OPENAI_API_KEY is required")
		}
	case ProviderMock:
		model = "mock"
	default:
		return nil, errors.ConfigInvalid("unsupported LLM_PROVIDER: " + provider)
	}

	return &LLMConfig{
		Provider:    provider,
		APIKey:      apiKey,
		Model:       getEnvOrDefault("LLM_MODEL", model),
		BaseURL:     os.Getenv("LLM_BASE_URL"),
		Temperature: getEnvFloatOrDefault("LLM_TEMPERATURE", 0.2),
		MaxTokens:   getEnvIntOrDefault("LLM_MAX_TOKENS", 2048),
		Timeout:     getEnvDurationOrDefault("LLM_TIMEOUT", 60*time.Second),
		RetryMax:    getEnvIntOrDefault("LLM_RETRY_MAX", 3),
		PromptsDir:  os.Getenv("PROMPTS_DIR"),
	}, nil
}

func loadMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Parallel:   getEnvBoolOrDefault("METRICS_PARALLEL", true),
		ParseDates: getEnvBoolOrDefault("PARSE_DATES", false),
	}
}

func loadHistoryConfig() *HistoryConfig {
	return &HistoryConfig{
		Driver: getEnvOrDefault("HISTORY_DRIVER", "postgres"),
		DSN:    os.Getenv("HISTORY_DSN"),
	}
}

func validateConfig(config *Config) error {
	if config.Server.MaxUploadBytes <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be positive")
	}
	if config.Server.MaxConcurrentAnalyses <= 0 {
		return errors.ConfigInvalid("MAX_CONCURRENT_ANALYSES must be positive")
	}
	if config.LLM.RetryMax < 0 {
		return errors.ConfigInvalid("LLM_RETRY_MAX cannot be negative")
	}
	if config.History.Enabled() {
		switch config.History.Driver {
		case "postgres", "sqlite":
		default:
			return errors.ConfigInvalid("HISTORY_DRIVER must be postgres or sqlite")
		}
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated value, dropping blanks
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
