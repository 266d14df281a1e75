package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the pipeline configuration
type Config struct {
	// Provider endpoints and models
	OpenAIURL   string
	OpenAIModel string
	HFURL       string
	HFModel     string
	GeminiModel string

	// Requests per minute allowed for each remote provider
	ProviderARPM int
	ProviderBRPM int
	ProviderCRPM int

	ProviderTimeout time.Duration

	// Tesseract language, e.g. "eng" or "eng+deu"
	OCRLanguage string

	// Optional shared analysis cache
	RedisURL string

	BulkItemDelay     time.Duration
	CaptionBatchSize  int
	CaptionBatchDelay time.Duration

	// Optional YAML file holding provider credentials
	CredentialsFile string

	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		OpenAIURL:         getEnvOrDefault("OPENAI_URL", "https://api.openai.com/v1/chat/completions"),
		OpenAIModel:       getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		HFURL:             getEnvOrDefault("HF_URL", "https://api-inference.huggingface.co/models"),
		HFModel:           getEnvOrDefault("HF_MODEL", "Salesforce/blip-image-captioning-large"),
		GeminiModel:       getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		ProviderARPM:      getEnvAsIntOrDefault("PROVIDER_RPM_A", 20),
		ProviderBRPM:      getEnvAsIntOrDefault("PROVIDER_RPM_B", 30),
		ProviderCRPM:      getEnvAsIntOrDefault("PROVIDER_RPM_C", 15),
		ProviderTimeout:   getEnvAsDurationOrDefault("PROVIDER_TIMEOUT", 30*time.Second),
		OCRLanguage:       getEnvOrDefault("OCR_LANGUAGE", "eng"),
		RedisURL:          getEnvOrDefault("REDIS_URL", ""),
		BulkItemDelay:     getEnvAsDurationOrDefault("BULK_ITEM_DELAY", 100*time.Millisecond),
		CaptionBatchSize:  getEnvAsIntOrDefault("CAPTION_BATCH_SIZE", 4),
		CaptionBatchDelay: getEnvAsDurationOrDefault("CAPTION_BATCH_DELAY", time.Second),
		CredentialsFile:   getEnvOrDefault("DESCRIBER_CREDENTIALS_FILE", ""),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.ProviderARPM < 0 || c.ProviderBRPM < 0 || c.ProviderCRPM < 0 {
		return fmt.Errorf("provider rate limits must not be negative")
	}

	if c.CaptionBatchSize < 1 || c.CaptionBatchSize > 32 {
		return fmt.Errorf("CAPTION_BATCH_SIZE must be between 1 and 32, got %d", c.CaptionBatchSize)
	}

	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}

	if c.BulkItemDelay < 0 || c.CaptionBatchDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ParseLevel maps a LOG_LEVEL value onto a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", valueStr)
		return defaultValue
	}

	return value
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("Ignoring invalid duration setting", "key", key, "value", valueStr)
		return defaultValue
	}

	return value
}
