package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"
)

// Config holds all configuration for the nutriscan service
type Config struct {
	// Server configuration
	Port           string
	AllowedOrigins []string
	MaxBodyBytes   int64

	// Rate limiting
	RateLimitPerMinute int

	// Upstream provider configuration
	Provider      string
	LLMEndpoint   string
	LLMTimeout    time.Duration
	AppReferer    string
	AppTitle      string
	FamilyAKey    string
	FamilyBKey    string
	SharedKey     string
	FamilyAModels []string
	FamilyBModels []string

	// Fallback policy
	RetryDelay time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		// Server defaults
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getStringSliceEnv("ALLOWED_ORIGINS", "*"),
		MaxBodyBytes:   int64(getIntEnv("MAX_BODY_BYTES", 15<<20)),

		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 30),

		// Provider defaults
		Provider:    strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		LLMEndpoint: getEnv("LLM_ENDPOINT", ""),
		LLMTimeout:  getDurationEnv("LLM_TIMEOUT", 60*time.Second),
		AppReferer:  getEnv("APP_REFERER", ""),
		AppTitle:    getEnv("APP_TITLE", "nutriscan"),

		// Family A serves the upload route first, family B the camera route.
		FamilyAKey:    getEnv("GEMINI_API_KEY", ""),
		FamilyBKey:    getEnv("OPENAI_API_KEY", ""),
		SharedKey:     getEnv("OPENROUTER_API_KEY", ""),
		FamilyAModels: getStringSliceEnv("FAMILY_A_MODELS", "google/gemini-2.5-flash,google/gemini-2.0-flash-001"),
		FamilyBModels: getStringSliceEnv("FAMILY_B_MODELS", "openai/gpt-4o-mini"),

		RetryDelay: getDurationEnv("RETRY_DELAY", 500*time.Millisecond),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// HasAnyKey reports whether at least one provider key is configured.
func (c *Config) HasAnyKey() bool {
	return c.FamilyAKey != "" || c.FamilyBKey != "" || c.SharedKey != ""
}

// getStringSliceEnv gets a comma-separated string environment variable and returns it as a string slice
func getStringSliceEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return []string{}
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
