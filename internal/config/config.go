package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// BackendBaseURL is the base URL of the external exam API.
	BackendBaseURL string
	BackendTimeout time.Duration

	// RedisURL is optional. When empty the portal falls back to in-memory
	// credential storage and autosave queueing (single-instance dev mode).
	RedisURL string

	// CredentialSealKey is a 64-char hex string (32 bytes) used to seal
	// stored tokens at rest in Redis.
	CredentialSealKey string
	CredentialTTL     time.Duration

	// RefreshWindow controls proactive token refresh: a protected call whose
	// access token expires within this window refreshes first.
	RefreshWindow time.Duration

	// ExamDuration is the countdown length for a freshly created session.
	ExamDuration time.Duration

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error, .env is optional

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "3000"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "pretty"),
		BackendBaseURL:    getEnv("BACKEND_API_URL", "http://localhost:8000"),
		BackendTimeout:    time.Duration(getEnvInt("BACKEND_TIMEOUT_SECONDS", 15)) * time.Second,
		RedisURL:          getEnv("REDIS_URL", ""),
		CredentialSealKey: getEnv("CREDENTIAL_SEAL_KEY", ""),
		CredentialTTL:     time.Duration(getEnvInt("CREDENTIAL_TTL_HOURS", 24)) * time.Hour,
		RefreshWindow:     time.Duration(getEnvInt("REFRESH_WINDOW_SECONDS", 30)) * time.Second,
		ExamDuration:      time.Duration(getEnvInt("EXAM_DURATION_SECONDS", 1800)) * time.Second,
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
