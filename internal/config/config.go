// Package config provides configuration loading for the integration server.
package config

import (
	"os"
	"strconv"
)

// ServerConfig holds the HTTP server and pipeline configuration.
type ServerConfig struct {
	// Server settings
	Port int
	Host string

	// Destination platform
	AchoAPIURL string
	AchoToken  string

	// LLM providers
	AnthropicAPIKey string
	GoogleAPIKey    string

	// Run history (optional; empty disables recording)
	DatabaseURL string

	// Ingestion runner
	RunnerBin      string
	RunTimeoutSecs int
}

// Load reads configuration from environment.
func Load() *ServerConfig {
	return &ServerConfig{
		Port:            getEnvInt("PORT", 8000),
		Host:            getEnv("HOST", "0.0.0.0"),
		AchoAPIURL:      getEnv("ACHO_API_URL", "https://api.acho.io"),
		AchoToken:       getEnv("ACHO_TOKEN", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RunnerBin:       getEnv("INGEST_RUNNER_BIN", "ingest-runner"),
		RunTimeoutSecs:  getEnvInt("INGEST_RUN_TIMEOUT_SECS", 600),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
