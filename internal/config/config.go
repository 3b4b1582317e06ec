// Package config provides environment-driven configuration for the relay
// service, with sensible defaults for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay process.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string

	// WebSocket limits
	AllowedOrigins []string
	MaxMessageSize int64

	// Per-connection inbound rate limiting
	RateLimitBurst  int
	RateLimitRefill time.Duration

	// Batch persistence
	BatchSize     int
	FlushInterval time.Duration
}

// Load reads configuration from environment variables. In development it
// loads from a .env file if present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "5000"),
		Env:             getEnv("ENV", "development"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		AllowedOrigins:  parseOrigins(getEnv("ALLOWED_ORIGINS", "*")),
		MaxMessageSize:  parseInt64(os.Getenv("MAX_MESSAGE_SIZE"), 4096),
		RateLimitBurst:  parseInt(os.Getenv("RATE_LIMIT_BURST"), 20),
		RateLimitRefill: parseSeconds(os.Getenv("RATE_LIMIT_REFILL_INTERVAL"), time.Second),
		BatchSize:       parseInt(os.Getenv("BATCH_SIZE"), 5),
		FlushInterval:   parseSeconds(os.Getenv("FLUSH_INTERVAL"), 30*time.Second),
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseInt64(value string, defaultValue int64) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
