package config

import (
	"os"
	"strconv"
	"time"
)

type LedgerConfig struct {
	Currency          string
	DefaultQueryLimit int
	MaxQueryLimit     int
	CommandRateLimit  int
	RateLimitWindow   time.Duration
	BotName           string
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		Currency:          getEnv("STASH_CURRENCY", "USD"),
		DefaultQueryLimit: getEnvAsInt("STASH_QUERY_DEFAULT_LIMIT", 10),
		MaxQueryLimit:     max(getEnvAsInt("STASH_QUERY_MAX_LIMIT", 50), 1),
		CommandRateLimit:  getEnvAsInt("STASH_COMMAND_RATE_LIMIT", 30),
		RateLimitWindow:   getEnvAsDuration("STASH_COMMAND_RATE_WINDOW", 1*time.Minute),
		BotName:           getEnv("STASH_BOT_NAME", ""),
	}
}

// ClampLimit bounds a requested listing size to [1, MaxQueryLimit].
// Callers substitute DefaultQueryLimit when no size was requested.
func (c *LedgerConfig) ClampLimit(n int) int {
	return min(max(n, 1), max(c.MaxQueryLimit, 1))
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
