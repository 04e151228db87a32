package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

type AnalyzerConfig struct {
	Provider   string
	MaxRetries int
	Timeout    time.Duration
	// Cooldown is the minimum gap between two consecutive analyzer calls.
	Cooldown time.Duration
}

var (
	analyzerConfig *AnalyzerConfig
	analyzerOnce   sync.Once
)

func LoadAnalyzerConfig() *AnalyzerConfig {
	analyzerOnce.Do(func() {
		analyzerConfig = &AnalyzerConfig{
			Provider:   getEnv("ANALYZER_PROVIDER", ProviderGemini),
			MaxRetries: getEnvInt("ANALYZER_MAX_RETRIES", 0),
			Timeout:    getEnvDuration("ANALYZER_TIMEOUT", 90*time.Second),
			Cooldown:   getEnvDuration("MATCH_COOLDOWN", time.Second),
		}
	})
	return analyzerConfig
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		log.Printf("Warning: invalid %s=%q, defaulting to %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		log.Printf("Warning: invalid %s=%q, defaulting to %s", key, raw, fallback)
		return fallback
	}
	return v
}
