package config

import (
	"os"
	"sync"
	"time"
)

type GeminiConfig struct {
	APIKey          string
	Model           string
	EmbeddingModel  string
	// CircuitCooldown is how long the breaker stays open before a trial call.
	CircuitCooldown time.Duration
}

var (
	geminiConfig *GeminiConfig
	geminiOnce   sync.Once
)

func LoadGeminiConfig() *GeminiConfig {
	geminiOnce.Do(func() {
		geminiConfig = &GeminiConfig{
			APIKey:          os.Getenv("GEMINI_API_KEY"),
			Model:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbeddingModel:  getEnv("GEMINI_EMBEDDING_MODEL", "gemini-embedding-001"),
			CircuitCooldown: getEnvDuration("GEMINI_CIRCUIT_COOLDOWN", 30*time.Second),
		}
	})
	return geminiConfig
}
