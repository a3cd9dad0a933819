package ai

import (
	"errors"

	"github.com/promptlens/promptlens/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Embedding EmbeddingConfig
	LLM       LLMConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Model      string // text-embedding-3-small
	Dimensions int    // 1536
	APIKey     string
	BaseURL    string
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Model       string // gpt-4o-mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 1024
	Temperature float32 // default: 0.2
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Model:      p.AIEmbeddingModel,
			Dimensions: p.AIEmbeddingDimensions,
			APIKey:     p.AIOpenAIAPIKey,
			BaseURL:    p.AIOpenAIBaseURL,
		},
		LLM: LLMConfig{
			Model:       p.AILLMModel,
			APIKey:      p.AIOpenAIAPIKey,
			BaseURL:     p.AIOpenAIBaseURL,
			MaxTokens:   1024,
			Temperature: 0.2,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Embedding.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}
	if c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}
	if c.LLM.Model == "" {
		return errors.New("LLM model is required")
	}
	return nil
}
