package profile

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// DSN points to where promptlens stores its own data
	DSN string
	// Version is the current version of server
	Version string

	// AIOpenAIAPIKey is the API key for the embedding/LLM provider.
	AIOpenAIAPIKey string // PROMPTLENS_AI_OPENAI_API_KEY
	// AIOpenAIBaseURL overrides the provider base URL for OpenAI-compatible endpoints.
	AIOpenAIBaseURL string // PROMPTLENS_AI_OPENAI_BASE_URL
	// AIEmbeddingModel is the embedding model identifier.
	AIEmbeddingModel string // PROMPTLENS_AI_EMBEDDING_MODEL (default: text-embedding-3-small)
	// AIEmbeddingDimensions is the embedding vector dimension.
	AIEmbeddingDimensions int // PROMPTLENS_AI_EMBEDDING_DIMENSIONS (default: 1536)
	// AILLMModel is the chat model used for planning and keyword extraction.
	AILLMModel string // PROMPTLENS_AI_LLM_MODEL (default: gpt-4o-mini)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.AIOpenAIAPIKey = getEnvOrDefault("PROMPTLENS_AI_OPENAI_API_KEY", p.AIOpenAIAPIKey)
	p.AIOpenAIBaseURL = getEnvOrDefault("PROMPTLENS_AI_OPENAI_BASE_URL", p.AIOpenAIBaseURL)
	p.AIEmbeddingModel = getEnvOrDefault("PROMPTLENS_AI_EMBEDDING_MODEL", "text-embedding-3-small")
	p.AILLMModel = getEnvOrDefault("PROMPTLENS_AI_LLM_MODEL", "gpt-4o-mini")

	if v := os.Getenv("PROMPTLENS_AI_EMBEDDING_DIMENSIONS"); v != "" {
		if dims, err := strconv.Atoi(v); err == nil && dims > 0 {
			p.AIEmbeddingDimensions = dims
		}
	}
	if p.AIEmbeddingDimensions == 0 {
		p.AIEmbeddingDimensions = 1536
	}
}

// Validate validates the profile.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" {
		p.Mode = "dev"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver: %s", p.Driver)
	}
	if p.DSN == "" {
		return errors.New("dsn is required")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port: %d", p.Port)
	}
	return nil
}

func (p *Profile) String() string {
	return fmt.Sprintf("mode=%s addr=%s port=%d driver=%s", p.Mode, p.Addr, p.Port, p.Driver)
}
