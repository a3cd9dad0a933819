package ai

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/promptlens/promptlens/internal/errors"
)

const (
	// embeddingTimeout is the deadline for one provider call.
	embeddingTimeout = 30 * time.Second

	// embeddingMaxChars truncates normalized input to keep requests under the
	// provider's token ceiling.
	embeddingMaxChars = 8000

	// embeddingMaxRetries bounds transient-failure retries per call.
	embeddingMaxRetries = 2

	// embeddingRetryBackoff is the base delay between retries.
	embeddingRetryBackoff = 500 * time.Millisecond
)

// EmbeddingService is the vector embedding service interface.
type EmbeddingService interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

type embeddingService struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates a new EmbeddingService backed by an
// OpenAI-compatible provider.
func NewEmbeddingService(cfg *EmbeddingConfig) EmbeddingService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &embeddingService{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.InvalidInput("no texts provided for embedding")
	}

	normalized := make([]string, len(texts))
	for i, text := range texts {
		cleaned := NormalizeEmbeddingInput(text)
		if cleaned == "" {
			return nil, errors.InvalidInput("text is empty after normalization")
		}
		normalized[i] = cleaned
	}

	req := openai.EmbeddingRequest{
		Input:      normalized,
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.dimensions,
	}

	var resp openai.EmbeddingResponse
	var err error
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, embeddingTimeout)
		resp, err = s.client.CreateEmbeddings(callCtx, req)
		cancel()
		if err == nil {
			break
		}
		if callErr := ctx.Err(); callErr != nil {
			return nil, errors.Timeout("embedding call deadline exceeded", callErr)
		}
		if attempt >= embeddingMaxRetries {
			return nil, errors.ProviderFailure("create embeddings failed", err)
		}
		select {
		case <-time.After(embeddingRetryBackoff << attempt):
		case <-ctx.Done():
			return nil, errors.Timeout("embedding call deadline exceeded", ctx.Err())
		}
	}

	// A partial batch is a hard failure, never silently truncated.
	if len(resp.Data) != len(normalized) {
		return nil, errors.ProviderFailure("embedding count mismatch", nil)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

func (s *embeddingService) Dimensions() int {
	return s.dimensions
}

// NormalizeEmbeddingInput trims, collapses whitespace (including line breaks)
// to single spaces, and truncates oversized input.
func NormalizeEmbeddingInput(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if len(cleaned) > embeddingMaxChars {
		runes := []rune(cleaned)
		if len(runes) > embeddingMaxChars {
			runes = runes[:embeddingMaxChars]
		}
		cleaned = string(runes)
	}
	return cleaned
}
