package ai

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/promptlens/promptlens/internal/errors"
)

// llmTimeout is the deadline for one chat completion call.
const llmTimeout = 60 * time.Second

// LLMService is the chat completion service interface.
type LLMService interface {
	// Complete sends a single-turn instruction and returns the raw model text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type llmService struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewLLMService creates a new LLMService backed by an OpenAI-compatible provider.
func NewLLMService(cfg *LLMConfig) LLMService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &llmService{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

func (s *llmService) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	callCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		if callCtx.Err() != nil {
			return "", errors.Timeout("chat completion deadline exceeded", err)
		}
		return "", errors.ProviderFailure("chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.ProviderFailure("empty chat completion response", nil)
	}
	return resp.Choices[0].Message.Content, nil
}
