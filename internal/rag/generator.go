package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"unirag/internal/config"
)

// Generator produces an answer from an ordered message sequence.
type Generator interface {
	Generate(ctx context.Context, messages []llms.MessageContent) (string, error)
}

// OpenAIGenerator calls the chat model through langchaingo.
type OpenAIGenerator struct {
	llm     *openai.LLM
	timeout time.Duration
}

func NewOpenAIGenerator(cfg *config.OpenAIConfig) (*OpenAIGenerator, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithModel(cfg.LLMModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &OpenAIGenerator{
		llm:     llm,
		timeout: time.Duration(cfg.Timeout) * time.Second,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(1000),
	)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return res.Choices[0].Content, nil
}

// transientGeneration reports whether a generation failure is worth the
// single retry the chain allows.
func transientGeneration(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"429", "rate limit", "timeout", "deadline exceeded", "500", "502", "503", "connection refused", "connection reset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
