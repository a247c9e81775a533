package embedding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/errgroup"

	"unirag/internal/apperr"
	"unirag/internal/config"
)

// Provider is the embedding backend. Satisfied by langchaingo's openai.LLM.
type Provider interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewOpenAIProvider builds the langchaingo client used in production.
func NewOpenAIProvider(cfg *config.OpenAIConfig) (*openai.LLM, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

const (
	maxRetries     = 3
	maxConcurrency = 4
	initialBackoff = time.Second
)

// Client embeds texts through a provider, splitting requests into bounded
// batches and retrying transient failures with exponential backoff. Output
// order always matches input order: each batch writes into its pre-assigned
// slot, regardless of completion order.
type Client struct {
	provider   Provider
	batchSize  int
	dimensions int
	timeout    time.Duration
	logger     zerolog.Logger
}

func NewClient(provider Provider, batchSize, dimensions int, timeout time.Duration, logger zerolog.Logger) *Client {
	if batchSize <= 0 {
		batchSize = 100
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		provider:   provider,
		batchSize:  batchSize,
		dimensions: dimensions,
		timeout:    timeout,
		logger:     logger.With().Str("component", "embedding").Logger(),
	}
}

// Dimensions returns the configured vector width. Checked against the vector
// store once at startup.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds texts and returns vectors parallel to the input.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			batch, err := c.embedBatch(ctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug().Int("texts", len(texts)).Msg("Embeddings generated")
	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff << uint(attempt-1)
			c.logger.Warn().
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Retrying embedding batch")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		vectors, err := c.tryBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !isTransient(err) {
			return nil, apperr.Wrap(apperr.EmbeddingServiceError, "embedding request rejected", err)
		}
		lastErr = err
	}
	return nil, apperr.Wrap(apperr.EmbeddingServiceError, "embedding service unavailable after retries", lastErr)
}

func (c *Client) tryBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vectors, err := c.provider.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, apperr.Newf(apperr.EmbeddingServiceError,
			"expected %d embeddings, got %d", len(texts), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != c.dimensions {
			return nil, apperr.Newf(apperr.EmbeddingServiceError,
				"embedding dimension mismatch: expected %d, got %d", c.dimensions, len(v))
		}
	}
	return vectors, nil
}

// isTransient reports whether the provider failure is worth retrying.
// Authentication and malformed-input errors surface immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if apperr.KindOf(err) == apperr.EmbeddingServiceError {
		// Our own validation failures are not provider flakiness.
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"429", "rate limit", "timeout", "deadline exceeded", "500", "502", "503", "connection refused", "connection reset", "temporarily"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
