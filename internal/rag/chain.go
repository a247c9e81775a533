package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"unirag/internal/apperr"
	"unirag/internal/chunker"
	"unirag/internal/models"
	"unirag/internal/vectorstore"
)

// Embedder is the slice of the embedding client the chain needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Options tune retrieval and context assembly.
type Options struct {
	TopK          int
	ContextBudget int // tokens of retrieved context allowed into the prompt
	HistoryTurns  int // prior messages carried into the prompt
}

// Answer is the outcome of one query through the chain.
type Answer struct {
	Content    string
	Citations  []models.Citation
	Confidence float64
}

// Chain runs a query through embed, retrieve, assemble, generate and citation
// extraction. Persistence stays with the caller.
type Chain struct {
	embedder  Embedder
	store     vectorstore.Store
	generator Generator
	tok       chunker.Tokenizer
	opts      Options
	logger    zerolog.Logger
}

func NewChain(embedder Embedder, store vectorstore.Store, generator Generator, tok chunker.Tokenizer, opts Options, logger zerolog.Logger) *Chain {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.ContextBudget <= 0 {
		opts.ContextBudget = 3000
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 10
	}
	return &Chain{
		embedder:  embedder,
		store:     store,
		generator: generator,
		tok:       tok,
		opts:      opts,
		logger:    logger.With().Str("component", "rag").Logger(),
	}
}

// Run answers a question against the store, optionally restricted to one
// category, with prior turns for multi-turn continuity.
func (c *Chain) Run(ctx context.Context, question string, category models.Category, history []models.Message) (*Answer, error) {
	start := time.Now()

	queryEmbedding, err := c.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	results, err := c.store.Search(ctx, queryEmbedding, c.opts.TopK, category)
	if err != nil {
		return nil, err
	}

	contextText, citations := c.assembleContext(results)

	answer, err := c.generate(ctx, question, contextText, history)
	if err != nil {
		return nil, err
	}

	confidence := meanSimilarity(results[:len(citations)])

	c.logger.Info().
		Int("retrieved", len(results)).
		Int("cited", len(citations)).
		Float64("confidence", confidence).
		Dur("elapsed", time.Since(start)).
		Msg("Query answered")

	return &Answer{
		Content:    answer,
		Citations:  citations,
		Confidence: confidence,
	}, nil
}

// assembleContext concatenates retrieved chunks in rank order, each annotated
// with its source, until the token budget is spent. Lowest-ranked chunks are
// the ones dropped. Citations cover exactly the chunks that made it in.
func (c *Chain) assembleContext(results []models.SearchResult) (string, []models.Citation) {
	var (
		contextText string
		citations   []models.Citation
		used        int
	)
	for _, r := range results {
		part := fmt.Sprintf("[Source: %s, Page %d]\n%s\n", r.Chunk.DocumentName, r.Chunk.PageNumber, r.Chunk.Content)
		cost := c.tok.Count(part)
		if used+cost > c.opts.ContextBudget && len(citations) > 0 {
			break
		}
		if contextText != "" {
			contextText += "\n---\n"
		}
		contextText += part
		used += cost
		citations = append(citations, models.Citation{
			DocumentName:   r.Chunk.DocumentName,
			PageNumber:     r.Chunk.PageNumber,
			RelevanceScore: r.Similarity,
		})
	}
	return contextText, citations
}

func (c *Chain) generate(ctx context.Context, question, contextText string, history []models.Message) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
	}

	if len(history) > c.opts.HistoryTurns {
		history = history[len(history)-c.opts.HistoryTurns:]
	}
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}

	var user string
	if contextText == "" {
		user = fmt.Sprintf(noContextTemplate, question)
	} else {
		user = fmt.Sprintf(contextTemplate, contextText, question)
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, user))

	answer, err := c.generator.Generate(ctx, messages)
	if err != nil && transientGeneration(err) {
		c.logger.Warn().Err(err).Msg("Generation failed, retrying once")
		answer, err = c.generator.Generate(ctx, messages)
	}
	if err != nil {
		// Provider internals stay in the log, not in the user-facing message.
		c.logger.Error().Err(err).Msg("Generation failed")
		return "", apperr.Wrap(apperr.GenerationError, "failed to generate a response", err)
	}
	return answer, nil
}

func meanSimilarity(results []models.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Similarity
	}
	mean := sum / float64(len(results))
	if mean < 0 {
		return 0
	}
	if mean > 1 {
		return 1
	}
	return mean
}
