package chunker

import (
	"strings"

	"unirag/internal/apperr"
	"unirag/internal/models"
)

// Config bounds chunk size and overlap, both in tokens.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return apperr.Newf(apperr.InvalidConfig, "chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return apperr.Newf(apperr.InvalidConfig, "chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return apperr.Newf(apperr.InvalidConfig,
			"chunk overlap (%d) must be strictly less than chunk size (%d)",
			c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Chunker splits extracted pages into overlapping token windows. A pure
// function of its input and config: no I/O, no external calls.
type Chunker struct {
	tok Tokenizer
	cfg Config
}

func New(tok Tokenizer, cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{tok: tok, cfg: cfg}, nil
}

func (c *Chunker) Tokenizer() Tokenizer {
	return c.tok
}

// ChunkPages cuts the document's token stream into windows of ChunkSize
// tokens, consecutive windows sharing exactly ChunkOverlap tokens (the final
// window may be shorter). A chunk spanning a page boundary is tagged with the
// page its first token came from.
func (c *Chunker) ChunkPages(pages []models.Page, docID, docName string, category models.Category) []models.Chunk {
	var (
		tokens     []int
		pageStarts []int // token offset where each page begins
		pageNums   []int
	)
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		pageStarts = append(pageStarts, len(tokens))
		pageNums = append(pageNums, p.Number)
		tokens = append(tokens, c.tok.Encode(p.Text)...)
	}
	if len(tokens) == 0 {
		return nil
	}

	step := c.cfg.ChunkSize - c.cfg.ChunkOverlap

	var chunks []models.Chunk
	for start, idx := 0, 0; start < len(tokens); start, idx = start+step, idx+1 {
		end := start + c.cfg.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		chunks = append(chunks, models.Chunk{
			DocumentID:   docID,
			DocumentName: docName,
			Category:     category,
			PageNumber:   pageAt(pageStarts, pageNums, start),
			ChunkIndex:   idx,
			Content:      strings.TrimSpace(c.tok.Decode(window)),
			TokenCount:   len(window),
		})
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// pageAt returns the page number owning the token at offset.
func pageAt(pageStarts, pageNums []int, offset int) int {
	page := pageNums[0]
	for i, s := range pageStarts {
		if s > offset {
			break
		}
		page = pageNums[i]
	}
	return page
}
