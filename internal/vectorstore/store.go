package vectorstore

import (
	"context"
	"fmt"

	"unirag/internal/models"
)

// Store persists chunk embeddings and answers similarity searches.
//
// Upsert is idempotent on (document id, chunk index). Search ranks by cosine
// similarity, higher first, ties broken by chunk index ascending; an empty
// store or an empty filter result yields an empty slice, never an error.
// DeleteByDocument is a no-op for unknown document ids.
type Store interface {
	Upsert(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, embedding []float32, topK int, category models.Category) ([]models.SearchResult, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	Count(ctx context.Context) (int, error)
	Dimensions() int
}

// ChunkKey is the stable record id for a chunk.
func ChunkKey(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, chunkIndex)
}
