package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"unirag/internal/models"
)

const (
	collectionName = "university_documents"
	compress       = false
)

// ChromemStore keeps vectors in a chromem collection, persisted on disk for
// the local backend or purely in memory for tests.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimensions int
}

// NewLocalStore opens (or creates) a persistent chromem database under path.
func NewLocalStore(path string, dimensions int) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	return newChromemStore(db, dimensions)
}

// NewMemoryStore creates a volatile store.
func NewMemoryStore(dimensions int) (*ChromemStore, error) {
	return newChromemStore(chromem.NewDB(), dimensions)
}

func newChromemStore(db *chromem.DB, dimensions int) (*ChromemStore, error) {
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	return &ChromemStore{db: db, collection: c, dimensions: dimensions}, nil
}

func (s *ChromemStore) Dimensions() int {
	return s.dimensions
}

// Upsert writes chunk records. chromem keys documents by ID, so re-adding the
// same (document id, chunk index) overwrites instead of duplicating.
func (s *ChromemStore) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:        ChunkKey(c.DocumentID, c.ChunkIndex),
			Content:   c.Content,
			Embedding: c.Embedding,
			Metadata: map[string]string{
				"document_id":   c.DocumentID,
				"document_name": c.DocumentName,
				"category":      string(c.Category),
				"page_number":   strconv.Itoa(c.PageNumber),
				"chunk_index":   strconv.Itoa(c.ChunkIndex),
			},
		})
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, embedding []float32, topK int, category models.Category) ([]models.SearchResult, error) {
	count := s.collection.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	opts := chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       topK,
	}
	if category != "" {
		opts.Where = map[string]string{"category": string(category)}
	}

	results, err := s.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		page, _ := strconv.Atoi(r.Metadata["page_number"])
		idx, _ := strconv.Atoi(r.Metadata["chunk_index"])
		out = append(out, models.SearchResult{
			Chunk: models.Chunk{
				DocumentID:   r.Metadata["document_id"],
				DocumentName: r.Metadata["document_name"],
				Category:     models.Category(r.Metadata["category"]),
				PageNumber:   page,
				ChunkIndex:   idx,
				Content:      r.Content,
			},
			Similarity: float64(r.Similarity),
		})
	}

	// chromem's ordering is by similarity only; make ties deterministic.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Chunk.ChunkIndex < out[j].Chunk.ChunkIndex
	})
	return out, nil
}

func (s *ChromemStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	where := map[string]string{"document_id": documentID}
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}
