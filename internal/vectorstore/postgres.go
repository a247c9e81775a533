package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/uptrace/bun"

	"unirag/internal/models"
)

// ChunkRecord is a chunk row in the pgvector-backed chunks table.
type ChunkRecord struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID           string    `bun:"id,pk"`
	DocumentID   string    `bun:"document_id,notnull"`
	DocumentName string    `bun:"document_name,notnull"`
	Category     string    `bun:"category,notnull"`
	PageNumber   int       `bun:"page_number,notnull"`
	ChunkIndex   int       `bun:"chunk_index,notnull"`
	Content      string    `bun:"content,notnull"`
	Embedding    []float32 `bun:"embedding,notnull"`
	Similarity   float64   `bun:"similarity,scanonly"`
}

// PostgresStore keeps vectors in Postgres with the pgvector extension,
// sharing the relational store's connection.
type PostgresStore struct {
	db         *bun.DB
	dimensions int
}

func NewPostgresStore(db *bun.DB, dimensions int) *PostgresStore {
	return &PostgresStore{db: db, dimensions: dimensions}
}

func (s *PostgresStore) Dimensions() int {
	return s.dimensions
}

// Init creates the chunks table with the configured vector width. The
// pgvector extension itself is provisioned externally.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
		id text PRIMARY KEY,
		document_id text NOT NULL,
		document_name text NOT NULL,
		category text NOT NULL,
		page_number integer NOT NULL,
		chunk_index integer NOT NULL,
		content text NOT NULL,
		embedding vector(%d) NOT NULL
	)`, s.dimensions))
	if err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS chunks_document_id_idx ON chunks (document_id)`)
	if err != nil {
		return fmt.Errorf("failed to create chunks index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	recs := make([]ChunkRecord, 0, len(chunks))
	for _, c := range chunks {
		recs = append(recs, ChunkRecord{
			ID:           ChunkKey(c.DocumentID, c.ChunkIndex),
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			Category:     string(c.Category),
			PageNumber:   c.PageNumber,
			ChunkIndex:   c.ChunkIndex,
			Content:      c.Content,
			Embedding:    c.Embedding,
		})
	}
	_, err := s.db.NewInsert().
		Model(&recs).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Set("document_name = EXCLUDED.document_name").
		Set("category = EXCLUDED.category").
		Set("page_number = EXCLUDED.page_number").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, embedding []float32, topK int, category models.Category) ([]models.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	vec := vectorLiteral(embedding)

	var recs []ChunkRecord
	q := s.db.NewSelect().
		Model(&recs).
		Column("document_id", "document_name", "category", "page_number", "chunk_index", "content").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", vec).
		OrderExpr("embedding <=> ? ASC, chunk_index ASC", vec).
		Limit(topK)
	if category != "" {
		q = q.Where("category = ?", string(category))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	out := make([]models.SearchResult, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.SearchResult{
			Chunk: models.Chunk{
				DocumentID:   r.DocumentID,
				DocumentName: r.DocumentName,
				Category:     models.Category(r.Category),
				PageNumber:   r.PageNumber,
				ChunkIndex:   r.ChunkIndex,
				Content:      r.Content,
			},
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

func (s *PostgresStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.deleteByDocument(ctx, s.db, documentID)
}

// DeleteByDocumentTx removes a document's chunks inside an existing
// transaction, so registry row and chunks go together or not at all.
func (s *PostgresStore) DeleteByDocumentTx(ctx context.Context, tx bun.Tx, documentID string) error {
	return s.deleteByDocument(ctx, tx, documentID)
}

func (s *PostgresStore) deleteByDocument(ctx context.Context, db bun.IDB, documentID string) error {
	_, err := db.NewDelete().
		Model((*ChunkRecord)(nil)).
		Where("document_id = ?", documentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for document %s: %w", documentID, err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*ChunkRecord)(nil)).Count(ctx)
}

// vectorLiteral renders an embedding in pgvector's input syntax.
func vectorLiteral(v []float32) string {
	buf := make([]byte, 0, len(v)*10)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(f), 'g', -1, 32)
	}
	buf = append(buf, ']')
	return string(buf)
}
