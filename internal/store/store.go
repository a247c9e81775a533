package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"unirag/internal/apperr"
	"unirag/internal/models"
)

// Store is the relational side of the system: the document registry and the
// conversation/feedback log. Vector data lives in the vector store.
type Store struct {
	db *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// InitSchema creates the relational tables if they do not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	tables := []any{
		(*DocumentRecord)(nil),
		(*ConversationRecord)(nil),
		(*MessageRecord)(nil),
		(*FeedbackRecord)(nil),
	}
	for _, model := range tables {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}
	return nil
}

// RunInTx exposes the store's transaction boundary to callers that need to
// combine registry writes with chunk writes.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return s.db.RunInTx(ctx, nil, fn)
}

// --- documents ---

func (s *Store) InsertDocument(ctx context.Context, doc models.Document) error {
	rec := &DocumentRecord{
		ID:         doc.ID,
		Filename:   doc.Filename,
		Category:   string(doc.Category),
		PageCount:  doc.PageCount,
		ChunkCount: doc.ChunkCount,
		FileSize:   doc.FileSize,
		UploadedAt: doc.UploadedAt,
	}
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var rec DocumentRecord
	err := s.db.NewSelect().Model(&rec).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "document %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	doc := toDocument(rec)
	return &doc, nil
}

// ListDocuments returns document metadata, optionally restricted to one
// category. Embeddings never travel through here.
func (s *Store) ListDocuments(ctx context.Context, category models.Category) ([]models.Document, error) {
	var recs []DocumentRecord
	q := s.db.NewSelect().Model(&recs).Order("uploaded_at DESC")
	if category != "" {
		q = q.Where("category = ?", string(category))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	docs := make([]models.Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, toDocument(rec))
	}
	return docs, nil
}

func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*DocumentRecord)(nil)).Count(ctx)
}

// DeleteDocument removes the registry row. Returns false when the id was
// unknown; that is a no-op, not an error.
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	return s.deleteDocument(ctx, s.db, id)
}

func (s *Store) DeleteDocumentTx(ctx context.Context, tx bun.Tx, id string) (bool, error) {
	return s.deleteDocument(ctx, tx, id)
}

func (s *Store) deleteDocument(ctx context.Context, db bun.IDB, id string) (bool, error) {
	res, err := db.NewDelete().Model((*DocumentRecord)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func toDocument(rec DocumentRecord) models.Document {
	return models.Document{
		ID:         rec.ID,
		Filename:   rec.Filename,
		Category:   models.Category(rec.Category),
		PageCount:  rec.PageCount,
		ChunkCount: rec.ChunkCount,
		FileSize:   rec.FileSize,
		UploadedAt: rec.UploadedAt,
	}
}

// clock is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }
