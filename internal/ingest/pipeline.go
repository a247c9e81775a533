package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"unirag/internal/chunker"
	"unirag/internal/extractor"
	"unirag/internal/helper"
	"unirag/internal/models"
	"unirag/internal/store"
	"unirag/internal/vectorstore"
)

// Embedder is the slice of the embedding client the pipeline needs.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// txDeleter is implemented by vector stores that can delete inside the
// registry's transaction, so chunks and the document row go together.
type txDeleter interface {
	DeleteByDocumentTx(ctx context.Context, tx bun.Tx, documentID string) error
}

// Result reports what one upload produced.
type Result struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Category   string `json:"category"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// Pipeline runs a document through extraction, chunking, embedding and
// storage. A failure at any stage leaves no partial state behind.
type Pipeline struct {
	chunker   *chunker.Chunker
	embedder  Embedder
	vectors   vectorstore.Store
	registry  *store.Store
	uploadDir string
	onStage   func(models.Stage)
	logger    zerolog.Logger
}

func NewPipeline(ck *chunker.Chunker, embedder Embedder, vectors vectorstore.Store, registry *store.Store, uploadDir string, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		chunker:   ck,
		embedder:  embedder,
		vectors:   vectors,
		registry:  registry,
		uploadDir: uploadDir,
		logger:    logger.With().Str("component", "ingest").Logger(),
	}
}

// OnStage registers a callback invoked as each pipeline stage begins.
func (p *Pipeline) OnStage(fn func(models.Stage)) {
	p.onStage = fn
}

func (p *Pipeline) stage(s models.Stage) {
	if p.onStage != nil {
		p.onStage(s)
	}
}

// Ingest processes an uploaded file end to end and registers the document.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, filename string, category models.Category) (*Result, error) {
	start := time.Now()
	docID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}

	p.stage(models.StageExtract)
	pages, err := extractor.Extract(data, filename)
	if err != nil {
		return nil, err
	}

	p.stage(models.StageChunk)
	chunks := p.chunker.ChunkPages(pages, docID, filename, category)

	p.stage(models.StageEmbed)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	p.stage(models.StageStore)
	savedPath, err := p.saveFile(docID, filename, data)
	if err != nil {
		return nil, err
	}
	if err := p.vectors.Upsert(ctx, chunks); err != nil {
		p.removeFile(savedPath)
		return nil, err
	}
	doc := models.Document{
		ID:         docID,
		Filename:   filename,
		Category:   category,
		PageCount:  len(pages),
		ChunkCount: len(chunks),
		FileSize:   int64(len(data)),
		UploadedAt: time.Now().UTC(),
	}
	if err := p.registry.InsertDocument(ctx, doc); err != nil {
		p.removeFile(savedPath)
		if derr := p.vectors.DeleteByDocument(ctx, docID); derr != nil {
			p.logger.Error().Err(derr).Str("document_id", docID).Msg("Failed to roll back chunks")
		}
		return nil, err
	}

	p.logger.Info().
		Str("document_id", docID).
		Str("filename", filename).
		Str("category", string(category)).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Dur("elapsed", time.Since(start)).
		Msg("Document ingested")

	return &Result{
		DocumentID: docID,
		Filename:   filename,
		Category:   string(category),
		PageCount:  len(pages),
		ChunkCount: len(chunks),
		Status:     "success",
		Message:    fmt.Sprintf("Processed %d pages into %d chunks", len(pages), len(chunks)),
	}, nil
}

// Delete removes a document's chunks, registry row and stored file. It
// returns false when the document does not exist. When the vector store
// shares the registry's database, both deletes run in one transaction.
func (p *Pipeline) Delete(ctx context.Context, documentID string) (bool, error) {
	doc, err := p.registry.GetDocument(ctx, documentID)
	if err != nil {
		return false, err
	}

	if td, ok := p.vectors.(txDeleter); ok {
		var deleted bool
		err = p.registry.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			if err := td.DeleteByDocumentTx(ctx, tx, documentID); err != nil {
				return err
			}
			deleted, err = p.registry.DeleteDocumentTx(ctx, tx, documentID)
			return err
		})
		if err != nil {
			return false, err
		}
		p.removeFile(p.filePath(documentID, doc.Filename))
		return deleted, nil
	}

	// Chunks first: a crash between the two deletes leaves a registry row
	// without chunks, never orphaned chunks.
	if err := p.vectors.DeleteByDocument(ctx, documentID); err != nil {
		return false, err
	}
	deleted, err := p.registry.DeleteDocument(ctx, documentID)
	if err != nil {
		return false, err
	}
	p.removeFile(p.filePath(documentID, doc.Filename))
	return deleted, nil
}

func (p *Pipeline) filePath(docID, filename string) string {
	return filepath.Join(p.uploadDir, docID+"_"+filepath.Base(filename))
}

func (p *Pipeline) saveFile(docID, filename string, data []byte) (string, error) {
	if p.uploadDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := p.filePath(docID, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

func (p *Pipeline) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove stored file")
	}
}
