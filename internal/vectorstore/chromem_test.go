package vectorstore

import (
	"context"
	"testing"

	"unirag/internal/models"
)

const testDims = 4

// basis returns a unit vector along one axis, so cosine similarity in tests
// is exactly 1 for a match and 0 for everything else.
func basis(axis int) []float32 {
	v := make([]float32, testDims)
	v[axis%testDims] = 1
	return v
}

func testChunk(docID string, idx int, category models.Category, axis int) models.Chunk {
	return models.Chunk{
		DocumentID:   docID,
		DocumentName: docID + ".pdf",
		Category:     category,
		PageNumber:   idx + 1,
		ChunkIndex:   idx,
		Content:      "chunk content",
		TokenCount:   3,
		Embedding:    basis(axis),
	}
}

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	s, err := NewMemoryStore(testDims)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestSearch_EmptyStore(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Search(context.Background(), basis(0), 5, "")
	if err != nil {
		t.Fatalf("empty store search must not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []models.Chunk{
		testChunk("doc-a", 0, models.CategoryRules, 0),
		testChunk("doc-a", 1, models.CategoryRules, 1),
		testChunk("doc-a", 2, models.CategoryRules, 2),
	}
	if err := s.Upsert(ctx, chunks); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := s.Upsert(ctx, chunks); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 records after repeated upsert, got %d", count)
	}
}

func TestSearch_TopKClampedToStoreSize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, []models.Chunk{
		testChunk("doc-a", 0, models.CategoryExams, 0),
		testChunk("doc-a", 1, models.CategoryExams, 1),
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	results, err := s.Search(ctx, basis(0), 10, "")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ChunkIndex != 0 {
		t.Fatalf("expected the matching chunk ranked first, got index %d", results[0].Chunk.ChunkIndex)
	}
	if results[0].Similarity < 0.99 {
		t.Fatalf("expected similarity near 1 for exact match, got %f", results[0].Similarity)
	}
}

func TestSearch_CategoryFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, []models.Chunk{
		testChunk("doc-a", 0, models.CategoryRules, 0),
		testChunk("doc-a", 1, models.CategoryRules, 1),
		testChunk("doc-b", 0, models.CategoryHostel, 0),
		testChunk("doc-b", 1, models.CategoryHostel, 2),
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	results, err := s.Search(ctx, basis(0), 2, models.CategoryHostel)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected filtered results")
	}
	for _, r := range results {
		if r.Chunk.Category != models.CategoryHostel {
			t.Fatalf("category filter leaked chunk with category %q", r.Chunk.Category)
		}
	}
}

func TestSearch_MetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := models.Chunk{
		DocumentID:   "doc-a",
		DocumentName: "handbook.pdf",
		Category:     models.CategoryHandbook,
		PageNumber:   7,
		ChunkIndex:   3,
		Content:      "minimum attendance is 75%",
		TokenCount:   5,
		Embedding:    basis(1),
	}
	if err := s.Upsert(ctx, []models.Chunk{want}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	results, err := s.Search(ctx, basis(1), 1, "")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := results[0].Chunk
	if got.DocumentID != want.DocumentID || got.DocumentName != want.DocumentName {
		t.Fatalf("document identity lost: %+v", got)
	}
	if got.PageNumber != want.PageNumber || got.ChunkIndex != want.ChunkIndex {
		t.Fatalf("position metadata lost: %+v", got)
	}
	if got.Content != want.Content {
		t.Fatalf("content lost: %q", got.Content)
	}
}

func TestDeleteByDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, []models.Chunk{
		testChunk("doc-a", 0, models.CategoryRules, 0),
		testChunk("doc-a", 1, models.CategoryRules, 1),
		testChunk("doc-b", 0, models.CategoryRules, 2),
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if err := s.DeleteByDocument(ctx, "doc-a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record after delete, got %d", count)
	}

	results, err := s.Search(ctx, basis(0), 3, "")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, r := range results {
		if r.Chunk.DocumentID == "doc-a" {
			t.Fatalf("deleted document still retrievable")
		}
	}
}

func TestDeleteByDocument_EmptyStore(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteByDocument(context.Background(), "missing"); err != nil {
		t.Fatalf("delete on empty store must be a no-op, got %v", err)
	}
}
