package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"unirag/internal/apperr"
	"unirag/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	s := New(db)
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return s
}

func testDocument(id string, category models.Category) models.Document {
	return models.Document{
		ID:         id,
		Filename:   id + ".pdf",
		Category:   category,
		PageCount:  3,
		ChunkCount: 12,
		FileSize:   2048,
		UploadedAt: time.Now().UTC(),
	}
}

func TestDocuments_InsertGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := testDocument("doc-1", models.CategoryRules)
	if err := s.InsertDocument(ctx, doc); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Filename != doc.Filename || got.Category != doc.Category || got.ChunkCount != doc.ChunkCount {
		t.Fatalf("document round trip mismatch: %+v", got)
	}

	deleted, err := s.DeleteDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !deleted {
		t.Fatalf("expected delete to report true")
	}

	if _, err := s.GetDocument(ctx, "doc-1"); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	deleted, err = s.DeleteDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	if deleted {
		t.Fatalf("expected second delete to be a no-op")
	}
}

func TestDocuments_ListByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, d := range []models.Document{
		testDocument("doc-1", models.CategoryRules),
		testDocument("doc-2", models.CategoryHostel),
		testDocument("doc-3", models.CategoryRules),
	} {
		if err := s.InsertDocument(ctx, d); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	all, err := s.ListDocuments(ctx, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(all))
	}

	rules, err := s.ListDocuments(ctx, models.CategoryRules)
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules documents, got %d", len(rules))
	}
	for _, d := range rules {
		if d.Category != models.CategoryRules {
			t.Fatalf("filter leaked document with category %q", d.Category)
		}
	}

	count, err := s.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestAppendMessages_IndexesAndRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []models.Message{
		{Role: models.RoleUser, Content: "What is the attendance requirement?"},
		{Role: models.RoleAssistant, Content: "Minimum attendance is 75%.", Confidence: 0.9,
			Citations: []models.Citation{{DocumentName: "handbook.pdf", PageNumber: 4, RelevanceScore: 0.91}}},
	}
	if err := s.AppendMessages(ctx, "conv-1", first); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	second := []models.Message{
		{Role: models.RoleUser, Content: "And for labs?"},
		{Role: models.RoleAssistant, Content: "Labs require full attendance.", IsError: false},
	}
	if err := s.AppendMessages(ctx, "conv-1", second); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	msgs, err := s.GetMessages(ctx, "conv-1")
	if err != nil {
		t.Fatalf("get messages failed: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	wantRoles := []string{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Fatalf("message %d has role %q, want %q", i, m.Role, wantRoles[i])
		}
	}
	if len(msgs[1].Citations) != 1 || msgs[1].Citations[0].DocumentName != "handbook.pdf" {
		t.Fatalf("citations did not round trip: %+v", msgs[1].Citations)
	}
	if msgs[1].Confidence != 0.9 {
		t.Fatalf("confidence did not round trip: %v", msgs[1].Confidence)
	}
}

func TestAppendMessages_PreviewFromFirstUserMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("attendance ", 20)
	msgs := []models.Message{
		{Role: models.RoleUser, Content: long},
		{Role: models.RoleAssistant, Content: "answer"},
	}
	if err := s.AppendMessages(ctx, "conv-1", msgs); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	summaries, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(summaries))
	}
	preview := summaries[0].Preview
	if !strings.HasSuffix(preview, "...") {
		t.Fatalf("expected truncated preview, got %q", preview)
	}
	if len([]rune(preview)) != previewLength+3 {
		t.Fatalf("expected preview of %d runes plus ellipsis, got %d", previewLength, len([]rune(preview)))
	}
}

func TestListConversations_MostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	orig := now
	now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	defer func() { now = orig }()

	for _, id := range []string{"conv-a", "conv-b"} {
		if err := s.AppendMessages(ctx, id, []models.Message{{Role: models.RoleUser, Content: "hi"}}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	// conv-a becomes the most recently active again.
	if err := s.AppendMessages(ctx, "conv-a", []models.Message{{Role: models.RoleUser, Content: "again"}}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	summaries, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(summaries))
	}
	if summaries[0].ID != "conv-a" {
		t.Fatalf("expected conv-a first, got %s", summaries[0].ID)
	}
}

func TestDeleteConversation_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msgs := []models.Message{
		{Role: models.RoleUser, Content: "question"},
		{Role: models.RoleAssistant, Content: "answer"},
	}
	if err := s.AppendMessages(ctx, "conv-1", msgs); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.UpsertFeedback(ctx, "conv-1", 1, true, "helpful"); err != nil {
		t.Fatalf("feedback failed: %v", err)
	}

	deleted, err := s.DeleteConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !deleted {
		t.Fatalf("expected delete to report true")
	}

	remaining, err := s.GetMessages(ctx, "conv-1")
	if err != nil {
		t.Fatalf("get messages failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no messages after delete, got %d", len(remaining))
	}
	if _, err := s.GetFeedback(ctx, "conv-1", 1); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected feedback gone, got %v", err)
	}

	deleted, err = s.DeleteConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	if deleted {
		t.Fatalf("expected second delete to be a no-op")
	}
}

func TestUpsertFeedback_Overwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msgs := []models.Message{
		{Role: models.RoleUser, Content: "question"},
		{Role: models.RoleAssistant, Content: "answer"},
	}
	if err := s.AppendMessages(ctx, "conv-1", msgs); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := s.UpsertFeedback(ctx, "conv-1", 1, true, "great"); err != nil {
		t.Fatalf("first feedback failed: %v", err)
	}
	if err := s.UpsertFeedback(ctx, "conv-1", 1, false, "actually wrong"); err != nil {
		t.Fatalf("second feedback failed: %v", err)
	}

	rec, err := s.GetFeedback(ctx, "conv-1", 1)
	if err != nil {
		t.Fatalf("get feedback failed: %v", err)
	}
	if rec.IsHelpful {
		t.Fatalf("expected overwrite to flip is_helpful")
	}
	if rec.FeedbackText != "actually wrong" {
		t.Fatalf("expected overwritten text, got %q", rec.FeedbackText)
	}
}

func TestUpsertFeedback_InvalidIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msgs := []models.Message{
		{Role: models.RoleUser, Content: "question"},
		{Role: models.RoleAssistant, Content: "answer"},
	}
	if err := s.AppendMessages(ctx, "conv-1", msgs); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	for _, idx := range []int{-1, 2, 100} {
		err := s.UpsertFeedback(ctx, "conv-1", idx, true, "")
		if !apperr.Is(err, apperr.InvalidMessageIndex) {
			t.Fatalf("expected invalid message index for %d, got %v", idx, err)
		}
	}

	// The conversation itself is untouched.
	got, err := s.GetMessages(ctx, "conv-1")
	if err != nil {
		t.Fatalf("get messages failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected conversation unchanged, got %d messages", len(got))
	}
}

func TestConversationExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.ConversationExists(ctx, "conv-1")
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if exists {
		t.Fatalf("expected conversation to not exist yet")
	}

	if err := s.AppendMessages(ctx, "conv-1", []models.Message{{Role: models.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	exists, err = s.ConversationExists(ctx, "conv-1")
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if !exists {
		t.Fatalf("expected conversation to exist")
	}
}
