package models

import (
	"time"

	"unirag/internal/apperr"
)

// Category is the closed set of document categories. Free-form strings are
// rejected at every boundary.
type Category string

const (
	CategoryRules     Category = "rules"
	CategoryExams     Category = "exams"
	CategoryCourses   Category = "courses"
	CategoryHostel    Category = "hostel"
	CategoryTimetable Category = "timetable"
	CategoryNotices   Category = "notices"
	CategoryHandbook  Category = "handbook"
	CategoryOther     Category = "other"
)

// Categories lists all valid categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryRules, CategoryExams, CategoryCourses, CategoryHostel,
		CategoryTimetable, CategoryNotices, CategoryHandbook, CategoryOther,
	}
}

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if s == string(c) {
			return c, nil
		}
	}
	return "", apperr.Newf(apperr.InvalidConfig, "unknown category: %q", s)
}

// Page is a single unit of extracted text. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Chunk is the unit of embedding and retrieval. Immutable once created and
// owned by its document.
type Chunk struct {
	DocumentID   string
	DocumentName string
	Category     Category
	PageNumber   int
	ChunkIndex   int
	Content      string
	TokenCount   int
	Embedding    []float32
}

// SearchResult is a chunk ranked by cosine similarity (higher is better).
type SearchResult struct {
	Chunk      Chunk
	Similarity float64
}

// Citation points an answer back to the document and page it was grounded in.
type Citation struct {
	DocumentName   string  `json:"document_name"`
	PageNumber     int     `json:"page_number"`
	RelevanceScore float64 `json:"relevance_score"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a conversation. Append-only.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Citations  []Citation `json:"citations,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Document describes an ingested document. Embeddings are never carried here;
// metadata reads stay light.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Category   Category  `json:"category"`
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Stage identifies an ingestion pipeline phase, emitted as a discrete event
// stream to observers.
type Stage string

const (
	StageExtract Stage = "extract"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
	StageStore   Stage = "store"
)
