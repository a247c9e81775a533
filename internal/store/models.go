package store

import (
	"time"

	"github.com/uptrace/bun"

	"unirag/internal/models"
)

type DocumentRecord struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID         string    `bun:"id,pk"`
	Filename   string    `bun:"filename,notnull"`
	Category   string    `bun:"category,notnull"`
	PageCount  int       `bun:"page_count,notnull"`
	ChunkCount int       `bun:"chunk_count,notnull"`
	FileSize   int64     `bun:"file_size,notnull"`
	UploadedAt time.Time `bun:"uploaded_at,notnull"`
}

type ConversationRecord struct {
	bun.BaseModel `bun:"table:conversations,alias:cv"`

	ID        string    `bun:"id,pk"`
	Preview   string    `bun:"preview,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type MessageRecord struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID             int64             `bun:"id,pk,autoincrement"`
	ConversationID string            `bun:"conversation_id,notnull"`
	MessageIndex   int               `bun:"message_index,notnull"`
	Role           string            `bun:"role,notnull"`
	Content        string            `bun:"content,notnull"`
	Citations      []models.Citation `bun:"citations,type:jsonb,nullzero"`
	Confidence     float64           `bun:"confidence"`
	IsError        bool              `bun:"is_error"`
	CreatedAt      time.Time         `bun:"created_at,notnull"`
}

type FeedbackRecord struct {
	bun.BaseModel `bun:"table:feedback,alias:f"`

	ID             int64     `bun:"id,pk,autoincrement"`
	ConversationID string    `bun:"conversation_id,notnull,unique:feedback_conv_msg"`
	MessageIndex   int       `bun:"message_index,notnull,unique:feedback_conv_msg"`
	IsHelpful      bool      `bun:"is_helpful,notnull"`
	FeedbackText   string    `bun:"feedback_text"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

// ConversationSummary is the listing shape: no messages, just enough for a
// sidebar.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Preview   string    `json:"preview"`
	UpdatedAt time.Time `json:"updated_at"`
}
