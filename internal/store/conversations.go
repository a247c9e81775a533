package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/uptrace/bun"

	"unirag/internal/apperr"
	"unirag/internal/models"
)

const previewLength = 100

// AppendMessages appends msgs to the conversation, creating it on first use.
// The whole append runs in one transaction that updates the conversation row
// first, so two concurrent appends on the same conversation serialize on the
// row lock instead of losing indexes.
func (s *Store) AppendMessages(ctx context.Context, conversationID string, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ts := now()
		res, err := tx.NewUpdate().
			Model((*ConversationRecord)(nil)).
			Set("updated_at = ?", ts).
			Where("id = ?", conversationID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			rec := &ConversationRecord{
				ID:        conversationID,
				Preview:   previewOf(msgs),
				CreatedAt: ts,
				UpdatedAt: ts,
			}
			if _, err := tx.NewInsert().Model(rec).Exec(ctx); err != nil {
				return fmt.Errorf("failed to create conversation: %w", err)
			}
		}

		count, err := tx.NewSelect().
			Model((*MessageRecord)(nil)).
			Where("conversation_id = ?", conversationID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count messages: %w", err)
		}

		recs := make([]MessageRecord, 0, len(msgs))
		for i, m := range msgs {
			createdAt := m.CreatedAt
			if createdAt.IsZero() {
				createdAt = ts
			}
			recs = append(recs, MessageRecord{
				ConversationID: conversationID,
				MessageIndex:   count + i,
				Role:           m.Role,
				Content:        m.Content,
				Citations:      m.Citations,
				Confidence:     m.Confidence,
				IsError:        m.IsError,
				CreatedAt:      createdAt,
			})
		}
		if _, err := tx.NewInsert().Model(&recs).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert messages: %w", err)
		}
		return nil
	})
}

func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var recs []MessageRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("conversation_id = ?", conversationID).
		Order("message_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	msgs := make([]models.Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, models.Message{
			Role:       rec.Role,
			Content:    rec.Content,
			Citations:  rec.Citations,
			Confidence: rec.Confidence,
			IsError:    rec.IsError,
			CreatedAt:  rec.CreatedAt,
		})
	}
	return msgs, nil
}

func (s *Store) ConversationExists(ctx context.Context, conversationID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*ConversationRecord)(nil)).
		Where("id = ?", conversationID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check conversation: %w", err)
	}
	return exists, nil
}

func (s *Store) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var recs []ConversationRecord
	err := s.db.NewSelect().Model(&recs).Order("updated_at DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	summaries := make([]ConversationSummary, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, ConversationSummary{
			ID:        rec.ID,
			Preview:   rec.Preview,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	return summaries, nil
}

// DeleteConversation removes the conversation with its messages and feedback
// in one transaction. Unknown ids are a no-op.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) (bool, error) {
	var deleted bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*FeedbackRecord)(nil)).
			Where("conversation_id = ?", conversationID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete feedback: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*MessageRecord)(nil)).
			Where("conversation_id = ?", conversationID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		res, err := tx.NewDelete().
			Model((*ConversationRecord)(nil)).
			Where("id = ?", conversationID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		affected, _ := res.RowsAffected()
		deleted = affected > 0
		return nil
	})
	return deleted, err
}

// UpsertFeedback records feedback for a message. Resubmitting for the same
// (conversation, message index) overwrites the earlier record.
func (s *Store) UpsertFeedback(ctx context.Context, conversationID string, messageIndex int, isHelpful bool, feedbackText string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		count, err := tx.NewSelect().
			Model((*MessageRecord)(nil)).
			Where("conversation_id = ?", conversationID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count messages: %w", err)
		}
		if messageIndex < 0 || messageIndex >= count {
			return apperr.Newf(apperr.InvalidMessageIndex,
				"message index %d out of range for conversation with %d messages", messageIndex, count)
		}

		rec := &FeedbackRecord{
			ConversationID: conversationID,
			MessageIndex:   messageIndex,
			IsHelpful:      isHelpful,
			FeedbackText:   feedbackText,
			CreatedAt:      now(),
		}
		_, err = tx.NewInsert().
			Model(rec).
			On("CONFLICT (conversation_id, message_index) DO UPDATE").
			Set("is_helpful = EXCLUDED.is_helpful").
			Set("feedback_text = EXCLUDED.feedback_text").
			Set("created_at = EXCLUDED.created_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save feedback: %w", err)
		}
		return nil
	})
}

func (s *Store) GetFeedback(ctx context.Context, conversationID string, messageIndex int) (*FeedbackRecord, error) {
	var rec FeedbackRecord
	err := s.db.NewSelect().
		Model(&rec).
		Where("conversation_id = ?", conversationID).
		Where("message_index = ?", messageIndex).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "no feedback for message %d", messageIndex)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return &rec, nil
}

// previewOf derives the conversation preview from the first user message.
func previewOf(msgs []models.Message) string {
	for _, m := range msgs {
		if m.Role == models.RoleUser {
			return truncate(m.Content, previewLength)
		}
	}
	return truncate(msgs[0].Content, previewLength)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
