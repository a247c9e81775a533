package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"unirag/internal/helper"
	"unirag/internal/models"
	"unirag/internal/rag"
	"unirag/internal/store"
)

// apologyMessage is what the assistant says when generation fails. The
// conversation keeps going; the real error goes to the log.
const apologyMessage = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."

// Answerer is the slice of the RAG chain the chat service needs.
type Answerer interface {
	Run(ctx context.Context, question string, category models.Category, history []models.Message) (*rag.Answer, error)
}

// Response is the outcome of one chat turn.
type Response struct {
	ConversationID string            `json:"conversation_id"`
	Message        string            `json:"message"`
	Citations      []models.Citation `json:"citations"`
	Confidence     float64           `json:"confidence"`
	ProcessingTime float64           `json:"processing_time"`
}

// Service ties the RAG chain to conversation persistence.
type Service struct {
	answerer Answerer
	store    *store.Store
	logger   zerolog.Logger
}

func NewService(answerer Answerer, st *store.Store, logger zerolog.Logger) *Service {
	return &Service{
		answerer: answerer,
		store:    st,
		logger:   logger.With().Str("component", "chat").Logger(),
	}
}

// Chat answers one user message within a conversation, creating the
// conversation when no id is given. A generation failure is folded into the
// conversation as an error-flagged assistant message instead of failing the
// call.
func (s *Service) Chat(ctx context.Context, message, conversationID string, category models.Category) (*Response, error) {
	start := time.Now()

	if conversationID == "" {
		id, err := helper.GenerateUUID()
		if err != nil {
			return nil, err
		}
		conversationID = id
	}

	history, err := s.store.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg := models.Message{
		Role:      models.RoleUser,
		Content:   message,
		CreatedAt: time.Now().UTC(),
	}
	var assistantMsg models.Message

	answer, err := s.answerer.Run(ctx, message, category, history)
	if err != nil {
		s.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Answer failed")
		assistantMsg = models.Message{
			Role:      models.RoleAssistant,
			Content:   apologyMessage,
			IsError:   true,
			CreatedAt: time.Now().UTC(),
		}
	} else {
		assistantMsg = models.Message{
			Role:       models.RoleAssistant,
			Content:    answer.Content,
			Citations:  answer.Citations,
			Confidence: answer.Confidence,
			CreatedAt:  time.Now().UTC(),
		}
	}

	if err := s.store.AppendMessages(ctx, conversationID, []models.Message{userMsg, assistantMsg}); err != nil {
		return nil, err
	}

	return &Response{
		ConversationID: conversationID,
		Message:        assistantMsg.Content,
		Citations:      assistantMsg.Citations,
		Confidence:     assistantMsg.Confidence,
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

// History returns a conversation's messages in order.
func (s *Service) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.store.GetMessages(ctx, conversationID)
}

// Conversations lists all conversations, most recently active first.
func (s *Service) Conversations(ctx context.Context) ([]store.ConversationSummary, error) {
	return s.store.ListConversations(ctx)
}

// DeleteConversation removes a conversation and everything attached to it.
// It returns false when the conversation does not exist.
func (s *Service) DeleteConversation(ctx context.Context, conversationID string) (bool, error) {
	return s.store.DeleteConversation(ctx, conversationID)
}

// Feedback records whether a message helped. Resubmitting for the same
// message overwrites the earlier verdict.
func (s *Service) Feedback(ctx context.Context, conversationID string, messageIndex int, isHelpful bool, feedbackText string) error {
	return s.store.UpsertFeedback(ctx, conversationID, messageIndex, isHelpful, feedbackText)
}

var categoryQuestions = map[models.Category]string{
	models.CategoryRules:     "What are the main campus rules I should know?",
	models.CategoryExams:     "What are the exam policies and requirements?",
	models.CategoryCourses:   "How do I register for courses?",
	models.CategoryHostel:    "What are the hostel accommodation rules?",
	models.CategoryTimetable: "What is the class schedule?",
	models.CategoryNotices:   "Are there any important announcements?",
	models.CategoryHandbook:  "What should I know as a new student?",
}

// Suggestions proposes starter questions based on which document categories
// are populated. An empty library gets onboarding hints instead.
func (s *Service) Suggestions(ctx context.Context) ([]string, error) {
	docs, err := s.store.ListDocuments(ctx, "")
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []string{
			"Upload a document to get started!",
			"I can answer questions about university rules, courses, exams, and more.",
		}, nil
	}

	seen := make(map[models.Category]bool)
	var suggestions []string
	for _, d := range docs {
		if seen[d.Category] {
			continue
		}
		seen[d.Category] = true
		if q, ok := categoryQuestions[d.Category]; ok {
			suggestions = append(suggestions, q)
		}
	}
	suggestions = append(suggestions, "What documents are available?")
	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions, nil
}
