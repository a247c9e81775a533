package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"unirag/internal/apperr"
	"unirag/internal/chat"
	"unirag/internal/ingest"
	"unirag/internal/models"
	"unirag/internal/store"
)

// maxUploadBytes bounds how much of a multipart body is held in memory.
const maxUploadBytes = 32 << 20

type APIHandler struct {
	pipeline *ingest.Pipeline
	chat     *chat.Service
	registry *store.Store
	logger   zerolog.Logger
}

func NewAPIHandler(pipeline *ingest.Pipeline, chatService *chat.Service, registry *store.Store, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		pipeline: pipeline,
		chat:     chatService,
		registry: registry,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps an error kind to an HTTP status. The wrapped cause stays in
// the log; clients only see the kind and its human-readable message.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.UnsupportedFormat, apperr.ExtractionError, apperr.EmptyDocument, apperr.InvalidConfig, apperr.InvalidMessageIndex:
		status = http.StatusBadRequest
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.StoreUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: apperr.Message(err), Kind: string(kind)})
}

func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	category, err := models.ParseCategory(r.FormValue("category"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), data, header.Filename, category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	var category models.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		c, err := models.ParseCategory(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		category = c
	}

	docs, err := h.registry.ListDocuments(r.Context(), category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *APIHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	deleted, err := h.pipeline.Delete(r.Context(), documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "document not found", Kind: string(apperr.NotFound)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "document_id": documentID})
}

func (h *APIHandler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Categories())
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	CategoryFilter string `json:"category_filter,omitempty"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	var category models.Category
	if req.CategoryFilter != "" {
		c, err := models.ParseCategory(req.CategoryFilter)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		category = c
	}

	resp, err := h.chat.Chat(r.Context(), req.Message, req.ConversationID, category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) ChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	messages, err := h.chat.History(r.Context(), conversationID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.chat.Conversations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if conversations == nil {
		conversations = []store.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	deleted, err := h.chat.DeleteConversation(r.Context(), conversationID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "conversation not found", Kind: string(apperr.NotFound)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "conversation_id": conversationID})
}

type FeedbackRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageIndex   int    `json:"message_index"`
	IsHelpful      bool   `json:"is_helpful"`
	FeedbackText   string `json:"feedback_text,omitempty"`
}

func (h *APIHandler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ConversationID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	if err := h.chat.Feedback(r.Context(), req.ConversationID, req.MessageIndex, req.IsHelpful, req.FeedbackText); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *APIHandler) SuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.chat.Suggestions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

type HealthResponse struct {
	Status        string `json:"status"`
	DocumentCount int    `json:"document_count"`
}

// HealthHandler counts documents on every call; no cached state survives
// between requests.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	count, err := h.registry.CountDocuments(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "error"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", DocumentCount: count})
}
