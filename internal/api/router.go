package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Get("/health", apiHandler.HealthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/upload", apiHandler.UploadDocumentHandler)
			r.Get("/", apiHandler.ListDocumentsHandler)
			r.Get("/categories", apiHandler.ListCategoriesHandler)
			r.Delete("/{documentID}", apiHandler.DeleteDocumentHandler)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", apiHandler.ChatHandler)
			r.Get("/history/{conversationID}", apiHandler.ChatHistoryHandler)
			r.Get("/conversations", apiHandler.ListConversationsHandler)
			r.Delete("/conversations/{conversationID}", apiHandler.DeleteConversationHandler)
			r.Post("/feedback", apiHandler.FeedbackHandler)
			r.Get("/suggestions", apiHandler.SuggestionsHandler)
		})
	})

	return r
}
