// Package httpapi exposes the chat, knowledge and triage services over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atenda/kb-rag/internal/core/chat"
	"github.com/atenda/kb-rag/internal/core/knowledge"
	"github.com/atenda/kb-rag/internal/core/triage"
)

// Server bundles the services behind the HTTP surface.
type Server struct {
	chat      *chat.Service
	knowledge *knowledge.Service
	triage    *triage.Service
}

// NewServer creates a Server.
func NewServer(chatSvc *chat.Service, knowledgeSvc *knowledge.Service, triageSvc *triage.Service) *Server {
	return &Server{chat: chatSvc, knowledge: knowledgeSvc, triage: triageSvc}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Get("/{id}", s.handleGetSession)
			r.Patch("/{id}/end", s.handleEndSession)
			r.Get("/{id}/history", s.handleHistory)
			r.Post("/{id}/queries", s.handleAsk)
		})

		r.Get("/queries/popular", s.handlePopularQuestions)
		r.Post("/queries/{id}/feedback", s.handleAddFeedback)
		r.Post("/suggestions", s.handleSuggestTopic)

		r.Route("/pending-subjects", func(r chi.Router) {
			r.Get("/", s.handleListPendingSubjects)
			r.Get("/{id}", s.handleGetPendingSubject)
			r.Patch("/{id}/status", s.handleUpdatePendingSubjectStatus)
			r.Delete("/{id}", s.handleDeletePendingSubject)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.handleCreateDocument)
			r.Get("/", s.handleListDocuments)
			r.Get("/{id}", s.handleGetDocument)
			r.Put("/{id}", s.handleUpdateDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
			r.Get("/{id}/file", s.handleGetAttachment)
			r.Delete("/{id}/attachment", s.handleRemoveAttachment)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", s.handleCreateCategory)
			r.Get("/", s.handleListCategories)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
			r.Post("/{id}/subcategories", s.handleCreateSubcategory)
		})
		r.Put("/subcategories/{id}", s.handleUpdateSubcategory)
		r.Delete("/subcategories/{id}", s.handleDeleteSubcategory)

		r.Get("/stats/overview", s.handleStats)
	})

	return r
}
