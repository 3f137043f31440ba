package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atenda/kb-rag/internal/core/chat"
)

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

type startSessionRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type sessionResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	StartedAt string    `json:"started_at"`
	EndedAt   *string   `json:"ended_at,omitempty"`
}

func toSessionResponse(s *chat.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		StartedAt: s.StartedAt.Format(time.RFC3339),
	}
	if s.EndedAt != nil {
		ended := s.EndedAt.Format(time.RFC3339)
		resp.EndedAt = &ended
	}
	return resp
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := s.chat.StartSession(r.Context(), req.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := s.chat.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := s.chat.EndSession(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

type askRequest struct {
	Question      string     `json:"question"`
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
	SubcategoryID *uuid.UUID `json:"subcategory_id,omitempty"`
}

type sourceResponse struct {
	DocumentID uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
}

type askResponse struct {
	QueryID  uuid.UUID        `json:"query_id"`
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Sources  []sourceResponse `json:"sources"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req askRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := s.chat.Ask(r.Context(), chat.AskInput{
		SessionID:     sessionID,
		Question:      req.Question,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	sources := make([]sourceResponse, 0, len(result.Sources))
	for _, src := range result.Sources {
		sources = append(sources, sourceResponse{DocumentID: src.DocumentID, Title: src.Title})
	}
	writeJSON(w, http.StatusCreated, askResponse{
		QueryID:  result.Query.ID,
		Question: result.Query.Question,
		Answer:   result.Answer.Text,
		Sources:  sources,
	})
}

type historyEntryResponse struct {
	QueryID          uuid.UUID  `json:"query_id"`
	Question         string     `json:"question"`
	Answer           string     `json:"answer"`
	SourceDocumentID *uuid.UUID `json:"source_document_id,omitempty"`
	AskedAt          string     `json:"asked_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = parsed
	}

	entries, err := s.chat.History(r.Context(), sessionID, page)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, historyEntryResponse{
			QueryID:          e.Query.ID,
			Question:         e.Query.Question,
			Answer:           e.Answer.Text,
			SourceDocumentID: e.Answer.SourceDocumentID,
			AskedAt:          e.Query.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type popularQuestionResponse struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

func (s *Server) handlePopularQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.chat.PopularQuestions(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]popularQuestionResponse, 0, len(questions))
	for _, q := range questions {
		resp = append(resp, popularQuestionResponse{Question: q.Question, Count: q.Count})
	}
	writeJSON(w, http.StatusOK, resp)
}
