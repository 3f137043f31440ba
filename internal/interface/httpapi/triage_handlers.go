package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atenda/kb-rag/internal/core/triage"
)

type feedbackRequest struct {
	Satisfied *bool `json:"satisfied"`
}

func (s *Server) handleAddFeedback(w http.ResponseWriter, r *http.Request) {
	queryID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req feedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Satisfied == nil {
		writeError(w, http.StatusBadRequest, "satisfied is required")
		return
	}

	if err := s.triage.AddFeedback(r.Context(), queryID, *req.Satisfied); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "feedback recorded"})
}

type suggestTopicRequest struct {
	QueryID uuid.UUID `json:"query_id"`
}

type pendingSubjectResponse struct {
	ID            uuid.UUID                   `json:"id"`
	QueryID       uuid.UUID                   `json:"query_id"`
	Text          string                      `json:"text"`
	Status        triage.PendingSubjectStatus `json:"status"`
	CategoryID    *uuid.UUID                  `json:"category_id,omitempty"`
	SubcategoryID *uuid.UUID                  `json:"subcategory_id,omitempty"`
	CreatedAt     string                      `json:"created_at"`
	UpdatedAt     string                      `json:"updated_at"`
}

func toPendingSubjectResponse(ps *triage.PendingSubject) pendingSubjectResponse {
	return pendingSubjectResponse{
		ID:            ps.ID,
		QueryID:       ps.QueryID,
		Text:          ps.Text,
		Status:        ps.Status,
		CategoryID:    ps.CategoryID,
		SubcategoryID: ps.SubcategoryID,
		CreatedAt:     ps.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     ps.UpdatedAt.Format(time.RFC3339),
	}
}

// handleSuggestTopic flags a query's question for the content team. A new
// subject answers 201; an already-registered one answers 200 with the
// existing row.
func (s *Server) handleSuggestTopic(w http.ResponseWriter, r *http.Request) {
	var req suggestTopicRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.QueryID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "query_id is required")
		return
	}

	subject, created, err := s.triage.SuggestTopic(r.Context(), req.QueryID)
	if err != nil {
		respondError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toPendingSubjectResponse(subject))
}

func (s *Server) handleListPendingSubjects(w http.ResponseWriter, r *http.Request) {
	status := triage.PendingSubjectStatus(r.URL.Query().Get("status"))

	subjects, err := s.triage.ListPendingSubjects(r.Context(), status)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]pendingSubjectResponse, 0, len(subjects))
	for _, ps := range subjects {
		resp = append(resp, toPendingSubjectResponse(ps))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPendingSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	subject, err := s.triage.GetPendingSubject(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPendingSubjectResponse(subject))
}

type updateStatusRequest struct {
	Status triage.PendingSubjectStatus `json:"status"`
}

func (s *Server) handleUpdatePendingSubjectStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Status.ValidTransitionTarget() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	subject, err := s.triage.UpdatePendingSubjectStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPendingSubjectResponse(subject))
}

func (s *Server) handleDeletePendingSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := s.triage.DeletePendingSubject(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
