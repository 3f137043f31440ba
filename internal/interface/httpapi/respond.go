package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/atenda/kb-rag/internal/core/answercache"
	"github.com/atenda/kb-rag/internal/core/chat"
	"github.com/atenda/kb-rag/internal/core/knowledge"
	"github.com/atenda/kb-rag/internal/core/triage"
)

type errorPayload struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Error: message})
}

// respondError maps domain errors onto HTTP statuses. Anything unrecognized is
// an internal error: the raw message stays in the logs, not the response.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound),
		errors.Is(err, chat.ErrQueryNotFound),
		errors.Is(err, knowledge.ErrDocumentNotFound),
		errors.Is(err, knowledge.ErrCategoryNotFound),
		errors.Is(err, knowledge.ErrSubcategoryNotFound),
		errors.Is(err, knowledge.ErrNoAttachment),
		errors.Is(err, triage.ErrPendingSubjectNotFound),
		errors.Is(err, answercache.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, triage.ErrDuplicateFeedback):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
