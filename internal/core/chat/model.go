// Package chat implements chat sessions and the question-answering pipeline
// that resolves each query to exactly one persisted answer.
package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a session id does not exist.
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrQueryNotFound is returned when a query id does not exist.
	ErrQueryNotFound = errors.New("chat query not found")
)

// Session groups the queries of one conversation.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	StartedAt time.Time
	EndedAt   *time.Time
}

// Query is one question asked within a session.
type Query struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Question  string
	CreatedAt time.Time
}

// Answer is the single response produced for a query. SourceDocumentID points
// at the first source document when the answer was grounded in the knowledge
// base, and is nil for fallback answers.
type Answer struct {
	ID               uuid.UUID
	QueryID          uuid.UUID
	Text             string
	SourceDocumentID *uuid.UUID
	CreatedAt        time.Time
}

// Source identifies a document that contributed context to an answer.
type Source struct {
	DocumentID uuid.UUID
	Title      string
}

// Result is the full outcome of one pipeline run.
type Result struct {
	Query   *Query
	Answer  *Answer
	Sources []Source
}

// HistoryEntry pairs a query with its answer for session history listings.
type HistoryEntry struct {
	Query  Query
	Answer Answer
}

// PopularQuestion is an aggregated recurring question.
type PopularQuestion struct {
	Question string
	Count    int
}
