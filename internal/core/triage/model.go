// Package triage turns unsatisfied users into actionable knowledge gaps:
// feedback capture, question categorization and the pending-subject queue.
package triage

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPendingSubjectNotFound is returned when a pending subject id does not
	// exist.
	ErrPendingSubjectNotFound = errors.New("pending subject not found")
	// ErrDuplicateFeedback is returned when a query already has feedback.
	ErrDuplicateFeedback = errors.New("feedback already recorded for query")
)

// PendingSubjectStatus is the review state of a flagged question.
type PendingSubjectStatus string

const (
	StatusOpen     PendingSubjectStatus = "Open"
	StatusInReview PendingSubjectStatus = "InReview"
	StatusResolved PendingSubjectStatus = "Resolved"
	StatusRejected PendingSubjectStatus = "Rejected"
)

// ValidTransitionTarget reports whether s is a status reviewers may set. Open
// is only ever assigned at creation.
func (s PendingSubjectStatus) ValidTransitionTarget() bool {
	switch s {
	case StatusInReview, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Feedback records whether the user was satisfied with a query's answer. At
// most one feedback exists per query.
type Feedback struct {
	ID        uuid.UUID
	QueryID   uuid.UUID
	Satisfied bool
	CreatedAt time.Time
}

// PendingSubject is a question the knowledge base could not answer well,
// queued for the content team. At most one exists per query.
type PendingSubject struct {
	ID            uuid.UUID
	QueryID       uuid.UUID
	Text          string
	Status        PendingSubjectStatus
	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Classification is the outcome of categorizing a question. Both ids nil is
// the explicit "unknown" outcome.
type Classification struct {
	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
}

// Prediction is one label-classification result.
type Prediction struct {
	Label      string
	Confidence float64
}
