// Package knowledge holds the curated document model shared by ingestion,
// search and the admin surface.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the curation lifecycle state of a document.
type DocumentStatus string

const (
	StatusApproved DocumentStatus = "Approved"
	StatusPending  DocumentStatus = "Pending"
	StatusRejected DocumentStatus = "Rejected"
)

// Valid reports whether s is a known lifecycle state.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusApproved, StatusPending, StatusRejected:
		return true
	}
	return false
}

// Document is a curated knowledge artifact. Only Approved documents are
// eligible for retrieval.
type Document struct {
	ID             uuid.UUID
	Title          string
	Body           string
	Status         DocumentStatus
	AttachmentName string
	AttachmentMime string
	AttachmentData []byte
	AuthorID       *uuid.UUID
	SubcategoryID  *uuid.UUID
	Keywords       []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chunk is one embedded slice of a document's extracted text.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Text       string
	Embedding  []float32
}

// Category is a top-level taxonomy entry.
type Category struct {
	ID            uuid.UUID
	Name          string
	Color         string
	Subcategories []*Subcategory
}

// Subcategory belongs to exactly one category.
type Subcategory struct {
	ID         uuid.UUID
	CategoryID uuid.UUID
	Name       string
	Color      string
}
