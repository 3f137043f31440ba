package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

var (
	// ErrDocumentNotFound is returned when a document id does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrCategoryNotFound is returned when a category id does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrSubcategoryNotFound is returned when a subcategory id does not exist.
	ErrSubcategoryNotFound = errors.New("subcategory not found")
	// ErrNoAttachment is returned when a document has no stored attachment.
	ErrNoAttachment = errors.New("document has no attachment")
)

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	Status        DocumentStatus
	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
}

// Stats is the admin overview aggregate.
type Stats struct {
	Documents        int
	ApprovedDocs     int
	PendingDocs      int
	Categories       int
	Subcategories    int
	Queries          int
	UnsatisfiedCount int
}

// Store persists documents and the category taxonomy.
type Store interface {
	CreateDocument(ctx context.Context, doc *Document) (*Document, error)
	// GetDocument loads one document including attachment bytes.
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	// ListDocuments omits attachment bytes.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*Document, error)
	UpdateDocument(ctx context.Context, doc *Document) (*Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	RemoveAttachment(ctx context.Context, id uuid.UUID) error
	// ListApprovedDocuments returns every Approved document with attachment
	// bytes, for full index rebuilds.
	ListApprovedDocuments(ctx context.Context) ([]*Document, error)

	CreateCategory(ctx context.Context, category *Category) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	UpdateCategory(ctx context.Context, category *Category) (*Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	CreateSubcategory(ctx context.Context, sub *Subcategory) (*Subcategory, error)
	UpdateSubcategory(ctx context.Context, sub *Subcategory) (*Subcategory, error)
	DeleteSubcategory(ctx context.Context, id uuid.UUID) error

	Stats(ctx context.Context) (*Stats, error)
}

// IndexSyncer keeps the retrieval index in step with document writes. All
// methods are called strictly after the corresponding row change commits.
type IndexSyncer interface {
	SyncAfterCreate(ctx context.Context, doc *Document) error
	SyncAfterUpdate(ctx context.Context, prev, cur *Document) error
	SyncAfterDelete(ctx context.Context, documentID uuid.UUID) error
}

// Service implements document and taxonomy management.
type Service struct {
	store   Store
	indexer IndexSyncer
	logger  *slog.Logger
}

// NewService creates a knowledge service.
func NewService(store Store, indexer IndexSyncer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, indexer: indexer, logger: logger}
}

// CreateDocument persists a document and, once committed, indexes it if it is
// already Approved. An indexing failure does not undo the save: the document
// row is authoritative and the index can be rebuilt.
func (s *Service) CreateDocument(ctx context.Context, doc *Document) (*Document, error) {
	if doc.Title == "" || doc.Body == "" {
		return nil, fmt.Errorf("document title and body are required")
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if !doc.Status.Valid() {
		return nil, fmt.Errorf("invalid document status %q", doc.Status)
	}

	created, err := s.store.CreateDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := s.indexer.SyncAfterCreate(ctx, created); err != nil {
		s.logger.Error("failed to index created document", "documentID", created.ID, "error", err)
	}
	return created, nil
}

// GetDocument loads one document.
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.store.GetDocument(ctx, id)
}

// ListDocuments lists documents matching the filter, without attachments.
func (s *Service) ListDocuments(ctx context.Context, filter DocumentFilter) ([]*Document, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("invalid document status %q", filter.Status)
	}
	return s.store.ListDocuments(ctx, filter)
}

// UpdateDocument saves document changes and, once committed, reconciles the
// index with the status and content transition.
func (s *Service) UpdateDocument(ctx context.Context, doc *Document) (*Document, error) {
	if !doc.Status.Valid() {
		return nil, fmt.Errorf("invalid document status %q", doc.Status)
	}

	prev, err := s.store.GetDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := s.indexer.SyncAfterUpdate(ctx, prev, updated); err != nil {
		s.logger.Error("failed to reindex updated document", "documentID", updated.ID, "error", err)
	}
	return updated, nil
}

// DeleteDocument removes a document and its index entries.
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := s.indexer.SyncAfterDelete(ctx, id); err != nil {
		s.logger.Error("failed to deindex deleted document", "documentID", id, "error", err)
	}
	return nil
}

// GetAttachment returns the stored attachment of a document.
func (s *Service) GetAttachment(ctx context.Context, id uuid.UUID) (name, mime string, data []byte, err error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return "", "", nil, err
	}
	if len(doc.AttachmentData) == 0 {
		return "", "", nil, ErrNoAttachment
	}
	return doc.AttachmentName, doc.AttachmentMime, doc.AttachmentData, nil
}

// RemoveAttachment drops a document's attachment and reindexes it, since the
// attachment text no longer belongs in the chunks.
func (s *Service) RemoveAttachment(ctx context.Context, id uuid.UUID) error {
	prev, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if len(prev.AttachmentData) == 0 {
		return ErrNoAttachment
	}

	if err := s.store.RemoveAttachment(ctx, id); err != nil {
		return err
	}

	cur, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.indexer.SyncAfterUpdate(ctx, prev, cur); err != nil {
		s.logger.Error("failed to reindex document after attachment removal", "documentID", id, "error", err)
	}
	return nil
}

// CreateCategory adds a top-level category.
func (s *Service) CreateCategory(ctx context.Context, category *Category) (*Category, error) {
	if category.Name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	return s.store.CreateCategory(ctx, category)
}

// ListCategories returns the full taxonomy, subcategories included.
func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	return s.store.ListCategories(ctx)
}

// UpdateCategory renames or recolors a category.
func (s *Service) UpdateCategory(ctx context.Context, category *Category) (*Category, error) {
	if category.Name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	return s.store.UpdateCategory(ctx, category)
}

// DeleteCategory removes a category and its subcategories.
func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteCategory(ctx, id)
}

// CreateSubcategory adds a subcategory under an existing category.
func (s *Service) CreateSubcategory(ctx context.Context, sub *Subcategory) (*Subcategory, error) {
	if sub.Name == "" {
		return nil, fmt.Errorf("subcategory name is required")
	}
	return s.store.CreateSubcategory(ctx, sub)
}

// UpdateSubcategory renames or recolors a subcategory.
func (s *Service) UpdateSubcategory(ctx context.Context, sub *Subcategory) (*Subcategory, error) {
	if sub.Name == "" {
		return nil, fmt.Errorf("subcategory name is required")
	}
	return s.store.UpdateSubcategory(ctx, sub)
}

// DeleteSubcategory removes a subcategory.
func (s *Service) DeleteSubcategory(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteSubcategory(ctx, id)
}

// Stats returns the admin overview aggregate.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}
