package triage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atenda/kb-rag/internal/core/chat"
	"github.com/atenda/kb-rag/internal/core/knowledge"
)

const (
	labelSetMainCategory = "main_category"
	labelSetSubCategory  = "sub_category"
)

// Classifier calls the external label-classification service. Each label set
// in the request yields one prediction in the result, keyed by set name.
type Classifier interface {
	Classify(ctx context.Context, text string, labelSets map[string][]string) (map[string]Prediction, error)
}

// Taxonomy lists the live category tree used as classification labels.
type Taxonomy interface {
	ListCategories(ctx context.Context) ([]*knowledge.Category, error)
}

// TxStore is the transactional slice of the store.
type TxStore interface {
	CreateFeedback(ctx context.Context, queryID uuid.UUID, satisfied bool) (*Feedback, error)
	GetQuery(ctx context.Context, queryID uuid.UUID) (*chat.Query, error)
	// FindOrCreatePendingSubject returns the existing subject for the query, or
	// creates one from the given template. created reports which happened.
	FindOrCreatePendingSubject(ctx context.Context, subject PendingSubject) (ps *PendingSubject, created bool, err error)
}

// Store persists feedback and pending subjects.
type Store interface {
	InTx(ctx context.Context, fn func(tx TxStore) error) error
	GetQuery(ctx context.Context, queryID uuid.UUID) (*chat.Query, error)
	FindOrCreatePendingSubject(ctx context.Context, subject PendingSubject) (ps *PendingSubject, created bool, err error)
	ListPendingSubjects(ctx context.Context, status PendingSubjectStatus) ([]*PendingSubject, error)
	GetPendingSubject(ctx context.Context, id uuid.UUID) (*PendingSubject, error)
	UpdatePendingSubjectStatus(ctx context.Context, id uuid.UUID, status PendingSubjectStatus) (*PendingSubject, error)
	DeletePendingSubject(ctx context.Context, id uuid.UUID) error
}

// Service implements the triage flows.
type Service struct {
	store      Store
	classifier Classifier
	taxonomy   Taxonomy
	confidence float64
	logger     *slog.Logger
}

// NewService creates a triage service. confidence is the minimum classifier
// confidence accepted for a category or subcategory match.
func NewService(store Store, classifier Classifier, taxonomy Taxonomy, confidence float64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		classifier: classifier,
		taxonomy:   taxonomy,
		confidence: confidence,
		logger:     logger,
	}
}

// AddFeedback records the user's verdict on a query's answer. Unsatisfied
// feedback additionally flags the question as a pending subject, categorized
// against the live taxonomy, in the same transaction as the feedback row.
func (s *Service) AddFeedback(ctx context.Context, queryID uuid.UUID, satisfied bool) error {
	return s.store.InTx(ctx, func(tx TxStore) error {
		if _, err := tx.CreateFeedback(ctx, queryID, satisfied); err != nil {
			return err
		}
		if satisfied {
			return nil
		}

		query, err := tx.GetQuery(ctx, queryID)
		if err != nil {
			return err
		}

		classification := s.Categorize(ctx, query.Question)
		_, _, err = tx.FindOrCreatePendingSubject(ctx, PendingSubject{
			QueryID:       queryID,
			Text:          query.Question,
			Status:        StatusOpen,
			CategoryID:    classification.CategoryID,
			SubcategoryID: classification.SubcategoryID,
		})
		return err
	})
}

// SuggestTopic explicitly flags a query's question for the content team.
// created reports whether the subject is new or was already registered.
func (s *Service) SuggestTopic(ctx context.Context, queryID uuid.UUID) (*PendingSubject, bool, error) {
	query, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, false, err
	}

	classification := s.Categorize(ctx, query.Question)
	return s.store.FindOrCreatePendingSubject(ctx, PendingSubject{
		QueryID:       queryID,
		Text:          query.Question,
		Status:        StatusOpen,
		CategoryID:    classification.CategoryID,
		SubcategoryID: classification.SubcategoryID,
	})
}

// Categorize classifies a question against the live taxonomy in two stages:
// top-level categories first, then the matched category's subcategories. Any
// failure, and any prediction below the confidence threshold, yields the
// explicit unknown outcome rather than an error.
func (s *Service) Categorize(ctx context.Context, text string) Classification {
	unknown := Classification{}

	categories, err := s.taxonomy.ListCategories(ctx)
	if err != nil {
		s.logger.Warn("failed to load taxonomy for categorization", "error", err)
		return unknown
	}
	if len(categories) == 0 {
		return unknown
	}

	labels := make([]string, 0, len(categories))
	for _, c := range categories {
		labels = append(labels, c.Name)
	}

	results, err := s.classifier.Classify(ctx, text, map[string][]string{labelSetMainCategory: labels})
	if err != nil {
		s.logger.Warn("category classification failed", "error", err)
		return unknown
	}

	prediction, ok := results[labelSetMainCategory]
	if !ok || prediction.Confidence < s.confidence {
		return unknown
	}

	var matched *knowledge.Category
	for _, c := range categories {
		if c.Name == prediction.Label {
			matched = c
			break
		}
	}
	if matched == nil {
		return unknown
	}

	classification := Classification{CategoryID: &matched.ID}
	if len(matched.Subcategories) == 0 {
		return classification
	}

	subLabels := make([]string, 0, len(matched.Subcategories))
	for _, sub := range matched.Subcategories {
		subLabels = append(subLabels, sub.Name)
	}

	subResults, err := s.classifier.Classify(ctx, text, map[string][]string{labelSetSubCategory: subLabels})
	if err != nil {
		s.logger.Warn("subcategory classification failed", "error", err)
		return classification
	}

	subPrediction, ok := subResults[labelSetSubCategory]
	if !ok || subPrediction.Confidence < s.confidence {
		return classification
	}
	for _, sub := range matched.Subcategories {
		if sub.Name == subPrediction.Label {
			classification.SubcategoryID = &sub.ID
			break
		}
	}
	return classification
}

// ListPendingSubjects returns subjects in the given review state.
func (s *Service) ListPendingSubjects(ctx context.Context, status PendingSubjectStatus) ([]*PendingSubject, error) {
	return s.store.ListPendingSubjects(ctx, status)
}

// GetPendingSubject loads one subject.
func (s *Service) GetPendingSubject(ctx context.Context, id uuid.UUID) (*PendingSubject, error) {
	return s.store.GetPendingSubject(ctx, id)
}

// UpdatePendingSubjectStatus moves a subject to a reviewer-settable state.
func (s *Service) UpdatePendingSubjectStatus(ctx context.Context, id uuid.UUID, status PendingSubjectStatus) (*PendingSubject, error) {
	if !status.ValidTransitionTarget() {
		return nil, fmt.Errorf("invalid pending subject status %q", status)
	}
	return s.store.UpdatePendingSubjectStatus(ctx, id, status)
}

// DeletePendingSubject removes a subject from the queue.
func (s *Service) DeletePendingSubject(ctx context.Context, id uuid.UUID) error {
	return s.store.DeletePendingSubject(ctx, id)
}
