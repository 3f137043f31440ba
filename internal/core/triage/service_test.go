package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atenda/kb-rag/internal/core/chat"
	"github.com/atenda/kb-rag/internal/core/knowledge"
)

type fakeTriageStore struct {
	queries   map[uuid.UUID]*chat.Query
	feedbacks map[uuid.UUID]*Feedback
	subjects  map[uuid.UUID]*PendingSubject
}

func newFakeTriageStore() *fakeTriageStore {
	return &fakeTriageStore{
		queries:   make(map[uuid.UUID]*chat.Query),
		feedbacks: make(map[uuid.UUID]*Feedback),
		subjects:  make(map[uuid.UUID]*PendingSubject),
	}
}

func (f *fakeTriageStore) addQuery(question string) uuid.UUID {
	q := &chat.Query{ID: uuid.New(), SessionID: uuid.New(), Question: question}
	f.queries[q.ID] = q
	return q.ID
}

func (f *fakeTriageStore) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	return fn(f)
}

func (f *fakeTriageStore) CreateFeedback(_ context.Context, queryID uuid.UUID, satisfied bool) (*Feedback, error) {
	if _, exists := f.feedbacks[queryID]; exists {
		return nil, ErrDuplicateFeedback
	}
	fb := &Feedback{ID: uuid.New(), QueryID: queryID, Satisfied: satisfied}
	f.feedbacks[queryID] = fb
	return fb, nil
}

func (f *fakeTriageStore) GetQuery(_ context.Context, queryID uuid.UUID) (*chat.Query, error) {
	query, ok := f.queries[queryID]
	if !ok {
		return nil, chat.ErrQueryNotFound
	}
	return query, nil
}

func (f *fakeTriageStore) FindOrCreatePendingSubject(_ context.Context, subject PendingSubject) (*PendingSubject, bool, error) {
	for _, existing := range f.subjects {
		if existing.QueryID == subject.QueryID {
			return existing, false, nil
		}
	}
	subject.ID = uuid.New()
	f.subjects[subject.ID] = &subject
	return &subject, true, nil
}

func (f *fakeTriageStore) ListPendingSubjects(_ context.Context, status PendingSubjectStatus) ([]*PendingSubject, error) {
	var out []*PendingSubject
	for _, s := range f.subjects {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeTriageStore) GetPendingSubject(_ context.Context, id uuid.UUID) (*PendingSubject, error) {
	s, ok := f.subjects[id]
	if !ok {
		return nil, ErrPendingSubjectNotFound
	}
	return s, nil
}

func (f *fakeTriageStore) UpdatePendingSubjectStatus(_ context.Context, id uuid.UUID, status PendingSubjectStatus) (*PendingSubject, error) {
	s, ok := f.subjects[id]
	if !ok {
		return nil, ErrPendingSubjectNotFound
	}
	s.Status = status
	return s, nil
}

func (f *fakeTriageStore) DeletePendingSubject(_ context.Context, id uuid.UUID) error {
	if _, ok := f.subjects[id]; !ok {
		return ErrPendingSubjectNotFound
	}
	delete(f.subjects, id)
	return nil
}

type fakeClassifier struct {
	results map[string]Prediction
	err     error
	calls   []map[string][]string
}

func (f *fakeClassifier) Classify(_ context.Context, _ string, labelSets map[string][]string) (map[string]Prediction, error) {
	f.calls = append(f.calls, labelSets)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]Prediction)
	for set := range labelSets {
		if p, ok := f.results[set]; ok {
			out[set] = p
		}
	}
	return out, nil
}

type fakeTaxonomy struct {
	categories []*knowledge.Category
	err        error
}

func (f *fakeTaxonomy) ListCategories(context.Context) ([]*knowledge.Category, error) {
	return f.categories, f.err
}

func taxonomyFixture() (*fakeTaxonomy, uuid.UUID, uuid.UUID) {
	categoryID := uuid.New()
	subcategoryID := uuid.New()
	tax := &fakeTaxonomy{categories: []*knowledge.Category{
		{
			ID:   categoryID,
			Name: "Financeiro",
			Subcategories: []*knowledge.Subcategory{
				{ID: subcategoryID, CategoryID: categoryID, Name: "Reembolso"},
			},
		},
		{ID: uuid.New(), Name: "Suporte"},
	}}
	return tax, categoryID, subcategoryID
}

func TestCategorize_ConfidenceBoundary(t *testing.T) {
	tax, categoryID, _ := taxonomyFixture()

	tests := []struct {
		name       string
		confidence float64
		wantMatch  bool
	}{
		{"just below threshold", 0.49, false},
		{"exactly at threshold", 0.50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := &fakeClassifier{results: map[string]Prediction{
				labelSetMainCategory: {Label: "Financeiro", Confidence: tt.confidence},
			}}
			svc := NewService(newFakeTriageStore(), classifier, tax, 0.50, nil)

			got := svc.Categorize(context.Background(), "como pedir reembolso?")
			if tt.wantMatch {
				require.NotNil(t, got.CategoryID)
				assert.Equal(t, categoryID, *got.CategoryID)
			} else {
				assert.Nil(t, got.CategoryID)
				assert.Nil(t, got.SubcategoryID)
			}
		})
	}
}

func TestCategorize_TwoStageResolvesSubcategory(t *testing.T) {
	tax, categoryID, subcategoryID := taxonomyFixture()
	classifier := &fakeClassifier{results: map[string]Prediction{
		labelSetMainCategory: {Label: "Financeiro", Confidence: 0.9},
		labelSetSubCategory:  {Label: "Reembolso", Confidence: 0.8},
	}}
	svc := NewService(newFakeTriageStore(), classifier, tax, 0.50, nil)

	got := svc.Categorize(context.Background(), "como pedir reembolso?")

	require.NotNil(t, got.CategoryID)
	assert.Equal(t, categoryID, *got.CategoryID)
	require.NotNil(t, got.SubcategoryID)
	assert.Equal(t, subcategoryID, *got.SubcategoryID)
	require.Len(t, classifier.calls, 2)
	assert.Equal(t, []string{"Financeiro", "Suporte"}, classifier.calls[0][labelSetMainCategory])
	assert.Equal(t, []string{"Reembolso"}, classifier.calls[1][labelSetSubCategory])
}

func TestCategorize_WeakSubcategoryKeepsCategory(t *testing.T) {
	tax, categoryID, _ := taxonomyFixture()
	classifier := &fakeClassifier{results: map[string]Prediction{
		labelSetMainCategory: {Label: "Financeiro", Confidence: 0.9},
		labelSetSubCategory:  {Label: "Reembolso", Confidence: 0.2},
	}}
	svc := NewService(newFakeTriageStore(), classifier, tax, 0.50, nil)

	got := svc.Categorize(context.Background(), "como pedir reembolso?")

	require.NotNil(t, got.CategoryID)
	assert.Equal(t, categoryID, *got.CategoryID)
	assert.Nil(t, got.SubcategoryID)
}

func TestCategorize_UnknownOutcomes(t *testing.T) {
	tax, _, _ := taxonomyFixture()

	tests := []struct {
		name       string
		classifier *fakeClassifier
		taxonomy   Taxonomy
	}{
		{
			name:       "classifier failure",
			classifier: &fakeClassifier{err: errors.New("service down")},
			taxonomy:   tax,
		},
		{
			name:       "taxonomy failure",
			classifier: &fakeClassifier{},
			taxonomy:   &fakeTaxonomy{err: errors.New("db down")},
		},
		{
			name:       "empty taxonomy",
			classifier: &fakeClassifier{},
			taxonomy:   &fakeTaxonomy{},
		},
		{
			name: "label matches no category",
			classifier: &fakeClassifier{results: map[string]Prediction{
				labelSetMainCategory: {Label: "Jurídico", Confidence: 0.9},
			}},
			taxonomy: tax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newFakeTriageStore(), tt.classifier, tt.taxonomy, 0.50, nil)
			got := svc.Categorize(context.Background(), "pergunta qualquer")
			assert.Nil(t, got.CategoryID)
			assert.Nil(t, got.SubcategoryID)
		})
	}
}

func TestAddFeedback_SatisfiedCreatesNoSubject(t *testing.T) {
	store := newFakeTriageStore()
	queryID := store.addQuery("como pedir reembolso?")
	classifier := &fakeClassifier{}
	svc := NewService(store, classifier, &fakeTaxonomy{}, 0.50, nil)

	require.NoError(t, svc.AddFeedback(context.Background(), queryID, true))

	assert.Len(t, store.feedbacks, 1)
	assert.True(t, store.feedbacks[queryID].Satisfied)
	assert.Empty(t, store.subjects)
	assert.Empty(t, classifier.calls)
}

func TestAddFeedback_UnsatisfiedQueuesCategorizedSubject(t *testing.T) {
	store := newFakeTriageStore()
	queryID := store.addQuery("como pedir reembolso?")
	tax, categoryID, _ := taxonomyFixture()
	classifier := &fakeClassifier{results: map[string]Prediction{
		labelSetMainCategory: {Label: "Financeiro", Confidence: 0.9},
	}}
	svc := NewService(store, classifier, tax, 0.50, nil)

	require.NoError(t, svc.AddFeedback(context.Background(), queryID, false))

	require.Len(t, store.subjects, 1)
	for _, subject := range store.subjects {
		assert.Equal(t, queryID, subject.QueryID)
		assert.Equal(t, "como pedir reembolso?", subject.Text)
		assert.Equal(t, StatusOpen, subject.Status)
		require.NotNil(t, subject.CategoryID)
		assert.Equal(t, categoryID, *subject.CategoryID)
	}
}

func TestAddFeedback_DuplicateRejected(t *testing.T) {
	store := newFakeTriageStore()
	queryID := store.addQuery("pergunta")
	svc := NewService(store, &fakeClassifier{}, &fakeTaxonomy{}, 0.50, nil)

	require.NoError(t, svc.AddFeedback(context.Background(), queryID, true))
	err := svc.AddFeedback(context.Background(), queryID, false)
	assert.ErrorIs(t, err, ErrDuplicateFeedback)
}

func TestSuggestTopic_AtMostOneSubjectPerQuery(t *testing.T) {
	store := newFakeTriageStore()
	queryID := store.addQuery("como emitir segunda via?")
	svc := NewService(store, &fakeClassifier{}, &fakeTaxonomy{}, 0.50, nil)

	first, created, err := svc.SuggestTopic(context.Background(), queryID)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.SuggestTopic(context.Background(), queryID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.subjects, 1)
}

func TestSuggestTopic_UnknownQuery(t *testing.T) {
	svc := NewService(newFakeTriageStore(), &fakeClassifier{}, &fakeTaxonomy{}, 0.50, nil)

	_, _, err := svc.SuggestTopic(context.Background(), uuid.New())
	assert.ErrorIs(t, err, chat.ErrQueryNotFound)
}

func TestUpdatePendingSubjectStatus(t *testing.T) {
	store := newFakeTriageStore()
	queryID := store.addQuery("pergunta")
	svc := NewService(store, &fakeClassifier{}, &fakeTaxonomy{}, 0.50, nil)

	subject, _, err := svc.SuggestTopic(context.Background(), queryID)
	require.NoError(t, err)

	t.Run("reviewer states accepted", func(t *testing.T) {
		updated, err := svc.UpdatePendingSubjectStatus(context.Background(), subject.ID, StatusResolved)
		require.NoError(t, err)
		assert.Equal(t, StatusResolved, updated.Status)
	})

	t.Run("open is not settable", func(t *testing.T) {
		_, err := svc.UpdatePendingSubjectStatus(context.Background(), subject.ID, StatusOpen)
		assert.Error(t, err)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.UpdatePendingSubjectStatus(context.Background(), uuid.New(), StatusRejected)
		assert.ErrorIs(t, err, ErrPendingSubjectNotFound)
	})
}
