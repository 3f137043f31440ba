package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atenda/kb-rag/internal/core/knowledge"
)

type fakeEmbedder struct {
	err   error
	short bool
	calls int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short && n > 0 {
		n--
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

type fakeChunkStore struct {
	chunks   map[uuid.UUID][]knowledge.Chunk
	replaces int
	deletes  int
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: make(map[uuid.UUID][]knowledge.Chunk)}
}

func (f *fakeChunkStore) ReplaceDocumentChunks(_ context.Context, documentID uuid.UUID, chunks []knowledge.Chunk) error {
	f.replaces++
	f.chunks[documentID] = chunks
	return nil
}

func (f *fakeChunkStore) DeleteDocumentChunks(_ context.Context, documentID uuid.UUID) error {
	f.deletes++
	delete(f.chunks, documentID)
	return nil
}

type fakeInvalidator struct {
	invalidated []uuid.UUID
}

func (f *fakeInvalidator) InvalidateDocument(_ context.Context, documentID uuid.UUID) error {
	f.invalidated = append(f.invalidated, documentID)
	return nil
}

func approvedDoc() *knowledge.Document {
	return &knowledge.Document{
		ID:     uuid.New(),
		Title:  "Política de reembolso",
		Body:   "O reembolso é feito em até 30 dias. O pedido deve conter a nota fiscal.",
		Status: knowledge.StatusApproved,
	}
}

func TestSyncAfterCreate_PendingDocumentSkipsIndexing(t *testing.T) {
	store := newFakeChunkStore()
	embedder := &fakeEmbedder{}
	ix := NewIndexer(embedder, store, &fakeInvalidator{}, nil)

	doc := approvedDoc()
	doc.Status = knowledge.StatusPending

	require.NoError(t, ix.SyncAfterCreate(context.Background(), doc))
	assert.Zero(t, embedder.calls)
	assert.Zero(t, store.replaces)
}

func TestSyncAfterCreate_ApprovedDocumentIndexed(t *testing.T) {
	store := newFakeChunkStore()
	ix := NewIndexer(&fakeEmbedder{}, store, &fakeInvalidator{}, nil)

	doc := approvedDoc()
	require.NoError(t, ix.SyncAfterCreate(context.Background(), doc))

	chunks := store.chunks[doc.ID]
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.Equal(t, doc.ID, chunk.DocumentID)
		assert.NotEmpty(t, chunk.Text)
		assert.NotEmpty(t, chunk.Embedding)
	}
}

func TestRebuildDocument_Idempotent(t *testing.T) {
	store := newFakeChunkStore()
	ix := NewIndexer(&fakeEmbedder{}, store, &fakeInvalidator{}, nil)
	doc := approvedDoc()

	require.NoError(t, ix.RebuildDocument(context.Background(), doc))
	first := store.chunks[doc.ID]

	require.NoError(t, ix.RebuildDocument(context.Background(), doc))
	second := store.chunks[doc.ID]

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
	}
	assert.Equal(t, 2, store.replaces)
}

func TestRebuildDocument_EmbedFailureLeavesChunksUntouched(t *testing.T) {
	store := newFakeChunkStore()
	ix := NewIndexer(&fakeEmbedder{}, store, &fakeInvalidator{}, nil)
	doc := approvedDoc()
	require.NoError(t, ix.RebuildDocument(context.Background(), doc))
	before := store.chunks[doc.ID]

	failing := NewIndexer(&fakeEmbedder{err: errors.New("gateway down")}, store, &fakeInvalidator{}, nil)
	err := failing.RebuildDocument(context.Background(), doc)

	require.Error(t, err)
	assert.Equal(t, before, store.chunks[doc.ID])
}

func TestRebuildDocument_VectorCountMismatch(t *testing.T) {
	store := newFakeChunkStore()
	ix := NewIndexer(&fakeEmbedder{short: true}, store, &fakeInvalidator{}, nil)

	err := ix.RebuildDocument(context.Background(), approvedDoc())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vectors")
	assert.Zero(t, store.replaces)
}

func TestSyncAfterUpdate_Transitions(t *testing.T) {
	tests := []struct {
		name             string
		prevStatus       knowledge.DocumentStatus
		curStatus        knowledge.DocumentStatus
		changeBody       bool
		changeAttachment bool
		wantReplaces     int
		wantDeletes      int
	}{
		{
			name:         "approved to rejected deletes chunks",
			prevStatus:   knowledge.StatusApproved,
			curStatus:    knowledge.StatusRejected,
			wantReplaces: 0,
			wantDeletes:  1,
		},
		{
			name:         "pending to approved generates chunks",
			prevStatus:   knowledge.StatusPending,
			curStatus:    knowledge.StatusApproved,
			wantReplaces: 1,
		},
		{
			name:         "approved stays approved with new content regenerates",
			prevStatus:   knowledge.StatusApproved,
			curStatus:    knowledge.StatusApproved,
			changeBody:   true,
			wantReplaces: 1,
		},
		{
			name:             "approved with same-length attachment rewrite regenerates",
			prevStatus:       knowledge.StatusApproved,
			curStatus:        knowledge.StatusApproved,
			changeAttachment: true,
			wantReplaces:     1,
		},
		{
			name:       "approved unchanged does nothing",
			prevStatus: knowledge.StatusApproved,
			curStatus:  knowledge.StatusApproved,
		},
		{
			name:       "pending stays pending does nothing",
			prevStatus: knowledge.StatusPending,
			curStatus:  knowledge.StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeChunkStore()
			invalidator := &fakeInvalidator{}
			ix := NewIndexer(&fakeEmbedder{}, store, invalidator, nil)

			prev := approvedDoc()
			prev.Status = tt.prevStatus
			prev.AttachmentData = []byte("conteúdo antigo")
			cur := *prev
			cur.Status = tt.curStatus
			if tt.changeBody {
				cur.Body = prev.Body + " Conteúdo adicional relevante."
			}
			if tt.changeAttachment {
				// Same name, MIME and byte length, different bytes.
				cur.AttachmentData = []byte("conteúdo recém")
			}

			require.NoError(t, ix.SyncAfterUpdate(context.Background(), prev, &cur))
			assert.Equal(t, tt.wantReplaces, store.replaces)
			assert.Equal(t, tt.wantDeletes, store.deletes)
			assert.Equal(t, []uuid.UUID{cur.ID}, invalidator.invalidated)
		})
	}
}

func TestSyncAfterDelete(t *testing.T) {
	store := newFakeChunkStore()
	invalidator := &fakeInvalidator{}
	ix := NewIndexer(&fakeEmbedder{}, store, invalidator, nil)

	id := uuid.New()
	require.NoError(t, ix.SyncAfterDelete(context.Background(), id))
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, []uuid.UUID{id}, invalidator.invalidated)
}

type fakeDocSource struct {
	docs []*knowledge.Document
}

func (f *fakeDocSource) ListApprovedDocuments(context.Context) ([]*knowledge.Document, error) {
	return f.docs, nil
}

func TestRebuildAll(t *testing.T) {
	store := newFakeChunkStore()
	ix := NewIndexer(&fakeEmbedder{}, store, &fakeInvalidator{}, nil)

	src := &fakeDocSource{docs: []*knowledge.Document{approvedDoc(), approvedDoc()}}
	require.NoError(t, ix.RebuildAll(context.Background(), src))
	assert.Len(t, store.chunks, 2)
}
