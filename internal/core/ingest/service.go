package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atenda/kb-rag/internal/core/knowledge"
)

// BatchEmbedder turns a batch of texts into vectors. A result count that does
// not match the input count is an error on the embedder's side.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists document chunks.
type ChunkStore interface {
	// ReplaceDocumentChunks atomically deletes the document's existing chunks
	// and inserts the new set.
	ReplaceDocumentChunks(ctx context.Context, documentID uuid.UUID, chunks []knowledge.Chunk) error
	DeleteDocumentChunks(ctx context.Context, documentID uuid.UUID) error
}

// CacheInvalidator purges cached answers that were derived from a document.
type CacheInvalidator interface {
	InvalidateDocument(ctx context.Context, documentID uuid.UUID) error
}

// Indexer keeps chunk storage consistent with document approval state and
// content. All Sync methods are called by the document write path strictly
// after its transaction commits; none of them opens a transaction of its own
// beyond the single chunk replacement statement.
type Indexer struct {
	embedder    BatchEmbedder
	chunks      ChunkStore
	invalidator CacheInvalidator
	logger      *slog.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(embedder BatchEmbedder, chunks ChunkStore, invalidator CacheInvalidator, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder:    embedder,
		chunks:      chunks,
		invalidator: invalidator,
		logger:      logger,
	}
}

// SyncAfterCreate generates chunks for a freshly created document when it is
// already Approved.
func (ix *Indexer) SyncAfterCreate(ctx context.Context, doc *knowledge.Document) error {
	if doc.Status != knowledge.StatusApproved {
		return nil
	}
	return ix.RebuildDocument(ctx, doc)
}

// SyncAfterUpdate compares the previous and current states of a document and
// applies the required chunk maintenance:
//
//   - transitioned into Approved: generate chunks
//   - transitioned out of Approved: delete chunks
//   - stayed Approved with changed content: regenerate chunks
//   - anything else: no chunk action
//
// Cached answers derived from the document are always invalidated, since any
// update may change what readers should see.
func (ix *Indexer) SyncAfterUpdate(ctx context.Context, prev, cur *knowledge.Document) error {
	if err := ix.invalidator.InvalidateDocument(ctx, cur.ID); err != nil {
		ix.logger.Warn("cache invalidation failed", "documentID", cur.ID, "error", err)
	}

	wasApproved := prev.Status == knowledge.StatusApproved
	isApproved := cur.Status == knowledge.StatusApproved

	switch {
	case isApproved && !wasApproved:
		return ix.RebuildDocument(ctx, cur)
	case !isApproved && wasApproved:
		return ix.chunks.DeleteDocumentChunks(ctx, cur.ID)
	case isApproved && contentChanged(prev, cur):
		return ix.RebuildDocument(ctx, cur)
	default:
		return nil
	}
}

// SyncAfterDelete removes the document's chunks and purges dependent cache
// entries. The relational schema cascades chunk deletion as well; the explicit
// call keeps behavior correct even when the row was removed by other means.
func (ix *Indexer) SyncAfterDelete(ctx context.Context, documentID uuid.UUID) error {
	if err := ix.invalidator.InvalidateDocument(ctx, documentID); err != nil {
		ix.logger.Warn("cache invalidation failed", "documentID", documentID, "error", err)
	}
	return ix.chunks.DeleteDocumentChunks(ctx, documentID)
}

// RebuildDocument re-extracts, re-chunks and re-embeds the document, replacing
// its stored chunk set. Embedding failure aborts the rebuild and leaves the
// previous chunks in place.
func (ix *Indexer) RebuildDocument(ctx context.Context, doc *knowledge.Document) error {
	fullText := doc.Body
	if len(doc.AttachmentData) > 0 && doc.AttachmentMime != "" {
		if extracted := ExtractAttachmentText(ix.logger, doc.AttachmentData, doc.AttachmentMime); extracted != "" {
			fullText += attachmentSeparator + extracted
		}
	}

	texts := BuildChunks(fullText)
	if len(texts) == 0 {
		ix.logger.Info("document has no indexable text, clearing chunks", "documentID", doc.ID)
		return ix.chunks.DeleteDocumentChunks(ctx, doc.ID)
	}

	embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed document chunks: %w", err)
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("embedding batch returned %d vectors for %d chunks", len(embeddings), len(texts))
	}

	chunks := make([]knowledge.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, knowledge.Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Text:       text,
			Embedding:  embeddings[i],
		})
	}

	if err := ix.chunks.ReplaceDocumentChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("failed to replace document chunks: %w", err)
	}

	ix.logger.Info("document chunks rebuilt", "documentID", doc.ID, "chunks", len(chunks))
	return nil
}

// DocumentSource supplies the documents for a full index rebuild.
type DocumentSource interface {
	ListApprovedDocuments(ctx context.Context) ([]*knowledge.Document, error)
}

// RebuildAll regenerates chunks for every Approved document. Per-document
// failures are logged and counted but do not stop the sweep.
func (ix *Indexer) RebuildAll(ctx context.Context, src DocumentSource) error {
	docs, err := src.ListApprovedDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list approved documents: %w", err)
	}

	var failed int
	for _, doc := range docs {
		if err := ix.RebuildDocument(ctx, doc); err != nil {
			ix.logger.Error("document rebuild failed", "documentID", doc.ID, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to rebuild", failed, len(docs))
	}
	ix.logger.Info("index rebuild complete", "documents", len(docs))
	return nil
}

func contentChanged(prev, cur *knowledge.Document) bool {
	if prev.Body != cur.Body {
		return true
	}
	if prev.AttachmentName != cur.AttachmentName || prev.AttachmentMime != cur.AttachmentMime {
		return true
	}
	return !bytes.Equal(prev.AttachmentData, cur.AttachmentData)
}
