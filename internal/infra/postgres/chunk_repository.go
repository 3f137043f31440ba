package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/atenda/kb-rag/internal/core/ingest"
	"github.com/atenda/kb-rag/internal/core/knowledge"
	"github.com/atenda/kb-rag/internal/platform/database"
)

// ChunkRepository implements ingest.ChunkStore.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository creates a ChunkRepository.
func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

var _ ingest.ChunkStore = (*ChunkRepository)(nil)

// ReplaceDocumentChunks swaps the document's chunk set in one transaction, so
// readers see either the old set or the new set, never a mix.
func (r *ChunkRepository) ReplaceDocumentChunks(ctx context.Context, documentID uuid.UUID, chunks []knowledge.Chunk) error {
	_, err := database.Transact(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		var zero struct{}
		if _, err := tx.Exec(ctx, `DELETE FROM document_paragraphs WHERE document_id = $1`, documentID); err != nil {
			return zero, fmt.Errorf("failed to delete old chunks: %w", err)
		}

		query := `
			INSERT INTO document_paragraphs (id, document_id, paragraph_text, embedding)
			VALUES ($1, $2, $3, $4)
		`
		for _, chunk := range chunks {
			_, err := tx.Exec(ctx, query, chunk.ID, documentID, chunk.Text, pgvector.NewVector(chunk.Embedding))
			if err != nil {
				return zero, fmt.Errorf("failed to insert chunk: %w", err)
			}
		}
		return zero, nil
	})
	return err
}

func (r *ChunkRepository) DeleteDocumentChunks(ctx context.Context, documentID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM document_paragraphs WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}
	return nil
}
