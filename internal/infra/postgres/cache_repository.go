package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atenda/kb-rag/internal/core/answercache"
)

// CacheRepository implements the durable answer-cache tier. Entries are only
// ever inserted through the chat pipeline's transaction; this repository only
// reads.
type CacheRepository struct {
	pool *pgxpool.Pool
}

// NewCacheRepository creates a CacheRepository.
func NewCacheRepository(pool *pgxpool.Pool) *CacheRepository {
	return &CacheRepository{pool: pool}
}

var _ answercache.DurableStore = (*CacheRepository)(nil)

func (r *CacheRepository) GetByHash(ctx context.Context, hash string) (string, error) {
	var answer string
	err := r.pool.QueryRow(ctx, `SELECT answer_text FROM answer_cache WHERE context_hash = $1`, hash).Scan(&answer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", answercache.ErrNotFound
		}
		return "", fmt.Errorf("failed to read answer cache: %w", err)
	}
	return answer, nil
}
