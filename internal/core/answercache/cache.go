// Package answercache implements the two-tier answer cache: a fast key-value
// tier with expiring entries and a durable relational tier that never expires.
package answercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when no entry exists for a hash.
var ErrNotFound = errors.New("answer cache entry not found")

// FastStore is the expiring key-value tier.
type FastStore interface {
	GetAnswer(ctx context.Context, hash string) (string, error)
	// SetAnswer stores an answer under the hash. A zero ttl means no expiry.
	SetAnswer(ctx context.Context, hash, answer string, ttl time.Duration) error
	// AddDependency records that the cache entry was derived from the document,
	// so a later change to the document can purge it.
	AddDependency(ctx context.Context, documentID uuid.UUID, hash string) error
	// InvalidateDocument deletes every cache entry recorded as depending on the
	// document, then the dependency set itself.
	InvalidateDocument(ctx context.Context, documentID uuid.UUID) error
}

// DurableStore is the relational tier. Entries never expire.
type DurableStore interface {
	GetByHash(ctx context.Context, hash string) (string, error)
}

// Cache coordinates lookups across both tiers. Writes to the durable tier are
// not handled here: they ride the chat pipeline's transaction so a cached
// answer and its answer row commit together.
type Cache struct {
	fast    FastStore
	durable DurableStore
	ttl     time.Duration
	logger  *slog.Logger
}

// New creates a Cache. ttl bounds the lifetime of freshly generated entries in
// the fast tier.
func New(fast FastStore, durable DurableStore, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{fast: fast, durable: durable, ttl: ttl, logger: logger}
}

// Key derives the cache key for a question and its retrieved context.
func Key(question, context string) string {
	sum := sha256.Sum256([]byte(question + context))
	return hex.EncodeToString(sum[:])
}

// Lookup checks the fast tier, then the durable tier. A durable hit is
// backfilled into the fast tier without expiry, since the durable entry itself
// never expires. Returns ErrNotFound on a full miss.
func (c *Cache) Lookup(ctx context.Context, hash string) (string, error) {
	answer, err := c.fast.GetAnswer(ctx, hash)
	if err == nil {
		return answer, nil
	}
	if !errors.Is(err, ErrNotFound) {
		c.logger.Warn("fast cache tier lookup failed, falling through to durable tier", "error", err)
	}

	answer, err = c.durable.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read durable answer cache: %w", err)
	}

	if err := c.fast.SetAnswer(ctx, hash, answer, 0); err != nil {
		c.logger.Warn("failed to backfill fast cache tier", "error", err)
	}
	return answer, nil
}

// StoreFast writes a freshly generated answer to the fast tier with the
// configured expiry and records the reverse dependency for every source
// document. Failures are logged, not propagated: the cache is an optimization
// and must never fail the request that fills it.
func (c *Cache) StoreFast(ctx context.Context, hash, answer string, sourceDocIDs []uuid.UUID) {
	if err := c.fast.SetAnswer(ctx, hash, answer, c.ttl); err != nil {
		c.logger.Warn("failed to write fast cache tier", "error", err)
		return
	}
	for _, docID := range sourceDocIDs {
		if err := c.fast.AddDependency(ctx, docID, hash); err != nil {
			c.logger.Warn("failed to record cache dependency", "documentID", docID, "error", err)
		}
	}
}

// InvalidateDocument purges fast-tier entries derived from the document. The
// durable tier keeps its entries: it is not indexed by document, so stale
// durable entries survive until their hash is never asked for again.
func (c *Cache) InvalidateDocument(ctx context.Context, documentID uuid.UUID) error {
	return c.fast.InvalidateDocument(ctx, documentID)
}
