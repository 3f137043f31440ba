// Package redisstore implements the fast cache tier on Redis: answers keyed
// by context hash, per-document dependency sets and the embedding cache.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/atenda/kb-rag/internal/core/answercache"
	"github.com/atenda/kb-rag/internal/platform/config"
)

const (
	answerKeyPrefix     = "answer:"
	dependencyKeyPrefix = "doc_dependencies:"
	embeddingKeyPrefix  = "embedding:"
)

// Store wraps the Redis client.
type Store struct {
	client *redis.Client
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

var _ answercache.FastStore = (*Store)(nil)

func answerKey(hash string) string {
	return answerKeyPrefix + hash
}

func dependencyKey(documentID uuid.UUID) string {
	return dependencyKeyPrefix + documentID.String()
}

func (s *Store) GetAnswer(ctx context.Context, hash string) (string, error) {
	answer, err := s.client.Get(ctx, answerKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", answercache.ErrNotFound
		}
		return "", fmt.Errorf("failed to get cached answer: %w", err)
	}
	return answer, nil
}

func (s *Store) SetAnswer(ctx context.Context, hash, answer string, ttl time.Duration) error {
	if err := s.client.Set(ctx, answerKey(hash), answer, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached answer: %w", err)
	}
	return nil
}

func (s *Store) AddDependency(ctx context.Context, documentID uuid.UUID, hash string) error {
	if err := s.client.SAdd(ctx, dependencyKey(documentID), answerKey(hash)).Err(); err != nil {
		return fmt.Errorf("failed to record cache dependency: %w", err)
	}
	return nil
}

// InvalidateDocument deletes every answer key recorded in the document's
// dependency set, then the set itself.
func (s *Store) InvalidateDocument(ctx context.Context, documentID uuid.UUID) error {
	depKey := dependencyKey(documentID)

	keys, err := s.client.SMembers(ctx, depKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read cache dependency set: %w", err)
	}

	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete dependent cache entries: %w", err)
		}
	}
	if err := s.client.Del(ctx, depKey).Err(); err != nil {
		return fmt.Errorf("failed to delete cache dependency set: %w", err)
	}
	return nil
}

// embeddingKey normalizes the text so trivially different spellings of the
// same question share one cached vector.
func embeddingKey(text string) string {
	return embeddingKeyPrefix + strings.ToLower(strings.TrimSpace(text))
}

// GetEmbedding returns the cached vector for the text, or answercache.ErrNotFound.
func (s *Store) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	raw, err := s.client.Get(ctx, embeddingKey(text)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, answercache.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cached embedding: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil, fmt.Errorf("failed to decode cached embedding: %w", err)
	}
	return vector, nil
}

// SetEmbedding caches the vector without expiry. Embeddings are deterministic
// per model, so they never go stale short of a model change.
func (s *Store) SetEmbedding(ctx context.Context, text string, vector []float32) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	if err := s.client.Set(ctx, embeddingKey(text), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to set cached embedding: %w", err)
	}
	return nil
}
