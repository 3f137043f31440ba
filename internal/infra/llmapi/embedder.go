package llmapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/atenda/kb-rag/internal/core/answercache"
)

// EmbeddingCache stores single-text embeddings. Batch embeddings are not
// cached: document chunks are embedded once per rebuild and rarely repeat.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	SetEmbedding(ctx context.Context, text string, vector []float32) error
}

// Embedder calls the embedding endpoint, with a cache in front of single-text
// calls.
type Embedder struct {
	client *Client
	cache  EmbeddingCache
}

// NewEmbedder creates an Embedder. cache may be nil to disable caching.
func NewEmbedder(client *Client, cache EmbeddingCache) *Embedder {
	return &Embedder{client: client, cache: cache}
}

type embedSingleRequest struct {
	Input string `json:"input"`
}

type embedSingleResponse struct {
	Embedding []float32 `json:"embedding"`
}

type embedBatchRequest struct {
	Input []string `json:"input"`
}

type embedBatchResponse struct {
	Embedding [][]float32 `json:"embedding"`
}

// Embed returns the vector for one text. Failures propagate: embedding is
// load-bearing and the caller cannot proceed without it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		vector, err := e.cache.GetEmbedding(ctx, text)
		if err == nil {
			return vector, nil
		}
		if !errors.Is(err, answercache.ErrNotFound) {
			e.client.logger.Warn("embedding cache read failed", "error", err)
		}
	}

	result, err := e.client.embedBreaker.Execute(func() (any, error) {
		var resp embedSingleResponse
		if err := e.client.doPost(ctx, e.client.cfg.EmbedPath, embedSingleRequest{Input: text}, &resp); err != nil {
			return nil, err
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("embedding service returned an empty vector")
		}
		return resp.Embedding, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	vector := result.([]float32)

	if e.cache != nil {
		if err := e.cache.SetEmbedding(ctx, text, vector); err != nil {
			e.client.logger.Warn("embedding cache write failed", "error", err)
		}
	}
	return vector, nil
}

// EmbedBatch returns one vector per input text, in input order. A count
// mismatch is an error: silently dropping vectors would desynchronize chunks
// from their embeddings.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result, err := e.client.embedBreaker.Execute(func() (any, error) {
		var resp embedBatchResponse
		if err := e.client.doPost(ctx, e.client.cfg.EmbedPath, embedBatchRequest{Input: texts}, &resp); err != nil {
			return nil, err
		}
		return resp.Embedding, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch: %w", err)
	}

	vectors := result.([][]float32)
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}
