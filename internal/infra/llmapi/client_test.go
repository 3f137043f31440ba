package llmapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atenda/kb-rag/internal/core/answercache"
	"github.com/atenda/kb-rag/internal/platform/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.LLMConfig{
		BaseURL:        server.URL,
		EmbedPath:      "/embed",
		GeneratePath:   "/generate",
		KeywordsPath:   "/keywords",
		CategorizePath: "/categorize",
		SimilarityPath: "/check-similarity",
		RelevancePath:  "/check-relevance",
		Timeout:        5 * time.Second,
	}, nil)
}

func jsonHandler(t *testing.T, wantPath string, response any) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, wantPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewEncoder(w).Encode(response))
	})
}

func failingHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", status)
	})
}

func TestGenerator_Generate(t *testing.T) {
	tests := []struct {
		name         string
		answer       string
		wantAnswer   string
		wantFallback bool
	}{
		{
			name:       "plain answer passes through",
			answer:     "O reembolso leva até 30 dias.",
			wantAnswer: "O reembolso leva até 30 dias.",
		},
		{
			name:         "bracket sentinel maps to no-answer fallback",
			answer:       "[NO_ANSWER]",
			wantAnswer:   NoAnswerFallback,
			wantFallback: true,
		},
		{
			name:         "bold sentinel with trailing text maps to no-answer fallback",
			answer:       "**NO_ANSWER** não há contexto suficiente",
			wantAnswer:   NoAnswerFallback,
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, jsonHandler(t, "/generate", map[string]string{"answer": tt.answer}))
			gen := NewGenerator(client)

			answer, isFallback := gen.Generate(context.Background(), "qual o prazo?", "contexto")
			assert.Equal(t, tt.wantAnswer, answer)
			assert.Equal(t, tt.wantFallback, isFallback)
		})
	}
}

func TestGenerator_ServiceFailureIsFallback(t *testing.T) {
	client := testClient(t, failingHandler(http.StatusInternalServerError))
	gen := NewGenerator(client)

	answer, isFallback := gen.Generate(context.Background(), "qual o prazo?", "contexto")
	assert.Equal(t, GenerationErrorAnswer, answer)
	assert.True(t, isFallback)
}

type fakeEmbeddingCache struct {
	vectors map[string][]float32
	writes  int
}

func (f *fakeEmbeddingCache) GetEmbedding(_ context.Context, text string) ([]float32, error) {
	vector, ok := f.vectors[text]
	if !ok {
		return nil, answercache.ErrNotFound
	}
	return vector, nil
}

func (f *fakeEmbeddingCache) SetEmbedding(_ context.Context, text string, vector []float32) error {
	f.writes++
	f.vectors[text] = vector
	return nil
}

func TestEmbedder_Embed(t *testing.T) {
	client := testClient(t, jsonHandler(t, "/embed", map[string]any{"embedding": []float32{0.1, 0.2}}))
	embedder := NewEmbedder(client, nil)

	vector, err := embedder.Embed(context.Background(), "pergunta")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vector)
}

func TestEmbedder_EmptyVectorIsError(t *testing.T) {
	client := testClient(t, jsonHandler(t, "/embed", map[string]any{"embedding": []float32{}}))
	embedder := NewEmbedder(client, nil)

	_, err := embedder.Embed(context.Background(), "pergunta")
	assert.Error(t, err)
}

func TestEmbedder_CacheHitSkipsHTTP(t *testing.T) {
	var requests int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		http.Error(w, "should not be called", http.StatusInternalServerError)
	}))
	cache := &fakeEmbeddingCache{vectors: map[string][]float32{"pergunta": {0.9}}}
	embedder := NewEmbedder(client, cache)

	vector, err := embedder.Embed(context.Background(), "pergunta")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.9}, vector)
	assert.Zero(t, requests)
}

func TestEmbedder_CacheMissPopulatesCache(t *testing.T) {
	client := testClient(t, jsonHandler(t, "/embed", map[string]any{"embedding": []float32{0.3}}))
	cache := &fakeEmbeddingCache{vectors: map[string][]float32{}}
	embedder := NewEmbedder(client, cache)

	_, err := embedder.Embed(context.Background(), "pergunta nova")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.writes)
	assert.Equal(t, []float32{0.3}, cache.vectors["pergunta nova"])
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	client := testClient(t, jsonHandler(t, "/embed", map[string]any{
		"embedding": [][]float32{{0.1}, {0.2}},
	}))
	embedder := NewEmbedder(client, nil)

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"um", "dois"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1}, {0.2}}, vectors)
}

func TestEmbedder_EmbedBatchCountMismatch(t *testing.T) {
	client := testClient(t, jsonHandler(t, "/embed", map[string]any{
		"embedding": [][]float32{{0.1}},
	}))
	embedder := NewEmbedder(client, nil)

	_, err := embedder.EmbedBatch(context.Background(), []string{"um", "dois"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 1 vectors for 2 inputs")
}

func TestEmbedder_EmbedBatchEmptyInput(t *testing.T) {
	client := testClient(t, failingHandler(http.StatusInternalServerError))
	embedder := NewEmbedder(client, nil)

	vectors, err := embedder.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestKeywordExtractor(t *testing.T) {
	client := testClient(t, jsonHandler(t, "/keywords", map[string]any{
		"keywords": []string{"reembolso", "prazo"},
	}))
	extractor := NewKeywordExtractor(client)

	keywords, err := extractor.ExtractKeywords(context.Background(), "qual o prazo de reembolso?")
	require.NoError(t, err)
	assert.Equal(t, []string{"reembolso", "prazo"}, keywords)
}

func TestKeywordExtractor_FailurePropagates(t *testing.T) {
	client := testClient(t, failingHandler(http.StatusBadGateway))
	extractor := NewKeywordExtractor(client)

	_, err := extractor.ExtractKeywords(context.Background(), "pergunta")
	assert.Error(t, err)
}

func TestClassifier(t *testing.T) {
	client := testClient(t, jsonHandler(t, "/categorize", map[string]any{
		"results": map[string]any{
			"main_category": map[string]any{
				"predicted_category": "Financeiro",
				"confidence_score":   0.87,
			},
		},
	}))
	classifier := NewClassifier(client)

	predictions, err := classifier.Classify(context.Background(), "como pedir reembolso?", map[string][]string{
		"main_category": {"Financeiro", "Suporte"},
	})
	require.NoError(t, err)
	require.Contains(t, predictions, "main_category")
	assert.Equal(t, "Financeiro", predictions["main_category"].Label)
	assert.Equal(t, 0.87, predictions["main_category"].Confidence)
}

func TestContextChecker(t *testing.T) {
	t.Run("similarity", func(t *testing.T) {
		client := testClient(t, jsonHandler(t, "/check-similarity", map[string]bool{"result": true}))
		checker := NewContextChecker(client)

		ok, err := checker.CheckSimilarity(context.Background(), "pergunta", []string{"contexto"})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("relevance", func(t *testing.T) {
		client := testClient(t, jsonHandler(t, "/check-relevance", map[string]bool{"result": false}))
		checker := NewContextChecker(client)

		ok, err := checker.CheckRelevance(context.Background(), "pergunta", "contexto")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		client := testClient(t, failingHandler(http.StatusServiceUnavailable))
		checker := NewContextChecker(client)

		_, err := checker.CheckSimilarity(context.Background(), "pergunta", []string{"contexto"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})
}
