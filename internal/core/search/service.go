package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atenda/kb-rag/internal/platform/config"
)

const keywordCandidateLimit = 10

// Embedder turns a single text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KeywordExtractor pulls salient keywords out of a question. Extraction is
// best-effort: implementations return an empty slice when the upstream service
// is unavailable.
type KeywordExtractor interface {
	ExtractKeywords(ctx context.Context, text string) ([]string, error)
}

// Repository answers retrieval queries against the chunk store.
type Repository interface {
	// FindDocumentIDsByKeywords returns approved documents tagged with at
	// least one of the keywords, ordered by how many keywords match.
	FindDocumentIDsByKeywords(ctx context.Context, keywords []string, limit int) ([]uuid.UUID, error)
	// TopParagraphs ranks chunks by boosted similarity, highest first.
	TopParagraphs(ctx context.Context, q ParagraphQuery) ([]Paragraph, error)
}

// Filter optionally narrows a search to a taxonomy slice.
type Filter struct {
	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
}

// Service performs retrieval: extract keywords, embed the question, then rank
// chunks with keyword and feedback boosts applied.
type Service struct {
	embedder  Embedder
	extractor KeywordExtractor
	repo      Repository
	cfg       config.PipelineConfig
	logger    *slog.Logger
}

// NewService creates a retrieval service.
func NewService(embedder Embedder, extractor KeywordExtractor, repo Repository, cfg config.PipelineConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder:  embedder,
		extractor: extractor,
		repo:      repo,
		cfg:       cfg,
		logger:    logger,
	}
}

// Keywords extracts salient keywords from the question. Extraction failure
// degrades to an empty slice with a logged warning.
func (s *Service) Keywords(ctx context.Context, question string) []string {
	keywords, err := s.extractor.ExtractKeywords(ctx, question)
	if err != nil {
		s.logger.Warn("keyword extraction failed", "error", err)
		return nil
	}
	return keywords
}

// CandidateDocuments resolves keywords to boost-eligible document IDs. Lookup
// failure degrades to an empty result: retrieval still works without the boost.
func (s *Service) CandidateDocuments(ctx context.Context, keywords []string) []uuid.UUID {
	if len(keywords) == 0 {
		return nil
	}

	ids, err := s.repo.FindDocumentIDsByKeywords(ctx, keywords, keywordCandidateLimit)
	if err != nil {
		s.logger.Warn("keyword document lookup failed, searching without keyword boost", "error", err)
		return nil
	}
	return ids
}

// TopParagraphs returns the best-ranked chunks for the question, at most limit
// of them, filtered to combined scores above the configured similarity
// threshold. Embedding failure is a hard error: without a query vector there is
// nothing to rank.
func (s *Service) TopParagraphs(ctx context.Context, question string, filter Filter, limit int) ([]Paragraph, error) {
	candidates := s.CandidateDocuments(ctx, s.Keywords(ctx, question))
	return s.rank(ctx, question, candidates, filter, s.cfg.SimilarityThreshold, limit)
}

// BestWithCandidates ranks without a score floor and returns the single
// highest-ranked chunk, or nil when the corpus is empty. The caller applies
// its own acceptance gate to the returned score; filtering here would hide
// below-gate scores the caller needs to observe.
func (s *Service) BestWithCandidates(ctx context.Context, question string, candidates []uuid.UUID, filter Filter) (*Paragraph, error) {
	paragraphs, err := s.rank(ctx, question, candidates, filter, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}
	return &paragraphs[0], nil
}

func (s *Service) rank(ctx context.Context, question string, candidates []uuid.UUID, filter Filter, minScore float64, limit int) ([]Paragraph, error) {
	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	paragraphs, err := s.repo.TopParagraphs(ctx, ParagraphQuery{
		Embedding:       embedding,
		CandidateDocIDs: candidates,
		CategoryID:      filter.CategoryID,
		SubcategoryID:   filter.SubcategoryID,
		MinScore:        minScore,
		KeywordBoost:    s.cfg.KeywordBoost,
		FeedbackBoost:   s.cfg.FeedbackBoost,
		Limit:           limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rank paragraphs: %w", err)
	}
	return paragraphs, nil
}
