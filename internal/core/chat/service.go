package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atenda/kb-rag/internal/core/answercache"
	"github.com/atenda/kb-rag/internal/core/search"
	"github.com/atenda/kb-rag/internal/platform/config"
)

const (
	// paragraphSeparator joins retrieved chunks into the generation context.
	paragraphSeparator = "\n\n---\n\n"

	// weakContextMinChars and weakContextMinParts guard the generator against
	// threadbare context: both limits must be undershot for the guard to fire.
	weakContextMinChars = 150
	weakContextMinParts = 2

	historyPageSize       = 10
	popularQuestionsLimit = 8
	popularQuestionsSince = 90 * 24 * time.Hour
)

// FallbackAnswer is the fixed response used whenever the pipeline cannot
// produce a grounded answer.
const FallbackAnswer = "Desculpe, não encontrei uma resposta para sua pergunta em minha base de conhecimento. Para sugerir sua dúvida à nossa equipe, clique no botão 'Não' abaixo e sua dúvida será encaminhada e analisada."

// Searcher is the retrieval surface the pipeline needs.
type Searcher interface {
	Keywords(ctx context.Context, question string) []string
	CandidateDocuments(ctx context.Context, keywords []string) []uuid.UUID
	BestWithCandidates(ctx context.Context, question string, candidates []uuid.UUID, filter search.Filter) (*search.Paragraph, error)
}

// Generator produces a conversational answer from a question and its context.
// Implementations never return an error: service failure is reported as a
// fallback answer.
type Generator interface {
	Generate(ctx context.Context, question, context string) (answer string, isFallback bool)
}

// ContextChecker cross-checks whether retrieved context actually fits the
// question.
type ContextChecker interface {
	CheckSimilarity(ctx context.Context, question string, paragraphs []string) (bool, error)
	CheckRelevance(ctx context.Context, question, context string) (bool, error)
}

// AnswerCache is the two-tier cache surface used by the pipeline.
type AnswerCache interface {
	Lookup(ctx context.Context, hash string) (string, error)
	StoreFast(ctx context.Context, hash, answer string, sourceDocIDs []uuid.UUID)
}

// TxStore is the transactional slice of the store. Everything called through
// it shares one transaction that commits or rolls back as a unit.
type TxStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	CreateQuery(ctx context.Context, sessionID uuid.UUID, question string) (*Query, error)
	CreateAnswer(ctx context.Context, queryID uuid.UUID, text string, sourceDocumentID *uuid.UUID) (*Answer, error)
	InsertCacheEntry(ctx context.Context, hash, question, contextText, answer string) error
}

// Store persists sessions, queries and answers.
type Store interface {
	InTx(ctx context.Context, fn func(tx TxStore) error) error
	CreateSession(ctx context.Context, userID uuid.UUID) (*Session, error)
	EndSession(ctx context.Context, id uuid.UUID) (*Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	History(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]HistoryEntry, error)
	PopularQuestions(ctx context.Context, since time.Time, limit int) ([]PopularQuestion, error)
}

// AskInput is one incoming question.
type AskInput struct {
	SessionID     uuid.UUID
	Question      string
	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
}

// Service runs the question-answering pipeline.
type Service struct {
	store     Store
	searcher  Searcher
	generator Generator
	checker   ContextChecker
	cache     AnswerCache
	cfg       config.PipelineConfig
	logger    *slog.Logger
}

// NewService creates a chat service.
func NewService(store Store, searcher Searcher, generator Generator, checker ContextChecker, cache AnswerCache, cfg config.PipelineConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		searcher:  searcher,
		generator: generator,
		checker:   checker,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
	}
}

// StartSession opens a new conversation for the user.
func (s *Service) StartSession(ctx context.Context, userID uuid.UUID) (*Session, error) {
	return s.store.CreateSession(ctx, userID)
}

// EndSession marks the session as finished.
func (s *Service) EndSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.store.EndSession(ctx, id)
}

// GetSession loads one session.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.store.GetSession(ctx, id)
}

// History returns one page of the session's query/answer pairs, newest first.
func (s *Service) History(ctx context.Context, sessionID uuid.UUID, page int) ([]HistoryEntry, error) {
	if page < 1 {
		page = 1
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.History(ctx, sessionID, historyPageSize, (page-1)*historyPageSize)
}

// PopularQuestions returns the most-asked questions of the last 90 days.
func (s *Service) PopularQuestions(ctx context.Context) ([]PopularQuestion, error) {
	since := time.Now().Add(-popularQuestionsSince)
	return s.store.PopularQuestions(ctx, since, popularQuestionsLimit)
}

// Ask runs the full pipeline for one question. The query row, the answer row
// and (when a fresh answer is generated) the durable cache entry are written
// in a single transaction; any failure rolls all of them back, so no query is
// ever left committed without its answer. External calls made while the
// transaction is open are themselves non-transactional.
func (s *Service) Ask(ctx context.Context, in AskInput) (*Result, error) {
	var result *Result
	err := s.store.InTx(ctx, func(tx TxStore) error {
		if _, err := tx.GetSession(ctx, in.SessionID); err != nil {
			return err
		}

		query, err := tx.CreateQuery(ctx, in.SessionID, in.Question)
		if err != nil {
			return fmt.Errorf("failed to create query: %w", err)
		}

		outcome, err := s.resolve(ctx, tx, in)
		if err != nil {
			return err
		}

		var sourceDocID *uuid.UUID
		if len(outcome.sources) > 0 {
			id := outcome.sources[0].DocumentID
			sourceDocID = &id
		}

		answer, err := tx.CreateAnswer(ctx, query.ID, outcome.answer, sourceDocID)
		if err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}

		result = &Result{Query: query, Answer: answer, Sources: outcome.sources}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type outcome struct {
	answer  string
	sources []Source
}

func fallbackOutcome() outcome {
	return outcome{answer: FallbackAnswer}
}

// resolve walks the decision chain: keywords, boosted top-1 retrieval, context
// cross-checks, cache, weak-context guard, generation. Every path ends with an
// answer text; only grounded answers carry sources.
func (s *Service) resolve(ctx context.Context, tx TxStore, in AskInput) (outcome, error) {
	keywords := s.searcher.Keywords(ctx, in.Question)
	if len(keywords) == 0 {
		s.logger.Info("no keywords extracted, answering with fallback")
		return fallbackOutcome(), nil
	}

	candidates := s.searcher.CandidateDocuments(ctx, keywords)
	filter := search.Filter{CategoryID: in.CategoryID, SubcategoryID: in.SubcategoryID}
	best, err := s.searcher.BestWithCandidates(ctx, in.Question, candidates, filter)
	if err != nil {
		return outcome{}, err
	}
	if best == nil || best.Score < s.cfg.AnswerThreshold {
		s.logger.Info("retrieval below answer threshold, answering with fallback")
		return fallbackOutcome(), nil
	}

	paragraphs := []string{best.Text}
	contextText := strings.Join(paragraphs, paragraphSeparator)
	sources := []Source{{DocumentID: best.DocumentID, Title: best.DocumentTitle}}

	aligned, err := s.contextAligned(ctx, in.Question, paragraphs, contextText)
	if err != nil {
		return outcome{}, err
	}
	if !aligned {
		s.logger.Info("context failed similarity and relevance checks, answering with fallback")
		return fallbackOutcome(), nil
	}

	hash := answercache.Key(in.Question, contextText)

	cached, err := s.cache.Lookup(ctx, hash)
	if err == nil {
		s.logger.Info("answer cache hit", "hash", hash[:12])
		return outcome{answer: cached, sources: sources}, nil
	}
	if !errors.Is(err, answercache.ErrNotFound) {
		return outcome{}, fmt.Errorf("answer cache lookup failed: %w", err)
	}

	if weakContext(contextText) {
		s.logger.Info("context too weak for generation, answering with fallback")
		return fallbackOutcome(), nil
	}

	answer, isFallback := s.generator.Generate(ctx, in.Question, contextText)
	if isFallback {
		return fallbackOutcome(), nil
	}

	if err := tx.InsertCacheEntry(ctx, hash, in.Question, contextText, answer); err != nil {
		return outcome{}, fmt.Errorf("failed to insert durable cache entry: %w", err)
	}
	s.cache.StoreFast(ctx, hash, answer, sourceDocIDs(sources))

	return outcome{answer: answer, sources: sources}, nil
}

// contextAligned runs the similarity check and, only when that fails, the
// relevance check. Either passing means the context fits the question.
func (s *Service) contextAligned(ctx context.Context, question string, paragraphs []string, contextText string) (bool, error) {
	similar, err := s.checker.CheckSimilarity(ctx, question, paragraphs)
	if err != nil {
		return false, fmt.Errorf("similarity check failed: %w", err)
	}
	if similar {
		return true, nil
	}

	relevant, err := s.checker.CheckRelevance(ctx, question, contextText)
	if err != nil {
		return false, fmt.Errorf("relevance check failed: %w", err)
	}
	return relevant, nil
}

func weakContext(contextText string) bool {
	length := len([]rune(strings.TrimSpace(contextText)))
	parts := len(strings.Split(contextText, "---"))
	return length < weakContextMinChars && parts < weakContextMinParts
}

func sourceDocIDs(sources []Source) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.DocumentID)
	}
	return ids
}
