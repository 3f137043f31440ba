package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atenda/kb-rag/internal/core/answercache"
	"github.com/atenda/kb-rag/internal/core/chat"
	"github.com/atenda/kb-rag/internal/core/ingest"
	"github.com/atenda/kb-rag/internal/core/knowledge"
	"github.com/atenda/kb-rag/internal/core/search"
	"github.com/atenda/kb-rag/internal/core/triage"
	"github.com/atenda/kb-rag/internal/infra/llmapi"
	"github.com/atenda/kb-rag/internal/infra/postgres"
	"github.com/atenda/kb-rag/internal/infra/redisstore"
	"github.com/atenda/kb-rag/internal/platform/config"
	"github.com/atenda/kb-rag/internal/platform/database"
	"github.com/atenda/kb-rag/internal/platform/logger"
)

// AppContext wires configuration, infrastructure and services for one command
// invocation.
type AppContext struct {
	Config   *config.Config
	Logger   *slog.Logger
	Database *database.DB
	Redis    *redisstore.Store

	Chat      *chat.Service
	Knowledge *knowledge.Service
	Triage    *triage.Service
	Indexer   *ingest.Indexer
	Store     *postgres.KnowledgeRepository
}

// NewAppContext loads configuration, connects to the backing stores and
// assembles the service graph.
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.DefaultConfig())

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	rds, err := redisstore.New(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	llmClient := llmapi.NewClient(cfg.LLM, log)
	embedder := llmapi.NewEmbedder(llmClient, rds)
	generator := llmapi.NewGenerator(llmClient)
	extractor := llmapi.NewKeywordExtractor(llmClient)
	classifier := llmapi.NewClassifier(llmClient)
	checker := llmapi.NewContextChecker(llmClient)

	knowledgeRepo := postgres.NewKnowledgeRepository(db.Pool)
	searchRepo := postgres.NewSearchRepository(db.Pool)
	chunkRepo := postgres.NewChunkRepository(db.Pool)
	chatRepo := postgres.NewChatRepository(db.Pool)
	triageRepo := postgres.NewTriageRepository(db.Pool)
	durableCache := postgres.NewCacheRepository(db.Pool)

	cache := answercache.New(rds, durableCache, cfg.Pipeline.AnswerCacheTTL, log)
	indexer := ingest.NewIndexer(embedder, chunkRepo, cache, log)

	searchSvc := search.NewService(embedder, extractor, searchRepo, cfg.Pipeline, log)
	chatSvc := chat.NewService(chatRepo, searchSvc, generator, checker, cache, cfg.Pipeline, log)
	knowledgeSvc := knowledge.NewService(knowledgeRepo, indexer, log)
	triageSvc := triage.NewService(triageRepo, classifier, knowledgeRepo, cfg.Pipeline.ClassificationConfidence, log)

	return &AppContext{
		Config:    cfg,
		Logger:    log,
		Database:  db,
		Redis:     rds,
		Chat:      chatSvc,
		Knowledge: knowledgeSvc,
		Triage:    triageSvc,
		Indexer:   indexer,
		Store:     knowledgeRepo,
	}, nil
}

// Close releases the backing connections.
func (ac *AppContext) Close() {
	if ac.Redis != nil {
		if err := ac.Redis.Close(); err != nil {
			ac.Logger.Warn("failed to close redis client", "error", err)
		}
	}
	if ac.Database != nil {
		ac.Database.Close()
	}
}
