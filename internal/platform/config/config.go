package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full application configuration.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	HTTPPort int
}

// DatabaseConfig is the PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig is the fast cache tier connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LLMConfig holds the base URL and endpoint paths of the external language
// model service, plus the per-call timeout applied by every client.
type LLMConfig struct {
	BaseURL        string
	EmbedPath      string
	GeneratePath   string
	KeywordsPath   string
	CategorizePath string
	SimilarityPath string
	RelevancePath  string
	Timeout        time.Duration
}

// PipelineConfig holds the retrieval pipeline thresholds. All values are
// numeric; defaults follow the documented product tuning.
type PipelineConfig struct {
	// SimilarityThreshold is the minimum combined score for a paragraph to be
	// considered relevant at all.
	SimilarityThreshold float64
	// AnswerThreshold gates the pipeline: the best paragraph must score at
	// least this much (inclusive) before the generator may be consulted.
	AnswerThreshold float64
	// KeywordBoost is added to a paragraph's score when its document matched
	// the keyword search.
	KeywordBoost float64
	// FeedbackBoost is added when the paragraph's document has previously
	// sourced an answer marked satisfactory.
	FeedbackBoost float64
	// ClassificationConfidence gates categorization predictions (inclusive).
	ClassificationConfidence float64
	// EmbeddingDimension is the fixed dimensionality of stored vectors.
	EmbeddingDimension int
	// AnswerCacheTTL bounds fast-tier entries written after a fresh generation.
	AnswerCacheTTL time.Duration
}

// Load reads configuration from the given .env file (if present) and the
// process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "kbrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "kbrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "http://127.0.0.1:8000"),
			EmbedPath:      getEnv("LLM_EMBED_PATH", "/embed"),
			GeneratePath:   getEnv("LLM_GENERATE_PATH", "/generate"),
			KeywordsPath:   getEnv("LLM_KEYWORDS_PATH", "/extract-keywords"),
			CategorizePath: getEnv("LLM_CATEGORIZE_PATH", "/categorize"),
			SimilarityPath: getEnv("LLM_SIMILARITY_PATH", "/similarity"),
			RelevancePath:  getEnv("LLM_RELEVANCE_PATH", "/relevance"),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 15*time.Second),
		},
		Pipeline: PipelineConfig{
			SimilarityThreshold:      getEnvAsFloat("SIMILARITY_THRESHOLD", 0.7),
			AnswerThreshold:          getEnvAsFloat("ANSWER_THRESHOLD", 0.55),
			KeywordBoost:             getEnvAsFloat("KEYWORD_BOOST_FACTOR", 0.6),
			FeedbackBoost:            getEnvAsFloat("FEEDBACK_BOOST_FACTOR", 0.11),
			ClassificationConfidence: getEnvAsFloat("CLASSIFICATION_CONFIDENCE_THRESHOLD", 0.50),
			EmbeddingDimension:       getEnvAsInt("EMBEDDING_DIMENSION", 384),
			AnswerCacheTTL:           getEnvAsDuration("ANSWER_CACHE_TTL", 24*time.Hour),
		},
		HTTPPort: getEnvAsInt("HTTP_PORT", 8080),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
