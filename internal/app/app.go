// Package app wires configuration into the stores, providers and pipeline
// used by both the API server and matchctl.
package app

import (
	"context"
	"fmt"
	"time"

	"cv-match/internal/config"
	"cv-match/internal/cv"
	"cv-match/internal/ingest"
	"cv-match/internal/llm"
	"cv-match/internal/matching"
	"cv-match/internal/storage"
	"cv-match/internal/vectorstore"

	"go.uber.org/zap"
)

type App struct {
	Repo         storage.Repository
	Vectors      vectorstore.Store
	Parser       *cv.CVParser
	Standardizer llm.Standardizer
	Embedder     llm.Embedder
	Orchestrator *ingest.Orchestrator
	Engine       *matching.Engine

	cache *llm.EmbeddingCache
	db    *storage.DB
	log   *zap.Logger
}

// Build connects to Postgres when DATABASE_URL is set and falls back to
// in-memory stores otherwise.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{log: log, Parser: cv.NewCVParser(cfg.UploadsDir)}

	if err := a.buildStores(ctx, cfg); err != nil {
		return nil, err
	}

	var gemini *llm.GeminiClient
	if cfg.LLMProvider == string(llm.ProviderGemini) || cfg.EmbeddingProvider == string(llm.ProviderGemini) {
		g, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:         geminiAPIKey(cfg),
			Model:          geminiChatModel(cfg),
			EmbeddingModel: geminiEmbeddingModel(cfg),
			Timeout:        cfg.LLMTimeout,
			Retry:          llm.DefaultRetryConfig,
		}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		gemini = g
	}

	std, err := buildStandardizer(cfg, gemini, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Standardizer = std

	base, err := buildEmbedder(cfg, gemini, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cache = llm.NewEmbeddingCache(cfg.EmbedCacheTTL)
	a.Embedder = llm.NewCachedEmbedder(llm.NewRateLimitedEmbedder(base, cfg.EmbedRatePerSec), a.cache)

	chunker, err := cv.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Orchestrator = ingest.New(ingest.Deps{
		Repo:         a.Repo,
		Vectors:      a.Vectors,
		Embedder:     a.Embedder,
		Standardizer: a.Standardizer,
		Extractor:    a.Parser,
		Chunker:      chunker,
		Log:          log,
		Concurrency:  cfg.Workers,
	})
	if err := a.Orchestrator.EnsureCollections(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Engine = matching.NewEngine(a.Vectors, a.Repo, log)

	log.Info("pipeline ready",
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("llm_model", cfg.LLMModel),
		zap.String("embedding_provider", cfg.EmbeddingProvider),
		zap.String("embedding_model", cfg.EmbeddingModel),
		zap.Bool("postgres", a.db != nil))
	return a, nil
}

func (a *App) buildStores(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		a.log.Warn("DATABASE_URL not set, using in-memory stores (data is lost on restart)")
		a.Repo = storage.NewMemoryRepository()
		a.Vectors = vectorstore.NewMemoryStore()
		return nil
	}

	db, err := storage.NewDB(cfg.DatabaseURL, a.log)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return err
	}
	pg := vectorstore.NewPGStore(db.Conn(), a.log)
	if err := pg.Migrate(ctx); err != nil {
		db.Close()
		return err
	}

	a.db = db
	a.Repo = db
	a.Vectors = pg
	a.log.Info("Database connected successfully!")
	return nil
}

func buildStandardizer(cfg *config.Config, gemini *llm.GeminiClient, log *zap.Logger) (llm.Standardizer, error) {
	switch llm.Provider(cfg.LLMProvider) {
	case llm.ProviderNone:
		log.Warn("LLM_PROVIDER=none, profiles come from keyword extraction")
		return cv.NewKeywordExtractor(log), nil
	case llm.ProviderGemini:
		return gemini, nil
	default:
		return llm.NewService(llm.ServiceConfig{
			Provider: llm.Provider(cfg.LLMProvider),
			APIKey:   cfg.LLMAPIKey,
			Model:    cfg.LLMModel,
			BaseURL:  ollamaURL(cfg, cfg.LLMProvider),
			Timeout:  cfg.LLMTimeout,
			Retry:    llm.DefaultRetryConfig,
		}, log)
	}
}

func buildEmbedder(cfg *config.Config, gemini *llm.GeminiClient, log *zap.Logger) (llm.Embedder, error) {
	if llm.Provider(cfg.EmbeddingProvider) == llm.ProviderGemini {
		return gemini, nil
	}
	return llm.NewEmbeddingService(llm.EmbeddingConfig{
		Provider: llm.Provider(cfg.EmbeddingProvider),
		APIKey:   cfg.EmbeddingAPIKey,
		Model:    cfg.EmbeddingModel,
		BaseURL:  ollamaURL(cfg, cfg.EmbeddingProvider),
		Timeout:  cfg.EmbedTimeout,
		Retry:    llm.DefaultRetryConfig,
	}, log)
}

// StartCacheJanitor evicts expired embeddings every interval until ctx is done.
func (a *App) StartCacheJanitor(ctx context.Context, interval time.Duration) {
	if a.cache == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.cache.CleanExpired()
			}
		}
	}()
}

func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

func ollamaURL(cfg *config.Config, provider string) string {
	if provider == string(llm.ProviderOllama) {
		return cfg.OllamaURL
	}
	return ""
}

func geminiChatModel(cfg *config.Config) string {
	if cfg.LLMProvider == string(llm.ProviderGemini) {
		return cfg.LLMModel
	}
	return ""
}

func geminiEmbeddingModel(cfg *config.Config) string {
	if cfg.EmbeddingProvider == string(llm.ProviderGemini) {
		return cfg.EmbeddingModel
	}
	return ""
}

// geminiAPIKey returns the key configured for whichever role uses Gemini.
// When both do, the two keys are the same GEMINI_API_KEY.
func geminiAPIKey(cfg *config.Config) string {
	if cfg.EmbeddingProvider == string(llm.ProviderGemini) {
		return cfg.EmbeddingAPIKey
	}
	return cfg.LLMAPIKey
}
