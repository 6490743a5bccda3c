package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	httpclient "cv-match/pkg/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type EmbeddingConfig struct {
	Provider Provider // openai or ollama
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	Retry    RetryConfig
}

// EmbeddingService generates vector embeddings over HTTP.
type EmbeddingService struct {
	provider Provider
	apiKey   string
	model    string
	baseURL  string
	timeout  time.Duration
	retry    RetryConfig
	client   *httpclient.Client
	log      *zap.Logger
}

func NewEmbeddingService(cfg EmbeddingConfig, log *zap.Logger) (*EmbeddingService, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key is required for embeddings")
		}
	case ProviderOllama:
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL(cfg.Provider)
	}

	return &EmbeddingService{
		provider: cfg.Provider,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  cfg.Timeout,
		retry:    cfg.Retry,
		client:   httpclient.NewClient(0),
		log:      log,
	}, nil
}

// Embed embeds all texts in one request so result i belongs to texts[i].
func (s *EmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := RetryDo(ctx, s.retry, s.log, func(ctx context.Context) ([][]float32, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if s.provider == ProviderOllama {
			return s.embedOllama(attemptCtx, texts)
		}
		return s.embedOpenAI(attemptCtx, texts)
	})
	if err != nil {
		err = classify(s.provider, "embed", s.timeout, err)
		s.log.Error("[Embeddings] request failed", zap.String("provider", string(s.provider)), zap.Error(err))
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, &UpstreamError{
			Provider: s.provider,
			Op:       "embed",
			Message:  fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vectors)),
		}
	}

	s.log.Debug("[Embeddings] generated", zap.Int("count", len(vectors)))
	return vectors, nil
}

func (s *EmbeddingService) embedOpenAI(ctx context.Context, texts []string) ([][]float32, error) {
	requestBody := map[string]interface{}{
		"input": texts,
		"model": s.model,
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}

	headers := map[string]string{"Authorization": "Bearer " + s.apiKey}
	if err := s.client.PostJSON(ctx, s.baseURL+"/embeddings", headers, requestBody, &result); err != nil {
		return nil, err
	}

	sort.SliceStable(result.Data, func(i, j int) bool { return result.Data[i].Index < result.Data[j].Index })

	out := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (s *EmbeddingService) embedOllama(ctx context.Context, texts []string) ([][]float32, error) {
	requestBody := map[string]interface{}{
		"model": s.model,
		"input": texts,
	}

	var result struct {
		Embeddings [][]float32 `json:"embeddings"`
		Error      string      `json:"error"`
	}

	if err := s.client.PostJSON(ctx, s.baseURL+"/api/embed", nil, requestBody, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, &UpstreamError{Provider: s.provider, Op: "embed", Message: result.Error}
	}
	return result.Embeddings, nil
}

// RateLimitedEmbedder throttles calls to the wrapped embedder.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows perSecond calls per second with a burst of one.
func NewRateLimitedEmbedder(next Embedder, perSecond float64) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

func (e *RateLimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.Embed(ctx, texts)
}
