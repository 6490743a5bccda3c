package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cv-match/internal/profile"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiEmbeddingModel = "text-embedding-004"
)

// geminiModels is the subset of genai.Models used here.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	Retry          RetryConfig
}

// GeminiClient implements both Standardizer and Embedder on the Gemini API.
type GeminiClient struct {
	models         geminiModels
	model          string
	embeddingModel string
	timeout        time.Duration
	retry          RetryConfig
	log            *zap.Logger
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*GeminiClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGeminiClient(client.Models, cfg, log), nil
}

func newGeminiClient(models geminiModels, cfg GeminiConfig, log *zap.Logger) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaultGeminiEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &GeminiClient{
		models:         models,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		timeout:        cfg.Timeout,
		retry:          cfg.Retry,
		log:            log,
	}
}

func (g *GeminiClient) Standardize(ctx context.Context, text string) (*profile.Profile, error) {
	temperature := float32(0.1)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: standardizeSystemPrompt}},
		},
	}

	response, err := RetryDo(ctx, g.retry, g.log, func(ctx context.Context) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.models.GenerateContent(attemptCtx, g.model, genai.Text(standardizeUserPrompt(text)), config)
		if err != nil {
			return "", err
		}
		return responseText(resp)
	})
	if err != nil {
		err = classify(ProviderGemini, "chat", g.timeout, err)
		g.log.Error("[Gemini] standardize failed", zap.Error(err))
		return nil, err
	}

	return profile.Parse([]byte(CleanJSONBlock(response)))
}

func (g *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: t}},
		}
	}

	vectors, err := RetryDo(ctx, g.retry, g.log, func(ctx context.Context) ([][]float32, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.models.EmbedContent(attemptCtx, g.embeddingModel, contents, nil)
		if err != nil {
			return nil, err
		}
		out := make([][]float32, 0, len(resp.Embeddings))
		for _, e := range resp.Embeddings {
			if e == nil {
				return nil, &UpstreamError{Provider: ProviderGemini, Op: "embed", Message: "nil embedding in response"}
			}
			out = append(out, e.Values)
		}
		return out, nil
	})
	if err != nil {
		err = classify(ProviderGemini, "embed", g.timeout, err)
		g.log.Error("[Gemini] embed failed", zap.Error(err))
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, &UpstreamError{
			Provider: ProviderGemini,
			Op:       "embed",
			Message:  fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vectors)),
		}
	}
	return vectors, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", &UpstreamError{Provider: ProviderGemini, Op: "chat", Message: "empty response"}
	}
	return output, nil
}
