package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cv-match/internal/logger"
	"cv-match/internal/profile"
	httpclient "cv-match/pkg/http"

	"go.uber.org/zap"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
	ProviderGroq   Provider = "groq"
	ProviderGemini Provider = "gemini"
	ProviderNone   Provider = "none"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	groqBaseURL   = "https://api.groq.com/openai/v1"
	ollamaBaseURL = "http://localhost:11434"
)

// Standardizer turns raw resume text into a structured profile.
type Standardizer interface {
	Standardize(ctx context.Context, text string) (*profile.Profile, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type ServiceConfig struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string        // empty = provider default
	Timeout  time.Duration // per attempt
	Retry    RetryConfig
}

// Service talks to OpenAI-compatible chat APIs (OpenAI, Groq) and Ollama.
type Service struct {
	provider Provider
	apiKey   string
	model    string
	baseURL  string
	timeout  time.Duration
	retry    RetryConfig
	client   *httpclient.Client
	log      *zap.Logger
}

func NewService(cfg ServiceConfig, log *zap.Logger) (*Service, error) {
	switch cfg.Provider {
	case ProviderOpenAI, ProviderGroq:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%s API key is required", cfg.Provider)
		}
	case ProviderOllama:
	default:
		return nil, fmt.Errorf("unsupported chat provider: %s", cfg.Provider)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL(cfg.Provider)
	}

	return &Service{
		provider: cfg.Provider,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  cfg.Timeout,
		retry:    cfg.Retry,
		// the per-attempt context carries the deadline
		client: httpclient.NewClient(0),
		log:    log,
	}, nil
}

func defaultBaseURL(p Provider) string {
	switch p {
	case ProviderGroq:
		return groqBaseURL
	case ProviderOllama:
		return ollamaBaseURL
	default:
		return openAIBaseURL
	}
}

// Standardize asks the model for a structured profile. Unusable output is
// returned as *profile.ParseError.
func (s *Service) Standardize(ctx context.Context, text string) (*profile.Profile, error) {
	start := time.Now()
	response, err := s.complete(ctx, standardizeSystemPrompt, standardizeUserPrompt(text), true)
	if err != nil {
		return nil, err
	}

	s.log.Debug("[LLM] standardize response",
		zap.String("provider", string(s.provider)),
		zap.Duration("took", time.Since(start)),
		zap.String("preview", logger.TruncateForLog(response, 200)))

	return profile.Parse([]byte(CleanJSONBlock(response)))
}

func (s *Service) complete(ctx context.Context, system, prompt string, jsonOutput bool) (string, error) {
	out, err := RetryDo(ctx, s.retry, s.log, func(ctx context.Context) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if s.provider == ProviderOllama {
			return s.callOllama(attemptCtx, system, prompt, jsonOutput)
		}
		return s.callChatCompletions(attemptCtx, system, prompt, jsonOutput)
	})
	if err != nil {
		err = classify(s.provider, "chat", s.timeout, err)
		s.log.Error("[LLM] request failed", zap.String("provider", string(s.provider)), zap.Error(err))
		return "", err
	}
	return out, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// callChatCompletions serves both OpenAI and Groq, which share the wire format.
func (s *Service) callChatCompletions(ctx context.Context, system, prompt string, jsonOutput bool) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	reqBody := map[string]interface{}{
		"model":       s.model,
		"messages":    messages,
		"temperature": 0.1,
	}
	if jsonOutput {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	headers := map[string]string{"Authorization": "Bearer " + s.apiKey}
	if err := s.client.PostJSON(ctx, s.baseURL+"/chat/completions", headers, reqBody, &result); err != nil {
		return "", err
	}

	if result.Error.Message != "" {
		return "", &UpstreamError{Provider: s.provider, Op: "chat", Message: result.Error.Message}
	}
	if len(result.Choices) == 0 {
		return "", &UpstreamError{Provider: s.provider, Op: "chat", Message: "no choices in response"}
	}

	return result.Choices[0].Message.Content, nil
}

func (s *Service) callOllama(ctx context.Context, system, prompt string, jsonOutput bool) (string, error) {
	reqBody := map[string]interface{}{
		"model":  s.model,
		"prompt": prompt,
		"stream": false,
	}
	if system != "" {
		reqBody["system"] = system
	}
	if jsonOutput {
		reqBody["format"] = "json"
	}

	var result struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}

	if err := s.client.PostJSON(ctx, s.baseURL+"/api/generate", nil, reqBody, &result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", &UpstreamError{Provider: s.provider, Op: "chat", Message: result.Error}
	}
	return result.Response, nil
}
