package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string // empty = in-memory stores
	Port        string
	UploadsDir  string

	// LLM Configuration
	LLMProvider string // "openai", "groq", "ollama", "gemini" or "none"
	LLMModel    string // "gpt-4o-mini", "llama-3.3-70b-versatile", "gemini-2.5-flash"
	LLMAPIKey   string // key for LLMProvider
	OllamaURL   string

	// Embeddings
	EmbeddingProvider string // "openai", "ollama" or "gemini"
	EmbeddingModel    string
	EmbeddingAPIKey   string
	EmbedRatePerSec   float64
	EmbedCacheTTL     time.Duration

	// Timeouts for upstream calls
	LLMTimeout   time.Duration
	EmbedTimeout time.Duration

	// Pipeline
	ChunkSize    int
	ChunkOverlap int
	MatchTopN    int
	QueueSize    int
	Workers      int

	LogJSON  bool
	LogDebug bool
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
		log.Println("Attempting to load from parent directory...")
		err = godotenv.Load("../../.env")
		if err != nil {
			log.Println("Warning: Could not load .env file, using environment variables")
		}
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() *Config {
	llmProvider := envOr("LLM_PROVIDER", "openai")

	llmModel := os.Getenv("LLM_MODEL")
	if llmModel == "" {
		llmModel = defaultChatModel(llmProvider)
	}

	embeddingProvider := os.Getenv("EMBEDDING_PROVIDER")
	if embeddingProvider == "" {
		// Groq has no embeddings API, fall back to OpenAI for vectors
		if llmProvider == "groq" || llmProvider == "none" {
			embeddingProvider = "openai"
		} else {
			embeddingProvider = llmProvider
		}
	}

	embeddingModel := os.Getenv("EMBEDDING_MODEL")
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel(embeddingProvider)
	}

	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        envOr("PORT", "8080"),
		UploadsDir:  os.Getenv("UPLOADS_DIR"),

		LLMProvider: llmProvider,
		LLMModel:    llmModel,
		LLMAPIKey:   apiKeyFor(llmProvider),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),

		EmbeddingProvider: embeddingProvider,
		EmbeddingModel:    embeddingModel,
		EmbeddingAPIKey:   apiKeyFor(embeddingProvider),
		EmbedRatePerSec:   envFloat("EMBED_RATE_PER_SEC", 5),
		EmbedCacheTTL:     envDuration("EMBED_CACHE_TTL", 30*time.Minute),

		LLMTimeout:   envDuration("LLM_TIMEOUT", 2*time.Minute),
		EmbedTimeout: envDuration("EMBED_TIMEOUT", 30*time.Second),

		ChunkSize:    envInt("CHUNK_SIZE", 1000),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 100),
		MatchTopN:    envInt("MATCH_TOP_N", 10),
		QueueSize:    envInt("QUEUE_SIZE", 50),
		Workers:      envInt("WORKERS", 2),

		LogJSON:  envBool("LOG_JSON", false),
		LogDebug: envBool("LOG_DEBUG", false),
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.MatchTopN <= 0 {
		return fmt.Errorf("MATCH_TOP_N must be positive, got %d", c.MatchTopN)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("QUEUE_SIZE must be positive, got %d", c.QueueSize)
	}
	if c.EmbedRatePerSec <= 0 {
		return fmt.Errorf("EMBED_RATE_PER_SEC must be positive, got %v", c.EmbedRatePerSec)
	}
	switch c.LLMProvider {
	case "openai", "groq", "ollama", "gemini", "none":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.EmbeddingProvider {
	case "openai", "ollama", "gemini":
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
	return nil
}

func defaultChatModel(provider string) string {
	switch provider {
	case "groq":
		return "llama-3.3-70b-versatile"
	case "ollama":
		return "llama3.1"
	case "gemini":
		return "gemini-2.5-flash"
	default:
		return "gpt-4o-mini"
	}
}

func defaultEmbeddingModel(provider string) string {
	switch provider {
	case "ollama":
		return "nomic-embed-text"
	case "gemini":
		return "text-embedding-004"
	default:
		return "text-embedding-3-small" // 1536 dimensions
	}
}

func apiKeyFor(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %v", key, v, def)
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %v", key, v, def)
		return def
	}
	return d
}
