package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"LLM_PROVIDER", "LLM_MODEL", "EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "PORT", "DATABASE_URL", "EMBED_TIMEOUT"} {
		t.Setenv(k, "")
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := FromEnv()
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, "sk-test", cfg.LLMAPIKey)
	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.EmbedTimeout)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvGroqFallsBackToOpenAIEmbeddings(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "groq")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("GROQ_API_KEY", "gsk")
	t.Setenv("OPENAI_API_KEY", "sk")

	cfg := FromEnv()
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLMModel)
	assert.Equal(t, "gsk", cfg.LLMAPIKey)
	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.Equal(t, "sk", cfg.EmbeddingAPIKey)
}

func TestFromEnvInvalidNumbersUseDefaults(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "lots")
	t.Setenv("EMBED_TIMEOUT", "soon")

	cfg := FromEnv()
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 30*time.Second, cfg.EmbedTimeout)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			LLMProvider:       "openai",
			EmbeddingProvider: "openai",
			ChunkSize:         1000,
			ChunkOverlap:      100,
			MatchTopN:         10,
			QueueSize:         5,
			Workers:           1,
			EmbedRatePerSec:   5,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, "CHUNK_SIZE"},
		{"overlap too large", func(c *Config) { c.ChunkOverlap = 1000 }, "CHUNK_OVERLAP"},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, "CHUNK_OVERLAP"},
		{"bad provider", func(c *Config) { c.LLMProvider = "azure" }, "LLM_PROVIDER"},
		{"bad embedding provider", func(c *Config) { c.EmbeddingProvider = "groq" }, "EMBEDDING_PROVIDER"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "WORKERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
