package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cv-match/internal/config"
	"cv-match/internal/matching"
	"cv-match/internal/profile"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ollamaServer embeds any text mentioning Go as [1,0] and everything else
// as [0,1].
func ollamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var body struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		out := make([][]float32, len(body.Input))
		for i, text := range body.Input {
			if strings.Contains(text, "Go") {
				out[i] = []float32{1, 0}
			} else {
				out[i] = []float32{0, 1}
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func useConfig(t *testing.T, ollamaURL string) {
	t.Helper()
	prev := cliConfig
	cliConfig = &config.Config{
		Port:              "8080",
		LLMProvider:       "none",
		EmbeddingProvider: "ollama",
		EmbeddingModel:    "nomic-embed-text",
		OllamaURL:         ollamaURL,
		EmbedRatePerSec:   100,
		EmbedCacheTTL:     time.Minute,
		LLMTimeout:        time.Second,
		EmbedTimeout:      time.Second,
		ChunkSize:         1000,
		ChunkOverlap:      100,
		MatchTopN:         10,
		QueueSize:         5,
		Workers:           2,
	}
	t.Cleanup(func() { cliConfig = prev })
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, run func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())
	err := run(cmd, args)
	return out.String(), err
}

func TestRank(t *testing.T) {
	useConfig(t, ollamaServer(t).URL)
	dir := t.TempDir()
	jobFile := writeFile(t, dir, "backend.txt", "Senior Go developer building APIs.")
	alice := writeFile(t, dir, "alice.txt", "Go engineer building APIs with Docker.")
	bob := writeFile(t, dir, "bob.txt", "Pastry chef with ten years of experience.")

	rankJobFile, rankJobTitle, rankTopN = jobFile, "", 1
	t.Cleanup(func() { rankJobFile, rankJobTitle, rankTopN = "", "", 0 })

	out, err := execute(t, runRank, alice, bob)
	require.NoError(t, err)

	var matches []matching.Match
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, matching.Justification, matches[0].Justification)
	require.NotNil(t, matches[0].Profile)
	assert.Contains(t, matches[0].Profile.Summary, "Go engineer")
}

func TestRankMissingJobFile(t *testing.T) {
	useConfig(t, ollamaServer(t).URL)
	dir := t.TempDir()
	resume := writeFile(t, dir, "alice.txt", "Go engineer")

	rankJobFile = filepath.Join(dir, "missing.txt")
	t.Cleanup(func() { rankJobFile = "" })

	_, err := execute(t, runRank, resume)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read job file")
}

func TestParse(t *testing.T) {
	useConfig(t, ollamaServer(t).URL)
	resume := writeFile(t, t.TempDir(), "alice.txt", "Go engineer building APIs with Docker.\n\nContact: alice@example.com")

	out, err := execute(t, runParse, resume)
	require.NoError(t, err)

	var p profile.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "Go engineer building APIs with Docker.", p.Summary)
	assert.Equal(t, []string{"Go", "Docker"}, p.Skills)
}

func TestMatchNeedsDatabase(t *testing.T) {
	useConfig(t, ollamaServer(t).URL)
	matchJobID = "job-1"
	t.Cleanup(func() { matchJobID = "" })

	_, err := execute(t, runMatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
