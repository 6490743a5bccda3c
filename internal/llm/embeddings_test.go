package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbedOpenAIPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"a", "b", "c"}, body.Input)

		// out of order on purpose
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 2, "embedding": []float32{3}},
				{"index": 0, "embedding": []float32{1}},
				{"index": 1, "embedding": []float32{2}},
			},
		})
	}))
	defer srv.Close()

	svc, err := NewEmbeddingService(EmbeddingConfig{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL, Retry: fastRetry}, zap.NewNop())
	require.NoError(t, err)

	vecs, err := svc.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vecs)
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1}}})
	}))
	defer srv.Close()

	svc, err := NewEmbeddingService(EmbeddingConfig{Provider: ProviderOllama, BaseURL: srv.URL, Retry: fastRetry}, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), []string{"a", "b"})
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Contains(t, ue.Message, "expected 2 embeddings, got 1")
}

func TestEmbedEmptyInput(t *testing.T) {
	svc, err := NewEmbeddingService(EmbeddingConfig{Provider: ProviderOllama}, zap.NewNop())
	require.NoError(t, err)

	vecs, err := svc.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

type countingEmbedder struct {
	calls  atomic.Int32
	inputs [][]string
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.inputs = append(c.inputs, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCachedEmbedderOnlyEmbedsMisses(t *testing.T) {
	next := &countingEmbedder{}
	e := NewCachedEmbedder(next, NewEmbeddingCache(time.Minute))

	first, err := e.Embed(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, first)

	second, err := e.Embed(context.Background(), []string{"bb", "ccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2}, {3}, {1}}, second)

	require.Len(t, next.inputs, 2)
	assert.Equal(t, []string{"ccc"}, next.inputs[1])

	_, err = e.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.calls.Load())
}

func TestEmbeddingCacheExpiry(t *testing.T) {
	c := NewEmbeddingCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("x", []float32{1})
	v, ok := c.Get("x")
	require.True(t, ok)
	assert.Equal(t, []float32{1}, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("x")
	assert.False(t, ok)

	c.CleanExpired()
	assert.Equal(t, 0, c.Len())

	c.Set("y", []float32{2})
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestRateLimitedEmbedder(t *testing.T) {
	next := &countingEmbedder{}
	e := NewRateLimitedEmbedder(next, 1000)

	for i := 0; i < 3; i++ {
		_, err := e.Embed(context.Background(), []string{"a"})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, next.calls.Load())

	slow := NewRateLimitedEmbedder(next, 0.001)
	_, err := slow.Embed(context.Background(), []string{"a"}) // burst token
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Embed(ctx, []string{"a"})
	assert.Error(t, err)
}
