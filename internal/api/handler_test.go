package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cv-match/internal/cv"
	"cv-match/internal/ingest"
	"cv-match/internal/llm"
	"cv-match/internal/matching"
	"cv-match/internal/profile"
	"cv-match/internal/storage"
	"cv-match/internal/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// topicEmbedder maps any text mentioning Go to one direction and
// everything else to an orthogonal one.
type topicEmbedder struct{}

func (topicEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(t, "Go") {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

type testEnv struct {
	api    *API
	server *httptest.Server
	repo   *storage.MemoryRepository
}

func newTestEnv(t *testing.T, queueSize int, startWorkers bool) *testEnv {
	t.Helper()
	log := zap.NewNop()
	repo := storage.NewMemoryRepository()
	vectors := vectorstore.NewMemoryStore()
	chunker, err := cv.NewChunker(cv.DefaultChunkSize, cv.DefaultChunkOverlap)
	require.NoError(t, err)

	orch := ingest.New(ingest.Deps{
		Repo:         repo,
		Vectors:      vectors,
		Embedder:     topicEmbedder{},
		Standardizer: cv.NewKeywordExtractor(log),
		Extractor:    cv.NewCVParser(""),
		Chunker:      chunker,
		Log:          log,
	})

	a := NewAPI(Options{
		Repo:      repo,
		Ingestor:  orch,
		Matcher:   matching.NewEngine(vectors, repo, log),
		Log:       log,
		QueueSize: queueSize,
		Workers:   2,
	})
	if startWorkers {
		a.StartBackgroundWorkers(context.Background())
		t.Cleanup(a.StopBackgroundWorkers)
	}

	srv := httptest.NewServer(NewRouter(a))
	t.Cleanup(srv.Close)
	return &testEnv{api: a, server: srv, repo: repo}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) upload(t *testing.T, path string, files map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.server.URL+path, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) waitJob(t *testing.T, id string, want storage.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		j, err := e.repo.GetJob(context.Background(), id)
		return err == nil && j.Status == want
	}, 2*time.Second, 10*time.Millisecond)
}

func (e *testEnv) waitCandidate(t *testing.T, id string, want storage.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		c, err := e.repo.GetCandidate(context.Background(), id)
		return err == nil && c.Status == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 10, false)
	resp := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "healthy"}, decode[map[string]string](t, resp))
}

func TestCreateJobValidation(t *testing.T) {
	env := newTestEnv(t, 10, false)

	resp := env.postJSON(t, "/api/jobs", map[string]string{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Contains(t, body.Error, "Title")

	resp = env.postJSON(t, "/api/jobs", map[string]string{"title": "Go dev"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Post(env.server.URL+"/api/jobs", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestJobLifecycleAndMatches(t *testing.T) {
	env := newTestEnv(t, 10, true)

	resp := env.postJSON(t, "/api/jobs", map[string]string{"title": "Backend", "content": "Senior Go developer"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	job := decode[storage.Job](t, resp)
	assert.Equal(t, "Senior Go developer", job.Description)
	env.waitJob(t, job.ID, storage.StatusCompleted)

	resp = env.upload(t, "/api/jobs/"+job.ID+"/resumes", map[string]string{
		"alice.txt": "Go engineer building APIs with Docker.",
		"bob.txt":   "Pastry chef with ten years of experience.",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[[]storage.Candidate](t, resp)
	require.Len(t, created, 2)

	var alice string
	for _, c := range created {
		assert.Equal(t, storage.StatusPending, c.Status)
		env.waitCandidate(t, c.ID, storage.StatusCompleted)
		if c.Filename == "alice.txt" {
			alice = c.ID
		}
	}

	resp = env.get(t, "/api/jobs/"+job.ID+"/candidates")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]storage.Candidate](t, resp), 2)

	resp = env.get(t, "/api/jobs/"+job.ID+"/matches?top_n=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	matches := decode[[]matching.Match](t, resp)
	require.Len(t, matches, 1)
	assert.Equal(t, alice, matches[0].CandidateID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, matching.Justification, matches[0].Justification)
	assert.Equal(t, profile.UnknownName, matches[0].Name)

	resp = env.get(t, "/api/candidates/"+alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := decode[storage.Candidate](t, resp)
	require.NotNil(t, c.Profile)
	assert.Contains(t, c.Profile.Skills, "Go")

	resp = env.get(t, "/api/jobs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]storage.Job](t, resp), 1)
}

func TestMatchesErrors(t *testing.T) {
	env := newTestEnv(t, 10, false)
	ctx := context.Background()

	resp := env.get(t, "/api/jobs/unknown/matches")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// never processed: workers are not running
	require.NoError(t, env.repo.CreateJob(ctx, &storage.Job{ID: "pending", Title: "t", Description: "d", Status: storage.StatusPending}))
	resp = env.get(t, "/api/jobs/pending/matches")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// completed but without embeddings
	require.NoError(t, env.repo.CreateJob(ctx, &storage.Job{ID: "empty", Title: "t", Description: "d", Status: storage.StatusCompleted}))
	resp = env.get(t, "/api/jobs/empty/matches")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Error, "no embeddings")

	for _, q := range []string{"abc", "0", "101"} {
		resp = env.get(t, "/api/jobs/empty/matches?top_n="+q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		resp.Body.Close()
	}
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t, 10, false)

	resp := env.upload(t, "/api/candidates/upload", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.upload(t, "/api/candidates/upload", map[string]string{"photo.png": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.upload(t, "/api/candidates/upload", map[string]string{"empty.txt": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.upload(t, "/api/jobs/nope/resumes", map[string]string{"a.txt": "Go"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/candidates/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestQueueFullMarksCandidateError(t *testing.T) {
	env := newTestEnv(t, 1, false)
	env.api.queueOpen = true // accept tasks without running workers

	files := map[string]string{}
	for i := 0; i < 3; i++ {
		files[fmt.Sprintf("cv%d.txt", i)] = "Go engineer"
	}
	resp := env.upload(t, "/api/candidates/upload", files)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[[]storage.Candidate](t, resp)
	require.Len(t, created, 3)

	dropped := 0
	for _, c := range created {
		got, err := env.repo.GetCandidate(context.Background(), c.ID)
		require.NoError(t, err)
		if got.Status == storage.StatusError {
			require.NotNil(t, got.ErrorMessage)
			assert.Equal(t, queueFullMessage, *got.ErrorMessage)
			dropped++
		}
	}
	assert.Equal(t, 2, dropped)
}

// flakyIngestor stores candidates in repo but fails the second create.
type flakyIngestor struct {
	Ingestor
	repo    *storage.MemoryRepository
	calls   int
	created []string
}

func (f *flakyIngestor) CreateCandidate(ctx context.Context, jobID *string, filename string, data []byte) (*storage.Candidate, error) {
	f.calls++
	if f.calls == 2 {
		return nil, errors.New("database unavailable")
	}
	c := &storage.Candidate{ID: fmt.Sprintf("cand-%d", f.calls), Filename: filename, Name: filename, Status: storage.StatusPending}
	if err := f.repo.CreateCandidate(ctx, c); err != nil {
		return nil, err
	}
	f.created = append(f.created, c.ID)
	return c, nil
}

func TestUploadCreateFailureMarksEarlierCandidatesError(t *testing.T) {
	repo := storage.NewMemoryRepository()
	ing := &flakyIngestor{repo: repo}
	a := NewAPI(Options{Repo: repo, Ingestor: ing, Log: zap.NewNop(), QueueSize: 10})
	a.queueOpen = true // would accept tasks if any were queued

	srv := httptest.NewServer(NewRouter(a))
	defer srv.Close()
	env := &testEnv{api: a, server: srv, repo: repo}

	resp := env.upload(t, "/api/candidates/upload", map[string]string{
		"a.txt": "Go engineer",
		"b.txt": "Rust engineer",
		"c.txt": "Java engineer",
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, 2, ing.calls, "creation stops at the failing file")
	require.Len(t, ing.created, 1)
	assert.Empty(t, a.queue, "nothing is queued for an aborted upload")

	c, err := repo.GetCandidate(context.Background(), ing.created[0])
	require.NoError(t, err)
	assert.Equal(t, storage.StatusError, c.Status)
	require.NotNil(t, c.ErrorMessage)
	assert.Contains(t, *c.ErrorMessage, "upload aborted")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ValidationError{Field: "x"}, http.StatusBadRequest},
		{&ingest.InvalidInputError{Field: "title"}, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", &storage.NotFoundError{Kind: "job", ID: "1"}), http.StatusNotFound},
		{&matching.NoEmbeddingsError{JobID: "1"}, http.StatusNotFound},
		{&StateConflictError{Resource: "job"}, http.StatusConflict},
		{ingest.ErrAlreadyProcessed, http.StatusConflict},
		{&llm.UpstreamError{Provider: llm.ProviderOpenAI}, http.StatusBadGateway},
		{&llm.TimeoutError{Provider: llm.ProviderOpenAI}, http.StatusGatewayTimeout},
		{&profile.ParseError{Reason: "x"}, http.StatusUnprocessableEntity},
		{&cv.ExtractionError{Filename: "a"}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%T", tt.err)
	}
}
