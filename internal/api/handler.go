package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"cv-match/internal/ingest"
	"cv-match/internal/matching"
	"cv-match/internal/storage"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Ingestor is the part of *ingest.Orchestrator the handlers and workers use.
type Ingestor interface {
	CreateJob(ctx context.Context, title, description string) (*storage.Job, error)
	ProcessJob(ctx context.Context, jobID string) error
	CreateCandidate(ctx context.Context, jobID *string, filename string, data []byte) (*storage.Candidate, error)
	ProcessResume(ctx context.Context, candidateID string, data []byte) error
}

type Matcher interface {
	FindMatches(ctx context.Context, jobID string, topN int) ([]matching.Match, error)
}

var _ Ingestor = (*ingest.Orchestrator)(nil)

type Options struct {
	Repo        storage.Repository
	Ingestor    Ingestor
	Matcher     Matcher
	Log         *zap.Logger
	DefaultTopN int
	QueueSize   int
	Workers     int
	SwaggerURL  string
}

type API struct {
	repo        storage.Repository
	ingestor    Ingestor
	matcher     Matcher
	validator   *validator.Validate
	log         *zap.Logger
	defaultTopN int
	swaggerURL  string

	workers    int
	queue      chan processingTask // background queue for async job/resume processing
	queueMu    sync.RWMutex
	queueOpen  bool
	workerWG   sync.WaitGroup
	stopWorker context.CancelFunc
}

func NewAPI(opts Options) *API {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 50
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.DefaultTopN <= 0 {
		opts.DefaultTopN = matching.DefaultTopN
	}
	if opts.SwaggerURL == "" {
		opts.SwaggerURL = "/swagger/doc.json"
	}
	return &API{
		repo:        opts.Repo,
		ingestor:    opts.Ingestor,
		matcher:     opts.Matcher,
		validator:   validator.New(),
		log:         opts.Log,
		defaultTopN: opts.DefaultTopN,
		swaggerURL:  opts.SwaggerURL,
		workers:     opts.Workers,
		queue:       make(chan processingTask, opts.QueueSize),
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are gone, nothing more to tell the client
		zap.L().Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes err as {"error": ...} with the status HTTPStatus picks.
// Server-side failures are logged; their message is not exposed.
func (a *API) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal server error"
	} else if status >= 500 {
		a.log.Warn("upstream failure", zap.String("path", r.URL.Path), zap.Error(err))
	}
	jsonResponse(w, status, errorBody{Error: msg})
}

// HealthHandler reports liveness.
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}
