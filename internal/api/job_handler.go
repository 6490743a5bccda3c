package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cv-match/internal/storage"

	"go.uber.org/zap"
)

// CreateJobRequest is the body of POST /api/jobs. Content is accepted as an
// alias of Description.
type CreateJobRequest struct {
	Title       string `json:"title" validate:"required,max=300"`
	Description string `json:"description" validate:"required_without=Content"`
	Content     string `json:"content" validate:"required_without=Description"`
}

type matchesQuery struct {
	TopN int `validate:"gte=1,lte=100"`
}

// CreateJobHandler stores a job and queues it for embedding
// @Summary Create job
// @Description Create a job description; it is chunked and embedded in the background
// @Tags jobs
// @Accept json
// @Produce json
// @Param job body CreateJobRequest true "Job description"
// @Success 201 {object} storage.Job
// @Failure 400 {object} errorBody
// @Failure 500 {object} errorBody
// @Router /jobs [post]
func (a *API) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.errorResponse(w, r, &ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}
	if err := a.validator.Struct(req); err != nil {
		a.errorResponse(w, r, validationError(err))
		return
	}

	description := req.Description
	if description == "" {
		description = req.Content
	}

	job, err := a.ingestor.CreateJob(r.Context(), req.Title, description)
	if err != nil {
		a.errorResponse(w, r, err)
		return
	}

	a.queueJob(r.Context(), job.ID)
	jsonResponse(w, http.StatusCreated, job)
}

// ListJobsHandler returns all jobs
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} storage.Job
// @Router /jobs [get]
func (a *API) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.repo.ListJobs(r.Context())
	if err != nil {
		a.errorResponse(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*storage.Job{}
	}
	jsonResponse(w, http.StatusOK, jobs)
}

// GetJobHandler returns one job with its processing status
// @Summary Get job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} storage.Job
// @Failure 404 {object} errorBody
// @Router /jobs/{id} [get]
func (a *API) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := a.repo.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		a.errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, job)
}

// GetMatchesHandler ranks candidates for a job
// @Summary Match candidates to a job
// @Description Rank candidates by the best similarity of any resume chunk to any job chunk
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Param top_n query int false "Number of candidates (1-100)"
// @Success 200 {array} matching.Match
// @Failure 400 {object} errorBody
// @Failure 404 {object} errorBody
// @Failure 409 {object} errorBody
// @Router /jobs/{id}/matches [get]
func (a *API) GetMatchesHandler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	q := matchesQuery{TopN: a.defaultTopN}
	if raw := r.URL.Query().Get("top_n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			a.errorResponse(w, r, &ValidationError{Field: "top_n", Message: "must be an integer"})
			return
		}
		q.TopN = n
	}
	if err := a.validator.Struct(q); err != nil {
		a.errorResponse(w, r, validationError(err))
		return
	}

	job, err := a.repo.GetJob(r.Context(), jobID)
	if err != nil {
		a.errorResponse(w, r, err)
		return
	}
	if job.Status != storage.StatusCompleted {
		a.errorResponse(w, r, &StateConflictError{Resource: "job", ID: jobID, Status: job.Status, Want: storage.StatusCompleted})
		return
	}

	matches, err := a.matcher.FindMatches(r.Context(), jobID, q.TopN)
	if err != nil {
		a.errorResponse(w, r, err)
		return
	}

	a.log.Info("matches served", zap.String("job_id", jobID), zap.Int("top_n", q.TopN), zap.Int("count", len(matches)))
	jsonResponse(w, http.StatusOK, matches)
}

// ListJobCandidatesHandler lists the candidates uploaded for a job
// @Summary List job candidates
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {array} storage.Candidate
// @Failure 404 {object} errorBody
// @Router /jobs/{id}/candidates [get]
func (a *API) ListJobCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if _, err := a.repo.GetJob(r.Context(), jobID); err != nil {
		a.errorResponse(w, r, err)
		return
	}
	candidates, err := a.repo.ListCandidatesByJob(r.Context(), jobID)
	if err != nil {
		a.errorResponse(w, r, err)
		return
	}
	if candidates == nil {
		candidates = []*storage.Candidate{}
	}
	jsonResponse(w, http.StatusOK, candidates)
}
