package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

func NewRouter(a *API) http.Handler {
	mux := http.NewServeMux()

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL(a.swaggerURL),
	))

	// Health check (for Railway, k8s, etc.)
	mux.HandleFunc("GET /health", a.HealthHandler)

	// Jobs
	mux.HandleFunc("POST /api/jobs", a.CreateJobHandler)
	mux.HandleFunc("GET /api/jobs", a.ListJobsHandler)
	mux.HandleFunc("GET /api/jobs/{id}", a.GetJobHandler)
	mux.HandleFunc("GET /api/jobs/{id}/matches", a.GetMatchesHandler)
	mux.HandleFunc("POST /api/jobs/{id}/resumes", a.UploadJobResumesHandler)
	mux.HandleFunc("GET /api/jobs/{id}/candidates", a.ListJobCandidatesHandler)

	// Candidates
	mux.HandleFunc("POST /api/candidates/upload", a.UploadCandidatesHandler)
	mux.HandleFunc("GET /api/candidates/{id}", a.GetCandidateHandler)

	return mux
}
