package storage

import (
	"context"
	"fmt"
)

// Repository persists jobs and candidates. Implementations return
// *NotFoundError for unknown ids.
type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id string, status Status, errMsg *string) error

	CreateCandidate(ctx context.Context, c *Candidate) error
	GetCandidate(ctx context.Context, id string) (*Candidate, error)
	ListCandidatesByJob(ctx context.Context, jobID string) ([]*Candidate, error)
	// UpdateCandidate writes every mutable field of c.
	UpdateCandidate(ctx context.Context, c *Candidate) error
}

// NotFoundError reports a missing job or candidate.
type NotFoundError struct {
	Kind string // "job" or "candidate"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}
