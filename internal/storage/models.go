package storage

import (
	"time"

	"cv-match/internal/profile"
)

// Status is the processing state of a job or candidate document.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// Job is a position that candidates are matched against.
type Job struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Candidate is one uploaded resume and what was extracted from it.
// RelevanceScore is only populated on match responses.
type Candidate struct {
	ID             string           `json:"id"`
	JobID          *string          `json:"job_id,omitempty"`
	Filename       string           `json:"filename"`
	Name           string           `json:"name"`
	Profile        *profile.Profile `json:"profile,omitempty"`
	RelevanceScore *float64         `json:"relevance_score,omitempty"`
	FullText       string           `json:"-"`
	Status         Status           `json:"status"`
	ErrorMessage   *string          `json:"error_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
