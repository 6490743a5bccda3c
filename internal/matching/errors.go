package matching

import "fmt"

// NoEmbeddingsError means the job has no stored chunk vectors, usually
// because it has not finished processing.
type NoEmbeddingsError struct {
	JobID string
}

func (e *NoEmbeddingsError) Error() string {
	return fmt.Sprintf("no embeddings found for job %s", e.JobID)
}

// CandidateNotFoundError is a ranked candidate id with no record behind it.
// It is logged and the candidate is left out of the results.
type CandidateNotFoundError struct {
	CandidateID string
}

func (e *CandidateNotFoundError) Error() string {
	return fmt.Sprintf("candidate %s not found for match result", e.CandidateID)
}
