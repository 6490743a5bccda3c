// Package matching ranks candidates against a job by embedding similarity.
package matching

import (
	"context"
	"errors"
	"fmt"

	"cv-match/internal/profile"
	"cv-match/internal/storage"
	"cv-match/internal/vectorstore"

	"go.uber.org/zap"
)

const (
	DefaultTopN = 10

	// candidatesPerTarget widens each per-chunk query so deduplication
	// still leaves topN distinct candidates.
	candidatesPerTarget = 5

	Justification = "Score is based on semantic similarity of resume chunks to the job description."
)

// Match is one ranked candidate for a job.
type Match struct {
	CandidateID   string           `json:"candidate_id"`
	Name          string           `json:"name"`
	Score         float64          `json:"score"`
	Justification string           `json:"justification"`
	Profile       *profile.Profile `json:"profile,omitempty"`
}

type candidateReader interface {
	GetCandidate(ctx context.Context, id string) (*storage.Candidate, error)
}

type Engine struct {
	vectors    vectorstore.Store
	candidates candidateReader
	log        *zap.Logger
}

func NewEngine(vectors vectorstore.Store, candidates candidateReader, log *zap.Logger) *Engine {
	return &Engine{vectors: vectors, candidates: candidates, log: log}
}

// FindMatches returns up to topN candidates ordered by their best resume
// chunk similarity to any chunk of the job. topN <= 0 uses DefaultTopN.
func (e *Engine) FindMatches(ctx context.Context, jobID string, topN int) ([]Match, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	jobChunks, err := e.vectors.Get(ctx, vectorstore.JobsCollection, vectorstore.Filter{DocumentID: jobID})
	if err != nil {
		return nil, fmt.Errorf("load job embeddings: %w", err)
	}
	if len(jobChunks) == 0 {
		return nil, &NoEmbeddingsError{JobID: jobID}
	}

	queries := make([][]float32, len(jobChunks))
	for i, c := range jobChunks {
		queries[i] = c.Vector
	}

	results, err := e.vectors.Query(ctx, vectorstore.CandidatesCollection, queries, topN*candidatesPerTarget,
		vectorstore.Filter{DocumentType: vectorstore.DocTypeResume})
	if err != nil {
		return nil, fmt.Errorf("query candidate embeddings: %w", err)
	}

	ranked := Rank(BestScores(results))
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	matches := make([]Match, 0, len(ranked))
	for _, s := range ranked {
		c, err := e.candidates.GetCandidate(ctx, s.CandidateID)
		if err != nil {
			var nf *storage.NotFoundError
			if errors.As(err, &nf) {
				e.log.Warn("[Matching] skipping ranked candidate",
					zap.String("job_id", jobID),
					zap.Error(&CandidateNotFoundError{CandidateID: s.CandidateID}))
				continue
			}
			return nil, fmt.Errorf("load candidate %s: %w", s.CandidateID, err)
		}

		name := c.Name
		if c.Profile != nil {
			name = c.Profile.DisplayName()
		}
		matches = append(matches, Match{
			CandidateID:   c.ID,
			Name:          name,
			Score:         s.Score,
			Justification: Justification,
			Profile:       c.Profile,
		})
	}

	e.log.Info("[Matching] matches computed",
		zap.String("job_id", jobID),
		zap.Int("job_chunks", len(jobChunks)),
		zap.Int("returned", len(matches)))
	return matches, nil
}
