// Package ingest turns uploaded jobs and resumes into stored records and
// embedding chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cv-match/internal/cv"
	"cv-match/internal/llm"
	"cv-match/internal/storage"
	"cv-match/internal/vectorstore"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyProcessed is returned when a COMPLETED document is processed
// again.
var ErrAlreadyProcessed = errors.New("document already processed")

// InvalidInputError is a rejected create request.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TextExtractor is satisfied by *cv.CVParser.
type TextExtractor interface {
	Parse(filename string, data []byte) (*cv.ParsedCV, error)
}

type Deps struct {
	Repo         storage.Repository
	Vectors      vectorstore.Store
	Embedder     llm.Embedder
	Standardizer llm.Standardizer
	Extractor    TextExtractor
	Chunker      *cv.Chunker
	Log          *zap.Logger
	// Concurrency bounds ProcessResumes. Zero means 4.
	Concurrency int
}

type Orchestrator struct {
	repo         storage.Repository
	vectors      vectorstore.Store
	embedder     llm.Embedder
	standardizer llm.Standardizer
	extractor    TextExtractor
	chunker      *cv.Chunker
	log          *zap.Logger
	concurrency  int

	now   func() time.Time
	newID func() string
}

func New(d Deps) *Orchestrator {
	if d.Concurrency <= 0 {
		d.Concurrency = 4
	}
	return &Orchestrator{
		repo:         d.Repo,
		vectors:      d.Vectors,
		embedder:     d.Embedder,
		standardizer: d.Standardizer,
		extractor:    d.Extractor,
		chunker:      d.Chunker,
		log:          d.Log,
		concurrency:  d.Concurrency,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// EnsureCollections creates both vector collections.
func (o *Orchestrator) EnsureCollections(ctx context.Context) error {
	for _, name := range []string{vectorstore.JobsCollection, vectorstore.CandidatesCollection} {
		if err := o.vectors.EnsureCollection(ctx, name); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	return nil
}

// CreateJob stores a PENDING job. Embedding happens in ProcessJob.
func (o *Orchestrator) CreateJob(ctx context.Context, title, description string) (*storage.Job, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &InvalidInputError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(description) == "" {
		return nil, &InvalidInputError{Field: "description", Reason: "must not be empty"}
	}

	now := o.now()
	job := &storage.Job{
		ID:          o.newID(),
		Title:       title,
		Description: description,
		Status:      storage.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	o.log.Info("[Ingest] job created", zap.String("job_id", job.ID), zap.String("title", job.Title))
	return job, nil
}

// ProcessJob chunks and embeds the job description. Any failure leaves the
// job in ERROR with the failure message; chunks already written stay.
func (o *Orchestrator) ProcessJob(ctx context.Context, jobID string) error {
	job, err := o.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == storage.StatusCompleted {
		return ErrAlreadyProcessed
	}

	start := o.now()
	if err := o.repo.UpdateJobStatus(ctx, jobID, storage.StatusProcessing, nil); err != nil {
		return err
	}

	count, err := o.embedDocument(ctx, vectorstore.JobsCollection, vectorstore.DocTypeJob, jobID, job.Description)
	if err != nil {
		o.failJob(ctx, jobID, err)
		return err
	}

	if err := o.repo.UpdateJobStatus(ctx, jobID, storage.StatusCompleted, nil); err != nil {
		err = fmt.Errorf("save processed job: %w", err)
		o.failJob(ctx, jobID, err)
		return err
	}
	o.log.Info("[Ingest] job processed",
		zap.String("job_id", jobID),
		zap.Int("chunks", count),
		zap.Duration("took", o.now().Sub(start)))
	return nil
}

// CreateCandidate stores a PENDING candidate named after its file. When
// jobID is set the job must exist.
func (o *Orchestrator) CreateCandidate(ctx context.Context, jobID *string, filename string, data []byte) (*storage.Candidate, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, &InvalidInputError{Field: "filename", Reason: "must not be empty"}
	}
	if len(data) == 0 {
		return nil, &InvalidInputError{Field: "file", Reason: fmt.Sprintf("%s is empty", filename)}
	}
	if jobID != nil {
		if _, err := o.repo.GetJob(ctx, *jobID); err != nil {
			return nil, err
		}
	}

	now := o.now()
	c := &storage.Candidate{
		ID:        o.newID(),
		JobID:     jobID,
		Filename:  filename,
		Name:      filename,
		Status:    storage.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.repo.CreateCandidate(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ProcessResume extracts, standardizes and embeds one resume. Extraction
// and standardization failures are terminal for this candidate only: it is
// marked ERROR and no vectors are written.
func (o *Orchestrator) ProcessResume(ctx context.Context, candidateID string, data []byte) error {
	c, err := o.repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return err
	}
	if c.Status == storage.StatusCompleted {
		return ErrAlreadyProcessed
	}

	start := o.now()
	c.Status = storage.StatusProcessing
	c.ErrorMessage = nil
	if err := o.repo.UpdateCandidate(ctx, c); err != nil {
		return err
	}

	if err := o.processResume(ctx, c, data); err != nil {
		o.failCandidate(ctx, c, err)
		return err
	}

	c.Status = storage.StatusCompleted
	if err := o.repo.UpdateCandidate(ctx, c); err != nil {
		err = fmt.Errorf("save processed resume: %w", err)
		o.failCandidate(ctx, c, err)
		return err
	}
	o.log.Info("[Ingest] resume processed",
		zap.String("candidate_id", c.ID),
		zap.String("name", c.Name),
		zap.Duration("took", o.now().Sub(start)))
	return nil
}

func (o *Orchestrator) processResume(ctx context.Context, c *storage.Candidate, data []byte) error {
	parsed, err := o.extractor.Parse(c.Filename, data)
	if err != nil {
		return err
	}
	if strings.TrimSpace(parsed.FullText) == "" {
		return &cv.ExtractionError{Filename: c.Filename, Reason: "no text could be extracted"}
	}
	c.FullText = parsed.FullText

	p, err := o.standardizer.Standardize(ctx, parsed.FullText)
	if err != nil {
		return err
	}

	if _, err := o.embedDocument(ctx, vectorstore.CandidatesCollection, vectorstore.DocTypeResume, c.ID, p.EmbeddingSummary()); err != nil {
		return err
	}

	c.Profile = p
	c.Name = p.DisplayName()
	return nil
}

// embedDocument chunks text, embeds every chunk in one call and writes the
// records. It returns the number of chunks written.
func (o *Orchestrator) embedDocument(ctx context.Context, collection, docType, docID, text string) (int, error) {
	chunks := o.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, errors.New("nothing to embed")
	}

	vectors, err := o.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %s %s: %w", docType, docID, err)
	}

	records, err := vectorstore.BuildRecords(docID, docType, chunks, vectors)
	if err != nil {
		return 0, err
	}
	if err := o.vectors.Add(ctx, collection, records); err != nil {
		return 0, fmt.Errorf("store %s chunks: %w", docType, err)
	}
	return len(records), nil
}

// Upload is one resume queued for ProcessResumes.
type Upload struct {
	CandidateID string
	Data        []byte
}

// Outcome is the result of processing one Upload. Err is nil on success.
type Outcome struct {
	CandidateID string
	Err         error
}

// ProcessResumes processes uploads concurrently. A failing resume never
// stops the others; every upload gets an Outcome in input order.
func (o *Orchestrator) ProcessResumes(ctx context.Context, uploads []Upload) []Outcome {
	outcomes := make([]Outcome, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, u := range uploads {
		g.Go(func() error {
			outcomes[i] = Outcome{CandidateID: u.CandidateID, Err: o.ProcessResume(gctx, u.CandidateID, u.Data)}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, oc := range outcomes {
		if oc.Err != nil {
			failed++
		}
	}
	o.log.Info("[Ingest] resume batch finished", zap.Int("total", len(uploads)), zap.Int("failed", failed))
	return outcomes
}

// failJob records cause on the job. The status write ignores cancellation
// of ctx.
func (o *Orchestrator) failJob(ctx context.Context, jobID string, cause error) {
	msg := cause.Error()
	o.log.Error("[Ingest] job failed", zap.String("job_id", jobID), zap.Error(cause))
	if err := o.repo.UpdateJobStatus(context.WithoutCancel(ctx), jobID, storage.StatusError, &msg); err != nil {
		o.log.Error("[Ingest] failed to mark job as ERROR", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (o *Orchestrator) failCandidate(ctx context.Context, c *storage.Candidate, cause error) {
	msg := cause.Error()
	o.log.Error("[Ingest] resume failed",
		zap.String("candidate_id", c.ID),
		zap.String("filename", c.Filename),
		zap.Error(cause))
	c.Status = storage.StatusError
	c.ErrorMessage = &msg
	if err := o.repo.UpdateCandidate(context.WithoutCancel(ctx), c); err != nil {
		o.log.Error("[Ingest] failed to mark candidate as ERROR", zap.String("candidate_id", c.ID), zap.Error(err))
	}
}
