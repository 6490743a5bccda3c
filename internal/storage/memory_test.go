package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"cv-match/internal/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryJobs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateJob(ctx, &Job{ID: "j1", Title: "Go dev", Status: StatusPending, CreatedAt: base}))
	require.NoError(t, repo.CreateJob(ctx, &Job{ID: "j2", Title: "SRE", Status: StatusPending, CreatedAt: base.Add(time.Hour)}))
	assert.Error(t, repo.CreateJob(ctx, &Job{ID: "j1"}))

	msg := "boom"
	require.NoError(t, repo.UpdateJobStatus(ctx, "j1", StatusError, &msg))

	j, err := repo.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusError, j.Status)
	require.NotNil(t, j.ErrorMessage)
	assert.Equal(t, "boom", *j.ErrorMessage)

	// returned values are copies
	j.Title = "changed"
	again, _ := repo.GetJob(ctx, "j1")
	assert.Equal(t, "Go dev", again.Title)

	jobs, err := repo.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j2", jobs[0].ID, "newest first")

	_, err = repo.GetJob(ctx, "nope")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "job nope not found", nf.Error())

	assert.Error(t, repo.UpdateJobStatus(ctx, "nope", StatusCompleted, nil))
}

func TestMemoryRepositoryCandidates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	jobID := "j1"
	other := "j2"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateCandidate(ctx, &Candidate{ID: "c2", JobID: &jobID, Filename: "b.pdf", Status: StatusPending, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.CreateCandidate(ctx, &Candidate{ID: "c1", JobID: &jobID, Filename: "a.pdf", Status: StatusPending, CreatedAt: base}))
	require.NoError(t, repo.CreateCandidate(ctx, &Candidate{ID: "c3", JobID: &other, Filename: "c.pdf", Status: StatusPending, CreatedAt: base}))
	require.NoError(t, repo.CreateCandidate(ctx, &Candidate{ID: "c4", Filename: "d.pdf", Status: StatusPending, CreatedAt: base}))

	list, err := repo.ListCandidatesByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, "c2", list[1].ID)

	c, err := repo.GetCandidate(ctx, "c1")
	require.NoError(t, err)
	c.Name = "Ada"
	c.Status = StatusCompleted
	c.Profile = &profile.Profile{Summary: "x"}
	require.NoError(t, repo.UpdateCandidate(ctx, c))

	got, err := repo.GetCandidate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "x", got.Profile.Summary)
	assert.Equal(t, "a.pdf", got.Filename)

	var nf *NotFoundError
	assert.True(t, errors.As(repo.UpdateCandidate(ctx, &Candidate{ID: "zzz"}), &nf))
}
