package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is a Repository kept in process memory. Values are
// copied on the way in and out so callers never share state with it.
type MemoryRepository struct {
	mu         sync.RWMutex
	jobs       map[string]*Job
	candidates map[string]*Candidate
	now        func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs:       make(map[string]*Job),
		candidates: make(map[string]*Candidate),
		now:        time.Now,
	}
}

func (m *MemoryRepository) CreateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, &NotFoundError{Kind: "job", ID: id}
	}
	cp := *j
	return &cp, nil
}

func (m *MemoryRepository) ListJobs(ctx context.Context) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		cp := *j
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, k int) bool {
		if res[i].CreatedAt.Equal(res[k].CreatedAt) {
			return res[i].ID < res[k].ID
		}
		return res[i].CreatedAt.After(res[k].CreatedAt)
	})
	return res, nil
}

func (m *MemoryRepository) UpdateJobStatus(ctx context.Context, id string, status Status, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return &NotFoundError{Kind: "job", ID: id}
	}
	j.Status = status
	j.ErrorMessage = errMsg
	j.UpdatedAt = m.now()
	return nil
}

func (m *MemoryRepository) CreateCandidate(ctx context.Context, c *Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.candidates[c.ID]; ok {
		return fmt.Errorf("candidate %s already exists", c.ID)
	}
	cp := *c
	m.candidates[c.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, &NotFoundError{Kind: "candidate", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryRepository) ListCandidatesByJob(ctx context.Context, jobID string) ([]*Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []*Candidate
	for _, c := range m.candidates {
		if c.JobID != nil && *c.JobID == jobID {
			cp := *c
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, k int) bool {
		if res[i].CreatedAt.Equal(res[k].CreatedAt) {
			return res[i].ID < res[k].ID
		}
		return res[i].CreatedAt.Before(res[k].CreatedAt)
	})
	return res, nil
}

func (m *MemoryRepository) UpdateCandidate(ctx context.Context, c *Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.candidates[c.ID]
	if !ok {
		return &NotFoundError{Kind: "candidate", ID: c.ID}
	}
	existing.Name = c.Name
	existing.Profile = c.Profile
	existing.FullText = c.FullText
	existing.Status = c.Status
	existing.ErrorMessage = c.ErrorMessage
	existing.UpdatedAt = m.now()
	return nil
}
