package api

import (
	"context"
	"time"

	"cv-match/internal/storage"

	"go.uber.org/zap"
)

const queueFullMessage = "Queue full, processing dropped"

type taskKind int

const (
	taskJob taskKind = iota
	taskResume
)

// processingTask is one document waiting for the workers.
type processingTask struct {
	Kind      taskKind
	ID        string
	Data      []byte // resume file contents
	Timestamp time.Time
}

// StartBackgroundWorkers starts the processing workers. They stop when ctx
// is cancelled or StopBackgroundWorkers drains the queue.
func (a *API) StartBackgroundWorkers(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.queueMu.Lock()
	a.queueOpen = true
	a.stopWorker = cancel
	a.queueMu.Unlock()

	for i := 0; i < a.workers; i++ {
		a.workerWG.Add(1)
		go a.processingWorker(ctx, i)
	}
	a.log.Info("[BackgroundJobs] Workers started", zap.Int("workers", a.workers), zap.Int("queue_size", cap(a.queue)))
}

// StopBackgroundWorkers closes the queue, lets the workers finish what is
// already queued and waits for them.
func (a *API) StopBackgroundWorkers() {
	a.queueMu.Lock()
	if !a.queueOpen {
		a.queueMu.Unlock()
		return
	}
	a.queueOpen = false
	close(a.queue)
	a.queueMu.Unlock()

	a.workerWG.Wait()
	if a.stopWorker != nil {
		a.stopWorker()
	}
	a.log.Info("[BackgroundJobs] Workers stopped")
}

func (a *API) processingWorker(ctx context.Context, n int) {
	defer a.workerWG.Done()
	log := a.log.With(zap.Int("worker", n))
	log.Debug("[ProcessingWorker] Started")

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-a.queue:
			if !ok {
				return
			}
			a.runTask(ctx, log, task)
		}
	}
}

func (a *API) runTask(ctx context.Context, log *zap.Logger, task processingTask) {
	var err error
	switch task.Kind {
	case taskJob:
		err = a.ingestor.ProcessJob(ctx, task.ID)
	case taskResume:
		err = a.ingestor.ProcessResume(ctx, task.ID, task.Data)
	}

	fields := []zap.Field{
		zap.String("id", task.ID),
		zap.Bool("resume", task.Kind == taskResume),
		zap.Duration("took", time.Since(task.Timestamp)),
	}
	if err != nil {
		// the orchestrator has already recorded the failure on the document
		log.Warn("[ProcessingWorker] Task failed", append(fields, zap.Error(err))...)
		return
	}
	log.Info("[ProcessingWorker] Task completed", fields...)
}

// enqueue adds a task without blocking. A full or stopped queue marks the
// document ERROR instead.
func (a *API) enqueue(ctx context.Context, task processingTask) {
	task.Timestamp = time.Now()

	a.queueMu.RLock()
	queued := false
	if a.queueOpen {
		select {
		case a.queue <- task:
			queued = true
		default:
		}
	}
	a.queueMu.RUnlock()

	if queued {
		a.log.Debug("[BackgroundJobs] Queued task", zap.String("id", task.ID))
		return
	}

	a.log.Warn("[BackgroundJobs] Queue full! Dropping task", zap.String("id", task.ID))
	if err := a.markDropped(context.WithoutCancel(ctx), task); err != nil {
		a.log.Error("[BackgroundJobs] Failed to mark dropped task", zap.String("id", task.ID), zap.Error(err))
	}
}

func (a *API) markDropped(ctx context.Context, task processingTask) error {
	msg := queueFullMessage
	if task.Kind == taskJob {
		return a.repo.UpdateJobStatus(ctx, task.ID, storage.StatusError, &msg)
	}
	c, err := a.repo.GetCandidate(ctx, task.ID)
	if err != nil {
		return err
	}
	c.Status = storage.StatusError
	c.ErrorMessage = &msg
	return a.repo.UpdateCandidate(ctx, c)
}

func (a *API) queueJob(ctx context.Context, jobID string) {
	a.enqueue(ctx, processingTask{Kind: taskJob, ID: jobID})
}

func (a *API) queueResume(ctx context.Context, candidateID string, data []byte) {
	a.enqueue(ctx, processingTask{Kind: taskResume, ID: candidateID, Data: data})
}
