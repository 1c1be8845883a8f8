// Package jobs runs background work claimed from the persistent job
// queue. A single worker polls for pending jobs and dispatches them to
// registered handlers by job type.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aaron777collins/smartbudget-sub003/internal/database"
	"github.com/aaron777collins/smartbudget-sub003/internal/models"
)

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job *models.Job, db *database.DB) error

// Worker processes background jobs from the queue
type Worker struct {
	db           *database.DB
	handlers     map[models.JobType]JobHandler
	stop         chan struct{}
	done         chan struct{}
	logger       *slog.Logger
	pollInterval time.Duration
	jobTimeout   time.Duration
}

// NewWorker creates a new job worker
func NewWorker(db *database.DB, logger *slog.Logger, pollInterval, jobTimeout time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Minute
	}
	return &Worker{
		db:           db,
		handlers:     make(map[models.JobType]JobHandler),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger,
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
	}
}

// Register adds a handler for a job type
func (w *Worker) Register(jobType models.JobType, handler JobHandler) {
	w.handlers[jobType] = handler
}

// Start begins processing jobs in a background goroutine
func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		w.logger.Info("job_worker_started", "poll_interval", w.pollInterval.String())

		for {
			select {
			case <-w.stop:
				w.logger.Info("job_worker_stopping")
				return
			default:
				job, err := w.db.ClaimNextJob()
				if err != nil {
					w.logger.Error("job_claim_error", "error", err.Error())
					time.Sleep(w.pollInterval)
					continue
				}

				if job == nil {
					// No pending jobs, wait before polling again
					time.Sleep(w.pollInterval)
					continue
				}

				w.processJob(job)
			}
		}
	}()
}

// Stop signals the worker to stop and waits for it to finish
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
	w.logger.Info("job_worker_stopped")
}

func (w *Worker) processJob(job *models.Job) {
	l := w.logger.With("job_id", job.ID, "job_type", job.Type)
	l.Info("job_processing_started")

	handler, ok := w.handlers[job.Type]
	if !ok {
		l.Error("job_unknown_type")
		w.db.FailJob(job.ID, "no handler registered for type: "+string(job.Type))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	err := handler(ctx, job, w.db)
	if err != nil {
		if errors.Is(err, ErrJobCancelled) {
			// The cancel transition already happened in the database.
			l.Info("job_processing_cancelled")
			return
		}
		l.Error("job_processing_failed", "error", err.Error())
		if ferr := w.db.FailJob(job.ID, err.Error()); ferr != nil {
			// Lost a race with a user cancel; the cancelled status stands.
			l.Warn("job_fail_transition_rejected", "error", ferr.Error())
		}
		return
	}

	l.Info("job_processing_completed")
}

// ErrJobCancelled is returned by handlers when they observe a
// user-initiated cancellation mid-run. The worker records no further
// transition for it.
var ErrJobCancelled = errors.New("job cancelled")

// checkCancelled polls the job's status so long-running handlers can
// stop promptly after a user cancel.
func checkCancelled(ctx context.Context, db *database.DB, jobID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	status, err := db.JobStatus(jobID)
	if err != nil {
		return err
	}
	if status == models.JobCancelled {
		return ErrJobCancelled
	}
	return nil
}
