// Package executor is the scheduling engine: it runs a job descriptor through
// its registered handler under the per-type timeout, owns every descriptor
// status transition, and decides retry vs permanent failure from the typed
// error classification. Handlers never touch descriptor state.
package executor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/backoff"
	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/outcome"
)

// Handler is the business-logic function for one job type plus its
// permanent-failure hook. Handle reports failure by returning an error
// (wrapped with outcome.Fatal when retrying cannot help). OnPermanentFailure
// runs exactly once, only on the permanent path, for side effects that must
// happen regardless of retry count.
type Handler interface {
	Type() domain.JobType
	Handle(ctx context.Context, job *domain.JobDescriptor) error
	OnPermanentFailure(ctx context.Context, job *domain.JobDescriptor, lastErr error)
}

type Registry struct{ handlers map[domain.JobType]Handler }

func NewRegistry(hs ...Handler) *Registry {
	r := &Registry{handlers: make(map[domain.JobType]Handler)}
	for _, h := range hs {
		r.handlers[h.Type()] = h
	}
	return r
}

func (r *Registry) Get(t domain.JobType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// JobStore persists descriptor status. Implemented by storage.Store.
type JobStore interface {
	MarkRunning(ctx context.Context, id string, attempt int) error
	MarkSucceeded(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id string, attempt int, lastErr string) error
	MarkFailed(ctx context.Context, id string, lastErr string) error
}

// Requeuer puts a descriptor back on the queue for a later attempt.
type Requeuer interface {
	Enqueue(ctx context.Context, company int, jobID string, runAt time.Time) error
}

type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Retrying  Outcome = "retrying"
	Failed    Outcome = "failed"
)

type Executor struct {
	registry *Registry
	store    JobStore
	queue    Requeuer
	log      *zap.Logger
}

func New(registry *Registry, store JobStore, queue Requeuer, log *zap.Logger) *Executor {
	return &Executor{registry: registry, store: store, queue: queue, log: log}
}

// Execute runs one attempt of the descriptor.
//
// Timeout is cooperative: the attempt context is cancelled at the deadline
// and the executor stops tracking the attempt, but a handler blocked in I/O
// that ignores the context may run to completion anyway. Handlers are written
// so a stale completion is harmless (status writes are last-writer-wins).
func (e *Executor) Execute(ctx context.Context, job *domain.JobDescriptor) (Outcome, error) {
	log := e.log.With(
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
		zap.Int("company_id", job.CompanyID),
		zap.Int("attempt", job.Attempt),
	)

	// Retries exhausted before this attempt: skip execution, go permanent.
	if job.Attempt >= job.MaxAttempts {
		lastErr := errors.New("retries exhausted")
		if job.LastError != nil {
			lastErr = errors.New(*job.LastError)
		}
		return e.failPermanently(ctx, job, lastErr, log)
	}

	h, ok := e.registry.Get(job.Type)
	if !ok {
		return e.failPermanently(ctx, job, errors.Errorf("no handler for job type %q", job.Type), log)
	}

	if err := e.store.MarkRunning(ctx, job.ID, job.Attempt); err != nil {
		return Retrying, err
	}
	job.Status = domain.Running

	err := e.runWithDeadline(ctx, h, job)
	if err == nil {
		if err := e.store.MarkSucceeded(ctx, job.ID); err != nil {
			return Succeeded, err
		}
		job.Status = domain.Succeeded
		log.Info("job succeeded")
		return Succeeded, nil
	}

	log.Error("job attempt failed", zap.Error(err))

	if outcome.IsFatal(err) {
		return e.failPermanently(ctx, job, err, log)
	}

	// Transient: bump the attempt counter and re-enqueue with backoff. The
	// exhaustion check happens at the top of the next attempt.
	job.Attempt++
	msg := err.Error()
	job.LastError = &msg
	if serr := e.store.MarkRetry(ctx, job.ID, job.Attempt, msg); serr != nil {
		return Retrying, serr
	}
	job.Status = domain.FailedRetryable

	delay := backoff.ForPolicy(job.BackoffPolicy).Delay(job.Attempt)
	if qerr := e.queue.Enqueue(ctx, job.CompanyID, job.ID, time.Now().UTC().Add(delay)); qerr != nil {
		return Retrying, qerr
	}
	log.Info("job scheduled for retry",
		zap.Int("max_attempts", job.MaxAttempts),
		zap.Duration("delay", delay))
	return Retrying, err
}

// runWithDeadline runs the handler with the descriptor's wall-clock budget.
// Deadline expiry counts as a transient error; there is no abort signal
// beyond context cancellation, so the goroutine is abandoned, not killed.
func (e *Executor) runWithDeadline(ctx context.Context, h Handler, job *domain.JobDescriptor) error {
	hctx, cancel := context.WithTimeout(ctx, time.Duration(job.TimeoutSeconds)*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.Handle(hctx, job) }()

	select {
	case err := <-done:
		return err
	case <-hctx.Done():
		return errors.Wrap(hctx.Err(), "attempt deadline elapsed")
	}
}

func (e *Executor) failPermanently(ctx context.Context, job *domain.JobDescriptor, lastErr error, log *zap.Logger) (Outcome, error) {
	if serr := e.store.MarkFailed(ctx, job.ID, lastErr.Error()); serr != nil {
		return Failed, serr
	}
	job.Status = domain.FailedPermanent
	msg := lastErr.Error()
	job.LastError = &msg

	log.Error("job failed permanently", zap.Error(lastErr))
	if h, ok := e.registry.Get(job.Type); ok {
		h.OnPermanentFailure(ctx, job, lastErr)
	}
	return Failed, lastErr
}
