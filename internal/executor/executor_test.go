package executor

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/outcome"
)

type storeCall struct {
	method  string
	attempt int
	lastErr string
}

type fakeStore struct{ calls []storeCall }

func (s *fakeStore) MarkRunning(_ context.Context, _ string, attempt int) error {
	s.calls = append(s.calls, storeCall{method: "running", attempt: attempt})
	return nil
}

func (s *fakeStore) MarkSucceeded(_ context.Context, _ string) error {
	s.calls = append(s.calls, storeCall{method: "succeeded"})
	return nil
}

func (s *fakeStore) MarkRetry(_ context.Context, _ string, attempt int, lastErr string) error {
	s.calls = append(s.calls, storeCall{method: "retry", attempt: attempt, lastErr: lastErr})
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, _ string, lastErr string) error {
	s.calls = append(s.calls, storeCall{method: "failed", lastErr: lastErr})
	return nil
}

func (s *fakeStore) last() storeCall { return s.calls[len(s.calls)-1] }

type requeue struct {
	jobID string
	runAt time.Time
}

type fakeQueue struct{ requeues []requeue }

func (q *fakeQueue) Enqueue(_ context.Context, _ int, jobID string, runAt time.Time) error {
	q.requeues = append(q.requeues, requeue{jobID: jobID, runAt: runAt})
	return nil
}

type stubHandler struct {
	typ       domain.JobType
	handle    func(ctx context.Context) error
	runs      int
	hookCalls int
	hookErr   error
}

func (h *stubHandler) Type() domain.JobType { return h.typ }

func (h *stubHandler) Handle(ctx context.Context, _ *domain.JobDescriptor) error {
	h.runs++
	if h.handle == nil {
		return nil
	}
	return h.handle(ctx)
}

func (h *stubHandler) OnPermanentFailure(_ context.Context, _ *domain.JobDescriptor, lastErr error) {
	h.hookCalls++
	h.hookErr = lastErr
}

func newJob(typ domain.JobType, maxAttempts, timeoutSec int) *domain.JobDescriptor {
	return &domain.JobDescriptor{
		ID:             "job-1",
		Type:           typ,
		Payload:        []byte(`{}`),
		CompanyID:      7,
		MaxAttempts:    maxAttempts,
		TimeoutSeconds: timeoutSec,
		BackoffPolicy:  domain.BackoffFixed,
		Status:         domain.Pending,
	}
}

func newExecutor(h *stubHandler) (*Executor, *fakeStore, *fakeQueue) {
	store := &fakeStore{}
	q := &fakeQueue{}
	return New(NewRegistry(h), store, q, zap.NewNop()), store, q
}

func TestExecuteSuccess(t *testing.T) {
	h := &stubHandler{typ: domain.EmployeeSync}
	exec, store, q := newExecutor(h)

	out, err := exec.Execute(context.Background(), newJob(domain.EmployeeSync, 2, 60))
	require.NoError(t, err)
	assert.Equal(t, Succeeded, out)
	assert.Equal(t, "succeeded", store.last().method)
	assert.Empty(t, q.requeues)
	assert.Zero(t, h.hookCalls)
}

func TestExecuteTransientFailureRequeuesWithDelay(t *testing.T) {
	h := &stubHandler{typ: domain.EmployeeSync, handle: func(context.Context) error {
		return errors.New("db gone")
	}}
	exec, store, q := newExecutor(h)
	job := newJob(domain.EmployeeSync, 2, 60)

	out, err := exec.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, Retrying, out)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, "retry", store.last().method)
	assert.Equal(t, "db gone", store.last().lastErr)
	require.Len(t, q.requeues, 1)
	assert.True(t, q.requeues[0].runAt.After(time.Now().UTC()))
	assert.Zero(t, h.hookCalls)
}

func TestExecuteRunsMaxAttemptsThenHookOnce(t *testing.T) {
	h := &stubHandler{typ: domain.EmployeeSync, handle: func(context.Context) error {
		return errors.New("still broken")
	}}
	exec, store, _ := newExecutor(h)
	job := newJob(domain.EmployeeSync, 3, 60)

	for i := 0; i < 3; i++ {
		out, _ := exec.Execute(context.Background(), job)
		assert.Equal(t, Retrying, out)
	}
	assert.Equal(t, 3, h.runs)
	assert.Equal(t, 3, job.Attempt)

	// Attempts exhausted: execution is skipped, permanent failure recorded,
	// hook invoked exactly once with the last error.
	out, err := exec.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, Failed, out)
	assert.Equal(t, 3, h.runs)
	assert.Equal(t, 1, h.hookCalls)
	assert.EqualError(t, h.hookErr, "still broken")
	assert.Equal(t, "failed", store.last().method)
	assert.Equal(t, domain.FailedPermanent, job.Status)
}

func TestExecuteFatalSkipsRetries(t *testing.T) {
	h := &stubHandler{typ: domain.ReportGeneration, handle: func(context.Context) error {
		return outcome.Fatal(errors.New("unknown report type"))
	}}
	exec, store, q := newExecutor(h)
	job := newJob(domain.ReportGeneration, 2, 60)

	out, err := exec.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, Failed, out)
	assert.Equal(t, 1, h.runs)
	assert.Equal(t, 1, h.hookCalls)
	assert.Empty(t, q.requeues)
	assert.Equal(t, "failed", store.last().method)
}

func TestExecuteTimeoutIsTransient(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	h := &stubHandler{typ: domain.EmailDispatch, handle: func(ctx context.Context) error {
		<-block // ignores ctx, like blocking I/O that cannot be aborted
		return nil
	}}
	exec, store, q := newExecutor(h)
	job := newJob(domain.EmailDispatch, 3, 1)

	out, err := exec.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, Retrying, out)
	assert.Equal(t, 1, job.Attempt)
	assert.Contains(t, store.last().lastErr, "deadline")
	assert.Len(t, q.requeues, 1)
	assert.Zero(t, h.hookCalls)
}

func TestExecuteUnknownTypeFailsPermanently(t *testing.T) {
	h := &stubHandler{typ: domain.EmployeeSync}
	exec, store, _ := newExecutor(h)
	job := newJob(domain.Backup, 2, 60)

	out, err := exec.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, Failed, out)
	assert.Equal(t, "failed", store.last().method)
	assert.Zero(t, h.runs)
}
