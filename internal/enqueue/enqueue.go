// Package enqueue submits job descriptors: persist to the store (source of
// truth), then push the id to the company queue, optionally delayed. It
// returns immediately with the job id; there is no synchronous result.
package enqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/storage"
)

type Store interface {
	InsertJob(ctx context.Context, p *storage.InsertJobParams) (string, error)
	GetPeriod(ctx context.Context, id string) (*domain.PayrollPeriod, error)
}

type Queue interface {
	Enqueue(ctx context.Context, company int, jobID string, runAt time.Time) error
}

// Options override the per-type budget defaults; zero values keep them.
type Options struct {
	TimeoutSeconds int `json:"timeoutSeconds"`
	MaxAttempts    int `json:"maxAttempts"`
	DelaySeconds   int `json:"delaySeconds"`
}

type Service struct {
	store Store
	queue Queue
}

func New(store Store, queue Queue) *Service { return &Service{store: store, queue: queue} }

func (s *Service) Enqueue(ctx context.Context, typ domain.JobType, payload json.RawMessage, opts Options) (string, error) {
	budget, ok := domain.Budgets[typ]
	if !ok {
		return "", errors.Errorf("unknown job type %q", typ)
	}
	timeout := budget.Timeout
	if opts.TimeoutSeconds > 0 {
		timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}
	attempts := budget.MaxAttempts
	if opts.MaxAttempts > 0 {
		attempts = opts.MaxAttempts
	}

	company, err := s.companyOf(ctx, typ, payload)
	if err != nil {
		return "", err
	}

	id, err := s.store.InsertJob(ctx, &storage.InsertJobParams{
		Type:           typ,
		Payload:        payload,
		CompanyID:      company,
		MaxAttempts:    attempts,
		TimeoutSeconds: int(timeout / time.Second),
		BackoffPolicy:  budget.Backoff,
	})
	if err != nil {
		return "", errors.Wrap(err, "persist job")
	}

	runAt := time.Now().UTC()
	if opts.DelaySeconds > 0 {
		runAt = runAt.Add(time.Duration(opts.DelaySeconds) * time.Second)
	}
	if err := s.queue.Enqueue(ctx, company, id, runAt); err != nil {
		return "", errors.Wrap(err, "push job")
	}
	return id, nil
}

// EnqueueEmail is the typed shortcut used by fan-out and the reminder job.
func (s *Service) EnqueueEmail(ctx context.Context, companyID int, p *domain.EmailDispatchPayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal email payload")
	}
	budget := domain.Budgets[domain.EmailDispatch]
	id, err := s.store.InsertJob(ctx, &storage.InsertJobParams{
		Type:           domain.EmailDispatch,
		Payload:        payload,
		CompanyID:      companyID,
		MaxAttempts:    budget.MaxAttempts,
		TimeoutSeconds: int(budget.Timeout / time.Second),
		BackoffPolicy:  budget.Backoff,
	})
	if err != nil {
		return errors.Wrap(err, "persist email job")
	}
	return s.queue.Enqueue(ctx, companyID, id, time.Now().UTC())
}

// companyOf resolves the tenant for queue routing. Most payloads carry
// companyId directly; payroll jobs are routed by the period's company.
func (s *Service) companyOf(ctx context.Context, typ domain.JobType, payload json.RawMessage) (int, error) {
	if typ == domain.PayrollProcessing {
		var p domain.PayrollProcessingPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return 0, errors.Wrap(err, "decode payroll payload")
		}
		period, err := s.store.GetPeriod(ctx, p.PayrollPeriodID)
		if err != nil {
			return 0, err
		}
		return period.CompanyID, nil
	}
	var probe struct {
		CompanyID int `json:"companyId"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return 0, errors.Wrap(err, "decode payload")
	}
	return probe.CompanyID, nil
}
