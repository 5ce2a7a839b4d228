package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/notify"
	"github.com/you/hrq/internal/outcome"
)

// PayrollStore is the slice of storage the payroll handler needs.
type PayrollStore interface {
	GetPeriod(ctx context.Context, id string) (*domain.PayrollPeriod, error)
	SetPeriodProcessing(ctx context.Context, id string) error
	SetPeriodProcessed(ctx context.Context, id string, gross, deductions, net float64) error
	SetPeriodFailed(ctx context.Context, id string, msg string) error
	ReplacePayrollRows(ctx context.Context, periodID string, rows []domain.PayrollRow) error
	ActiveEmployees(ctx context.Context, companyID int) ([]domain.Employee, error)
}

// PayrollService computes one employee's pay for a period.
type PayrollService interface {
	Compute(ctx context.Context, period *domain.PayrollPeriod, e *domain.Employee) (domain.PayrollRow, error)
}

type PayrollHandler struct {
	store    PayrollStore
	payroll  PayrollService
	notifier Notifier
	log      *zap.Logger
}

func NewPayrollHandler(store PayrollStore, payroll PayrollService, notifier Notifier, log *zap.Logger) *PayrollHandler {
	return &PayrollHandler{store: store, payroll: payroll, notifier: notifier, log: log}
}

func (h *PayrollHandler) Type() domain.JobType { return domain.PayrollProcessing }

// Handle recomputes the whole period. There is no dedup: a period already
// processed is recomputed in full when re-enqueued, rows overwritten.
func (h *PayrollHandler) Handle(ctx context.Context, job *domain.JobDescriptor) error {
	var p domain.PayrollProcessingPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return err
	}
	period, err := h.store.GetPeriod(ctx, p.PayrollPeriodID)
	if err != nil {
		return outcome.Fatal(err)
	}
	if err := h.store.SetPeriodProcessing(ctx, period.ID); err != nil {
		return h.fail(ctx, period.ID, err)
	}

	emps, err := h.store.ActiveEmployees(ctx, period.CompanyID)
	if err != nil {
		return h.fail(ctx, period.ID, err)
	}

	rows := make([]domain.PayrollRow, 0, len(emps))
	var gross, deductions, net float64
	for i := range emps {
		row, err := h.payroll.Compute(ctx, period, &emps[i])
		if err != nil {
			return h.fail(ctx, period.ID, err)
		}
		rows = append(rows, row)
		gross += row.Gross
		deductions += row.Deductions
		net += row.Net
	}

	if err := h.store.ReplacePayrollRows(ctx, period.ID, rows); err != nil {
		return h.fail(ctx, period.ID, err)
	}
	if err := h.store.SetPeriodProcessed(ctx, period.ID, gross, deductions, net); err != nil {
		return h.fail(ctx, period.ID, err)
	}

	return h.notifier.Fanout(ctx, period.CompanyID, domain.PayrollAudience, notify.Note{
		Title:    "Payroll processed",
		Message:  fmt.Sprintf("Payroll period %q processed for %d employees.", period.Name, len(rows)),
		Severity: domain.SeveritySuccess,
		Payload: map[string]any{
			"periodId":       period.ID,
			"periodName":     period.Name,
			"processedCount": len(rows),
			"totalGross":     gross,
			"totalNet":       net,
		},
		Email: "payroll_processed",
	})
}

// fail marks the period failed with the error text, then propagates the
// error so the executor's retry bookkeeping still applies.
func (h *PayrollHandler) fail(ctx context.Context, periodID string, err error) error {
	if serr := h.store.SetPeriodFailed(ctx, periodID, err.Error()); serr != nil {
		h.log.Error("mark period failed", zap.String("period_id", periodID), zap.Error(serr))
	}
	return err
}

func (h *PayrollHandler) OnPermanentFailure(ctx context.Context, job *domain.JobDescriptor, lastErr error) {
	var p domain.PayrollProcessingPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return
	}
	if err := h.store.SetPeriodFailed(ctx, p.PayrollPeriodID, lastErr.Error()); err != nil {
		h.log.Error("mark period failed", zap.String("period_id", p.PayrollPeriodID), zap.Error(err))
	}
	err := h.notifier.Fanout(ctx, job.CompanyID, domain.PayrollAudience, notify.Note{
		Title:    "Payroll processing failed",
		Message:  fmt.Sprintf("Payroll period %s failed: %s", p.PayrollPeriodID, lastErr),
		Severity: domain.SeverityError,
		Payload:  map[string]any{"periodId": p.PayrollPeriodID, "error": lastErr.Error()},
	})
	if err != nil {
		h.log.Error("payroll failure fan-out", zap.Error(err))
	}
}
