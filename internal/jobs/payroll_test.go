package jobs

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/outcome"
)

type fakePayrollStore struct {
	period     *domain.PayrollPeriod
	employees  []domain.Employee
	rows       []domain.PayrollRow
	replaceN   int
	failOnRows error
}

func (s *fakePayrollStore) GetPeriod(_ context.Context, id string) (*domain.PayrollPeriod, error) {
	if s.period == nil || s.period.ID != id {
		return nil, errors.Errorf("payroll period %s not found", id)
	}
	return s.period, nil
}

func (s *fakePayrollStore) SetPeriodProcessing(_ context.Context, _ string) error {
	s.period.Status = domain.PeriodProcessing
	return nil
}

func (s *fakePayrollStore) SetPeriodProcessed(_ context.Context, _ string, gross, deductions, net float64) error {
	s.period.Status = domain.PeriodProcessed
	s.period.ErrorMessage = nil
	s.period.TotalGross = gross
	s.period.TotalDeductions = deductions
	s.period.TotalNet = net
	return nil
}

func (s *fakePayrollStore) SetPeriodFailed(_ context.Context, _ string, msg string) error {
	s.period.Status = domain.PeriodFailed
	s.period.ErrorMessage = &msg
	return nil
}

func (s *fakePayrollStore) ReplacePayrollRows(_ context.Context, _ string, rows []domain.PayrollRow) error {
	if s.failOnRows != nil {
		return s.failOnRows
	}
	s.rows = rows
	s.replaceN++
	return nil
}

func (s *fakePayrollStore) ActiveEmployees(context.Context, int) ([]domain.Employee, error) {
	return s.employees, nil
}

type fakePayrollService struct {
	computed int
	err      error
}

func (s *fakePayrollService) Compute(_ context.Context, _ *domain.PayrollPeriod, e *domain.Employee) (domain.PayrollRow, error) {
	s.computed++
	if s.err != nil {
		return domain.PayrollRow{}, s.err
	}
	return domain.PayrollRow{EmployeeID: e.ID, Gross: 1000, Deductions: 200, Net: 800}, nil
}

func payrollFixture() (*fakePayrollStore, *fakePayrollService, *fakeNotifier, *PayrollHandler) {
	store := &fakePayrollStore{
		period: &domain.PayrollPeriod{ID: "p-1", CompanyID: 4, Name: "2024-01", Status: domain.PeriodDraft},
		employees: []domain.Employee{
			{ID: 1, CompanyID: 4}, {ID: 2, CompanyID: 4}, {ID: 3, CompanyID: 4},
		},
	}
	svc := &fakePayrollService{}
	notifier := &fakeNotifier{}
	return store, svc, notifier, NewPayrollHandler(store, svc, notifier, zap.NewNop())
}

const payrollJob = `{"payrollPeriodId":"p-1"}`

func TestPayrollSuccessSetsProcessedAndFansOut(t *testing.T) {
	store, svc, notifier, h := payrollFixture()

	err := h.Handle(context.Background(), descriptor(domain.PayrollProcessing, payrollJob))
	require.NoError(t, err)

	assert.Equal(t, domain.PeriodProcessed, store.period.Status)
	assert.Equal(t, 3000.0, store.period.TotalGross)
	assert.Equal(t, 600.0, store.period.TotalDeductions)
	assert.Equal(t, 2400.0, store.period.TotalNet)
	assert.Len(t, store.rows, 3)
	assert.Equal(t, 3, svc.computed)

	require.Len(t, notifier.fanouts, 1)
	call := notifier.fanouts[0]
	assert.Equal(t, domain.PayrollAudience, call.audience)
	assert.Equal(t, 3, call.note.Payload["processedCount"])
}

func TestPayrollComputeErrorMarksPeriodFailedAndPropagates(t *testing.T) {
	store, svc, notifier, h := payrollFixture()
	svc.err = errors.New("tax service unavailable")

	err := h.Handle(context.Background(), descriptor(domain.PayrollProcessing, payrollJob))
	require.Error(t, err)
	assert.False(t, outcome.IsFatal(err))

	assert.Equal(t, domain.PeriodFailed, store.period.Status)
	require.NotNil(t, store.period.ErrorMessage)
	assert.Contains(t, *store.period.ErrorMessage, "tax service unavailable")
	assert.Empty(t, notifier.fanouts)
}

func TestPayrollUnknownPeriodIsFatal(t *testing.T) {
	_, _, _, h := payrollFixture()

	err := h.Handle(context.Background(), descriptor(domain.PayrollProcessing, `{"payrollPeriodId":"missing"}`))
	require.Error(t, err)
	assert.True(t, outcome.IsFatal(err))
}

// Re-enqueueing an already-processed period recomputes it in full. This is
// the actual behavior: there is no dedup guard, and rows are overwritten.
func TestPayrollReprocessingNotDeduplicated(t *testing.T) {
	store, svc, _, h := payrollFixture()

	require.NoError(t, h.Handle(context.Background(), descriptor(domain.PayrollProcessing, payrollJob)))
	assert.Equal(t, domain.PeriodProcessed, store.period.Status)

	require.NoError(t, h.Handle(context.Background(), descriptor(domain.PayrollProcessing, payrollJob)))
	assert.Equal(t, 6, svc.computed)
	assert.Equal(t, 2, store.replaceN)
	assert.Equal(t, domain.PeriodProcessed, store.period.Status)
}

func TestPayrollPermanentFailureHookMarksFailedAndNotifies(t *testing.T) {
	store, _, notifier, h := payrollFixture()

	job := descriptor(domain.PayrollProcessing, payrollJob)
	job.CompanyID = 4
	h.OnPermanentFailure(context.Background(), job, errors.New("retries exhausted"))

	assert.Equal(t, domain.PeriodFailed, store.period.Status)
	require.NotNil(t, store.period.ErrorMessage)
	require.Len(t, notifier.fanouts, 1)
	assert.Equal(t, domain.SeverityError, notifier.fanouts[0].note.Severity)
	assert.Equal(t, domain.PayrollAudience, notifier.fanouts[0].audience)
}
