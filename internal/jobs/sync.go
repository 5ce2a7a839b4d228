package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/domain"
)

type SyncStore interface {
	EmployeesInCompany(ctx context.Context, companyID int) ([]domain.Employee, error)
	SetUserActive(ctx context.Context, userID int, active bool) error
	UpdateEmployeeDerived(ctx context.Context, employeeID int, fullName string, years int) error
}

// SyncHandler aligns linked user accounts with employee status and
// recomputes derived fields. Any single employee failure aborts the whole
// job and propagates for retry.
type SyncHandler struct {
	store SyncStore
	log   *zap.Logger
	now   func() time.Time
}

func NewSyncHandler(store SyncStore, log *zap.Logger) *SyncHandler {
	return &SyncHandler{store: store, log: log, now: time.Now}
}

func (h *SyncHandler) Type() domain.JobType { return domain.EmployeeSync }

func (h *SyncHandler) Handle(ctx context.Context, job *domain.JobDescriptor) error {
	var p domain.EmployeeSyncPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return err
	}
	emps, err := h.store.EmployeesInCompany(ctx, p.CompanyID)
	if err != nil {
		return err
	}
	now := h.now().UTC()
	for _, e := range emps {
		if e.UserID != nil {
			active := e.Status == domain.EmployeeActive
			if err := h.store.SetUserActive(ctx, *e.UserID, active); err != nil {
				return errors.Wrapf(err, "sync user %d", *e.UserID)
			}
		}
		full := e.FirstName + " " + e.LastName
		years := YearsOfService(e.HireDate, now)
		if err := h.store.UpdateEmployeeDerived(ctx, e.ID, full, years); err != nil {
			return errors.Wrapf(err, "sync employee %d", e.ID)
		}
	}
	return nil
}

func (h *SyncHandler) OnPermanentFailure(ctx context.Context, job *domain.JobDescriptor, lastErr error) {
	h.log.Error("employee sync failed", zap.String("job_id", job.ID), zap.Error(lastErr))
}

// YearsOfService is whole years elapsed from hire date to now; never
// negative.
func YearsOfService(hire, now time.Time) int {
	if hire.IsZero() || hire.After(now) {
		return 0
	}
	years := now.Year() - hire.Year()
	anniversary := hire.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
