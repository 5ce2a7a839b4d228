package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/you/hrq/internal/domain"
)

type ReminderStore interface {
	EmployeesAbsentOn(ctx context.Context, companyID int, day time.Time) ([]domain.Employee, error)
}

// ReminderHandler is best-effort: a per-employee dispatch failure is logged
// and skipped, and the job itself runs with a single attempt.
type ReminderHandler struct {
	store  ReminderStore
	emails Emails
	log    *zap.Logger
	now    func() time.Time
}

func NewReminderHandler(store ReminderStore, emails Emails, log *zap.Logger) *ReminderHandler {
	return &ReminderHandler{store: store, emails: emails, log: log, now: time.Now}
}

func (h *ReminderHandler) Type() domain.JobType { return domain.AttendanceReminder }

func (h *ReminderHandler) Handle(ctx context.Context, job *domain.JobDescriptor) error {
	var p domain.AttendanceReminderPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return err
	}
	today := h.now().UTC().Truncate(24 * time.Hour)
	emps, err := h.store.EmployeesAbsentOn(ctx, p.CompanyID, today)
	if err != nil {
		return err
	}

	for _, e := range emps {
		if e.Email == "" {
			continue
		}
		uid := e.UserID
		perr := h.emails.EnqueueEmail(ctx, p.CompanyID, &domain.EmailDispatchPayload{
			Email:    e.Email,
			Subject:  "Attendance reminder",
			Message:  "You have not recorded attendance for today.",
			Template: "attendance_reminder",
			Data: map[string]any{
				"date":     today.Format("2006-01-02"),
				"userName": e.FullName,
			},
			UserID: uid,
		})
		if perr != nil {
			h.log.Warn("reminder enqueue failed",
				zap.Int("employee_id", e.ID), zap.Error(perr))
		}
	}
	return nil
}

func (h *ReminderHandler) OnPermanentFailure(ctx context.Context, job *domain.JobDescriptor, lastErr error) {
	// Best-effort job: nothing to clean up, nobody to notify.
	h.log.Warn("attendance reminder failed", zap.String("job_id", job.ID), zap.Error(lastErr))
}
