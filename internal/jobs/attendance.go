package jobs

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/notify"
	"github.com/you/hrq/internal/outcome"
)

type AttendanceStore interface {
	ActiveEmployees(ctx context.Context, companyID int) ([]domain.Employee, error)
	AttendanceInRange(ctx context.Context, companyID int, employeeID *int, start, end time.Time) ([]domain.AttendanceRecord, error)
}

type AttendanceHandler struct {
	store    AttendanceStore
	notifier Notifier
	log      *zap.Logger
}

func NewAttendanceHandler(store AttendanceStore, notifier Notifier, log *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{store: store, notifier: notifier, log: log}
}

func (h *AttendanceHandler) Type() domain.JobType { return domain.AttendanceCalculation }

// Handle aggregates one summary per employee in scope. There is no partial
// failure mode: any single employee error aborts the whole job.
func (h *AttendanceHandler) Handle(ctx context.Context, job *domain.JobDescriptor) error {
	var p domain.AttendanceCalculationPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return err
	}
	start, err := time.Parse("2006-01-02", p.StartDate)
	if err != nil {
		return outcome.Fatal(errors.Wrap(err, "parse startDate"))
	}
	end, err := time.Parse("2006-01-02", p.EndDate)
	if err != nil {
		return outcome.Fatal(errors.Wrap(err, "parse endDate"))
	}

	emps, err := h.store.ActiveEmployees(ctx, p.CompanyID)
	if err != nil {
		return err
	}
	if p.EmployeeID != nil {
		scoped := emps[:0]
		for _, e := range emps {
			if e.ID == *p.EmployeeID {
				scoped = append(scoped, e)
			}
		}
		emps = scoped
	}

	working := WorkingDays(start, end)
	summaries := make([]domain.AttendanceSummary, 0, len(emps))
	for _, e := range emps {
		records, err := h.store.AttendanceInRange(ctx, p.CompanyID, &e.ID, start, end)
		if err != nil {
			return errors.Wrapf(err, "attendance for employee %d", e.ID)
		}
		summaries = append(summaries, Summarize(&e, records, working))
	}

	return h.notifier.Fanout(ctx, p.CompanyID, domain.PayrollAudience, notify.Note{
		Title: "Attendance calculated",
		Message: fmt.Sprintf("Attendance summary for %s to %s covers %d employees.",
			p.StartDate, p.EndDate, len(summaries)),
		Severity: domain.SeverityInfo,
		Payload: map[string]any{
			"startDate":   p.StartDate,
			"endDate":     p.EndDate,
			"workingDays": working,
			"summaries":   summaries,
		},
	})
}

func (h *AttendanceHandler) OnPermanentFailure(ctx context.Context, job *domain.JobDescriptor, lastErr error) {
	var p domain.AttendanceCalculationPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return
	}
	err := h.notifier.Fanout(ctx, p.CompanyID, domain.PayrollAudience, notify.Note{
		Title:    "Attendance calculation failed",
		Message:  lastErr.Error(),
		Severity: domain.SeverityError,
		Payload:  map[string]any{"startDate": p.StartDate, "endDate": p.EndDate, "error": lastErr.Error()},
	})
	if err != nil {
		h.log.Error("attendance failure fan-out", zap.Error(err))
	}
}

// WorkingDays counts weekdays (Mon-Fri) in [start, end], both endpoints
// inclusive.
func WorkingDays(start, end time.Time) int {
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			n++
		}
	}
	return n
}

// Summarize computes one employee's attendance summary. Late days count as
// present for the percentage; averageHours is over recorded days.
func Summarize(e *domain.Employee, records []domain.AttendanceRecord, workingDays int) domain.AttendanceSummary {
	s := domain.AttendanceSummary{EmployeeID: e.ID, EmployeeName: e.FullName}
	for _, r := range records {
		s.TotalDays++
		s.TotalHours += r.HoursWorked
		switch r.Status {
		case "present":
			s.PresentDays++
		case "late":
			s.PresentDays++
			s.LateDays++
		case "absent":
			s.AbsentDays++
		}
	}
	if s.TotalDays > 0 {
		s.AverageHours = round2(s.TotalHours / float64(s.TotalDays))
	}
	if workingDays > 0 {
		s.AttendancePercentage = round2(float64(s.PresentDays) / float64(workingDays) * 100)
	}
	return s
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
