package jobs

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

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWorkingDays(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		want       int
	}{
		{"monday through friday", "2024-01-01", "2024-01-05", 5},
		{"full week includes one weekend", "2024-01-01", "2024-01-07", 5},
		{"single saturday", "2024-01-06", "2024-01-06", 0},
		{"single wednesday", "2024-01-03", "2024-01-03", 1},
		{"two full weeks", "2024-01-01", "2024-01-14", 10},
		{"end before start", "2024-01-05", "2024-01-01", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WorkingDays(day(tc.start), day(tc.end)))
		})
	}
}

func TestSummarize(t *testing.T) {
	e := &domain.Employee{ID: 3, FullName: "Ada Park"}
	records := []domain.AttendanceRecord{
		{Status: "present", HoursWorked: 8},
		{Status: "present", HoursWorked: 8},
		{Status: "late", HoursWorked: 7},
		{Status: "present", HoursWorked: 9},
		{Status: "absent"},
	}

	s := Summarize(e, records, 5)
	assert.Equal(t, 5, s.TotalDays)
	assert.Equal(t, 4, s.PresentDays) // late counts as present
	assert.Equal(t, 1, s.LateDays)
	assert.Equal(t, 1, s.AbsentDays)
	assert.Equal(t, 32.0, s.TotalHours)
	assert.Equal(t, 6.4, s.AverageHours)
	assert.Equal(t, 80.00, s.AttendancePercentage)
}

func TestSummarizeZeroDenominators(t *testing.T) {
	s := Summarize(&domain.Employee{ID: 1}, nil, 0)
	assert.Zero(t, s.AverageHours)
	assert.Zero(t, s.AttendancePercentage)
}

type fakeAttendanceStore struct {
	employees []domain.Employee
	records   map[int][]domain.AttendanceRecord
	err       error
}

func (s *fakeAttendanceStore) ActiveEmployees(context.Context, int) ([]domain.Employee, error) {
	return s.employees, nil
}

func (s *fakeAttendanceStore) AttendanceInRange(_ context.Context, _ int, employeeID *int, _, _ time.Time) ([]domain.AttendanceRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[*employeeID], nil
}

func TestAttendanceHandlerFansOutSummary(t *testing.T) {
	store := &fakeAttendanceStore{
		employees: []domain.Employee{{ID: 1, CompanyID: 4}, {ID: 2, CompanyID: 4}},
		records: map[int][]domain.AttendanceRecord{
			1: {{Status: "present", HoursWorked: 8}},
			2: {{Status: "absent"}},
		},
	}
	notifier := &fakeNotifier{}
	h := NewAttendanceHandler(store, notifier, zap.NewNop())

	err := h.Handle(context.Background(), descriptor(domain.AttendanceCalculation,
		`{"companyId":4,"startDate":"2024-01-01","endDate":"2024-01-05"}`))
	require.NoError(t, err)

	require.Len(t, notifier.fanouts, 1)
	call := notifier.fanouts[0]
	assert.Equal(t, 4, call.companyID)
	assert.Equal(t, domain.PayrollAudience, call.audience)
	assert.Equal(t, domain.SeverityInfo, call.note.Severity)
	assert.Equal(t, 5, call.note.Payload["workingDays"])
	summaries := call.note.Payload["summaries"].([]domain.AttendanceSummary)
	assert.Len(t, summaries, 2)
}

func TestAttendanceHandlerEmployeeFilter(t *testing.T) {
	store := &fakeAttendanceStore{
		employees: []domain.Employee{{ID: 1}, {ID: 2}},
		records:   map[int][]domain.AttendanceRecord{},
	}
	notifier := &fakeNotifier{}
	h := NewAttendanceHandler(store, notifier, zap.NewNop())

	err := h.Handle(context.Background(), descriptor(domain.AttendanceCalculation,
		`{"companyId":4,"startDate":"2024-01-01","endDate":"2024-01-05","employeeId":2}`))
	require.NoError(t, err)

	summaries := notifier.fanouts[0].note.Payload["summaries"].([]domain.AttendanceSummary)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].EmployeeID)
}

func TestAttendanceHandlerBadDateIsFatal(t *testing.T) {
	h := NewAttendanceHandler(&fakeAttendanceStore{}, &fakeNotifier{}, zap.NewNop())
	err := h.Handle(context.Background(), descriptor(domain.AttendanceCalculation,
		`{"companyId":4,"startDate":"January 1st","endDate":"2024-01-05"}`))
	require.Error(t, err)
	assert.True(t, outcome.IsFatal(err))
}

func TestAttendanceHandlerSingleEmployeeErrorAbortsJob(t *testing.T) {
	store := &fakeAttendanceStore{
		employees: []domain.Employee{{ID: 1}},
		err:       errors.New("db timeout"),
	}
	notifier := &fakeNotifier{}
	h := NewAttendanceHandler(store, notifier, zap.NewNop())

	err := h.Handle(context.Background(), descriptor(domain.AttendanceCalculation,
		`{"companyId":4,"startDate":"2024-01-01","endDate":"2024-01-05"}`))
	require.Error(t, err)
	assert.False(t, outcome.IsFatal(err))
	assert.Empty(t, notifier.fanouts)
}
