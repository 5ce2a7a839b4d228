// Package services provides the store-backed implementations of the domain
// service interfaces the job handlers consume. The business formulas here
// are deliberately plain; the pipeline only cares about their contracts.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/jobs"
	"github.com/you/hrq/internal/report"
	"github.com/you/hrq/internal/storage"
)

// Payroll computes monthly pay from base salary with a flat deduction rate.
type Payroll struct {
	DeductionRate float64
}

func NewPayroll() *Payroll { return &Payroll{DeductionRate: 0.2} }

func (p *Payroll) Compute(_ context.Context, _ *domain.PayrollPeriod, e *domain.Employee) (domain.PayrollRow, error) {
	gross := e.Salary
	deductions := gross * p.DeductionRate
	return domain.PayrollRow{
		EmployeeID: e.ID,
		Gross:      gross,
		Deductions: deductions,
		Net:        gross - deductions,
	}, nil
}

// Employees adapts validated import rows onto the employee table.
type Employees struct{ store *storage.Store }

func NewEmployees(store *storage.Store) *Employees { return &Employees{store: store} }

func (s *Employees) CreateEmployee(ctx context.Context, companyID int, row *jobs.ImportRow) error {
	return s.store.CreateEmployee(ctx, &storage.CreateEmployeeParams{
		CompanyID: companyID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email,
		Position:  row.Position,
		HireDate:  row.HireDate,
		Salary:    row.Salary,
	})
}

// Reports builds tabular report data, one generator per report type.
type Reports struct{ store *storage.Store }

func NewReports(store *storage.Store) *Reports { return &Reports{store: store} }

func (s *Reports) EmployeeReport(ctx context.Context, companyID int, _ map[string]any) (*report.Data, error) {
	emps, err := s.store.EmployeesInCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	d := &report.Data{
		Title:   "Employee report",
		Headers: []string{"ID", "Name", "Email", "Status", "Hire date", "Salary"},
	}
	for _, e := range emps {
		d.Rows = append(d.Rows, []string{
			fmt.Sprintf("%d", e.ID), e.FullName, e.Email, e.Status,
			e.HireDate.Format("2006-01-02"), fmt.Sprintf("%.2f", e.Salary),
		})
	}
	return d, nil
}

func (s *Reports) AttendanceReport(ctx context.Context, companyID int, filters map[string]any) (*report.Data, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, -1, 0)
	if v, ok := filters["startDate"].(string); ok {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			start = t
		}
	}
	if v, ok := filters["endDate"].(string); ok {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end = t
		}
	}
	records, err := s.store.AttendanceInRange(ctx, companyID, nil, start, end)
	if err != nil {
		return nil, err
	}
	d := &report.Data{
		Title:   "Attendance report",
		Headers: []string{"Employee", "Date", "Status", "Hours"},
	}
	for _, r := range records {
		d.Rows = append(d.Rows, []string{
			fmt.Sprintf("%d", r.EmployeeID), r.Date.Format("2006-01-02"),
			r.Status, fmt.Sprintf("%.2f", r.HoursWorked),
		})
	}
	return d, nil
}

func (s *Reports) PayrollReport(ctx context.Context, companyID int, _ map[string]any) (*report.Data, error) {
	rows, err := s.store.PayrollRowsForCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	d := &report.Data{
		Title:   "Payroll report",
		Headers: []string{"Employee", "Gross", "Deductions", "Net"},
	}
	for _, r := range rows {
		d.Rows = append(d.Rows, []string{
			fmt.Sprintf("%d", r.EmployeeID), fmt.Sprintf("%.2f", r.Gross),
			fmt.Sprintf("%.2f", r.Deductions), fmt.Sprintf("%.2f", r.Net),
		})
	}
	return d, nil
}

func (s *Reports) LeaveReport(ctx context.Context, companyID int, _ map[string]any) (*report.Data, error) {
	leaves, err := s.store.LeaveRequests(ctx, companyID)
	if err != nil {
		return nil, err
	}
	d := &report.Data{
		Title:   "Leave report",
		Headers: []string{"Employee", "Type", "From", "To", "Status"},
	}
	for _, l := range leaves {
		d.Rows = append(d.Rows, []string{
			fmt.Sprintf("%d", l.EmployeeID), l.Type,
			l.StartDate.Format("2006-01-02"), l.EndDate.Format("2006-01-02"), l.Status,
		})
	}
	return d, nil
}
