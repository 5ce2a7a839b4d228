package domain

import "time"

type PeriodStatus string

const (
	PeriodDraft      PeriodStatus = "draft"
	PeriodProcessing PeriodStatus = "processing"
	PeriodProcessed  PeriodStatus = "processed"
	PeriodFailed     PeriodStatus = "failed"
)

// PayrollPeriod transitions draft -> processing -> processed, or to the
// terminal failed state from any in-flight attempt. A failed period never
// goes back to processing on its own; a new job must be enqueued.
type PayrollPeriod struct {
	ID              string
	CompanyID       int
	Name            string
	Status          PeriodStatus
	ErrorMessage    *string
	TotalGross      float64
	TotalDeductions float64
	TotalNet        float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type PayrollRow struct {
	EmployeeID int
	Gross      float64
	Deductions float64
	Net        float64
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

type Notification struct {
	ID              string
	RecipientUserID int
	Title           string
	Message         string
	Severity        Severity
	Payload         map[string]any
	Read            bool
	CreatedAt       time.Time
}

type User struct {
	ID     int
	Email  string
	Name   string
	Role   Role
	Active bool
}

// Employee references its manager by id, resolved by lookup against the
// employee table, never held as a pointer to another Employee.
type Employee struct {
	ID             int
	CompanyID      int
	UserID         *int
	FirstName      string
	LastName       string
	FullName       string
	Email          string
	Status         string
	HireDate       time.Time
	Salary         float64
	ManagerID      *int
	YearsOfService int
}

const EmployeeActive = "active"

type AttendanceRecord struct {
	EmployeeID  int
	Date        time.Time
	Status      string // present, late, absent
	HoursWorked float64
}

type AttendanceSummary struct {
	EmployeeID           int     `json:"employeeId"`
	EmployeeName         string  `json:"employeeName"`
	TotalDays            int     `json:"totalDays"`
	PresentDays          int     `json:"presentDays"`
	AbsentDays           int     `json:"absentDays"`
	LateDays             int     `json:"lateDays"`
	TotalHours           float64 `json:"totalHours"`
	AverageHours         float64 `json:"averageHours"`
	AttendancePercentage float64 `json:"attendancePercentage"`
}
