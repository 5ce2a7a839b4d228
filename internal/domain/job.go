package domain

import (
	"encoding/json"
	"time"
)

type Status string

const (
	Pending         Status = "pending"
	Running         Status = "running"
	Succeeded       Status = "succeeded"
	FailedRetryable Status = "failed_retryable"
	FailedPermanent Status = "failed_permanent"
)

type JobType string

const (
	PayrollProcessing     JobType = "payroll_processing"
	AttendanceCalculation JobType = "attendance_calculation"
	EmployeeImport        JobType = "employee_import"
	ReportGeneration      JobType = "report_generation"
	Backup                JobType = "backup"
	EmailDispatch         JobType = "email_dispatch"
	AttendanceReminder    JobType = "attendance_reminder"
	EmployeeSync          JobType = "employee_sync"
)

// JobDescriptor is the queued unit of work. It is owned by the queue and
// executor; handlers only see the payload.
type JobDescriptor struct {
	ID             string
	Type           JobType
	Payload        json.RawMessage
	CompanyID      int
	Attempt        int
	MaxAttempts    int
	TimeoutSeconds int
	BackoffPolicy  string
	Status         Status
	LastError      *string
	EnqueuedAt     time.Time
	UpdatedAt      time.Time
}

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Budget is the per-type timeout and retry allowance.
type Budget struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     string
}

// Budgets maps each job type to its execution budget. Callers may override
// per enqueue, but these are the platform defaults.
var Budgets = map[JobType]Budget{
	PayrollProcessing:     {Timeout: 600 * time.Second, MaxAttempts: 3, Backoff: BackoffExponential},
	AttendanceCalculation: {Timeout: 900 * time.Second, MaxAttempts: 2, Backoff: BackoffFixed},
	EmployeeImport:        {Timeout: 1800 * time.Second, MaxAttempts: 2, Backoff: BackoffFixed},
	ReportGeneration:      {Timeout: 1800 * time.Second, MaxAttempts: 2, Backoff: BackoffFixed},
	Backup:                {Timeout: 3600 * time.Second, MaxAttempts: 2, Backoff: BackoffFixed},
	EmailDispatch:         {Timeout: 60 * time.Second, MaxAttempts: 3, Backoff: BackoffExponential},
	AttendanceReminder:    {Timeout: 300 * time.Second, MaxAttempts: 1, Backoff: BackoffFixed},
	EmployeeSync:          {Timeout: 900 * time.Second, MaxAttempts: 2, Backoff: BackoffFixed},
}

// Payload schemas. Field names are the wire contract shared with existing
// callers and must not change.

type PayrollProcessingPayload struct {
	PayrollPeriodID string `json:"payrollPeriodId"`
}

type AttendanceCalculationPayload struct {
	CompanyID  int    `json:"companyId"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	EmployeeID *int   `json:"employeeId,omitempty"`
}

type EmployeeImportPayload struct {
	CompanyID  int            `json:"companyId"`
	ImportedBy int            `json:"importedBy"`
	FilePath   string         `json:"filePath"`
	Options    map[string]any `json:"options"`
}

type ReportGenerationPayload struct {
	CompanyID   int            `json:"companyId"`
	RequestedBy int            `json:"requestedBy"`
	ReportType  string         `json:"reportType"`
	Filters     map[string]any `json:"filters"`
	Format      string         `json:"format"`
}

type BackupPayload struct {
	CompanyID   int      `json:"companyId"`
	RequestedBy *int     `json:"requestedBy,omitempty"`
	Tables      []string `json:"tables"`
	BackupType  string   `json:"backupType"`
}

type EmailDispatchPayload struct {
	Email    string         `json:"email"`
	Subject  string         `json:"subject"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data"`
	Template string         `json:"template"`
	UserID   *int           `json:"userId,omitempty"`
}

type AttendanceReminderPayload struct {
	CompanyID int `json:"companyId"`
}

type EmployeeSyncPayload struct {
	CompanyID int `json:"companyId"`
}
