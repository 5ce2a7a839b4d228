package jobs

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/notify"
	"github.com/you/hrq/internal/outcome"
)

// ImportRow is the employee creation schema one file row must satisfy.
type ImportRow struct {
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Position  string  `json:"position"`
	HireDate  string  `json:"hire_date" validate:"omitempty,datetime=2006-01-02"`
	Salary    float64 `json:"salary" validate:"gte=0"`
}

// EmployeeService creates one employee from a validated row.
type EmployeeService interface {
	CreateEmployee(ctx context.Context, companyID int, row *ImportRow) error
}

type ImportHandler struct {
	employees EmployeeService
	notifier  Notifier
	validate  *validator.Validate
	log       *zap.Logger
}

func NewImportHandler(employees EmployeeService, notifier Notifier, log *zap.Logger) *ImportHandler {
	return &ImportHandler{
		employees: employees,
		notifier:  notifier,
		validate:  validator.New(),
		log:       log,
	}
}

func (h *ImportHandler) Type() domain.JobType { return domain.EmployeeImport }

// Handle processes every row independently: a bad row is recorded and the
// batch continues. Only file-level problems (unreadable, unsupported
// extension, unparseable) are fatal to the job.
func (h *ImportHandler) Handle(ctx context.Context, job *domain.JobDescriptor) error {
	var p domain.EmployeeImportPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return err
	}

	rows, err := h.parseFile(p.FilePath)
	if err != nil {
		return outcome.Fatal(err)
	}

	sum := outcome.ImportSummary{TotalProcessed: len(rows), Errors: []outcome.RowError{}}
	for i := range rows {
		rowNum := i + 1 // 1-based in the error list
		if err := h.validate.Struct(&rows[i]); err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, outcome.RowError{Row: rowNum, Message: validationMessage(err)})
			continue
		}
		if err := h.employees.CreateEmployee(ctx, p.CompanyID, &rows[i]); err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, outcome.RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		sum.Successful++
	}

	if err := h.notifier.Direct(ctx, p.CompanyID, p.ImportedBy, notify.Note{
		Title: "Employee import completed",
		Message: fmt.Sprintf("Processed %d rows: %d successful, %d failed.",
			sum.TotalProcessed, sum.Successful, sum.Failed),
		Severity: domain.SeveritySuccess,
		Payload: map[string]any{
			"totalProcessed": sum.TotalProcessed,
			"successful":     sum.Successful,
			"failed":         sum.Failed,
			"errors":         sum.Errors,
		},
		Email: "import_completed",
	}); err != nil {
		return err
	}

	h.removeFile(p.FilePath)
	return nil
}

// OnPermanentFailure still owns the uploaded file: it is deleted on every
// terminal path.
func (h *ImportHandler) OnPermanentFailure(ctx context.Context, job *domain.JobDescriptor, lastErr error) {
	var p domain.EmployeeImportPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return
	}
	h.removeFile(p.FilePath)
	err := h.notifier.Direct(ctx, p.CompanyID, p.ImportedBy, notify.Note{
		Title:    "Employee import failed",
		Message:  lastErr.Error(),
		Severity: domain.SeverityError,
		Payload:  map[string]any{"filePath": p.FilePath, "error": lastErr.Error()},
	})
	if err != nil {
		h.log.Error("import failure notification", zap.Error(err))
	}
}

func (h *ImportHandler) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		// Cleanup errors are logged only, never escalated.
		h.log.Warn("remove import file", zap.String("path", path), zap.Error(err))
	}
}

func (h *ImportHandler) parseFile(path string) ([]ImportRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read import file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(data)
	case ".json":
		var rows []ImportRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, errors.Wrap(err, "parse json import")
		}
		return rows, nil
	default:
		return nil, errors.Errorf("unsupported import file extension %q", filepath.Ext(path))
	}
}

func parseCSV(data []byte) ([]ImportRow, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv import")
	}
	if len(records) == 0 {
		return nil, nil
	}
	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	rows := make([]ImportRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		salary, _ := strconv.ParseFloat(field(rec, "salary"), 64)
		rows = append(rows, ImportRow{
			FirstName: field(rec, "first_name"),
			LastName:  field(rec, "last_name"),
			Email:     field(rec, "email"),
			Position:  field(rec, "position"),
			HireDate:  field(rec, "hire_date"),
			Salary:    salary,
		})
	}
	return rows, nil
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
