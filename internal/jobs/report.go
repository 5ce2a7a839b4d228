package jobs

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/artifact"
	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/notify"
	"github.com/you/hrq/internal/outcome"
	"github.com/you/hrq/internal/report"
)

// ReportService exposes one generator per report type.
type ReportService interface {
	EmployeeReport(ctx context.Context, companyID int, filters map[string]any) (*report.Data, error)
	AttendanceReport(ctx context.Context, companyID int, filters map[string]any) (*report.Data, error)
	PayrollReport(ctx context.Context, companyID int, filters map[string]any) (*report.Data, error)
	LeaveReport(ctx context.Context, companyID int, filters map[string]any) (*report.Data, error)
}

type ReportHandler struct {
	reports   ReportService
	artifacts artifact.Store
	notifier  Notifier
	log       *zap.Logger
	now       func() time.Time
}

func NewReportHandler(reports ReportService, artifacts artifact.Store, notifier Notifier, log *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, artifacts: artifacts, notifier: notifier, log: log, now: time.Now}
}

func (h *ReportHandler) Type() domain.JobType { return domain.ReportGeneration }

func (h *ReportHandler) Handle(ctx context.Context, job *domain.JobDescriptor) error {
	var p domain.ReportGenerationPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return err
	}

	var (
		data *report.Data
		err  error
	)
	switch p.ReportType {
	case "employee":
		data, err = h.reports.EmployeeReport(ctx, p.CompanyID, p.Filters)
	case "attendance":
		data, err = h.reports.AttendanceReport(ctx, p.CompanyID, p.Filters)
	case "payroll":
		data, err = h.reports.PayrollReport(ctx, p.CompanyID, p.Filters)
	case "leave":
		data, err = h.reports.LeaveReport(ctx, p.CompanyID, p.Filters)
	default:
		// Retrying an unknown type cannot help.
		return outcome.Fatal(errors.Errorf("unknown report type %q", p.ReportType))
	}
	if err != nil {
		return errors.Wrapf(err, "generate %s report", p.ReportType)
	}

	encoded, ext, err := report.Encode(p.Format, data)
	if err != nil {
		return errors.Wrap(err, "encode report")
	}

	path := fmt.Sprintf("reports/%s_company_%d_%s.%s",
		p.ReportType, p.CompanyID, artifact.Timestamp(h.now()), ext)
	if err := h.artifacts.Put(path, bytes.NewReader(encoded)); err != nil {
		return err
	}

	url := h.artifacts.URL(path)
	return h.notifier.Direct(ctx, p.CompanyID, p.RequestedBy, notify.Note{
		Title:    "Report ready",
		Message:  fmt.Sprintf("Your %s report is ready for download.", p.ReportType),
		Severity: domain.SeveritySuccess,
		Payload: map[string]any{
			"reportType": p.ReportType,
			"format":     p.Format,
			"path":       path,
			"url":        url,
		},
		Email: "report_ready",
	})
}

func (h *ReportHandler) OnPermanentFailure(ctx context.Context, job *domain.JobDescriptor, lastErr error) {
	var p domain.ReportGenerationPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return
	}
	err := h.notifier.Direct(ctx, p.CompanyID, p.RequestedBy, notify.Note{
		Title:    "Report generation failed",
		Message:  lastErr.Error(),
		Severity: domain.SeverityError,
		Payload:  map[string]any{"reportType": p.ReportType, "error": lastErr.Error()},
	})
	if err != nil {
		h.log.Error("report failure notification", zap.Error(err))
	}
}
