package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/artifact"
	"github.com/you/hrq/internal/backup"
	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/notify"
)

// BackupSource reads table schemas and rows for the dump.
type BackupSource interface {
	TableColumns(ctx context.Context, table string) ([]backup.Column, error)
	TableRows(ctx context.Context, table string, companyID *int) ([][]any, error)
}

type BackupHandler struct {
	source    BackupSource
	artifacts artifact.Store
	notifier  Notifier
	log       *zap.Logger
	now       func() time.Time
}

func NewBackupHandler(source BackupSource, artifacts artifact.Store, notifier Notifier, log *zap.Logger) *BackupHandler {
	return &BackupHandler{source: source, artifacts: artifacts, notifier: notifier, log: log, now: time.Now}
}

func (h *BackupHandler) Type() domain.JobType { return domain.Backup }

func (h *BackupHandler) Handle(ctx context.Context, job *domain.JobDescriptor) error {
	var p domain.BackupPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return err
	}
	tables := p.Tables
	if len(tables) == 0 {
		tables = backup.DefaultTables
	}
	label := p.BackupType
	if label == "" {
		label = "full"
	}

	var b strings.Builder
	backup.WriteHeader(&b, p.CompanyID, label, h.now())
	for _, table := range tables {
		cols, err := h.source.TableColumns(ctx, table)
		if err != nil {
			return errors.Wrapf(err, "columns of %s", table)
		}
		if len(cols) == 0 {
			return errors.Errorf("unknown table %q", table)
		}
		// Tables without a company_id column hold cross-tenant reference
		// data and are exported unfiltered.
		var filter *int
		if backup.HasCompanyID(cols) {
			filter = &p.CompanyID
		}
		rows, err := h.source.TableRows(ctx, table, filter)
		if err != nil {
			return errors.Wrapf(err, "rows of %s", table)
		}
		backup.WriteTable(&b, table, cols, rows)
	}

	path := fmt.Sprintf("backups/backup_company_%d_%s_%s.sql",
		p.CompanyID, label, artifact.Timestamp(h.now()))
	if err := h.artifacts.Put(path, strings.NewReader(b.String())); err != nil {
		return err
	}
	size, err := h.artifacts.Size(path)
	if err != nil {
		h.log.Warn("artifact size", zap.String("path", path), zap.Error(err))
		size = int64(b.Len())
	}

	if p.RequestedBy == nil {
		return nil
	}
	return h.notifier.Direct(ctx, p.CompanyID, *p.RequestedBy, notify.Note{
		Title:    "Backup completed",
		Message:  fmt.Sprintf("Backup %s completed (%d bytes).", path, size),
		Severity: domain.SeveritySuccess,
		Payload: map[string]any{
			"path":      path,
			"sizeBytes": size,
			"url":       h.artifacts.URL(path),
			"tables":    tables,
		},
		Email: "backup_completed",
	})
}

// OnPermanentFailure tells the requester when there is one; scheduled
// backups with no requester page the ops audience instead.
func (h *BackupHandler) OnPermanentFailure(ctx context.Context, job *domain.JobDescriptor, lastErr error) {
	var p domain.BackupPayload
	if err := unmarshalPayload(job, &p); err != nil {
		return
	}
	note := notify.Note{
		Title:    "Backup failed",
		Message:  lastErr.Error(),
		Severity: domain.SeverityError,
		Payload:  map[string]any{"error": lastErr.Error()},
	}
	var err error
	if p.RequestedBy != nil {
		err = h.notifier.Direct(ctx, p.CompanyID, *p.RequestedBy, note)
	} else {
		err = h.notifier.Fanout(ctx, p.CompanyID, domain.OpsAudience, note)
	}
	if err != nil {
		h.log.Error("backup failure notification", zap.Error(err))
	}
}
