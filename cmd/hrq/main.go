// hrq is the operations console: it enqueues the batch jobs that are
// otherwise triggered from the application, and runs migrations.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose"
	r "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/you/hrq/internal/config"
	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/enqueue"
	"github.com/you/hrq/internal/queue"
	"github.com/you/hrq/internal/storage"
)

type app struct {
	cfg   config.Config
	db    *pgxpool.Pool
	store *storage.Store
	enq   *enqueue.Service
}

func (a *app) connect(ctx context.Context) error {
	a.cfg = config.Load()
	db, err := pgxpool.New(ctx, a.cfg.PostgresDSN)
	if err != nil {
		return err
	}
	a.db = db
	rdb := r.NewClient(&r.Options{Addr: a.cfg.RedisAddr, Password: a.cfg.RedisPassword})
	a.store = storage.New(db)
	a.enq = enqueue.New(a.store, queue.New(rdb))
	return nil
}

func (a *app) enqueueJSON(ctx context.Context, typ domain.JobType, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	id, err := a.enq.Enqueue(ctx, typ, b, enqueue.Options{})
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func (a *app) perCompany(ctx context.Context, companyFlag int, typ domain.JobType) error {
	companies := []int{companyFlag}
	if companyFlag == 0 {
		var err error
		companies, err = a.store.CompanyIDs(ctx)
		if err != nil {
			return err
		}
	}
	for _, company := range companies {
		if err := a.enqueueJSON(ctx, typ, map[string]int{"companyId": company}); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	a := &app{}
	ctx := context.Background()

	root := &cobra.Command{
		Use:          "hrq",
		Short:        "HR platform job console",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "migrate" {
				a.cfg = config.Load()
				return nil
			}
			return a.connect(ctx)
		},
	}

	var periodID string
	var companyID int
	payroll := &cobra.Command{
		Use:   "payroll:process",
		Short: "Enqueue payroll processing for a period",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.enqueueJSON(ctx, domain.PayrollProcessing,
				domain.PayrollProcessingPayload{PayrollPeriodID: periodID})
		},
	}
	payroll.Flags().StringVar(&periodID, "period", "", "payroll period id")
	_ = payroll.MarkFlagRequired("period")

	backupCmd := &cobra.Command{
		Use:   "backup:run",
		Short: "Enqueue a full backup for a company",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.enqueueJSON(ctx, domain.Backup,
				domain.BackupPayload{CompanyID: companyID, BackupType: "full"})
		},
	}
	backupCmd.Flags().IntVar(&companyID, "company", 0, "company id")
	_ = backupCmd.MarkFlagRequired("company")

	var syncCompany int
	syncCmd := &cobra.Command{
		Use:   "employee:sync",
		Short: "Enqueue employee sync (all companies unless --company)",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.perCompany(ctx, syncCompany, domain.EmployeeSync)
		},
	}
	syncCmd.Flags().IntVar(&syncCompany, "company", 0, "company id (0 = all)")

	var attCompany int
	var start, end string
	attendance := &cobra.Command{
		Use:   "attendance:calculate",
		Short: "Enqueue attendance calculation for a date range",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.enqueueJSON(ctx, domain.AttendanceCalculation,
				domain.AttendanceCalculationPayload{CompanyID: attCompany, StartDate: start, EndDate: end})
		},
	}
	attendance.Flags().IntVar(&attCompany, "company", 0, "company id")
	attendance.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	attendance.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	_ = attendance.MarkFlagRequired("company")
	_ = attendance.MarkFlagRequired("start")
	_ = attendance.MarkFlagRequired("end")

	remind := &cobra.Command{
		Use:   "attendance:remind",
		Short: "Enqueue attendance reminders for every company",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.perCompany(ctx, 0, domain.AttendanceReminder)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := sql.Open("pgx", a.cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer db.Close()
			return goose.Up(db, "migrations")
		},
	}

	root.AddCommand(payroll, backupCmd, syncCmd, attendance, remind, migrate)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
