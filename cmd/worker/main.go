package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/hrq/internal/artifact"
	"github.com/you/hrq/internal/config"
	"github.com/you/hrq/internal/enqueue"
	"github.com/you/hrq/internal/executor"
	"github.com/you/hrq/internal/jobs"
	"github.com/you/hrq/internal/mail"
	"github.com/you/hrq/internal/notify"
	"github.com/you/hrq/internal/queue"
	"github.com/you/hrq/internal/services"
	"github.com/you/hrq/internal/storage"
)

func main() {
	cfg := config.Load()
	log, _ := zap.NewProduction()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()
	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()

	store := storage.New(db)
	q := queue.New(rdb)
	enq := enqueue.New(store, q)
	notifier := notify.New(store, enq, log)
	artifacts := artifact.NewFilesystem(cfg.ArtifactDir, cfg.ArtifactBaseURL)
	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Host: cfg.SMTPHost, Port: cfg.SMTPPort,
		Username: cfg.SMTPUsername, Password: cfg.SMTPPassword, From: cfg.SMTPFrom,
	})

	registry := executor.NewRegistry(
		jobs.NewPayrollHandler(store, services.NewPayroll(), notifier, log),
		jobs.NewAttendanceHandler(store, notifier, log),
		jobs.NewImportHandler(services.NewEmployees(store), notifier, log),
		jobs.NewReportHandler(services.NewReports(store), artifacts, notifier, log),
		jobs.NewBackupHandler(store, artifacts, notifier, log),
		jobs.NewReminderHandler(store, enq, log),
		jobs.NewSyncHandler(store, log),
		jobs.NewEmailHandler(sender, store, log),
	)
	exec := executor.New(registry, store, q, log)

	tenants := &tenantList{}
	tenants.refresh(ctx, store, log)

	block := time.Duration(cfg.DequeueBlockSec) * time.Second
	g, gctx := errgroup.WithContext(ctx)

	// companies is a small table; one refresher keeps the snapshot current so
	// new tenants get picked up without a restart.
	g.Go(func() error {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-t.C:
				tenants.refresh(gctx, store, log)
			}
		}
	})

	for i := 0; i < cfg.WorkerConcurrency; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				companies := tenants.get()
				if len(companies) == 0 {
					time.Sleep(block)
					continue
				}
				id, err := q.Dequeue(gctx, companies, block)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					log.Error("dequeue", zap.Error(err))
					time.Sleep(time.Second)
					continue
				}
				if id == "" {
					continue
				}
				job, err := store.GetJob(gctx, id)
				if err != nil {
					log.Error("load job", zap.String("job_id", id), zap.Error(err))
					continue
				}
				if _, err := exec.Execute(gctx, job); err != nil && gctx.Err() == nil {
					// Already logged with context by the executor.
					_ = err
				}
			}
		})
	}

	log.Info("worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("worker pool", zap.Error(err))
	}
}

type companyLister interface {
	CompanyIDs(ctx context.Context) ([]int, error)
}

// tenantList is the shared company snapshot: the refresher goroutine writes,
// every consumer reads one snapshot per dequeue.
type tenantList struct {
	mu  sync.RWMutex
	ids []int
}

func (l *tenantList) get() []int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ids
}

// refresh replaces the snapshot; on error the previous one stays in use.
func (l *tenantList) refresh(ctx context.Context, store companyLister, log *zap.Logger) {
	ids, err := store.CompanyIDs(ctx)
	if err != nil {
		log.Error("list companies", zap.Error(err))
		return
	}
	l.mu.Lock()
	l.ids = ids
	l.mu.Unlock()
}
