package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	r "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/config"
	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/enqueue"
	"github.com/you/hrq/internal/queue"
	"github.com/you/hrq/internal/storage"
)

func main() {
	cfg := config.Load()
	log, _ := zap.NewProduction()
	defer log.Sync()

	ctx := context.Background()
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

	// Daily enqueues. The reminder/sync jobs are per company; the cron layer
	// fans them out over the tenant list at fire time.
	c := cron.New()
	mustAdd(c, "0 9 * * *", func() { enqueuePerCompany(ctx, store, enq, domain.AttendanceReminder, log) })
	mustAdd(c, "0 2 * * *", func() { enqueuePerCompany(ctx, store, enq, domain.EmployeeSync, log) })
	c.Start()
	defer c.Stop()

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for range tick.C {
		// leader election: only one scheduler instance moves jobs
		var ok bool
		if err := db.QueryRow(ctx, "select pg_try_advisory_lock(42)").Scan(&ok); err != nil {
			log.Error("leader lock", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		companies, err := store.CompanyIDs(ctx)
		if err != nil {
			log.Error("list companies", zap.Error(err))
			continue
		}
		now := time.Now().UTC().Unix()

		// move due delayed jobs to the ready lists
		for _, company := range companies {
			if err := q.MoveDue(ctx, company, now, 200); err != nil {
				log.Error("move due", zap.Int("company_id", company), zap.Error(err))
			}
		}

		// requeue jobs stuck running past their timeout (crashed workers);
		// at-least-once delivery, DB authoritative
		if err := requeueStuck(ctx, db, q, 500); err != nil {
			log.Error("requeue stuck", zap.Error(err))
		}

		// re-push deliverable jobs the queue has lost
		if err := reconcileMissing(ctx, store, q, time.Minute, 500); err != nil {
			log.Error("reconcile missing", zap.Error(err))
		}
	}
}

func mustAdd(c *cron.Cron, spec string, fn func()) {
	if _, err := c.AddFunc(spec, fn); err != nil {
		panic(err)
	}
}

func enqueuePerCompany(ctx context.Context, store *storage.Store, enq *enqueue.Service, typ domain.JobType, log *zap.Logger) {
	companies, err := store.CompanyIDs(ctx)
	if err != nil {
		log.Error("list companies", zap.Error(err))
		return
	}
	for _, company := range companies {
		payload, _ := json.Marshal(map[string]int{"companyId": company})
		if _, err := enq.Enqueue(ctx, typ, payload, enqueue.Options{}); err != nil {
			log.Error("enqueue", zap.String("type", string(typ)),
				zap.Int("company_id", company), zap.Error(err))
		}
	}
}

type reconcileStore interface {
	StrandedJobs(ctx context.Context, cutoff time.Time, limit int) ([]storage.JobRef, error)
	TouchJob(ctx context.Context, id string) error
}

type reconcileQueue interface {
	Contains(ctx context.Context, company int, jobID string) (bool, error)
	Push(ctx context.Context, company int, jobID string) error
}

// reconcileMissing re-pushes jobs the database says are deliverable but the
// queue has lost: a pending row whose id a worker popped and dropped before
// MarkRunning, or a failed_retryable row whose retry push failed after the
// status write. Jobs waiting out a backoff delay are still in the delay zset
// and are skipped; the grace window keeps the sweep off rows merely in
// flight between insert and push.
func reconcileMissing(ctx context.Context, store reconcileStore, q reconcileQueue, grace time.Duration, batch int) error {
	refs, err := store.StrandedJobs(ctx, time.Now().UTC().Add(-grace), batch)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		present, err := q.Contains(ctx, ref.CompanyID, ref.ID)
		if err != nil {
			return err
		}
		if present {
			continue
		}
		if err := q.Push(ctx, ref.CompanyID, ref.ID); err != nil {
			return err
		}
		if err := store.TouchJob(ctx, ref.ID); err != nil {
			return err
		}
	}
	return nil
}

// requeueStuck flips jobs still marked running past twice their timeout back
// to pending and pushes them again. The doubled budget keeps it from racing a
// live attempt that is merely close to its deadline.
func requeueStuck(ctx context.Context, db *pgxpool.Pool, q *queue.RedisQ, batch int) error {
	rows, err := db.Query(ctx, `select id, company_id from jobs
where status = 'running'
  and updated_at + (timeout_sec * 2) * interval '1 second' < now()
limit $1`, batch)
	if err != nil {
		return err
	}
	type stuck struct {
		id      string
		company int
	}
	var found []stuck
	for rows.Next() {
		var s stuck
		if err := rows.Scan(&s.id, &s.company); err != nil {
			rows.Close()
			return err
		}
		found = append(found, s)
	}
	rows.Close()

	for _, s := range found {
		if _, err := db.Exec(ctx,
			`update jobs set status='pending', updated_at=now() where id=$1 and status='running'`, s.id); err != nil {
			return err
		}
		if err := q.Push(ctx, s.company, s.id); err != nil {
			return err
		}
	}
	return nil
}
