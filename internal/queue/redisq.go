package queue

import (
	"context"
	"fmt"
	"time"

	r "github.com/redis/go-redis/v9"
)

// RedisQ holds one ready list and one delay zset per company:
// queue:<companyId> and delay:<companyId>. Delivery is at-least-once; a
// worker crash between pop and terminal status write means redelivery via
// the scheduler's stuck-job sweep.
type RedisQ struct{ rdb *r.Client }

func New(rdb *r.Client) *RedisQ { return &RedisQ{rdb} }

func readyKey(company int) string { return fmt.Sprintf("queue:%d", company) }
func delayKey(company int) string { return fmt.Sprintf("delay:%d", company) }

func (q *RedisQ) Enqueue(ctx context.Context, company int, jobID string, runAt time.Time) error {
	if time.Until(runAt) > 0 {
		return q.rdb.ZAdd(ctx, delayKey(company), r.Z{Score: float64(runAt.Unix()), Member: jobID}).Err()
	}
	return q.rdb.LPush(ctx, readyKey(company), jobID).Err()
}

// Dequeue blocks on the ready lists of every given company and returns the
// next job id. Empty string means the block timed out with nothing ready.
func (q *RedisQ) Dequeue(ctx context.Context, companies []int, block time.Duration) (string, error) {
	keys := make([]string, 0, len(companies))
	for _, c := range companies {
		keys = append(keys, readyKey(c))
	}
	res, err := q.rdb.BRPop(ctx, block, keys...).Result()
	if err == r.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(res) == 2 {
		return res[1], nil
	}
	return "", nil
}

// MoveDue promotes delayed jobs whose runAt has passed into the ready list.
// Called by the scheduler under its leader lock.
func (q *RedisQ) MoveDue(ctx context.Context, company int, now int64, batch int64) error {
	ids, err := q.rdb.ZRangeByScore(ctx, delayKey(company), &r.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", now), Offset: 0, Count: batch,
	}).Result()
	if err != nil || len(ids) == 0 {
		return err
	}
	pipe := q.rdb.TxPipeline()
	for _, id := range ids {
		pipe.LPush(ctx, readyKey(company), id)
		pipe.ZRem(ctx, delayKey(company), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Contains reports whether the job id sits in the company's ready list or
// delay zset.
func (q *RedisQ) Contains(ctx context.Context, company int, jobID string) (bool, error) {
	err := q.rdb.ZScore(ctx, delayKey(company), jobID).Err()
	if err == nil {
		return true, nil
	}
	if err != r.Nil {
		return false, err
	}
	_, err = q.rdb.LPos(ctx, readyKey(company), jobID, r.LPosArgs{}).Result()
	if err == r.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Push requeues an already-persisted job straight onto the ready list.
func (q *RedisQ) Push(ctx context.Context, company int, jobID string) error {
	return q.rdb.LPush(ctx, readyKey(company), jobID).Err()
}
