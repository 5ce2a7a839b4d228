package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/config"
	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/enqueue"
	"github.com/you/hrq/internal/queue"
	"github.com/you/hrq/internal/storage"
)

type enqueueRequest struct {
	Type    domain.JobType  `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Options enqueue.Options `json:"options"`
}

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
	enq := enqueue.New(store, queue.New(rdb))

	rtr := chi.NewRouter()
	// middleware: auth, logging, recover (omitted; handled by the gateway)

	rtr.Post("/v1/jobs", func(w http.ResponseWriter, req *http.Request) {
		var in enqueueRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		id, err := enq.Enqueue(req.Context(), in.Type, in.Payload, in.Options)
		if err != nil {
			log.Error("enqueue", zap.String("type", string(in.Type)), zap.Error(err))
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": id})
	})

	rtr.Get("/v1/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		job, err := store.GetJob(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":        job.ID,
			"type":      job.Type,
			"companyId": job.CompanyID,
			"status":    job.Status,
			"attempt":   job.Attempt,
			"lastError": job.LastError,
		})
	})

	rtr.Post("/v1/notifications/{id}/read", func(w http.ResponseWriter, req *http.Request) {
		if err := store.MarkNotificationRead(req.Context(), chi.URLParam(req, "id")); err != nil {
			http.Error(w, "notification not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	log.Info("api listening", zap.String("addr", cfg.APIAddr))
	if err := http.ListenAndServe(cfg.APIAddr, rtr); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
