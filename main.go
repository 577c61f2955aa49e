package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/mbolis/fieldsurvey/app"
	"github.com/mbolis/fieldsurvey/client"
	"github.com/mbolis/fieldsurvey/config"
	"github.com/mbolis/fieldsurvey/database"
	"github.com/mbolis/fieldsurvey/httpx"
	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/queue"
	"github.com/mbolis/fieldsurvey/routes"
	"github.com/mbolis/fieldsurvey/runs"
	"github.com/mbolis/fieldsurvey/submit"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	store, err := openQueueStore(cfg, db)
	if err != nil {
		log.Fatal("main.queue.open:", err)
	}

	sessions := database.NewSessions(db)
	backend := client.New(cfg.APIURL, &http.Client{Timeout: cfg.APITimeout})
	q := queue.New(store)

	app := app.App{
		BearerServer: httpx.NewBearerServer(sessions, backend, cfg),
		Config:       cfg,
		Sessions:     sessions,
		Cache:        database.NewKV(db),
		Backend:      backend,
		Queue:        q,
		Runs:         runs.NewRegistry(),
		Submitter:    &submit.Submitter{Queue: q},
		Replayer:     &submit.Replayer{Queue: q, Policy: cfg.ReplayPolicy},
	}

	if cfg.FlushSchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.FlushSchedule, func() {
			app.ScheduledFlush(context.Background())
		})
		if err != nil {
			log.Fatal("main.cron:", err)
		}
		c.Start()
		defer c.Stop()
		log.Infof("Flushing the offline queue on schedule %q", cfg.FlushSchedule)
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func openQueueStore(cfg config.Config, db *sql.DB) (queue.Store, error) {
	if cfg.QueueBackend != config.QueueRedis {
		return queue.NewSQLiteStore(db), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	log.Info("Offline queue stored in redis at " + cfg.RedisAddr)
	return queue.NewRedisStore(rdb), nil
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
