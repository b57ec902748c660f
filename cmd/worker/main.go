package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/crewboard/crewboard/internal/app"
	"github.com/crewboard/crewboard/internal/notify"
	"github.com/crewboard/crewboard/internal/platform/cache"
	"github.com/crewboard/crewboard/internal/session"
	"github.com/crewboard/crewboard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	apiClient := &http.Client{Timeout: cfg.APITimeout}
	notifyClient := notify.NewClient(cfg.APIBaseURL, apiClient)

	store := session.NewStore(redisClient, cfg.SessionTokenKey, cfg.SessionTTL, logger)
	engine := notify.NewEngine(notifyClient, redisClient, cfg.NotifySnapshotTTL, logger)

	syncJob := jobs.NewNotifySyncJob(store, engine, logger)
	pruneJob := jobs.NewSessionPruneJob(store, logger)

	syncTask, err := jobs.NewNotifySyncTask(jobs.NotifySyncPayload{})
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}
	pruneTask, err := jobs.NewSessionPruneTask()
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotifySync, Handler: syncJob.Handle},
			{Type: jobs.TaskSessionPrune, Handler: pruneJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "* * * * *", Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "0 3 * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
