package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crewboard/crewboard/internal/app"
	"github.com/crewboard/crewboard/internal/audit"
	"github.com/crewboard/crewboard/internal/authapi"
	"github.com/crewboard/crewboard/internal/notify"
	notifyhttp "github.com/crewboard/crewboard/internal/notify/http"
	"github.com/crewboard/crewboard/internal/platform/cache"
	"github.com/crewboard/crewboard/internal/platform/db"
	"github.com/crewboard/crewboard/internal/session"
	sessionhttp "github.com/crewboard/crewboard/internal/session/http"
	"github.com/crewboard/crewboard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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
	authClient := authapi.NewClient(cfg.APIBaseURL, apiClient)
	notifyClient := notify.NewClient(cfg.APIBaseURL, apiClient)

	store := session.NewStore(redisClient, cfg.SessionTokenKey, cfg.SessionTTL, logger)
	manager := session.NewManager(store, authClient, authClient, logger)

	codec, err := session.NewCookieCodec(cfg.SessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	if err != nil {
		logger.Error("init cookie codec", slog.Any("error", err))
		os.Exit(1)
	}

	engine := notify.NewEngine(notifyClient, redisClient, cfg.NotifySnapshotTTL, logger)
	recorder := audit.NewRecorder(dbpool, logger)

	syncQueue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := syncQueue.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	authHandler := sessionhttp.NewHandler(logger, manager, engine, recorder, codec, authClient)
	notifyHandler := notifyhttp.NewHandler(logger, engine, recorder, syncQueue)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Manager:       manager,
		Codec:         codec,
		AuthHandler:   authHandler,
		NotifyHandler: notifyHandler,
		JobHandler:    jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
