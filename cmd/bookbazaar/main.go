package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bookbazaar/internal/app"
	"bookbazaar/internal/config"
	"bookbazaar/internal/server"
	"bookbazaar/internal/util"
	"bookbazaar/pkg/auth"
	"bookbazaar/pkg/queue"
	"bookbazaar/pkg/storage"
	"bookbazaar/pkg/store"
)

func main() {
	// Values already in the environment win over .env entries.
	_ = godotenv.Load(".env")

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)
	for _, warning := range cfg.Warnings {
		logger.Warn("config warning", "detail", warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dataStore store.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL,
			store.WithMaxOpenConns(20),
			store.WithConnMaxIdleTime(30*time.Second),
			store.WithConnectTimeout(10*time.Second),
		)
		if err != nil {
			util.Fatal("failed to init store", "err", err)
		}
		dataStore = gormStore
	} else {
		logger.Warn("databaseURL not set; using in-memory store")
		dataStore = store.NewMemoryStore()
	}

	sessions, err := auth.NewSessionIssuer([]byte(cfg.JWTSecret), 0)
	if err != nil {
		util.Fatal("failed to init session issuer", "err", err)
	}

	appCfg := app.Config{
		Store:      dataStore,
		Sessions:   sessions,
		SeedOnRead: cfg.SeedsOnRead(),
	}
	if cfg.MinioConfigured() {
		objects, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			util.Fatal("failed to init cover storage", "err", err)
		}
		appCfg.Objects = objects
	}

	var seedQueue *queue.RedisSeedQueue
	if cfg.SeedQueueEnabled {
		seedQueue, err = queue.NewRedisSeedQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.SeedQueueStream,
		})
		if err != nil {
			util.Fatal("failed to init seed queue", "err", err)
		}
		appCfg.Queue = seedQueue
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	if seedQueue != nil {
		seedQueue.Start(workerCtx, cfg.SeedWorkers, appCore.RunSeedJob)
		logger.Info("seed workers started", "workers", cfg.SeedWorkers, "stream", cfg.SeedQueueStream)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		DevMode:                    !cfg.IsProduction(),
		CookieSecure:               cfg.IsProduction(),
		CORSOrigins:                cfg.CORSOrigins,
		TrustedProxyCIDRs:          cfg.TrustedProxyCIDRs,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		MaxCoverBytes:              cfg.MaxCoverBytes,
	})
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("bookbazaar server listening", "addr", addr, "mode", cfg.Mode)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "err", err)
		}
		cancel()
	}

	cancelWorkers()
	if seedQueue != nil {
		if err := seedQueue.Close(); err != nil {
			logger.Warn("close seed queue", "err", err)
		}
	}
	if err := httpServer.Close(); err != nil {
		logger.Warn("close rate limiters", "err", err)
	}
	if err := dataStore.Close(); err != nil {
		logger.Warn("close store", "err", err)
	}
}
