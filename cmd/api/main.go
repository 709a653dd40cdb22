package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"flk-api/internal"
	"flk-api/internal/config"
	"flk-api/internal/database"
	"flk-api/internal/nav"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate()
	if err != nil {
		logrus.Fatalf("Configuration error: %v", err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	tables := database.NewTables(cfg.ReportTable, cfg.ItemTable)
	if err := database.Migrate(ctx, db, cfg.DBDriver, tables); err != nil {
		logger.WithError(err).Fatal("schema migration failed")
	}

	navOpts := nav.Options{
		BaseURL:  cfg.NAV.BaseURL,
		Username: cfg.NAV.Username,
		Password: cfg.NAV.Password,
		Domain:   cfg.NAV.Domain,
		Timeout:  cfg.NAV.Timeout,
		CacheTTL: cfg.NAV.CacheTTL,
		Logger:   logger,
	}
	var rdb *redis.Client
	if cfg.RedisAddress != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, NAV cache disabled")
			rdb.Close()
			rdb = nil
		} else {
			navOpts.Cache = nav.NewRedisCache(rdb)
		}
	}

	srv := internal.NewServer(db, cfg, nav.NewClient(navOpts), logger)
	if srv.JWTManager != nil {
		if err := srv.JWTManager.ValidateConfig(); err != nil {
			logger.WithError(err).Fatal("invalid JWT configuration")
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":    cfg.Port,
			"driver":  cfg.DBDriver,
			"auth":    cfg.AuthEnabled,
			"metrics": cfg.EnableMetrics,
			"nav":     cfg.NAV.BaseURL != "",
		}).Info("Starting FLK API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	if rdb != nil {
		rdb.Close()
	}
	if err := srv.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to close database")
	}
}
