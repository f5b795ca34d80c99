package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/clock"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/scan-intake/internal/adapter/handler"
	"github.com/rl1809/scan-intake/internal/adapter/storage"
	"github.com/rl1809/scan-intake/internal/config"
	"github.com/rl1809/scan-intake/internal/core/domain"
	"github.com/rl1809/scan-intake/internal/core/service"
	"github.com/rl1809/scan-intake/internal/obs"
	"github.com/rl1809/scan-intake/internal/port"
)

func main() {
	cfg := config.Load()
	logger := obs.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Error("failed to open mysql", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to ping mysql", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to mysql")

	store := storage.NewMySQLAdapter(db)
	wallClock := clock.WallClock

	// Resolution cache: Redis when configured, per-process otherwise.
	var cache port.ResolutionCache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect redis", "error", err)
			os.Exit(1)
		}
		cache = storage.NewRedisCache(rdb, cfg.CacheTTL)
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	} else {
		cache = storage.NewMemoryCache(wallClock, cfg.CacheTTL)
		logger.Info("using in-process resolution cache")
	}

	resolver := service.NewResolver(store, cache, wallClock, cfg.RetryAttempts, cfg.RetryDelay)

	// Each technician gets their own batch collector along with the session.
	sessions := service.NewManager(func(tech domain.Technician) *service.Session {
		return service.NewSession(resolver, store, cache, service.NewListCollector(), wallClock, tech, service.SessionConfig{
			Debounce:       cfg.Debounce,
			FlushThreshold: cfg.FlushThreshold,
			RecoveryDelay:  cfg.RecoveryDelay,
			BatchDelay:     cfg.BatchDelay,
		})
	})

	// Initialize HTTP server
	scanHandler := handler.NewScanHandler(sessions, wallClock, cfg.HIDIdleFlush)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", scanHandler.HealthCheck)
	mux.HandleFunc("/api/scan", scanHandler.Scan)
	mux.HandleFunc("/api/keys", scanHandler.Keys)
	mux.HandleFunc("/api/camera", scanHandler.Camera)
	mux.HandleFunc("/api/action", scanHandler.Action)
	mux.HandleFunc("/api/commit", scanHandler.Commit)
	mux.HandleFunc("/api/cancel", scanHandler.Cancel)
	mux.HandleFunc("/api/batch", scanHandler.Batch)
	mux.HandleFunc("/api/session", scanHandler.Session)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	logger.Info("connections closed")
}
