// Package server запускает HTTP API и фоновые задачи сервера.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"motium/internal/app/server/api"
	"motium/internal/app/server/config"
	"motium/internal/infrastructure/migration"
	"motium/internal/infrastructure/storage/postgres"

	"golang.org/x/exp/slog"
)

const (
	shutdownTimeout  = 10 * time.Second
	cleanupInterval  = time.Hour
	sessionRetention = 7 * 24 * time.Hour
)

// SessionCleaner удаляет истекшие и отозванные сессии
type SessionCleaner interface {
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}

type App struct {
	cfg *config.Config
	log *slog.Logger
}

func New(cfg *config.Config, log *slog.Logger) *App {
	return &App{cfg: cfg, log: log}
}

// Run применяет миграции, поднимает API и блокируется до отмены ctx
func (a *App) Run(ctx context.Context) error {
	if err := migration.NewMigration(a.cfg.DB.Migrations, a.cfg.DB.DatabaseURI, migration.DefaultEngine, a.log).Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	storage, err := postgres.New(ctx, a.cfg.DB.DatabaseURI)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer storage.Close()

	go RunSessionCleanup(ctx, postgres.NewSessionRepository(storage, a.log), cleanupInterval, a.log)

	srv := &http.Server{
		Addr:              a.cfg.Server.RunAddress,
		Handler:           api.New(storage, a.cfg, a.log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server started", "address", srv.Addr, "env", a.cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// RunSessionCleanup периодически чистит таблицу сессий до отмены ctx
func RunSessionCleanup(ctx context.Context, cleaner SessionCleaner, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cleaner.DeleteExpired(ctx, sessionRetention)
			if err != nil {
				log.Warn("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("expired sessions removed", "count", n)
			}
		}
	}
}
