// Package api собирает HTTP API сервера синхронизации.
//
//	GET  /api/v1/health                    # Проверка БД (публичный)
//	POST /api/v1/auth/{register,login}     # Регистрация и вход (публичный)
//	POST /api/v1/auth/{refresh,logout}     # Ротация и отзыв refresh-токена (публичный)
//	/api/v1/records/...                    # CRUD записей и история версий (auth)
//	/api/v1/sync/...                       # Дельта-синхронизация, конфликты, устройства (auth)
//	/api/v1/company/...                    # Профессиональный аккаунт, связи и лицензии (auth)
package api

import (
	"motium/internal/app/server/api/http/company"
	"motium/internal/app/server/api/http/health"
	"motium/internal/app/server/api/http/middleware"
	"motium/internal/app/server/api/http/middleware/auth"
	"motium/internal/app/server/api/http/middleware/logger"
	recordAPI "motium/internal/app/server/api/http/record"
	syncAPI "motium/internal/app/server/api/http/sync"
	userAPI "motium/internal/app/server/api/http/user"
	"motium/internal/app/server/config"
	companyDomain "motium/internal/domain/company"
	"motium/internal/domain/record"
	"motium/internal/domain/session"
	"motium/internal/domain/sync"
	"motium/internal/domain/user"
	"motium/internal/infrastructure/storage/postgres"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health  *health.Handler
	User    *userAPI.Handler
	Record  *recordAPI.Handler
	Sync    *syncAPI.Handler
	Company *company.Handler
}

// New создает *chi.Mux со всеми операциями
func New(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	humaConfig := huma.DefaultConfig("Motium API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}

	API := humachi.New(mux, humaConfig)

	h := handlers(storage, cfg, log)
	h.Health.SetupRoutes(API)
	h.User.SetupRoutes(API)
	h.Record.SetupRoutes(API)
	h.Sync.SetupRoutes(API)
	h.Company.SetupRoutes(API)

	return mux
}

func handlers(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *Handlers {
	sessionRepo := postgres.NewSessionRepository(storage, log)
	sessionService := session.NewService(sessionRepo, session.Config{
		Secret:     cfg.Auth.Secret,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	}, log)
	authMW := auth.New(sessionService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := health.NewHandler(storage, log, middlewares.GetAllAndClear())

	userRepo := postgres.NewUserRepository(storage, log)
	userService := user.NewService(userRepo, user.NewCredentialsValidator(), log)
	middlewares.Add(loggerMW.Middleware())
	userHandler := userAPI.NewHandler(userService, sessionService, log, middlewares.GetAllAndClear())

	recordRepo := postgres.NewRecordRepository(storage, log)
	recordFactory := record.NewFactory()
	recordService := record.NewService(recordRepo, recordFactory, log)
	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	recordHandler := recordAPI.NewHandler(recordService, log, middlewares.GetAllAndClear())

	syncRepo := postgres.NewSyncRepository(storage, log)
	syncService := sync.NewService(syncRepo, recordFactory, log, &sync.ServiceConfig{
		BatchSize:      cfg.Sync.BatchSize,
		MaxSyncRecords: cfg.Sync.MaxRecords,
	})
	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	syncHandler := syncAPI.NewHandler(syncService, log, middlewares.GetAllAndClear())

	companyRepo := postgres.NewCompanyRepository(storage, log)
	companyService := companyDomain.NewService(companyRepo, userService, recordService, log)
	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	companyHandler := company.NewHandler(companyService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:  healthHandler,
		User:    userHandler,
		Record:  recordHandler,
		Sync:    syncHandler,
		Company: companyHandler,
	}
}
