// Package client - офлайн-клиент: локальная база, очередь операций, кеш и синхронизация.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"motium/internal/app/client/config"
	"motium/internal/domain/company"
	"motium/internal/domain/record"
	domainsync "motium/internal/domain/sync"
	"motium/internal/domain/tracking"

	"golang.org/x/exp/slog"
)

// App - точка входа для команд CLI. Все записи сначала пишутся локально.
type App struct {
	config  *config.Config
	log     *slog.Logger
	storage *SQLiteStorage
	api     *APIClient
	tokens  *TokenStore
	cache   *Cache
	sync    *SyncService
	factory *record.Factory
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	deviceID, err := LoadDeviceID(cfg.DeviceIDPath)
	if err != nil {
		return nil, err
	}

	storage, err := NewSQLiteStorage(cfg.DBPath, QueueConfig{
		MaxAttempts: cfg.MaxSyncAttempts,
		RetryBase:   cfg.RetryBase,
	}, log)
	if err != nil {
		return nil, err
	}

	tokens := NewTokenStore(cfg.TokenPath)
	api := NewAPIClient(cfg.BaseURL(), tokens, deviceID, log)

	app := &App{
		config:  cfg,
		log:     log.With("component", "app"),
		storage: storage,
		api:     api,
		tokens:  tokens,
		cache:   NewCache(DefaultCacheSize, cfg.CacheTTL).WithStore(storage, log),
		factory: record.NewFactory(),
	}
	app.sync = NewSyncService(storage, api, SyncConfig{
		BatchSize:        cfg.BatchSize,
		ConflictStrategy: cfg.ConflictStrategy,
		Overlap:          cfg.SyncOverlap,
		Interval:         cfg.SyncInterval,
	}, log)

	return app, nil
}

func (a *App) Close() error {
	return a.storage.Close()
}

func (a *App) Register(ctx context.Context, email, password string) (int, error) {
	return a.api.Register(ctx, email, password)
}

func (a *App) Login(ctx context.Context, email, password string) (*Tokens, error) {
	t, err := a.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.cache.Purge(ctx)
	return t, nil
}

// Logout завершает сессию; wipe дополнительно удаляет локальные данные
func (a *App) Logout(ctx context.Context, wipe bool) error {
	if err := a.api.Logout(ctx); err != nil {
		return err
	}
	a.cache.Purge(ctx)
	if wipe {
		return a.storage.Reset(ctx)
	}
	return nil
}

// CheckConnection проверяет доступность сервера
func (a *App) CheckConnection(ctx context.Context) error {
	return a.api.HealthCheck(ctx)
}

func (a *App) IsAuthenticated() bool {
	return a.api.IsAuthenticated()
}

// Session возвращает сохраненную сессию или nil
func (a *App) Session() (*Tokens, error) {
	return a.tokens.Load()
}

// Add валидирует содержимое и сохраняет новую запись локально
func (a *App) Add(ctx context.Context, p record.Payload) (*Record, error) {
	data, err := a.factory.Marshal(p)
	if err != nil {
		return nil, err
	}
	return a.storage.Create(ctx, p.Kind(), data)
}

// Edit заменяет содержимое записи того же типа
func (a *App) Edit(ctx context.Context, id string, p record.Payload) (*Record, error) {
	current, err := a.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Kind != p.Kind() {
		return nil, fmt.Errorf("%w: запись %s имеет тип %s", record.ErrInvalidData, id, current.Kind)
	}

	data, err := a.factory.Marshal(p)
	if err != nil {
		return nil, err
	}
	return a.storage.Update(ctx, id, data)
}

func (a *App) Delete(ctx context.Context, id string) error {
	return a.storage.Delete(ctx, id)
}

func (a *App) Get(ctx context.Context, id string) (*Record, error) {
	return a.storage.Get(ctx, id)
}

func (a *App) Records(ctx context.Context, kind record.Kind) ([]*Record, error) {
	return a.storage.List(ctx, kind)
}

// Entry - локальная запись с разобранным содержимым
type Entry[T any] struct {
	*Record
	Data T
}

// ListOf возвращает записи типа kind с содержимым, разобранным в T
func ListOf[T any](ctx context.Context, a *App, kind record.Kind) ([]Entry[T], error) {
	records, err := a.storage.List(ctx, kind)
	if err != nil {
		return nil, err
	}

	out := make([]Entry[T], 0, len(records))
	for _, rec := range records {
		var data T
		if err := json.Unmarshal(rec.Payload, &data); err != nil {
			return nil, fmt.Errorf("ошибка разбора записи %s: %w", rec.ID, err)
		}
		out = append(out, Entry[T]{Record: rec, Data: data})
	}
	return out, nil
}

// SimulateTrip прогоняет симуляцию маршрута через трекер и сохраняет поездку
func (a *App) SimulateTrip(ctx context.Context, routeName string, points int, interval time.Duration, tripType record.TripType, vehicleID string) (*Record, *tracking.Trip, error) {
	route, err := tracking.LookupRoute(routeName)
	if err != nil {
		return nil, nil, err
	}

	tracker := tracking.NewTracker(tracking.DefaultConfig(), a.log)
	if _, err := tracker.HandleActivity(tracking.ActivityInVehicle, 100); err != nil {
		return nil, nil, err
	}
	start := time.Now().Add(-time.Duration(points) * interval)
	for _, p := range tracking.Simulate(route, points, interval, start) {
		tracker.HandleLocation(p)
	}

	trip, err := tracker.Finish()
	if err != nil {
		return nil, nil, err
	}

	payload := trip.Record(tripType, vehicleID)
	payload.StartAddress, payload.EndAddress = route.Endpoints()
	rec, err := a.Add(ctx, payload)
	if err != nil {
		return nil, nil, err
	}
	return rec, trip, nil
}

// Report строит годовой отчет по локальным данным
func (a *App) Report(ctx context.Context, year int) (*Report, error) {
	trips, err := ListOf[record.Trip](ctx, a, record.KindTrip)
	if err != nil {
		return nil, err
	}
	vehicles, err := ListOf[record.Vehicle](ctx, a, record.KindVehicle)
	if err != nil {
		return nil, err
	}
	expenses, err := ListOf[record.Expense](ctx, a, record.KindExpense)
	if err != nil {
		return nil, err
	}
	return BuildReport(year, trips, vehicles, expenses), nil
}

func (a *App) Sync(ctx context.Context) (*SyncResult, error) {
	defer a.cache.Invalidate(ctx, cacheServerStatus)
	return a.sync.Sync(ctx)
}

// AutoSync синхронизирует по таймеру до отмены ctx
func (a *App) AutoSync(ctx context.Context) {
	a.sync.StartAutoSync(ctx)
}

// Status собирает локальную сводку; серверная часть добавляется, если сервер доступен
func (a *App) Status(ctx context.Context) (*LocalStatus, error) {
	last, err := a.sync.LastSync(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := a.storage.Counts(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := a.storage.Queue().Count(ctx)
	if err != nil {
		return nil, err
	}
	failed, err := a.storage.Queue().Failed(ctx)
	if err != nil {
		return nil, err
	}

	st := &LocalStatus{
		LastSync: last,
		Counts:   counts,
		Pending:  pending,
		Failed:   failed,
		Stats:    a.sync.Stats(ctx),
	}

	if a.IsAuthenticated() {
		server, err := cached(ctx, a.cache, cacheServerStatus, func() (*domainsync.GetStatusResponse, error) {
			return a.api.ServerStatus(ctx)
		})
		switch {
		case err == nil:
			st.Server = server.Data
		case errors.Is(err, ErrOffline):
			a.log.Debug("сервер недоступен, показываем только локальный статус")
		default:
			a.log.Warn("не удалось получить статус сервера", "error", err)
		}
	}
	return st, nil
}

func (a *App) Conflicts(ctx context.Context) ([]Conflict, error) {
	return a.storage.Conflicts(ctx)
}

func (a *App) ResolveConflict(ctx context.Context, recordID string, keepLocal bool) error {
	return a.sync.ResolveConflict(ctx, recordID, keepLocal)
}

// RetryFailed возвращает в очередь операции, исчерпавшие попытки
func (a *App) RetryFailed(ctx context.Context) (int64, error) {
	return a.storage.Queue().Retry(ctx, time.Now())
}

func (a *App) Devices(ctx context.Context) ([]domainsync.DeviceInfo, error) {
	return a.api.Devices(ctx)
}

func (a *App) CreateProAccount(ctx context.Context, req company.CreateProAccountRequest) (*company.ProAccount, error) {
	defer a.cache.Invalidate(ctx, companyPrefix)
	return a.api.CreateProAccount(ctx, req)
}

func (a *App) ProAccount(ctx context.Context) (*company.ProAccount, error) {
	return cached(ctx, a.cache, cacheProAccount, func() (*company.ProAccount, error) {
		return a.api.GetProAccount(ctx)
	})
}

func (a *App) Invite(ctx context.Context, req company.InviteRequest) (*company.Invitation, error) {
	defer a.cache.Invalidate(ctx, companyPrefix)
	return a.api.Invite(ctx, req)
}

func (a *App) AcceptInvitation(ctx context.Context, token string) (*company.Link, error) {
	defer a.cache.Invalidate(ctx, companyPrefix)
	return a.api.AcceptInvitation(ctx, token)
}

func (a *App) Links(ctx context.Context) ([]company.Link, error) {
	return cached(ctx, a.cache, cacheLinks, func() ([]company.Link, error) {
		return a.api.Links(ctx)
	})
}

func (a *App) Memberships(ctx context.Context) ([]company.Link, error) {
	return cached(ctx, a.cache, cacheMemberships, func() ([]company.Link, error) {
		return a.api.Memberships(ctx)
	})
}

func (a *App) RevokeLink(ctx context.Context, linkID int) error {
	defer a.cache.Invalidate(ctx, companyPrefix)
	return a.api.RevokeLink(ctx, linkID)
}

func (a *App) LinkedTrips(ctx context.Context, linkID int) ([]record.Record, error) {
	return a.api.LinkedTrips(ctx, linkID)
}

func (a *App) Licenses(ctx context.Context) ([]company.License, error) {
	return cached(ctx, a.cache, cacheLicenses, func() ([]company.License, error) {
		return a.api.Licenses(ctx)
	})
}

func (a *App) AddLicenses(ctx context.Context, count int) ([]company.License, error) {
	defer a.cache.Invalidate(ctx, companyPrefix)
	return a.api.AddLicenses(ctx, count)
}

func (a *App) AssignLicense(ctx context.Context, licenseID, linkID int) error {
	defer a.cache.Invalidate(ctx, companyPrefix)
	return a.api.AssignLicense(ctx, licenseID, linkID)
}

func (a *App) UnassignLicense(ctx context.Context, licenseID int) error {
	defer a.cache.Invalidate(ctx, companyPrefix)
	return a.api.UnassignLicense(ctx, licenseID)
}
