package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"motium/internal/app/client/config"
	domainsync "motium/internal/domain/sync"

	"golang.org/x/exp/slog"
)

const (
	metaLastSync = "last_sync"
	metaStats    = "stats"

	DefaultBatchSize = 50
	pullPageSize     = 200
	// запись отправляется не больше двух раз за один запуск
	maxPushesPerRun = 2
)

// Remote - серверная сторона протокола синхронизации
type Remote interface {
	IsAuthenticated() bool
	// GetChanges - страница изменений после since; afterID продолжает выборку
	// после записи с updated_at = since
	GetChanges(ctx context.Context, since time.Time, afterID string, limit int) (*domainsync.GetChangesResponse, error)
	PushBatch(ctx context.Context, records []domainsync.RecordSync) (*domainsync.BatchSyncResponse, error)
	ResolveConflict(ctx context.Context, conflictID int, resolution string) error
}

// SyncConfig конфигурация синхронизации
type SyncConfig struct {
	BatchSize        int
	ConflictStrategy string
	Overlap          time.Duration
	Interval         time.Duration
}

// SyncService управляет синхронизацией локальной базы с сервером
type SyncService struct {
	store  *SQLiteStorage
	remote Remote
	cfg    SyncConfig
	log    *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	isSyncing bool
}

func NewSyncService(store *SQLiteStorage, remote Remote, cfg SyncConfig, log *slog.Logger) *SyncService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ConflictStrategy == "" {
		cfg.ConflictStrategy = config.StrategyNewer
	}

	return &SyncService{
		store:  store,
		remote: remote,
		cfg:    cfg,
		log:    log.With("component", "sync_service"),
		now:    time.Now,
	}
}

// Sync выполняет один цикл: получение изменений, отправка очереди, сохранение отметки времени
func (s *SyncService) Sync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.isSyncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	result := &SyncResult{StartTime: s.now(), Errors: []SyncError{}}
	finish := func(err error) (*SyncResult, error) {
		result.EndTime = s.now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		result.Success = err == nil && len(result.Errors) == 0
		s.updateStats(ctx, result)
		return result, err
	}

	if !s.remote.IsAuthenticated() {
		return finish(ErrUnauthenticated)
	}

	s.log.Info("начало синхронизации", "strategy", s.cfg.ConflictStrategy)

	serverTime, err := s.pull(ctx, result)
	if err != nil {
		s.addError(result, "", "pull", err)
		return finish(fmt.Errorf("получение изменений: %w", err))
	}

	// при ошибках применения отметка не сдвигается, записи придут повторно
	pullFailed := len(result.Errors) > 0

	if err := s.push(ctx, result); err != nil {
		s.addError(result, "", "push", err)
		return finish(fmt.Errorf("отправка изменений: %w", err))
	}

	if !pullFailed {
		if err := s.store.SetMeta(ctx, metaLastSync, serverTime.UTC().Format(time.RFC3339Nano)); err != nil {
			s.addError(result, "", "update_metadata", err)
		}
	}

	res, err := finish(nil)
	s.log.Info("синхронизация завершена",
		"duration", res.Duration,
		"uploaded", res.Uploaded,
		"downloaded", res.Downloaded,
		"conflicts", res.Conflicts,
		"errors", len(res.Errors),
	)
	return res, err
}

// LastSync - серверное время последней успешной синхронизации
func (s *SyncService) LastSync(ctx context.Context) (time.Time, error) {
	v, ok, err := s.store.GetMeta(ctx, metaLastSync)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка парсинга last_sync: %w", err)
	}
	return t, nil
}

// pull скачивает изменения страницами и возвращает время сервера первой страницы
func (s *SyncService) pull(ctx context.Context, result *SyncResult) (time.Time, error) {
	since, err := s.LastSync(ctx)
	if err != nil {
		return time.Time{}, err
	}
	// окно перекрытия ловит записи, зафиксированные на границе прошлой выборки
	if !since.IsZero() {
		since = since.Add(-s.cfg.Overlap)
	}

	var serverTime time.Time
	cursor, afterID := since, ""
	for {
		page, err := s.remote.GetChanges(ctx, cursor, afterID, pullPageSize)
		if err != nil {
			return time.Time{}, err
		}
		if serverTime.IsZero() {
			serverTime = page.ServerTime
		}

		for _, rs := range page.Records {
			if err := s.applyRemote(ctx, rs, result); err != nil {
				s.addError(result, rs.ID, "apply_remote", err)
			}
		}

		if !page.HasMore || len(page.Records) == 0 {
			break
		}
		// курсор по последней записи: изменения внутри выборки не сдвигают страницы
		last := page.Records[len(page.Records)-1]
		cursor, afterID = last.UpdatedAt, last.ID
	}

	s.log.Debug("получены изменения с сервера", "since", since, "downloaded", result.Downloaded)
	return serverTime, nil
}

func (s *SyncService) applyRemote(ctx context.Context, rs domainsync.RecordSync, result *SyncResult) error {
	local, err := s.store.Lookup(ctx, rs.ID)
	if errors.Is(err, ErrNotFound) {
		if rs.Deleted {
			return nil
		}
		result.Downloaded++
		return s.store.ApplyServer(ctx, rs)
	}
	if err != nil {
		return err
	}

	switch local.SyncStatus {
	case StatusSynced:
		// повтор из окна перекрытия
		if rs.Version <= local.Version && !rs.Deleted {
			return nil
		}
		result.Downloaded++
		return s.store.ApplyServer(ctx, rs)
	case StatusPending:
		if rs.Version < local.Version {
			return nil
		}
		_, err := s.handleConflict(ctx, local, rs, 0, result)
		return err
	}
	return nil
}

// push отправляет очередь пакетами
func (s *SyncService) push(ctx context.Context, result *SyncResult) error {
	pushed := map[string]int{}

	for {
		ops, err := s.store.Queue().Due(ctx, s.now(), s.cfg.BatchSize+len(pushed))
		if err != nil {
			return err
		}

		sent := make(map[string]*Record)
		batch := make([]domainsync.RecordSync, 0, s.cfg.BatchSize)
		for _, op := range ops {
			if len(batch) == s.cfg.BatchSize {
				break
			}
			if pushed[op.RecordID] >= maxPushesPerRun {
				continue
			}
			rec, err := s.store.Lookup(ctx, op.RecordID)
			if errors.Is(err, ErrNotFound) {
				s.dropOrphan(ctx, op.RecordID)
				continue
			}
			if err != nil {
				return err
			}
			pushed[op.RecordID]++
			sent[rec.ID] = rec
			batch = append(batch, rec.toSync())
		}
		if len(batch) == 0 {
			return nil
		}

		resp, err := s.remote.PushBatch(ctx, batch)
		if err != nil {
			now := s.now()
			for id := range sent {
				if markErr := s.store.Queue().MarkFailed(ctx, id, err, now); markErr != nil {
					s.log.Warn("не удалось отметить неудачную попытку", "record_id", id, "error", markErr)
				}
			}
			return err
		}

		for _, res := range resp.Results {
			rec, ok := sent[res.ID]
			if !ok {
				continue
			}
			if err := s.applyResult(ctx, rec, res, result); err != nil {
				s.addError(result, res.ID, "push_result", err)
			}
		}
	}
}

// dropOrphan убирает операцию, запись которой удалили после выборки очереди
func (s *SyncService) dropOrphan(ctx context.Context, recordID string) {
	if err := s.store.Queue().Remove(ctx, recordID); err != nil {
		s.log.Warn("не удалось удалить операцию без записи", "record_id", recordID, "error", err)
	}
}

func (s *SyncService) applyResult(ctx context.Context, rec *Record, res domainsync.RecordResult, result *SyncResult) error {
	switch res.Status {
	case domainsync.ResultApplied:
		result.Uploaded++
		return s.store.Acknowledge(ctx, rec, res.Version, res.UpdatedAt)
	case domainsync.ResultConflict:
		if res.Server == nil {
			return s.store.Queue().MarkFailed(ctx, rec.ID, errors.New("конфликт без серверной копии"), s.now())
		}
		_, err := s.handleConflict(ctx, rec, *res.Server, res.ConflictID, result)
		return err
	default:
		s.addError(result, rec.ID, "push", errors.New(res.Error))
		return s.store.Queue().MarkFailed(ctx, rec.ID, errors.New(res.Error), s.now())
	}
}

// handleConflict применяет стратегию; manual сохраняет конфликт для решения пользователем
func (s *SyncService) handleConflict(ctx context.Context, local *Record, server domainsync.RecordSync, conflictID int, result *SyncResult) (bool, error) {
	result.Conflicts++

	keepLocal := false
	switch s.cfg.ConflictStrategy {
	case config.StrategyServer:
	case config.StrategyClient:
		keepLocal = true
	case config.StrategyNewer:
		keepLocal = local.UpdatedAt.After(server.UpdatedAt)
	default:
		s.log.Info("конфликт отложен для ручного решения", "record_id", local.ID)
		return false, s.store.SaveConflict(ctx, Conflict{
			RecordID:         local.ID,
			Kind:             local.Kind,
			LocalPayload:     local.Payload,
			LocalVersion:     local.Version,
			LocalDeleted:     local.Deleted,
			ServerPayload:    server.Payload,
			ServerVersion:    server.Version,
			ServerDeleted:    server.Deleted,
			ServerUpdatedAt:  server.UpdatedAt,
			ServerConflictID: conflictID,
			ConflictType:     domainsync.ConflictTypeOf(local.toSync(), server),
		})
	}

	if err := s.apply(ctx, local.ID, server, keepLocal, conflictID); err != nil {
		return false, err
	}
	result.Resolved++
	return true, nil
}

func (s *SyncService) apply(ctx context.Context, id string, server domainsync.RecordSync, keepLocal bool, conflictID int) error {
	resolution := "server"
	if keepLocal {
		resolution = "client"
		if err := s.store.KeepLocal(ctx, id, server.Version); err != nil {
			return err
		}
	} else if err := s.store.ApplyServer(ctx, server); err != nil {
		return err
	}

	s.log.Debug("конфликт разрешен", "record_id", id, "resolution", resolution)

	if conflictID > 0 {
		if err := s.remote.ResolveConflict(ctx, conflictID, resolution); err != nil {
			s.log.Warn("не удалось отметить конфликт на сервере", "conflict_id", conflictID, "error", err)
		}
	}
	return nil
}

// ResolveConflict решает отложенный конфликт: keepLocal - оставить локальную версию
func (s *SyncService) ResolveConflict(ctx context.Context, recordID string, keepLocal bool) error {
	c, err := s.store.GetConflict(ctx, recordID)
	if err != nil {
		return err
	}
	return s.apply(ctx, recordID, c.server(), keepLocal, c.ServerConflictID)
}

// Stats возвращает накопленную статистику
func (s *SyncService) Stats(ctx context.Context) SyncStats {
	var stats SyncStats
	if v, ok, err := s.store.GetMeta(ctx, metaStats); err == nil && ok {
		if err := json.Unmarshal([]byte(v), &stats); err != nil {
			s.log.Warn("повреждена статистика синхронизации", "error", err)
		}
	}
	return stats
}

func (s *SyncService) updateStats(ctx context.Context, result *SyncResult) {
	stats := s.Stats(ctx)
	stats.TotalSyncs++
	if result.Success {
		stats.LastSuccessful = result.EndTime
	} else {
		stats.LastFailed = result.EndTime
	}
	stats.TotalUploaded += result.Uploaded
	stats.TotalDownloaded += result.Downloaded
	stats.TotalConflicts += result.Conflicts
	stats.TotalResolved += result.Resolved
	stats.TotalErrors += len(result.Errors)

	data, err := json.Marshal(stats)
	if err != nil {
		s.log.Error("ошибка сериализации статистики", "error", err)
		return
	}
	if err := s.store.SetMeta(ctx, metaStats, string(data)); err != nil {
		s.log.Error("ошибка записи статистики", "error", err)
	}
}

// IsSyncing проверяет, выполняется ли синхронизация
func (s *SyncService) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSyncing
}

// StartAutoSync синхронизирует по таймеру до отмены ctx
func (s *SyncService) StartAutoSync(ctx context.Context) {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.log.Info("запуск автоматической синхронизации", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
			s.log.Warn("ошибка автоматической синхронизации", "error", err)
		}

		select {
		case <-ctx.Done():
			s.log.Info("автоматическая синхронизация остановлена")
			return
		case <-ticker.C:
		}
	}
}

func (s *SyncService) addError(result *SyncResult, recordID, op string, err error) {
	s.log.Warn("ошибка синхронизации", "record_id", recordID, "operation", op, "error", err)
	result.Errors = append(result.Errors, SyncError{
		RecordID:  recordID,
		Error:     err.Error(),
		Operation: op,
		Timestamp: s.now(),
	})
}
