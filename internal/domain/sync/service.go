package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const (
	DefaultBatchSize      = 100
	DefaultMaxSyncRecords = 1000
	statusOk              = "Ok"
)

// Servicer интерфейс сервиса синхронизации
type Servicer interface {
	// GetChanges возвращает изменения после указанного времени, включая надгробия
	GetChanges(ctx context.Context, userID int, device DeviceInfo, req GetChangesRequest) (*GetChangesResponse, error)

	// ProcessBatch обрабатывает пакет записей для синхронизации
	ProcessBatch(ctx context.Context, userID int, device DeviceInfo, req BatchSyncRequest) (*BatchSyncResponse, error)

	GetStatus(ctx context.Context, userID int) (*GetStatusResponse, error)
	GetConflicts(ctx context.Context, userID int) (*GetConflictsResponse, error)
	ResolveConflict(ctx context.Context, userID, conflictID int, req ResolveConflictRequest) (*ResolveConflictResponse, error)
	GetDevices(ctx context.Context, userID int) ([]DeviceInfo, error)
	RemoveDevice(ctx context.Context, userID int, deviceID string) (*RemoveDeviceResponse, error)
}

// Service реализация сервиса синхронизации
type Service struct {
	repo      Repository
	validator PayloadValidator
	log       *slog.Logger
	config    ServiceConfig
}

// NewService создает новый сервис синхронизации
func NewService(repo Repository, validator PayloadValidator, log *slog.Logger, config *ServiceConfig) *Service {
	cfg := ServiceConfig{BatchSize: DefaultBatchSize, MaxSyncRecords: DefaultMaxSyncRecords}
	if config != nil {
		if config.BatchSize > 0 {
			cfg.BatchSize = config.BatchSize
		}
		if config.MaxSyncRecords > 0 {
			cfg.MaxSyncRecords = config.MaxSyncRecords
		}
	}

	return &Service{
		repo:      repo,
		validator: validator,
		log:       log.With("component", "sync_service"),
		config:    cfg,
	}
}

// GetChanges возвращает изменения после req.Since
func (s *Service) GetChanges(ctx context.Context, userID int, device DeviceInfo, req GetChangesRequest) (*GetChangesResponse, error) {
	if req.Kind != "" {
		if err := req.Kind.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSyncRequest, err)
		}
	}
	if req.AfterID != "" {
		if req.Since.IsZero() {
			return nil, fmt.Errorf("%w: after_id requires since", ErrInvalidSyncRequest)
		}
		if _, err := uuid.Parse(req.AfterID); err != nil {
			return nil, fmt.Errorf("%w: after_id must be a uuid", ErrInvalidSyncRequest)
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.config.BatchSize
	}
	if limit > s.config.MaxSyncRecords {
		limit = s.config.MaxSyncRecords
	}

	// время фиксируется до выборки, все более поздние изменения попадут в следующую
	serverTime, err := s.repo.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get server time: %w", err)
	}

	records, err := s.repo.GetRecordsForSync(ctx, userID, req.Since, req.AfterID, req.Kind, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to get records for sync: %w", err)
	}

	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}

	status, err := s.repo.GetSyncStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}

	status.LastSyncTime = serverTime
	status.SyncVersion++
	if err := s.repo.UpdateSyncStatus(ctx, status); err != nil {
		s.log.Warn("failed to update sync status", "user_id", userID, "error", err)
	}

	if err := s.repo.IncrementSyncStats(ctx, userID, 0, int64(len(records)), 0); err != nil {
		s.log.Warn("failed to update sync stats", "user_id", userID, "error", err)
	}
	s.touchDevice(ctx, userID, device)

	recordsSlice := make([]RecordSync, len(records))
	for i, r := range records {
		recordsSlice[i] = *r
	}

	return &GetChangesResponse{
		Status:      statusOk,
		Records:     recordsSlice,
		HasMore:     hasMore,
		ServerTime:  serverTime,
		SyncVersion: status.SyncVersion,
	}, nil
}

// ProcessBatch обрабатывает пакет записей для синхронизации
func (s *Service) ProcessBatch(ctx context.Context, userID int, device DeviceInfo, req BatchSyncRequest) (*BatchSyncResponse, error) {
	if len(req.Records) > s.config.MaxSyncRecords {
		return nil, fmt.Errorf("%w: %d records, limit %d", ErrBatchTooLarge, len(req.Records), s.config.MaxSyncRecords)
	}

	resp := &BatchSyncResponse{
		Status:  statusOk,
		Results: make([]RecordResult, 0, len(req.Records)),
	}

	for _, rec := range req.Records {
		res := s.processRecord(ctx, userID, device.ID, rec)
		switch res.Status {
		case ResultApplied:
			resp.Processed++
		case ResultConflict:
			resp.Conflicts++
		default:
			resp.Failed++
		}
		resp.Results = append(resp.Results, res)
	}

	if err := s.repo.IncrementSyncStats(ctx, userID, int64(resp.Processed), 0, int64(resp.Conflicts)); err != nil {
		s.log.Warn("failed to update sync stats", "user_id", userID, "error", err)
	}
	s.touchDevice(ctx, userID, device)

	s.log.Info("batch processed",
		"user_id", userID,
		"device_id", device.ID,
		"processed", resp.Processed,
		"conflicts", resp.Conflicts,
		"failed", resp.Failed,
	)

	return resp, nil
}

// GetStatus возвращает текущий статус синхронизации
func (s *Service) GetStatus(ctx context.Context, userID int) (*GetStatusResponse, error) {
	status, err := s.repo.GetSyncStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}

	stats, err := s.repo.GetSyncStats(ctx, userID)
	if err != nil {
		s.log.Warn("failed to get sync stats", "user_id", userID, "error", err)
		stats = nil
	}

	return &GetStatusResponse{Status: statusOk, Data: status, Stats: stats}, nil
}

// GetConflicts возвращает список неразрешенных конфликтов
func (s *Service) GetConflicts(ctx context.Context, userID int) (*GetConflictsResponse, error) {
	conflicts, err := s.repo.GetSyncConflicts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conflicts: %w", err)
	}

	conflictsSlice := make([]Conflict, len(conflicts))
	for i, c := range conflicts {
		conflictsSlice[i] = *c
	}

	return &GetConflictsResponse{Status: statusOk, Data: conflictsSlice}, nil
}

// ResolveConflict отмечает конфликт разрешенным
func (s *Service) ResolveConflict(ctx context.Context, userID, conflictID int, req ResolveConflictRequest) (*ResolveConflictResponse, error) {
	switch req.Resolution {
	case "client", "server", "merged":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, req.Resolution)
	}

	conflict, err := s.repo.GetConflictByID(ctx, conflictID)
	if err != nil {
		if errors.Is(err, ErrConflictNotFound) {
			return nil, ErrConflictNotFound
		}
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}

	// чужой конфликт не раскрываем
	if conflict.UserID != userID {
		return nil, ErrConflictNotFound
	}

	if conflict.Resolved {
		return &ResolveConflictResponse{Status: statusOk, Message: "Conflict already resolved"}, nil
	}

	if err := s.repo.ResolveConflict(ctx, conflictID, req.Resolution); err != nil {
		return nil, fmt.Errorf("failed to resolve conflict: %w", err)
	}

	return &ResolveConflictResponse{Status: statusOk, Message: "Conflict resolved successfully"}, nil
}

// GetDevices возвращает список устройств пользователя
func (s *Service) GetDevices(ctx context.Context, userID int) ([]DeviceInfo, error) {
	devices, err := s.repo.ListUserDevices(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	out := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		out[i] = *d
	}
	return out, nil
}

// RemoveDevice удаляет устройство из списка синхронизации
func (s *Service) RemoveDevice(ctx context.Context, userID int, deviceID string) (*RemoveDeviceResponse, error) {
	device, err := s.repo.GetDeviceInfo(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device info: %w", err)
	}

	if device.UserID != userID {
		return nil, ErrDeviceNotFound
	}

	if err := s.repo.DeleteDevice(ctx, deviceID); err != nil {
		return nil, fmt.Errorf("failed to delete device: %w", err)
	}

	return &RemoveDeviceResponse{Status: statusOk, Message: "Device removed successfully"}, nil
}

func (s *Service) processRecord(ctx context.Context, userID int, deviceID string, rec RecordSync) RecordResult {
	res := RecordResult{ID: rec.ID}
	reject := func(msg string) RecordResult {
		res.Status = ResultRejected
		res.Error = msg
		return res
	}

	if _, err := uuid.Parse(rec.ID); err != nil {
		return reject("id must be a UUID")
	}
	if err := rec.Kind.Validate(); err != nil {
		return reject(err.Error())
	}
	if rec.Version < 1 {
		return reject("version must be positive")
	}

	existing, err := s.repo.GetRecordByID(ctx, rec.ID)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		existing = nil
	case err != nil:
		s.log.Error("failed to load record", "record_id", rec.ID, "error", err)
		return reject("temporary server error")
	}

	if existing != nil {
		if existing.UserID != userID {
			return reject("record not found")
		}
		if existing.Kind != rec.Kind {
			return reject("record kind cannot change")
		}
		// повтор уже принятой записи после потерянного ответа
		if sameWrite(*existing, rec) {
			res.Status = ResultApplied
			res.Version = existing.Version
			res.UpdatedAt = existing.UpdatedAt
			return res
		}
		if existing.Version >= rec.Version {
			return s.conflict(ctx, userID, deviceID, rec, *existing)
		}
	}

	if rec.Deleted {
		switch {
		case existing != nil:
			rec.Payload = existing.Payload
		case len(rec.Payload) == 0:
			rec.Payload = json.RawMessage(`{}`)
		}
	} else if err := s.validator.ValidatePayload(rec.Kind, rec.Payload); err != nil {
		return reject(err.Error())
	}

	rec.UserID = userID
	rec.DeviceID = deviceID

	if err := s.repo.SaveRecord(ctx, &rec); err != nil {
		if errors.Is(err, ErrStaleVersion) {
			// кто-то успел записать более новую версию между чтением и записью
			latest, getErr := s.repo.GetRecordByID(ctx, rec.ID)
			if getErr == nil {
				return s.conflict(ctx, userID, deviceID, rec, *latest)
			}
		}
		s.log.Error("failed to save record", "record_id", rec.ID, "error", err)
		return reject("temporary server error")
	}

	res.Status = ResultApplied
	res.Version = rec.Version
	res.UpdatedAt = rec.UpdatedAt
	return res
}

func (s *Service) conflict(ctx context.Context, userID int, deviceID string, local, server RecordSync) RecordResult {
	c := &Conflict{
		RecordID:      local.ID,
		UserID:        userID,
		DeviceID:      deviceID,
		LocalPayload:  local.Payload,
		ServerPayload: server.Payload,
		LocalVersion:  local.Version,
		ServerVersion: server.Version,
		ConflictType:  ConflictTypeOf(local, server),
	}

	if err := s.repo.SaveConflict(ctx, c); err != nil {
		s.log.Warn("failed to save conflict", "record_id", local.ID, "error", err)
	}

	s.log.Debug("sync conflict",
		"record_id", local.ID,
		"type", c.ConflictType,
		"local_version", local.Version,
		"server_version", server.Version,
	)

	return RecordResult{
		ID:         local.ID,
		Status:     ResultConflict,
		Version:    server.Version,
		UpdatedAt:  server.UpdatedAt,
		ConflictID: c.ID,
		Server:     &server,
	}
}

func (s *Service) touchDevice(ctx context.Context, userID int, device DeviceInfo) {
	if device.ID == "" {
		return
	}
	if _, err := uuid.Parse(device.ID); err != nil {
		s.log.Debug("ignoring malformed device id", "device_id", device.ID)
		return
	}

	device.UserID = userID
	if device.Name == "" {
		device.Name = device.ID
	}
	if device.Type == "" {
		device.Type = "cli"
	}

	if err := s.repo.RegisterDevice(ctx, &device); err != nil {
		s.log.Warn("failed to register device", "device_id", device.ID, "error", err)
	}
}

// sameWrite - входящая запись совпадает с сохраненной: та же версия и то же содержимое.
// Payload сравнивается после разбора, jsonb не сохраняет порядок ключей и пробелы.
func sameWrite(existing, in RecordSync) bool {
	if existing.Version != in.Version || existing.Deleted != in.Deleted {
		return false
	}
	if in.Deleted {
		return true
	}
	var a, b any
	if json.Unmarshal(existing.Payload, &a) != nil || json.Unmarshal(in.Payload, &b) != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}
