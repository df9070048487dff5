package sync

import (
	"context"
	"time"

	"motium/internal/domain/record"
)

// Repository интерфейс для работы с синхронизацией
type Repository interface {
	// Now - часы базы данных, по ним выставляется updated_at
	Now(ctx context.Context) (time.Time, error)

	GetSyncStatus(ctx context.Context, userID int) (*SyncStatus, error)
	UpdateSyncStatus(ctx context.Context, status *SyncStatus) error

	GetDeviceInfo(ctx context.Context, deviceID string) (*DeviceInfo, error)
	// RegisterDevice создает устройство или обновляет время его синхронизации
	RegisterDevice(ctx context.Context, device *DeviceInfo) error
	ListUserDevices(ctx context.Context, userID int) ([]*DeviceInfo, error)
	DeleteDevice(ctx context.Context, deviceID string) error

	// GetRecordsForSync возвращает записи с updated_at > since, включая удаленные,
	// в порядке (updated_at, id)
	GetRecordsForSync(ctx context.Context, userID int, since time.Time, afterID string, kind record.Kind, limit int) ([]*RecordSync, error)
	GetRecordByID(ctx context.Context, recordID string) (*RecordSync, error)
	// SaveRecord вставляет или обновляет запись, если ее версия меньше новой,
	// иначе возвращает ErrStaleVersion
	SaveRecord(ctx context.Context, rec *RecordSync) error

	GetSyncConflicts(ctx context.Context, userID int) ([]*Conflict, error)
	GetConflictByID(ctx context.Context, conflictID int) (*Conflict, error)
	SaveConflict(ctx context.Context, conflict *Conflict) error
	ResolveConflict(ctx context.Context, conflictID int, resolution string) error

	GetSyncStats(ctx context.Context, userID int) (*SyncStats, error)
	IncrementSyncStats(ctx context.Context, userID int, uploads, downloads, conflicts int64) error
}

// PayloadValidator проверяет содержимое записи перед сохранением
type PayloadValidator interface {
	ValidatePayload(kind record.Kind, data []byte) error
}
