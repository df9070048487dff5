package sync

import (
	"encoding/json"
	"time"

	"motium/internal/domain/record"
)

// SyncStatus представляет статус синхронизации пользователя
type SyncStatus struct {
	UserID       int       `json:"user_id"`
	LastSyncTime time.Time `json:"last_sync_time"`
	TotalRecords int       `json:"total_records"`
	DeviceCount  int       `json:"device_count"`
	SyncVersion  int64     `json:"sync_version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RecordSync - запись в протоколе синхронизации, удаление передается флагом Deleted
type RecordSync struct {
	ID        string          `json:"id"`
	UserID    int             `json:"user_id,omitempty"`
	Kind      record.Kind     `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Version   int             `json:"version"`
	Deleted   bool            `json:"deleted"`
	DeviceID  string          `json:"device_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DeviceInfo информация об устройстве, ID генерирует клиент
type DeviceInfo struct {
	ID           string    `json:"id"`
	UserID       int       `json:"user_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"` // cli, mobile, web
	UserAgent    string    `json:"user_agent,omitempty"`
	LastSyncTime time.Time `json:"last_sync_time"`
	CreatedAt    time.Time `json:"created_at"`
}

type ConflictType string

const (
	ConflictEditEdit   ConflictType = "edit-edit"
	ConflictDeleteEdit ConflictType = "delete-edit" // клиент удалил, сервер изменил
	ConflictEditDelete ConflictType = "edit-delete" // клиент изменил, сервер удалил
)

// Conflict конфликт синхронизации
type Conflict struct {
	ID            int             `json:"id"`
	RecordID      string          `json:"record_id"`
	UserID        int             `json:"user_id"`
	DeviceID      string          `json:"device_id,omitempty"`
	LocalPayload  json.RawMessage `json:"local_payload,omitempty"`
	ServerPayload json.RawMessage `json:"server_payload,omitempty"`
	LocalVersion  int             `json:"local_version"`
	ServerVersion int             `json:"server_version"`
	ConflictType  ConflictType    `json:"conflict_type"`
	Resolved      bool            `json:"resolved"`
	Resolution    string          `json:"resolution,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SyncStats статистика синхронизации
type SyncStats struct {
	UserID         int       `json:"user_id"`
	TotalSyncs     int       `json:"total_syncs"`
	LastSync       time.Time `json:"last_sync"`
	TotalUploads   int64     `json:"total_uploads"`
	TotalDownloads int64     `json:"total_downloads"`
	TotalConflicts int64     `json:"total_conflicts"`
	TotalResolved  int64     `json:"total_resolved"`
}

type ResultStatus string

const (
	ResultApplied  ResultStatus = "applied"
	ResultConflict ResultStatus = "conflict"
	ResultRejected ResultStatus = "rejected"
)

// RecordResult - итог обработки одной записи из пакета
type RecordResult struct {
	ID         string       `json:"id"`
	Status     ResultStatus `json:"status"`
	Version    int          `json:"version,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at,omitempty"`
	ConflictID int          `json:"conflict_id,omitempty"`
	Server     *RecordSync  `json:"server,omitempty" doc:"Серверная копия при конфликте"`
	Error      string       `json:"error,omitempty"`
}

// ServiceConfig конфигурация сервиса синхронизации
type ServiceConfig struct {
	BatchSize      int `json:"batch_size"`
	MaxSyncRecords int `json:"max_sync_records"`
}

// ConflictTypeOf классифицирует конфликт по флагам удаления
func ConflictTypeOf(local, server RecordSync) ConflictType {
	switch {
	case local.Deleted && !server.Deleted:
		return ConflictDeleteEdit
	case !local.Deleted && server.Deleted:
		return ConflictEditDelete
	default:
		return ConflictEditEdit
	}
}
