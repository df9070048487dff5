package client

import (
	"encoding/json"
	"errors"
	"time"

	"motium/internal/domain/record"
	domainsync "motium/internal/domain/sync"
)

var (
	ErrNotFound         = errors.New("запись не найдена")
	ErrRecordDeleted    = errors.New("запись удалена")
	ErrRecordInConflict = errors.New("запись в конфликте, сначала разрешите его")
	ErrConflictNotFound = errors.New("конфликт не найден")
	ErrUnauthenticated  = errors.New("требуется вход в аккаунт")
	ErrOffline          = errors.New("сервер недоступен")
	ErrSyncInProgress   = errors.New("синхронизация уже выполняется")
)

// SyncStatus - состояние локальной записи относительно сервера
type SyncStatus string

const (
	StatusSynced   SyncStatus = "synced"
	StatusPending  SyncStatus = "pending"
	StatusConflict SyncStatus = "conflict"
)

// Record - локальная копия синхронизируемой записи.
// UpdatedAt - время локального изменения, ServerUpdatedAt - время сервера.
type Record struct {
	ID              string          `json:"id"`
	Kind            record.Kind     `json:"kind"`
	Payload         json.RawMessage `json:"payload"`
	Version         int             `json:"version"`
	SyncStatus      SyncStatus      `json:"sync_status"`
	Deleted         bool            `json:"deleted"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ServerUpdatedAt *time.Time      `json:"server_updated_at,omitempty"`
}

func (r *Record) toSync() domainsync.RecordSync {
	rs := domainsync.RecordSync{
		ID:        r.ID,
		Kind:      r.Kind,
		Payload:   r.Payload,
		Version:   r.Version,
		Deleted:   r.Deleted,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Deleted {
		rs.Payload = nil
	}
	return rs
}

// OpType - вид отложенной операции
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// PendingOp - операция, ожидающая отправки на сервер, одна на запись
type PendingOp struct {
	RecordID      string    `json:"record_id"`
	Op            OpType    `json:"op"`
	Attempts      int       `json:"attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Conflict - локально сохраненный конфликт, ожидающий ручного решения
type Conflict struct {
	RecordID         string                  `json:"record_id"`
	Kind             record.Kind             `json:"kind"`
	LocalPayload     json.RawMessage         `json:"local_payload,omitempty"`
	LocalVersion     int                     `json:"local_version"`
	LocalDeleted     bool                    `json:"local_deleted"`
	ServerPayload    json.RawMessage         `json:"server_payload,omitempty"`
	ServerVersion    int                     `json:"server_version"`
	ServerDeleted    bool                    `json:"server_deleted"`
	ServerUpdatedAt  time.Time               `json:"server_updated_at"`
	ServerConflictID int                     `json:"server_conflict_id,omitempty"`
	ConflictType     domainsync.ConflictType `json:"conflict_type"`
	CreatedAt        time.Time               `json:"created_at"`
}

func (c *Conflict) server() domainsync.RecordSync {
	return domainsync.RecordSync{
		ID:        c.RecordID,
		Kind:      c.Kind,
		Payload:   c.ServerPayload,
		Version:   c.ServerVersion,
		Deleted:   c.ServerDeleted,
		UpdatedAt: c.ServerUpdatedAt,
	}
}

// SyncError ошибка синхронизации отдельной записи
type SyncError struct {
	RecordID  string    `json:"record_id,omitempty"`
	Error     string    `json:"error"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncResult результат синхронизации
type SyncResult struct {
	Success    bool          `json:"success"`
	Uploaded   int           `json:"uploaded"`
	Downloaded int           `json:"downloaded"`
	Conflicts  int           `json:"conflicts"`
	Resolved   int           `json:"resolved"`
	Errors     []SyncError   `json:"errors"`
	Duration   time.Duration `json:"duration"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
}

// SyncStats накопленная статистика синхронизации клиента
type SyncStats struct {
	TotalSyncs      int       `json:"total_syncs"`
	LastSuccessful  time.Time `json:"last_successful"`
	LastFailed      time.Time `json:"last_failed"`
	TotalUploaded   int       `json:"total_uploaded"`
	TotalDownloaded int       `json:"total_downloaded"`
	TotalConflicts  int       `json:"total_conflicts"`
	TotalResolved   int       `json:"total_resolved"`
	TotalErrors     int       `json:"total_errors"`
}

// LocalStatus - сводка для `sync --status`
type LocalStatus struct {
	LastSync time.Time              `json:"last_sync"`
	Counts   map[SyncStatus]int     `json:"counts"`
	Pending  int                    `json:"pending"`
	Failed   []PendingOp            `json:"failed"`
	Stats    SyncStats              `json:"stats"`
	Server   *domainsync.SyncStatus `json:"server,omitempty"`
}
