package sync

import (
	"time"

	"motium/internal/domain/record"
)

// GetChangesRequest запрос на получение изменений.
// Страницы идут по курсору (updated_at, id): следующая страница начинается
// после последней полученной записи, Since = ее updated_at, AfterID = ее id.
type GetChangesRequest struct {
	Since   time.Time
	AfterID string
	Kind    record.Kind
	Limit   int
}

// GetChangesResponse ответ с изменениями
type GetChangesResponse struct {
	Status      string       `json:"status"`
	Error       string       `json:"error,omitempty"`
	Records     []RecordSync `json:"records"`
	HasMore     bool         `json:"has_more"`
	ServerTime  time.Time    `json:"server_time"`
	SyncVersion int64        `json:"sync_version,omitempty"`
}

// BatchSyncRequest запрос на пакетную синхронизацию
type BatchSyncRequest struct {
	Records []RecordSync `json:"records"`
}

// BatchSyncResponse ответ на пакетную синхронизацию
type BatchSyncResponse struct {
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Conflicts int            `json:"conflicts"`
	Results   []RecordResult `json:"results"`
}

// GetStatusResponse ответ со статусом синхронизации
type GetStatusResponse struct {
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Data   *SyncStatus `json:"data,omitempty"`
	Stats  *SyncStats  `json:"stats,omitempty"`
}

// GetConflictsResponse ответ с конфликтами
type GetConflictsResponse struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Data   []Conflict `json:"data"`
}

// ResolveConflictRequest запрос на разрешение конфликта
type ResolveConflictRequest struct {
	Resolution string `json:"resolution" enum:"client,server,merged"`
}

// ResolveConflictResponse ответ на разрешение конфликта
type ResolveConflictResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// GetDevicesResponse ответ со списком устройств
type GetDevicesResponse struct {
	Status string       `json:"status"`
	Error  string       `json:"error,omitempty"`
	Data   []DeviceInfo `json:"data"`
}

// RemoveDeviceResponse ответ на удаление устройства
type RemoveDeviceResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
