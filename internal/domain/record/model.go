package record

import (
	"encoding/json"
	"time"
)

// Record - синхронизируемая запись пользователя.
// UpdatedAt выставляется только часами сервера.
type Record struct {
	ID        string          `json:"id"`
	UserID    int             `json:"user_id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Version   int             `json:"version"`
	Checksum  string          `json:"checksum,omitempty"`
	DeviceID  string          `json:"device_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

func (r *Record) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Payload - типизированное содержимое записи
type Payload interface {
	Kind() Kind
	Validate() error
}

// Version - снимок записи до изменения
type Version struct {
	ID        int             `json:"id"`
	RecordID  string          `json:"record_id"`
	Version   int             `json:"version"`
	Payload   json.RawMessage `json:"payload"`
	Checksum  string          `json:"checksum"`
	CreatedAt time.Time       `json:"created_at"`
}

type CreateRequest struct {
	ID       string          `json:"id,omitempty" doc:"UUID, сгенерированный клиентом"`
	Kind     Kind            `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	DeviceID string          `json:"device_id,omitempty"`
}

type UpdateRequest struct {
	Payload  json.RawMessage `json:"payload"`
	Version  int             `json:"version" doc:"Версия, на основе которой сделано изменение"`
	DeviceID string          `json:"device_id,omitempty"`
}

type Item struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ListResponse struct {
	Records []Item `json:"records"`
	Total   int    `json:"total"`
}
