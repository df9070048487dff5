package sync

import (
	"motium/internal/domain/sync"
)

// deviceHeaders - сведения об устройстве из заголовков запроса
type deviceHeaders struct {
	DeviceID   string `header:"X-Device-ID" doc:"UUID устройства"`
	DeviceName string `header:"X-Device-Name" doc:"Имя устройства"`
	UserAgent  string `header:"User-Agent"`
}

func (d deviceHeaders) device() sync.DeviceInfo {
	return sync.DeviceInfo{
		ID:        d.DeviceID,
		Name:      d.DeviceName,
		UserAgent: d.UserAgent,
	}
}

type getChangesInput struct {
	deviceHeaders
	Since   string `query:"since" doc:"RFC3339, пусто - полная выгрузка"`
	AfterID string `query:"after_id" doc:"id последней полученной записи с updated_at = since"`
	Kind    string `query:"kind" enum:"trip,expense,vehicle,work_schedule"`
	Limit   int    `query:"limit" minimum:"0"`
}

type getChangesOutput struct {
	Body *sync.GetChangesResponse
}

type batchSyncInput struct {
	deviceHeaders
	Body sync.BatchSyncRequest
}

type batchSyncOutput struct {
	Body *sync.BatchSyncResponse
}

type getStatusOutput struct {
	Body *sync.GetStatusResponse
}

type getConflictsOutput struct {
	Body *sync.GetConflictsResponse
}

type resolveConflictInput struct {
	ID   int `path:"id" minimum:"1"`
	Body sync.ResolveConflictRequest
}

type resolveConflictOutput struct {
	Body *sync.ResolveConflictResponse
}

type getDevicesOutput struct {
	Body sync.GetDevicesResponse
}

type removeDeviceInput struct {
	ID string `path:"id" format:"uuid"`
}

type removeDeviceOutput struct {
	Body *sync.RemoveDeviceResponse
}
