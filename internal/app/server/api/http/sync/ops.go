package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) getChangesOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-changes",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/changes",
		Summary:     "Получить изменения для синхронизации",
		Description: "Возвращает записи с updated_at позже since, включая удаленные. server_time используется как следующий since.",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) batchSyncOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-batch",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/batch",
		Summary:     "Пакетная синхронизация записей",
		Description: "Каждая запись применяется, отклоняется или возвращается как конфликт с серверной копией",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) getStatusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/status",
		Summary:     "Получить статус синхронизации",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) getConflictsOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-conflicts",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/conflicts",
		Summary:     "Неразрешенные конфликты синхронизации",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) resolveConflictOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-resolve-conflict",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/conflicts/{id}/resolve",
		Summary:     "Отметить конфликт разрешенным",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) getDevicesOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-devices",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/devices",
		Summary:     "Список устройств",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) removeDeviceOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-remove-device",
		Method:      http.MethodDelete,
		Path:        "/api/v1/sync/devices/{id}",
		Summary:     "Удалить устройство",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}
