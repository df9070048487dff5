package record

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "records-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/records",
		Summary:     "Список записей пользователя",
		Tags:        []string{"records"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "records-create",
		Method:        http.MethodPost,
		Path:          "/api/v1/records",
		Summary:       "Создать запись",
		Description:   "ID может сгенерировать клиент, тогда повторная отправка вернет 409.",
		Tags:          []string{"records"},
		DefaultStatus: http.StatusCreated,
		Security:      bearer,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) modifiedOp() huma.Operation {
	return huma.Operation{
		OperationID: "records-modified",
		Method:      http.MethodGet,
		Path:        "/api/v1/records/modified",
		Summary:     "Записи, измененные после момента since, включая удаленные",
		Tags:        []string{"records"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) findOp() huma.Operation {
	return huma.Operation{
		OperationID: "records-find",
		Method:      http.MethodGet,
		Path:        "/api/v1/records/{id}",
		Summary:     "Получить запись",
		Tags:        []string{"records"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) updateOp() huma.Operation {
	return huma.Operation{
		OperationID: "records-update",
		Method:      http.MethodPut,
		Path:        "/api/v1/records/{id}",
		Summary:     "Обновить запись",
		Description: "Версия в теле должна совпадать с текущей, иначе 409.",
		Tags:        []string{"records"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID: "records-delete",
		Method:      http.MethodDelete,
		Path:        "/api/v1/records/{id}",
		Summary:     "Удалить запись (мягкое удаление)",
		Tags:        []string{"records"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) versionsOp() huma.Operation {
	return huma.Operation{
		OperationID: "records-versions",
		Method:      http.MethodGet,
		Path:        "/api/v1/records/{id}/versions",
		Summary:     "История версий записи",
		Tags:        []string{"records"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}
