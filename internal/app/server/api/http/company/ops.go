package company

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) op(id, method, path, summary string) huma.Operation {
	return huma.Operation{
		OperationID: id,
		Method:      method,
		Path:        path,
		Summary:     summary,
		Tags:        []string{"company"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) createProAccountOp() huma.Operation {
	op := h.op("company-create", http.MethodPost, "/api/v1/company", "Создать профессиональный аккаунт")
	op.DefaultStatus = http.StatusCreated
	return op
}

func (h *Handler) getProAccountOp() huma.Operation {
	return h.op("company-get", http.MethodGet, "/api/v1/company", "Профессиональный аккаунт текущего пользователя")
}

func (h *Handler) inviteOp() huma.Operation {
	op := h.op("company-invite", http.MethodPost, "/api/v1/company/links", "Пригласить сотрудника")
	op.Description = "Токен приглашения возвращается один раз и передается сотруднику вне сервиса"
	op.DefaultStatus = http.StatusCreated
	return op
}

func (h *Handler) listLinksOp() huma.Operation {
	return h.op("company-links", http.MethodGet, "/api/v1/company/links", "Связанные аккаунты")
}

func (h *Handler) revokeLinkOp() huma.Operation {
	return h.op("company-revoke-link", http.MethodDelete, "/api/v1/company/links/{id}", "Отозвать связь")
}

func (h *Handler) linkedTripsOp() huma.Operation {
	return h.op("company-link-trips", http.MethodGet, "/api/v1/company/links/{id}/trips", "Поездки сотрудника")
}

func (h *Handler) acceptOp() huma.Operation {
	return h.op("company-accept", http.MethodPost, "/api/v1/company/invitations/accept", "Принять приглашение")
}

func (h *Handler) myLinksOp() huma.Operation {
	return h.op("company-memberships", http.MethodGet, "/api/v1/company/memberships", "Компании, с которыми связан пользователь")
}

func (h *Handler) addLicensesOp() huma.Operation {
	op := h.op("company-add-licenses", http.MethodPost, "/api/v1/company/licenses", "Добавить лицензии")
	op.DefaultStatus = http.StatusCreated
	return op
}

func (h *Handler) listLicensesOp() huma.Operation {
	return h.op("company-licenses", http.MethodGet, "/api/v1/company/licenses", "Лицензии компании")
}

func (h *Handler) assignLicenseOp() huma.Operation {
	return h.op("company-assign-license", http.MethodPost, "/api/v1/company/licenses/{id}/assign", "Назначить лицензию связи")
}

func (h *Handler) unassignLicenseOp() huma.Operation {
	return h.op("company-unassign-license", http.MethodPost, "/api/v1/company/licenses/{id}/unassign", "Освободить лицензию")
}
