package record

import (
	"context"
	"errors"
	"time"

	"motium/internal/app/server/api/http/middleware/auth"
	"motium/internal/domain/record"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    record.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service record.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "record_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.modifiedOp(), h.modified)
	huma.Register(api, h.findOp(), h.find)
	huma.Register(api, h.updateOp(), h.update)
	huma.Register(api, h.deleteOp(), h.delete)
	huma.Register(api, h.versionsOp(), h.versions)
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	records, err := h.service.List(ctx, userID, record.Kind(input.Kind))
	if err != nil {
		return nil, h.mapError(err)
	}

	return &listOutput{Body: records}, nil
}

func (h *Handler) create(ctx context.Context, input *createInput) (*recordOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	req := input.Body
	if req.DeviceID == "" {
		req.DeviceID = auth.GetDeviceID(ctx)
	}

	rec, err := h.service.Create(ctx, userID, req)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &recordOutput{Body: recordResponse{Status: "Ok", Record: rec}}, nil
}

func (h *Handler) modified(ctx context.Context, input *modifiedInput) (*modifiedOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	since, err := time.Parse(time.RFC3339Nano, input.Since)
	if err != nil {
		return nil, huma.Error400BadRequest("since must be an RFC3339 timestamp")
	}

	records, err := h.service.GetModifiedSince(ctx, userID, since)
	if err != nil {
		return nil, h.mapError(err)
	}

	out := &modifiedOutput{}
	out.Body.Status = "Ok"
	out.Body.Records = records
	return out, nil
}

func (h *Handler) find(ctx context.Context, input *idInput) (*recordOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	rec, err := h.service.Find(ctx, userID, input.ID)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &recordOutput{Body: recordResponse{Status: "Ok", Record: rec}}, nil
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*recordOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	req := input.Body
	if req.DeviceID == "" {
		req.DeviceID = auth.GetDeviceID(ctx)
	}

	rec, err := h.service.Update(ctx, userID, input.ID, req)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &recordOutput{Body: recordResponse{Status: "Ok", Record: rec}}, nil
}

func (h *Handler) delete(ctx context.Context, input *idInput) (*recordOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	rec, err := h.service.Delete(ctx, userID, input.ID)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &recordOutput{Body: recordResponse{Status: "Ok", Record: rec}}, nil
}

func (h *Handler) versions(ctx context.Context, input *idInput) (*versionsOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	versions, err := h.service.GetVersions(ctx, userID, input.ID)
	if err != nil {
		return nil, h.mapError(err)
	}

	out := &versionsOutput{}
	out.Body.Status = "Ok"
	out.Body.Versions = versions
	return out, nil
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, record.ErrNotFound):
		return huma.Error404NotFound("record not found")
	case errors.Is(err, record.ErrRecordDeleted):
		return huma.Error410Gone("record deleted")
	case errors.Is(err, record.ErrVersionConflict):
		return huma.Error409Conflict("version conflict")
	case errors.Is(err, record.ErrAlreadyExists):
		return huma.Error409Conflict("record already exists")
	case errors.Is(err, record.ErrInvalidData):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	h.log.Error("record operation failed", "error", err)
	return huma.Error500InternalServerError("internal error")
}
