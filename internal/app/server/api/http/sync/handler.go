package sync

import (
	"context"
	"errors"
	"net/http"
	"time"

	"motium/internal/app/server/api/http/middleware/auth"
	"motium/internal/domain/record"
	"motium/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "sync_handler"),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.getChangesOp(), h.getChanges)
	huma.Register(api, h.batchSyncOp(), h.batchSync)
	huma.Register(api, h.getStatusOp(), h.getStatus)
	huma.Register(api, h.getConflictsOp(), h.getConflicts)
	huma.Register(api, h.resolveConflictOp(), h.resolveConflict)
	huma.Register(api, h.getDevicesOp(), h.getDevices)
	huma.Register(api, h.removeDeviceOp(), h.removeDevice)
}

func (h *Handler) getChanges(ctx context.Context, input *getChangesInput) (*getChangesOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	req := sync.GetChangesRequest{
		AfterID: input.AfterID,
		Kind:    record.Kind(input.Kind),
		Limit:   input.Limit,
	}
	if input.Since != "" {
		since, err := time.Parse(time.RFC3339Nano, input.Since)
		if err != nil {
			return nil, huma.Error400BadRequest("since must be an RFC3339 timestamp")
		}
		req.Since = since
	}

	resp, err := h.service.GetChanges(ctx, userID, input.device(), req)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &getChangesOutput{Body: resp}, nil
}

func (h *Handler) batchSync(ctx context.Context, input *batchSyncInput) (*batchSyncOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resp, err := h.service.ProcessBatch(ctx, userID, input.device(), input.Body)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &batchSyncOutput{Body: resp}, nil
}

func (h *Handler) getStatus(ctx context.Context, _ *struct{}) (*getStatusOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resp, err := h.service.GetStatus(ctx, userID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &getStatusOutput{Body: resp}, nil
}

func (h *Handler) getConflicts(ctx context.Context, _ *struct{}) (*getConflictsOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resp, err := h.service.GetConflicts(ctx, userID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &getConflictsOutput{Body: resp}, nil
}

func (h *Handler) resolveConflict(ctx context.Context, input *resolveConflictInput) (*resolveConflictOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resp, err := h.service.ResolveConflict(ctx, userID, input.ID, input.Body)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &resolveConflictOutput{Body: resp}, nil
}

func (h *Handler) getDevices(ctx context.Context, _ *struct{}) (*getDevicesOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	devices, err := h.service.GetDevices(ctx, userID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &getDevicesOutput{Body: sync.GetDevicesResponse{Status: "Ok", Data: devices}}, nil
}

func (h *Handler) removeDevice(ctx context.Context, input *removeDeviceInput) (*removeDeviceOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resp, err := h.service.RemoveDevice(ctx, userID, input.ID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &removeDeviceOutput{Body: resp}, nil
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, sync.ErrInvalidSyncRequest), errors.Is(err, sync.ErrInvalidResolution):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, sync.ErrBatchTooLarge):
		return huma.NewError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, sync.ErrConflictNotFound):
		return huma.Error404NotFound("conflict not found")
	case errors.Is(err, sync.ErrDeviceNotFound):
		return huma.Error404NotFound("device not found")
	}
	h.log.Error("sync operation failed", "error", err)
	return huma.Error500InternalServerError("internal error")
}
