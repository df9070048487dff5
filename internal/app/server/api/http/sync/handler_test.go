package sync

import (
	"context"
	"net/http"
	"testing"
	"time"

	"motium/internal/app/server/api/http/middleware/auth"
	"motium/internal/domain/record"
	"motium/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetChanges(ctx context.Context, userID int, device sync.DeviceInfo, req sync.GetChangesRequest) (*sync.GetChangesResponse, error) {
	args := m.Called(ctx, userID, device, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.GetChangesResponse), args.Error(1)
}

func (m *MockService) ProcessBatch(ctx context.Context, userID int, device sync.DeviceInfo, req sync.BatchSyncRequest) (*sync.BatchSyncResponse, error) {
	args := m.Called(ctx, userID, device, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.BatchSyncResponse), args.Error(1)
}

func (m *MockService) GetStatus(ctx context.Context, userID int) (*sync.GetStatusResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.GetStatusResponse), args.Error(1)
}

func (m *MockService) GetConflicts(ctx context.Context, userID int) (*sync.GetConflictsResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.GetConflictsResponse), args.Error(1)
}

func (m *MockService) ResolveConflict(ctx context.Context, userID, conflictID int, req sync.ResolveConflictRequest) (*sync.ResolveConflictResponse, error) {
	args := m.Called(ctx, userID, conflictID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.ResolveConflictResponse), args.Error(1)
}

func (m *MockService) GetDevices(ctx context.Context, userID int) ([]sync.DeviceInfo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sync.DeviceInfo), args.Error(1)
}

func (m *MockService) RemoveDevice(ctx context.Context, userID int, deviceID string) (*sync.RemoveDeviceResponse, error) {
	args := m.Called(ctx, userID, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.RemoveDeviceResponse), args.Error(1)
}

const (
	userID   = 3
	deviceID = "5d3c2a8e-1b7f-4c1e-9d55-0f2a6b4e8c71"
	recID    = "0b8f6a0e-3a41-4a3c-9a3e-6f1f8c0d2b11"
)

func asUser(ctx huma.Context, next func(huma.Context)) {
	next(huma.WithContext(ctx, auth.WithUserID(ctx.Context(), userID)))
}

func setup(t *testing.T) (humatest.TestAPI, *MockService) {
	_, api := humatest.New(t)
	svc := new(MockService)
	NewHandler(svc, slog.Default(), huma.Middlewares{asUser}).SetupRoutes(api)
	return api, svc
}

func TestHandler_GetChanges(t *testing.T) {
	api, svc := setup(t)
	serverTime := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	svc.On("GetChanges", mock.Anything, userID,
		mock.MatchedBy(func(d sync.DeviceInfo) bool { return d.ID == deviceID && d.Name == "laptop" }),
		sync.GetChangesRequest{
			Since: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Kind:  record.KindTrip,
			Limit: 50,
		},
	).Return(&sync.GetChangesResponse{Status: "Ok", ServerTime: serverTime, HasMore: true}, nil)

	resp := api.Get("/api/v1/sync/changes?since=2024-03-01T00:00:00Z&kind=trip&limit=50",
		"X-Device-ID: "+deviceID, "X-Device-Name: laptop")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"has_more":true`)
	assert.Contains(t, resp.Body.String(), `"server_time":"2024-03-04T12:00:00Z"`)
}

func TestHandler_GetChanges_Cursor(t *testing.T) {
	api, svc := setup(t)

	svc.On("GetChanges", mock.Anything, userID, mock.Anything, sync.GetChangesRequest{
		Since:   time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC),
		AfterID: recID,
	}).Return(&sync.GetChangesResponse{Status: "Ok"}, nil)

	resp := api.Get("/api/v1/sync/changes?since=2024-03-01T10:00:00.123456Z&after_id=" + recID)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	svc.AssertExpectations(t)
}

func TestHandler_GetChanges_BadSince(t *testing.T) {
	api, _ := setup(t)

	resp := api.Get("/api/v1/sync/changes?since=last-week")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandler_BatchSync(t *testing.T) {
	api, svc := setup(t)

	svc.On("ProcessBatch", mock.Anything, userID, mock.Anything, mock.MatchedBy(func(req sync.BatchSyncRequest) bool {
		return len(req.Records) == 1 && req.Records[0].ID == recID && req.Records[0].Deleted
	})).Return(&sync.BatchSyncResponse{
		Status:    "Ok",
		Conflicts: 1,
		Results:   []sync.RecordResult{{ID: recID, Status: sync.ResultConflict, ConflictID: 9, Version: 4}},
	}, nil)

	resp := api.Post("/api/v1/sync/batch", map[string]any{
		"records": []map[string]any{{
			"id":         recID,
			"kind":       "expense",
			"version":    3,
			"deleted":    true,
			"created_at": "2024-03-01T00:00:00Z",
			"updated_at": "2024-03-01T00:00:00Z",
		}},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"conflict_id":9`)
}

func TestHandler_BatchSync_TooLarge(t *testing.T) {
	api, svc := setup(t)
	svc.On("ProcessBatch", mock.Anything, userID, mock.Anything, mock.Anything).Return(nil, sync.ErrBatchTooLarge)

	resp := api.Post("/api/v1/sync/batch", map[string]any{"records": []any{}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

func TestHandler_ResolveConflict(t *testing.T) {
	api, svc := setup(t)
	svc.On("ResolveConflict", mock.Anything, userID, 9, sync.ResolveConflictRequest{Resolution: "server"}).
		Return(&sync.ResolveConflictResponse{Status: "Ok"}, nil)
	svc.On("ResolveConflict", mock.Anything, userID, 10, mock.Anything).Return(nil, sync.ErrConflictNotFound)

	resp := api.Post("/api/v1/sync/conflicts/9/resolve", map[string]any{"resolution": "server"})
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = api.Post("/api/v1/sync/conflicts/10/resolve", map[string]any{"resolution": "client"})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.Post("/api/v1/sync/conflicts/9/resolve", map[string]any{"resolution": "coin-flip"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestHandler_Devices(t *testing.T) {
	api, svc := setup(t)
	svc.On("GetDevices", mock.Anything, userID).Return([]sync.DeviceInfo{{ID: deviceID, Name: "laptop"}}, nil)
	svc.On("RemoveDevice", mock.Anything, userID, deviceID).Return(nil, sync.ErrDeviceNotFound)

	resp := api.Get("/api/v1/sync/devices")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "laptop")

	resp = api.Delete("/api/v1/sync/devices/" + deviceID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
