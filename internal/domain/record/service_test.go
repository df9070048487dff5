package record

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) List(ctx context.Context, userID int, kind Kind) ([]Record, error) {
	args := m.Called(ctx, userID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Record), args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, userID int, id string) (*Record, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, rec *Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRepository) Update(ctx context.Context, rec *Record, expectedVersion int) error {
	args := m.Called(ctx, rec, expectedVersion)
	return args.Error(0)
}

func (m *MockRepository) SoftDelete(ctx context.Context, userID int, id string) (*Record, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) GetModifiedSince(ctx context.Context, userID int, since time.Time) ([]Record, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Record), args.Error(1)
}

func (m *MockRepository) SaveVersion(ctx context.Context, version *Version) error {
	args := m.Called(ctx, version)
	return args.Error(0)
}

func (m *MockRepository) GetVersions(ctx context.Context, recordID string) ([]Version, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Version), args.Error(1)
}

const testRecordID = "0f8fad5b-d9cb-469f-a165-70867728950e"

func tripPayload(t *testing.T, km float64) json.RawMessage {
	t.Helper()
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	data, err := json.Marshal(Trip{
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		DistanceKm: km,
		Type:       TripProfessional,
	})
	require.NoError(t, err)
	return data
}

func newTestService(repo Repository) *Service {
	return NewService(repo, NewFactory(), slog.Default())
}

func TestService_List(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	records := []Record{
		{ID: "a", UserID: 1, Kind: KindTrip, Version: 1, UpdatedAt: time.Now()},
		{ID: "b", UserID: 1, Kind: KindTrip, Version: 3, UpdatedAt: time.Now()},
	}
	mockRepo.On("List", mock.Anything, 1, KindTrip).Return(records, nil)

	response, err := service.List(context.Background(), 1, KindTrip)
	require.NoError(t, err)
	assert.Equal(t, 2, response.Total)
	assert.Equal(t, "b", response.Records[1].ID)
	assert.Equal(t, 3, response.Records[1].Version)

	_, err = service.List(context.Background(), 1, Kind("license"))
	assert.ErrorIs(t, err, ErrInvalidData)

	mockRepo.AssertExpectations(t)
}

func TestService_Create(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)
	payload := tripPayload(t, 42.5)

	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *Record) bool {
		return r.ID == testRecordID &&
			r.UserID == 1 &&
			r.Kind == KindTrip &&
			r.Version == 1 &&
			r.Checksum == Checksum(KindTrip, payload)
	})).Return(nil)

	rec, err := service.Create(context.Background(), 1, CreateRequest{ID: testRecordID, Kind: KindTrip, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, testRecordID, rec.ID)

	mockRepo.AssertExpectations(t)
}

func TestService_Create_GeneratesID(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *Record) bool {
		return len(r.ID) == 36
	})).Return(nil)

	rec, err := service.Create(context.Background(), 1, CreateRequest{Kind: KindTrip, Payload: tripPayload(t, 1)})
	require.NoError(t, err)
	assert.Len(t, rec.ID, 36)
}

func TestService_Create_InvalidData(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
	}{
		{name: "unknown kind", req: CreateRequest{Kind: "note", Payload: json.RawMessage(`{}`)}},
		{name: "bad id", req: CreateRequest{ID: "42", Kind: KindTrip, Payload: json.RawMessage(`{}`)}},
		{name: "negative distance", req: CreateRequest{Kind: KindTrip, Payload: json.RawMessage(`{"start_time":"2024-01-01T10:00:00Z","end_time":"2024-01-01T11:00:00Z","distance_km":-1,"type":"personal"}`)}},
		{name: "unknown field", req: CreateRequest{Kind: KindVehicle, Payload: json.RawMessage(`{"name":"Clio","type":"car","power":"4CV","energy":"fuel","colour":"red"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := newTestService(mockRepo)

			_, err := service.Create(context.Background(), 1, tt.req)
			assert.ErrorIs(t, err, ErrInvalidData)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Create_Duplicate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	mockRepo.On("Create", mock.Anything, mock.Anything).Return(ErrAlreadyExists)

	_, err := service.Create(context.Background(), 1, CreateRequest{ID: testRecordID, Kind: KindTrip, Payload: tripPayload(t, 3)})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestService_Find(t *testing.T) {
	deletedAt := time.Now()

	tests := []struct {
		name    string
		repoRec *Record
		repoErr error
		wantErr error
	}{
		{name: "found", repoRec: &Record{ID: testRecordID, Kind: KindTrip}},
		{name: "not found", repoErr: ErrNotFound, wantErr: ErrNotFound},
		{name: "deleted", repoRec: &Record{ID: testRecordID, DeletedAt: &deletedAt}, wantErr: ErrRecordDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := newTestService(mockRepo)

			if tt.repoRec != nil {
				mockRepo.On("Get", mock.Anything, 1, testRecordID).Return(tt.repoRec, nil)
			} else {
				mockRepo.On("Get", mock.Anything, 1, testRecordID).Return(nil, tt.repoErr)
			}

			rec, err := service.Find(context.Background(), 1, testRecordID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testRecordID, rec.ID)
		})
	}
}

func TestService_Update(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	current := &Record{ID: testRecordID, UserID: 1, Kind: KindTrip, Payload: tripPayload(t, 10), Version: 2}
	newPayload := tripPayload(t, 12)

	mockRepo.On("Get", mock.Anything, 1, testRecordID).Return(current, nil)
	mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(r *Record) bool {
		return r.Version == 3 && string(r.Payload) == string(newPayload)
	}), 2).Return(nil)
	mockRepo.On("SaveVersion", mock.Anything, mock.MatchedBy(func(v *Version) bool {
		return v.RecordID == testRecordID && v.Version == 2
	})).Return(nil)

	updated, err := service.Update(context.Background(), 1, testRecordID, UpdateRequest{Payload: newPayload, Version: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version)
	assert.Equal(t, 2, current.Version, "current record must stay untouched")

	mockRepo.AssertExpectations(t)
}

func TestService_Update_StaleVersion(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	mockRepo.On("Get", mock.Anything, 1, testRecordID).
		Return(&Record{ID: testRecordID, Kind: KindTrip, Version: 5}, nil)

	_, err := service.Update(context.Background(), 1, testRecordID, UpdateRequest{Payload: tripPayload(t, 1), Version: 4})
	assert.ErrorIs(t, err, ErrVersionConflict)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Update_RaceLost(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	mockRepo.On("Get", mock.Anything, 1, testRecordID).
		Return(&Record{ID: testRecordID, Kind: KindTrip, Version: 1}, nil)
	mockRepo.On("Update", mock.Anything, mock.Anything, 1).Return(ErrVersionConflict)

	_, err := service.Update(context.Background(), 1, testRecordID, UpdateRequest{Payload: tripPayload(t, 1), Version: 1})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestService_Delete(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	now := time.Now()
	current := &Record{ID: testRecordID, Kind: KindExpense, Version: 1}
	tombstone := &Record{ID: testRecordID, Kind: KindExpense, Version: 2, DeletedAt: &now}

	mockRepo.On("Get", mock.Anything, 1, testRecordID).Return(current, nil).Once()
	mockRepo.On("SoftDelete", mock.Anything, 1, testRecordID).Return(tombstone, nil)
	mockRepo.On("SaveVersion", mock.Anything, mock.Anything).Return(errors.New("versions table locked"))

	deleted, err := service.Delete(context.Background(), 1, testRecordID)
	require.NoError(t, err, "version history failure must not fail delete")
	assert.True(t, deleted.IsDeleted())
	assert.Equal(t, 2, deleted.Version)

	mockRepo.AssertExpectations(t)
}

func TestService_Delete_AlreadyDeleted(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	now := time.Now()
	mockRepo.On("Get", mock.Anything, 1, testRecordID).Return(&Record{ID: testRecordID, DeletedAt: &now}, nil)

	rec, err := service.Delete(context.Background(), 1, testRecordID)
	require.NoError(t, err)
	assert.True(t, rec.IsDeleted())
	mockRepo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_GetVersions(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	mockRepo.On("Get", mock.Anything, 2, testRecordID).Return(nil, ErrNotFound)

	_, err := service.GetVersions(context.Background(), 2, testRecordID)
	assert.ErrorIs(t, err, ErrNotFound)
	mockRepo.AssertNotCalled(t, "GetVersions", mock.Anything, mock.Anything)
}
