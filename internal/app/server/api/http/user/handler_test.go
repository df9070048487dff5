package user

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"motium/internal/domain/session"
	"motium/internal/domain/user"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, req user.BaseRequest) (int, error) {
	args := m.Called(ctx, req)
	return args.Int(0), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, req user.BaseRequest) (user.User, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(user.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, id int) (user.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(user.User), args.Error(1)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Issue(ctx context.Context, userID int) (session.TokenPair, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(session.TokenPair), args.Error(1)
}

func (m *MockSessionService) Validate(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

func (m *MockSessionService) Refresh(ctx context.Context, token string) (session.TokenPair, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(session.TokenPair), args.Error(1)
}

func (m *MockSessionService) Revoke(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func setup(t *testing.T) (humatest.TestAPI, *MockUserService, *MockSessionService) {
	_, api := humatest.New(t)
	users := new(MockUserService)
	sessions := new(MockSessionService)
	NewHandler(users, sessions, slog.Default(), nil).SetupRoutes(api)
	return api, users, sessions
}

var pair = session.TokenPair{
	AccessToken:  "access",
	RefreshToken: "refresh",
	ExpiresAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
}

func TestHandler_Register(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "created", wantStatus: http.StatusCreated},
		{name: "invalid input", err: user.ErrInvalidInput, wantStatus: http.StatusUnprocessableEntity},
		{name: "duplicate", err: user.ErrUserExists, wantStatus: http.StatusConflict},
		{name: "storage failure", err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, users, _ := setup(t)
			users.On("Register", mock.Anything, user.BaseRequest{Email: "a@b.fr", Password: "secret123"}).Return(5, tt.err)

			resp := api.Post("/api/v1/auth/register", map[string]any{"email": "a@b.fr", "password": "secret123"})
			assert.Equal(t, tt.wantStatus, resp.Code)
			if tt.err == nil {
				assert.Contains(t, resp.Body.String(), `"user_id":5`)
			}
		})
	}
}

func TestHandler_Login(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		api, users, sessions := setup(t)
		users.On("Authenticate", mock.Anything, mock.Anything).Return(user.User{ID: 5}, nil)
		sessions.On("Issue", mock.Anything, 5).Return(pair, nil)

		resp := api.Post("/api/v1/auth/login", map[string]any{"email": "a@b.fr", "password": "secret123"})
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"access_token":"access"`)
		assert.Contains(t, resp.Body.String(), `"refresh_token":"refresh"`)
	})

	t.Run("wrong password", func(t *testing.T) {
		api, users, sessions := setup(t)
		users.On("Authenticate", mock.Anything, mock.Anything).Return(user.User{}, user.ErrInvalidAuth)

		resp := api.Post("/api/v1/auth/login", map[string]any{"email": "a@b.fr", "password": "nope12345"})
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		sessions.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	})
}

func TestHandler_Refresh(t *testing.T) {
	api, _, sessions := setup(t)
	sessions.On("Refresh", mock.Anything, "refresh").Return(pair, nil)
	sessions.On("Refresh", mock.Anything, "reused").Return(session.TokenPair{}, session.ErrInvalidSession)

	resp := api.Post("/api/v1/auth/refresh", map[string]any{"refresh_token": "refresh"})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"access_token":"access"`)

	resp = api.Post("/api/v1/auth/refresh", map[string]any{"refresh_token": "reused"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestHandler_Logout(t *testing.T) {
	api, _, sessions := setup(t)
	sessions.On("Revoke", mock.Anything, "refresh").Return(nil)

	resp := api.Post("/api/v1/auth/logout", map[string]any{"refresh_token": "refresh"})
	assert.Equal(t, http.StatusOK, resp.Code)
	sessions.AssertExpectations(t)
}
