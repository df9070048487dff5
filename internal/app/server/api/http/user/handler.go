package user

import (
	"context"
	"errors"

	"motium/internal/domain/session"
	"motium/internal/domain/user"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    user.Servicer
	session    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service user.Servicer, session session.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		session:    session,
		log:        log.With("component", "auth_handler"),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
	huma.Register(api, h.loginOp(), h.login)
	huma.Register(api, h.refreshOp(), h.refresh)
	huma.Register(api, h.logoutOp(), h.logout)
}

func (h *Handler) register(ctx context.Context, input *registerInput) (*registerOutput, error) {
	userID, err := h.service.Register(ctx, input.Body)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidInput):
			return nil, huma.Error422UnprocessableEntity(err.Error())
		case errors.Is(err, user.ErrUserExists):
			return nil, huma.Error409Conflict("user already exists")
		}
		h.log.Error("register failed", "error", err)
		return nil, huma.Error500InternalServerError("registration failed")
	}

	return &registerOutput{
		Body: RegisterResponse{ID: userID, Status: "Ok"},
	}, nil
}

func (h *Handler) login(ctx context.Context, input *loginInput) (*tokenOutput, error) {
	u, err := h.service.Authenticate(ctx, input.Body)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) || errors.Is(err, user.ErrInvalidAuth) {
			return nil, huma.Error401Unauthorized("invalid credentials")
		}
		h.log.Error("authenticate failed", "error", err)
		return nil, huma.Error500InternalServerError("login failed")
	}

	pair, err := h.session.Issue(ctx, u.ID)
	if err != nil {
		h.log.Error("issue tokens failed", "user_id", u.ID, "error", err)
		return nil, huma.Error500InternalServerError("login failed")
	}

	return &tokenOutput{
		Body: TokenResponse{TokenPair: pair, UserID: u.ID, Status: "Ok"},
	}, nil
}

func (h *Handler) refresh(ctx context.Context, input *refreshInput) (*tokenOutput, error) {
	pair, err := h.session.Refresh(ctx, input.Body.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			return nil, huma.Error401Unauthorized("invalid refresh token")
		}
		h.log.Error("refresh failed", "error", err)
		return nil, huma.Error500InternalServerError("refresh failed")
	}

	return &tokenOutput{
		Body: TokenResponse{TokenPair: pair, Status: "Ok"},
	}, nil
}

func (h *Handler) logout(ctx context.Context, input *logoutInput) (*logoutOutput, error) {
	if err := h.session.Revoke(ctx, input.Body.RefreshToken); err != nil {
		h.log.Error("logout failed", "error", err)
		return nil, huma.Error500InternalServerError("logout failed")
	}

	out := &logoutOutput{}
	out.Body.Status = "Ok"
	return out, nil
}
