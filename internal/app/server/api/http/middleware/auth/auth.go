package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"motium/internal/domain/session"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// TokenValidator проверяет access-токен и возвращает владельца
type TokenValidator interface {
	Validate(ctx context.Context, accessToken string) (int, error)
}

type Auth struct {
	tokens TokenValidator
	log    *slog.Logger
}

func New(tokens TokenValidator, log *slog.Logger) *Auth {
	return &Auth{
		tokens: tokens,
		log:    log.With("component", "auth_middleware"),
	}
}

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	DeviceIDKey contextKey = "deviceID"

	// DeviceHeader - идентификатор устройства клиента
	DeviceHeader = "X-Device-ID"

	ErrCodeMissingToken = "missing_token"
	ErrCodeInvalidToken = "invalid_token"
	ErrCodeTokenExpired = "token_expired"
)

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context))
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		header := ctx.Header("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			a.log.Debug("missing bearer token", "path", ctx.URL().Path)
			a.unauthorized(ctx, ErrCodeMissingToken)
			return
		}

		userID, err := a.tokens.Validate(ctx.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrTokenExpired) {
				a.unauthorized(ctx, ErrCodeTokenExpired)
				return
			}
			a.log.Debug("token rejected", "error", err)
			a.unauthorized(ctx, ErrCodeInvalidToken)
			return
		}

		newCtx := context.WithValue(ctx.Context(), UserIDKey, userID)
		if deviceID := ctx.Header(DeviceHeader); deviceID != "" {
			newCtx = context.WithValue(newCtx, DeviceIDKey, deviceID)
		}

		next(huma.WithContext(ctx, newCtx))
	}
}

// ErrorResponse - тело ответа 401, по коду клиент решает, обновлять ли токен
type ErrorResponse struct {
	Error string `json:"error"`
}

func (a *Auth) unauthorized(ctx huma.Context, code string) {
	ctx.SetHeader("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+code+`"`)
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusUnauthorized)

	err := json.NewEncoder(ctx.BodyWriter()).Encode(ErrorResponse{Error: code})
	if err != nil {
		a.log.Error("failed to write auth error", "error", err)
	}
}

func GetUserID(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}

func GetDeviceID(ctx context.Context) string {
	deviceID, _ := ctx.Value(DeviceIDKey).(string)
	return deviceID
}

// WithUserID кладет пользователя в контекст, используется в тестах обработчиков
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
