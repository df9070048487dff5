package user

import (
	"motium/internal/domain/session"
	"motium/internal/domain/user"
)

type registerInput struct {
	Body user.BaseRequest
}

type registerOutput struct {
	Body RegisterResponse
}

type RegisterResponse struct {
	ID     int    `json:"user_id"`
	Status string `json:"status"`
}

type loginInput struct {
	Body user.BaseRequest
}

type tokenOutput struct {
	Body TokenResponse
}

type TokenResponse struct {
	session.TokenPair
	UserID int    `json:"user_id,omitempty"`
	Status string `json:"status"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" minLength:"1"`
}

type refreshInput struct {
	Body RefreshRequest
}

type logoutInput struct {
	Body RefreshRequest
}

type logoutOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}
