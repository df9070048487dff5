package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair - пара токенов, выдаваемая при входе и обновлении
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" doc:"Срок действия access-токена"`
}

// Claims - полезная нагрузка access-токена
type Claims struct {
	UserID int `json:"uid"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}
