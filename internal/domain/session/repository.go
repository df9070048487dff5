package session

import (
	"context"
	"time"
)

// Repository хранит только SHA-256 хэши refresh-токенов
type Repository interface {
	Create(ctx context.Context, userID int, tokenHash string, expiresAt time.Time) error
	// Rotate отзывает активную сессию oldHash и создает новую, возвращает владельца
	Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (int, error)
	Revoke(ctx context.Context, tokenHash string) error
}
