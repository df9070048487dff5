package postgres

import (
	"context"
	"fmt"
	"time"

	"motium/internal/domain/session"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"
)

type SessionRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewSessionRepository(db *Storage, log *slog.Logger) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: log.With("component", "session_repository"),
	}
}

func (r *SessionRepository) Create(ctx context.Context, userID int, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO sessions (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Rotate гасит старую сессию и создает новую в одной транзакции,
// повторное использование refresh-токена не пройдет
func (r *SessionRepository) Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (int, error) {
	var userID int
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE sessions SET revoked_at = now()
			 WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > now()
			 RETURNING user_id`,
			oldHash).Scan(&userID)
		if err != nil {
			if isNoRows(err) {
				return session.ErrInvalidSession
			}
			return fmt.Errorf("revoke session: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO sessions (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
			userID, newHash, expiresAt); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (r *SessionRepository) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.Pool().Exec(ctx,
		`UPDATE sessions SET revoked_at = now() WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteExpired удаляет истекшие и отозванные сессии старше retention
func (r *SessionRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	tag, err := r.db.Pool().Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
