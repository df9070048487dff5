package postgres

import (
	"context"
	"fmt"

	"motium/internal/domain/user"

	"golang.org/x/exp/slog"
)

func NewUserRepository(db *Storage, log *slog.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: log.With("component", "user_repository"),
	}
}

type UserRepository struct {
	db  *Storage
	log *slog.Logger
}

func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (int, error) {
	var userID int
	err := r.db.Pool().QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`,
		email, passwordHash).Scan(&userID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, user.ErrUserExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return userID, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email)
}

func (r *UserRepository) FindByID(ctx context.Context, id int) (user.User, error) {
	return r.findOne(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (user.User, error) {
	var u user.User
	err := r.db.Pool().QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return u, user.ErrNotFound
		}
		return u, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}
