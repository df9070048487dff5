package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	Register(ctx context.Context, req BaseRequest) (int, error)
	Authenticate(ctx context.Context, req BaseRequest) (User, error)
	FindByID(ctx context.Context, id int) (User, error)
}

type Service struct {
	repo      Repository
	validator Validator
	log       *slog.Logger
}

func NewService(repo Repository, validator Validator, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		log:       log.With("component", "user_service"),
	}
}

func (s *Service) Register(ctx context.Context, req BaseRequest) (int, error) {
	email := normalizeEmail(req.Email)
	if err := s.validator.ValidateRegister(email, req.Password); err != nil {
		s.log.Debug("validation failed", "email", email, "error", err)
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.Create(ctx, email, string(hash))
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", "user_id", id)
	return id, nil
}

func (s *Service) Authenticate(ctx context.Context, req BaseRequest) (User, error) {
	email := normalizeEmail(req.Email)
	if err := s.validator.ValidateEmail(email); err != nil {
		return User{}, ErrInvalidAuth
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return User{}, ErrInvalidAuth
	}

	return user, nil
}

func (s *Service) FindByID(ctx context.Context, id int) (User, error) {
	return s.repo.FindByID(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
