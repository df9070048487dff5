package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/exp/slog"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
	DefaultIssuer     = "motium"
)

type Servicer interface {
	Issue(ctx context.Context, userID int) (TokenPair, error)
	Validate(ctx context.Context, accessToken string) (int, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
}

type Service struct {
	repo Repository
	cfg  Config
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo Repository, cfg Config, log *slog.Logger) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}

	return &Service{
		repo: repo,
		cfg:  cfg,
		log:  log.With("component", "session_service"),
		now:  time.Now,
	}
}

// Issue выдает новую пару токенов
func (s *Service) Issue(ctx context.Context, userID int) (TokenPair, error) {
	refresh, refreshHash, err := newRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.repo.Create(ctx, userID, refreshHash, s.now().Add(s.cfg.RefreshTTL)); err != nil {
		return TokenPair{}, fmt.Errorf("save session: %w", err)
	}

	return s.pair(userID, refresh)
}

// Validate проверяет access-токен и возвращает ID пользователя
func (s *Service) Validate(_ context.Context, accessToken string) (int, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

// Refresh обменивает refresh-токен на новую пару, старый токен отзывается
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, ErrInvalidSession
	}

	refresh, refreshHash, err := newRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	userID, err := s.repo.Rotate(ctx, hashToken(refreshToken), refreshHash, s.now().Add(s.cfg.RefreshTTL))
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return TokenPair{}, ErrInvalidSession
		}
		return TokenPair{}, fmt.Errorf("rotate session: %w", err)
	}

	s.log.Debug("session rotated", "user_id", userID)
	return s.pair(userID, refresh)
}

// Revoke завершает сессию
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	if err := s.repo.Revoke(ctx, hashToken(refreshToken)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *Service) pair(userID int, refresh string) (TokenPair, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

func newRefreshToken() (string, string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(tokenBytes)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
