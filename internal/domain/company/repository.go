package company

import (
	"context"

	"motium/internal/domain/record"
	"motium/internal/domain/user"
)

type Repository interface {
	CreateProAccount(ctx context.Context, acc *ProAccount) error
	GetProAccountByOwner(ctx context.Context, ownerID int) (*ProAccount, error)

	// CreateLink сохраняет приглашение, на email может быть одна неотозванная связь
	CreateLink(ctx context.Context, link *Link, tokenHash string) error
	GetLink(ctx context.Context, proAccountID, linkID int) (*Link, error)
	ListLinks(ctx context.Context, proAccountID int) ([]Link, error)
	ListUserLinks(ctx context.Context, userID int) ([]Link, error)
	FindPendingByToken(ctx context.Context, tokenHash string) (*Link, error)
	// ActivateLink привязывает пользователя и гасит токен
	ActivateLink(ctx context.Context, linkID, userID int) (*Link, error)
	// RevokeLink отзывает связь и освобождает ее лицензию
	RevokeLink(ctx context.Context, proAccountID, linkID int) error

	AddLicenses(ctx context.Context, proAccountID, count int) ([]License, error)
	ListLicenses(ctx context.Context, proAccountID int) ([]License, error)
	GetLicense(ctx context.Context, proAccountID, licenseID int) (*License, error)
	AssignLicense(ctx context.Context, licenseID, linkID int) error
	UnassignLicense(ctx context.Context, licenseID int) error
}

// UserFinder - источник данных о пользователях
type UserFinder interface {
	FindByID(ctx context.Context, id int) (user.User, error)
}

// TripLister - доступ к поездкам связанных пользователей
type TripLister interface {
	GetByKind(ctx context.Context, userID int, kind record.Kind) ([]record.Record, error)
}
