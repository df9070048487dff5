package company

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"motium/internal/domain/record"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const MaxLicensesPerPurchase = 100

type Servicer interface {
	CreateProAccount(ctx context.Context, ownerID int, req CreateProAccountRequest) (*ProAccount, error)
	GetProAccount(ctx context.Context, ownerID int) (*ProAccount, error)
	InviteUser(ctx context.Context, ownerID int, req InviteRequest) (*Invitation, error)
	AcceptInvitation(ctx context.Context, userID int, token string) (*Link, error)
	RevokeLink(ctx context.Context, ownerID, linkID int) error
	ListLinks(ctx context.Context, ownerID int) ([]Link, error)
	ListMyLinks(ctx context.Context, userID int) ([]Link, error)
	AddLicenses(ctx context.Context, ownerID, count int) ([]License, error)
	ListLicenses(ctx context.Context, ownerID int) ([]License, error)
	AssignLicense(ctx context.Context, ownerID, licenseID, linkID int) error
	UnassignLicense(ctx context.Context, ownerID, licenseID int) error
	LinkedTrips(ctx context.Context, ownerID, linkID int) ([]record.Record, error)
}

type Service struct {
	repo  Repository
	users UserFinder
	trips TripLister
	log   *slog.Logger
}

func NewService(repo Repository, users UserFinder, trips TripLister, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		users: users,
		trips: trips,
		log:   log.With("component", "company_service"),
	}
}

func (s *Service) CreateProAccount(ctx context.Context, ownerID int, req CreateProAccountRequest) (*ProAccount, error) {
	acc := &ProAccount{
		OwnerID:      ownerID,
		CompanyName:  strings.TrimSpace(req.CompanyName),
		Siret:        strings.ReplaceAll(req.Siret, " ", ""),
		BillingEmail: strings.ToLower(strings.TrimSpace(req.BillingEmail)),
	}

	if acc.CompanyName == "" {
		return nil, fmt.Errorf("%w: company_name is required", ErrInvalidInput)
	}
	if acc.Siret != "" && !isSiret(acc.Siret) {
		return nil, fmt.Errorf("%w: siret must contain 14 digits", ErrInvalidInput)
	}
	if !validEmail(acc.BillingEmail) {
		return nil, fmt.Errorf("%w: billing_email is invalid", ErrInvalidInput)
	}

	if err := s.repo.CreateProAccount(ctx, acc); err != nil {
		if errors.Is(err, ErrProAccountExists) {
			return nil, ErrProAccountExists
		}
		return nil, fmt.Errorf("create pro account: %w", err)
	}

	s.log.Info("pro account created", "pro_account_id", acc.ID, "owner_id", ownerID)
	return acc, nil
}

func (s *Service) GetProAccount(ctx context.Context, ownerID int) (*ProAccount, error) {
	acc, err := s.repo.GetProAccountByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrProAccountNotFound) {
			return nil, ErrProAccountNotFound
		}
		return nil, fmt.Errorf("get pro account: %w", err)
	}
	return acc, nil
}

// InviteUser создает приглашение. Письмо не отправляется, токен возвращается вызывающему.
func (s *Service) InviteUser(ctx context.Context, ownerID int, req InviteRequest) (*Invitation, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}

	acc, err := s.GetProAccount(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("find owner: %w", err)
	}
	if owner.Email == email {
		return nil, ErrSelfLink
	}

	token := uuid.NewString()
	link := &Link{
		ProAccountID: acc.ID,
		CompanyName:  acc.CompanyName,
		Email:        email,
		Status:       LinkPending,
		ShareTrips:   req.ShareTrips,
	}

	if err := s.repo.CreateLink(ctx, link, hashToken(token)); err != nil {
		if errors.Is(err, ErrLinkExists) {
			return nil, ErrLinkExists
		}
		return nil, fmt.Errorf("create link: %w", err)
	}

	s.log.Info("user invited", "pro_account_id", acc.ID, "link_id", link.ID)
	return &Invitation{Link: *link, Token: token}, nil
}

func (s *Service) AcceptInvitation(ctx context.Context, userID int, token string) (*Link, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	link, err := s.repo.FindPendingByToken(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("find invitation: %w", err)
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u.Email != link.Email {
		return nil, ErrEmailMismatch
	}

	activated, err := s.repo.ActivateLink(ctx, link.ID, userID)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("activate link: %w", err)
	}

	s.log.Info("invitation accepted", "link_id", link.ID, "user_id", userID)
	return activated, nil
}

func (s *Service) RevokeLink(ctx context.Context, ownerID, linkID int) error {
	acc, err := s.GetProAccount(ctx, ownerID)
	if err != nil {
		return err
	}

	link, err := s.repo.GetLink(ctx, acc.ID, linkID)
	if err != nil {
		return err
	}
	if link.Status == LinkRevoked {
		return nil
	}

	if err := s.repo.RevokeLink(ctx, acc.ID, linkID); err != nil {
		return fmt.Errorf("revoke link: %w", err)
	}

	s.log.Info("link revoked", "pro_account_id", acc.ID, "link_id", linkID)
	return nil
}

func (s *Service) ListLinks(ctx context.Context, ownerID int) ([]Link, error) {
	acc, err := s.GetProAccount(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLinks(ctx, acc.ID)
}

func (s *Service) ListMyLinks(ctx context.Context, userID int) ([]Link, error) {
	return s.repo.ListUserLinks(ctx, userID)
}

// AddLicenses выпускает лицензии, оплата происходит вне сервиса
func (s *Service) AddLicenses(ctx context.Context, ownerID, count int) ([]License, error) {
	if count < 1 || count > MaxLicensesPerPurchase {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidInput, MaxLicensesPerPurchase)
	}

	acc, err := s.GetProAccount(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	licenses, err := s.repo.AddLicenses(ctx, acc.ID, count)
	if err != nil {
		return nil, fmt.Errorf("add licenses: %w", err)
	}
	return licenses, nil
}

func (s *Service) ListLicenses(ctx context.Context, ownerID int) ([]License, error) {
	acc, err := s.GetProAccount(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLicenses(ctx, acc.ID)
}

func (s *Service) AssignLicense(ctx context.Context, ownerID, licenseID, linkID int) error {
	acc, err := s.GetProAccount(ctx, ownerID)
	if err != nil {
		return err
	}

	lic, err := s.repo.GetLicense(ctx, acc.ID, licenseID)
	if err != nil {
		return err
	}
	if lic.Status != LicenseAvailable {
		return ErrLicenseUnavailable
	}

	link, err := s.repo.GetLink(ctx, acc.ID, linkID)
	if err != nil {
		return err
	}
	if link.Status != LinkActive {
		return ErrLinkNotActive
	}

	if err := s.repo.AssignLicense(ctx, licenseID, linkID); err != nil {
		if errors.Is(err, ErrLinkHasLicense) || errors.Is(err, ErrLicenseUnavailable) {
			return err
		}
		return fmt.Errorf("assign license: %w", err)
	}
	return nil
}

func (s *Service) UnassignLicense(ctx context.Context, ownerID, licenseID int) error {
	acc, err := s.GetProAccount(ctx, ownerID)
	if err != nil {
		return err
	}

	lic, err := s.repo.GetLicense(ctx, acc.ID, licenseID)
	if err != nil {
		return err
	}
	if lic.Status == LicenseAvailable {
		return nil
	}

	return s.repo.UnassignLicense(ctx, licenseID)
}

// LinkedTrips возвращает поездки сотрудника, если он разрешил доступ
func (s *Service) LinkedTrips(ctx context.Context, ownerID, linkID int) ([]record.Record, error) {
	acc, err := s.GetProAccount(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	link, err := s.repo.GetLink(ctx, acc.ID, linkID)
	if err != nil {
		return nil, err
	}
	if link.Status != LinkActive || link.UserID == nil {
		return nil, ErrLinkNotActive
	}
	if !link.ShareTrips {
		return nil, ErrTripsNotShared
	}

	return s.trips.GetByKind(ctx, *link.UserID, record.KindTrip)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func isSiret(s string) bool {
	if len(s) != 14 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
