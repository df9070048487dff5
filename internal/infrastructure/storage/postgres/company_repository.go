package postgres

import (
	"context"
	"fmt"

	"motium/internal/domain/company"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"
)

type CompanyRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewCompanyRepository(db *Storage, log *slog.Logger) *CompanyRepository {
	return &CompanyRepository{
		db:  db,
		log: log.With("component", "company_repository"),
	}
}

func (r *CompanyRepository) CreateProAccount(ctx context.Context, acc *company.ProAccount) error {
	err := r.db.Pool().QueryRow(ctx, `
		INSERT INTO pro_accounts (owner_id, company_name, siret, billing_email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		acc.OwnerID, acc.CompanyName, acc.Siret, acc.BillingEmail,
	).Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return company.ErrProAccountExists
		}
		return fmt.Errorf("insert pro account: %w", err)
	}
	return nil
}

func (r *CompanyRepository) GetProAccountByOwner(ctx context.Context, ownerID int) (*company.ProAccount, error) {
	var acc company.ProAccount
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, owner_id, company_name, siret, billing_email, created_at, updated_at
		FROM pro_accounts WHERE owner_id = $1`, ownerID).
		Scan(&acc.ID, &acc.OwnerID, &acc.CompanyName, &acc.Siret, &acc.BillingEmail, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, company.ErrProAccountNotFound
		}
		return nil, fmt.Errorf("select pro account: %w", err)
	}
	return &acc, nil
}

func (r *CompanyRepository) CreateLink(ctx context.Context, link *company.Link, tokenHash string) error {
	err := r.db.Pool().QueryRow(ctx, `
		INSERT INTO company_links (pro_account_id, email, status, share_trips, token_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, invited_at`,
		link.ProAccountID, link.Email, string(link.Status), link.ShareTrips, tokenHash,
	).Scan(&link.ID, &link.InvitedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return company.ErrLinkExists
		}
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

const linkQuery = `
	SELECT l.id, l.pro_account_id, p.company_name, l.user_id, l.email, l.status, l.share_trips,
	       l.invited_at, l.activated_at, l.revoked_at
	FROM company_links l JOIN pro_accounts p ON p.id = l.pro_account_id`

func (r *CompanyRepository) GetLink(ctx context.Context, proAccountID, linkID int) (*company.Link, error) {
	link, err := scanLink(r.db.Pool().QueryRow(ctx,
		linkQuery+` WHERE l.pro_account_id = $1 AND l.id = $2`, proAccountID, linkID))
	if err != nil {
		if isNoRows(err) {
			return nil, company.ErrLinkNotFound
		}
		return nil, fmt.Errorf("select link: %w", err)
	}
	return link, nil
}

func (r *CompanyRepository) ListLinks(ctx context.Context, proAccountID int) ([]company.Link, error) {
	return r.queryLinks(ctx, linkQuery+` WHERE l.pro_account_id = $1 ORDER BY l.invited_at`, proAccountID)
}

func (r *CompanyRepository) ListUserLinks(ctx context.Context, userID int) ([]company.Link, error) {
	return r.queryLinks(ctx, linkQuery+` WHERE l.user_id = $1 ORDER BY l.activated_at`, userID)
}

func (r *CompanyRepository) FindPendingByToken(ctx context.Context, tokenHash string) (*company.Link, error) {
	link, err := scanLink(r.db.Pool().QueryRow(ctx,
		linkQuery+` WHERE l.token_hash = $1 AND l.status = 'pending'`, tokenHash))
	if err != nil {
		if isNoRows(err) {
			return nil, company.ErrLinkNotFound
		}
		return nil, fmt.Errorf("select link by token: %w", err)
	}
	return link, nil
}

func (r *CompanyRepository) ActivateLink(ctx context.Context, linkID, userID int) (*company.Link, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE company_links SET status = 'active', user_id = $2, activated_at = now(), token_hash = NULL
		WHERE id = $1 AND status = 'pending'`, linkID, userID)
	if err != nil {
		return nil, fmt.Errorf("activate link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, company.ErrLinkNotFound
	}

	link, err := scanLink(r.db.Pool().QueryRow(ctx, linkQuery+` WHERE l.id = $1`, linkID))
	if err != nil {
		return nil, fmt.Errorf("select link: %w", err)
	}
	return link, nil
}

func (r *CompanyRepository) RevokeLink(ctx context.Context, proAccountID, linkID int) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE company_links SET status = 'revoked', revoked_at = now(), token_hash = NULL
			WHERE pro_account_id = $1 AND id = $2 AND status <> 'revoked'`, proAccountID, linkID)
		if err != nil {
			return fmt.Errorf("revoke link: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return company.ErrLinkNotFound
		}

		if _, err := tx.Exec(ctx, `
			UPDATE licenses SET status = 'available', link_id = NULL, assigned_at = NULL
			WHERE link_id = $1`, linkID); err != nil {
			return fmt.Errorf("release license: %w", err)
		}
		return nil
	})
}

func (r *CompanyRepository) AddLicenses(ctx context.Context, proAccountID, count int) ([]company.License, error) {
	rows, err := r.db.Pool().Query(ctx, `
		INSERT INTO licenses (pro_account_id)
		SELECT $1::int FROM generate_series(1, $2::int)
		RETURNING `+licenseColumns, proAccountID, count)
	if err != nil {
		return nil, fmt.Errorf("insert licenses: %w", err)
	}
	return scanLicenses(rows)
}

func (r *CompanyRepository) ListLicenses(ctx context.Context, proAccountID int) ([]company.License, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE pro_account_id = $1 ORDER BY id`, proAccountID)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	return scanLicenses(rows)
}

func (r *CompanyRepository) GetLicense(ctx context.Context, proAccountID, licenseID int) (*company.License, error) {
	lic, err := scanLicense(r.db.Pool().QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE pro_account_id = $1 AND id = $2`, proAccountID, licenseID))
	if err != nil {
		if isNoRows(err) {
			return nil, company.ErrLicenseNotFound
		}
		return nil, fmt.Errorf("select license: %w", err)
	}
	return lic, nil
}

func (r *CompanyRepository) AssignLicense(ctx context.Context, licenseID, linkID int) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE licenses SET status = 'assigned', link_id = $2, assigned_at = now()
		WHERE id = $1 AND status = 'available'`, licenseID, linkID)
	if err != nil {
		if isUniqueViolation(err) {
			return company.ErrLinkHasLicense
		}
		return fmt.Errorf("assign license: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return company.ErrLicenseUnavailable
	}
	return nil
}

func (r *CompanyRepository) UnassignLicense(ctx context.Context, licenseID int) error {
	_, err := r.db.Pool().Exec(ctx, `
		UPDATE licenses SET status = 'available', link_id = NULL, assigned_at = NULL
		WHERE id = $1`, licenseID)
	if err != nil {
		return fmt.Errorf("unassign license: %w", err)
	}
	return nil
}

func (r *CompanyRepository) queryLinks(ctx context.Context, query string, arg int) ([]company.Link, error) {
	rows, err := r.db.Pool().Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []company.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

func scanLink(row pgx.Row) (*company.Link, error) {
	var (
		link   company.Link
		status string
	)
	err := row.Scan(&link.ID, &link.ProAccountID, &link.CompanyName, &link.UserID, &link.Email, &status,
		&link.ShareTrips, &link.InvitedAt, &link.ActivatedAt, &link.RevokedAt)
	if err != nil {
		return nil, err
	}
	link.Status = company.LinkStatus(status)
	return &link, nil
}

const licenseColumns = `id, pro_account_id, link_id, status, assigned_at, created_at`

func scanLicense(row pgx.Row) (*company.License, error) {
	var (
		lic    company.License
		status string
	)
	if err := row.Scan(&lic.ID, &lic.ProAccountID, &lic.LinkID, &status, &lic.AssignedAt, &lic.CreatedAt); err != nil {
		return nil, err
	}
	lic.Status = company.LicenseStatus(status)
	return &lic, nil
}

func scanLicenses(rows pgx.Rows) ([]company.License, error) {
	defer rows.Close()

	var licenses []company.License
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		licenses = append(licenses, *lic)
	}
	return licenses, rows.Err()
}
