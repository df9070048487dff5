package company

import "time"

// ProAccount - профессиональный аккаунт компании, один на владельца
type ProAccount struct {
	ID           int       `json:"id"`
	OwnerID      int       `json:"owner_id"`
	CompanyName  string    `json:"company_name"`
	Siret        string    `json:"siret,omitempty"`
	BillingEmail string    `json:"billing_email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type LinkStatus string

const (
	LinkPending LinkStatus = "pending"
	LinkActive  LinkStatus = "active"
	LinkRevoked LinkStatus = "revoked"
)

// Link - связь сотрудника с профессиональным аккаунтом
type Link struct {
	ID           int        `json:"id"`
	ProAccountID int        `json:"pro_account_id"`
	CompanyName  string     `json:"company_name,omitempty"`
	UserID       *int       `json:"user_id,omitempty"`
	Email        string     `json:"email"`
	Status       LinkStatus `json:"status"`
	ShareTrips   bool       `json:"share_trips"`
	InvitedAt    time.Time  `json:"invited_at"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

type LicenseStatus string

const (
	LicenseAvailable LicenseStatus = "available"
	LicenseAssigned  LicenseStatus = "assigned"
)

type License struct {
	ID           int           `json:"id"`
	ProAccountID int           `json:"pro_account_id"`
	LinkID       *int          `json:"link_id,omitempty"`
	Status       LicenseStatus `json:"status"`
	AssignedAt   *time.Time    `json:"assigned_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

type CreateProAccountRequest struct {
	CompanyName  string `json:"company_name" minLength:"1" maxLength:"200"`
	Siret        string `json:"siret,omitempty" doc:"14 цифр"`
	BillingEmail string `json:"billing_email"`
}

type InviteRequest struct {
	Email      string `json:"email"`
	ShareTrips bool   `json:"share_trips"`
}

// Invitation - результат приглашения, токен показывается один раз
type Invitation struct {
	Link  Link   `json:"link"`
	Token string `json:"token"`
}
