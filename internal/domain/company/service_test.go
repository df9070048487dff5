package company

import (
	"context"
	"errors"
	"testing"
	"time"

	"motium/internal/domain/record"
	"motium/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateProAccount(ctx context.Context, acc *ProAccount) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockRepository) GetProAccountByOwner(ctx context.Context, ownerID int) (*ProAccount, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProAccount), args.Error(1)
}

func (m *MockRepository) CreateLink(ctx context.Context, link *Link, tokenHash string) error {
	args := m.Called(ctx, link, tokenHash)
	return args.Error(0)
}

func (m *MockRepository) GetLink(ctx context.Context, proAccountID, linkID int) (*Link, error) {
	args := m.Called(ctx, proAccountID, linkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Link), args.Error(1)
}

func (m *MockRepository) ListLinks(ctx context.Context, proAccountID int) ([]Link, error) {
	args := m.Called(ctx, proAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Link), args.Error(1)
}

func (m *MockRepository) ListUserLinks(ctx context.Context, userID int) ([]Link, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Link), args.Error(1)
}

func (m *MockRepository) FindPendingByToken(ctx context.Context, tokenHash string) (*Link, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Link), args.Error(1)
}

func (m *MockRepository) ActivateLink(ctx context.Context, linkID, userID int) (*Link, error) {
	args := m.Called(ctx, linkID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Link), args.Error(1)
}

func (m *MockRepository) RevokeLink(ctx context.Context, proAccountID, linkID int) error {
	args := m.Called(ctx, proAccountID, linkID)
	return args.Error(0)
}

func (m *MockRepository) AddLicenses(ctx context.Context, proAccountID, count int) ([]License, error) {
	args := m.Called(ctx, proAccountID, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]License), args.Error(1)
}

func (m *MockRepository) ListLicenses(ctx context.Context, proAccountID int) ([]License, error) {
	args := m.Called(ctx, proAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]License), args.Error(1)
}

func (m *MockRepository) GetLicense(ctx context.Context, proAccountID, licenseID int) (*License, error) {
	args := m.Called(ctx, proAccountID, licenseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*License), args.Error(1)
}

func (m *MockRepository) AssignLicense(ctx context.Context, licenseID, linkID int) error {
	args := m.Called(ctx, licenseID, linkID)
	return args.Error(0)
}

func (m *MockRepository) UnassignLicense(ctx context.Context, licenseID int) error {
	args := m.Called(ctx, licenseID)
	return args.Error(0)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) FindByID(ctx context.Context, id int) (user.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(user.User), args.Error(1)
}

type MockTrips struct {
	mock.Mock
}

func (m *MockTrips) GetByKind(ctx context.Context, userID int, kind record.Kind) ([]record.Record, error) {
	args := m.Called(ctx, userID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]record.Record), args.Error(1)
}

type fixture struct {
	repo    *MockRepository
	users   *MockUsers
	trips   *MockTrips
	service *Service
}

func newFixture() *fixture {
	f := &fixture{repo: new(MockRepository), users: new(MockUsers), trips: new(MockTrips)}
	f.service = NewService(f.repo, f.users, f.trips, slog.Default())
	return f
}

var acme = &ProAccount{ID: 10, OwnerID: 1, CompanyName: "Acme Transports", BillingEmail: "billing@acme.fr"}

func intPtr(v int) *int {
	return &v
}

func TestService_CreateProAccount(t *testing.T) {
	f := newFixture()

	f.repo.On("CreateProAccount", mock.Anything, mock.MatchedBy(func(a *ProAccount) bool {
		return a.OwnerID == 1 && a.Siret == "73282932000074" && a.BillingEmail == "billing@acme.fr"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*ProAccount).ID = 10
	}).Return(nil)

	acc, err := f.service.CreateProAccount(context.Background(), 1, CreateProAccountRequest{
		CompanyName:  " Acme Transports ",
		Siret:        "732 829 320 00074",
		BillingEmail: "Billing@Acme.fr",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, acc.ID)
	assert.Equal(t, "Acme Transports", acc.CompanyName)

	f.repo.AssertExpectations(t)
}

func TestService_CreateProAccount_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  CreateProAccountRequest
	}{
		{name: "no name", req: CreateProAccountRequest{BillingEmail: "a@b.fr"}},
		{name: "short siret", req: CreateProAccountRequest{CompanyName: "A", Siret: "123", BillingEmail: "a@b.fr"}},
		{name: "letters in siret", req: CreateProAccountRequest{CompanyName: "A", Siret: "1234567890123A", BillingEmail: "a@b.fr"}},
		{name: "bad email", req: CreateProAccountRequest{CompanyName: "A", BillingEmail: "billing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.service.CreateProAccount(context.Background(), 1, tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestService_CreateProAccount_Exists(t *testing.T) {
	f := newFixture()
	f.repo.On("CreateProAccount", mock.Anything, mock.Anything).Return(ErrProAccountExists)

	_, err := f.service.CreateProAccount(context.Background(), 1, CreateProAccountRequest{CompanyName: "A", BillingEmail: "a@b.fr"})
	assert.ErrorIs(t, err, ErrProAccountExists)
}

func TestService_InviteUser(t *testing.T) {
	f := newFixture()

	var storedHash string
	f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(acme, nil)
	f.users.On("FindByID", mock.Anything, 1).Return(user.User{ID: 1, Email: "boss@acme.fr"}, nil)
	f.repo.On("CreateLink", mock.Anything, mock.MatchedBy(func(l *Link) bool {
		return l.ProAccountID == 10 && l.Email == "driver@acme.fr" && l.Status == LinkPending && l.ShareTrips
	}), mock.MatchedBy(func(hash string) bool {
		storedHash = hash
		return len(hash) == 64
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*Link).ID = 3
	}).Return(nil)

	inv, err := f.service.InviteUser(context.Background(), 1, InviteRequest{Email: "Driver@Acme.fr", ShareTrips: true})
	require.NoError(t, err)
	assert.Equal(t, 3, inv.Link.ID)
	assert.NotEmpty(t, inv.Token)
	assert.Equal(t, hashToken(inv.Token), storedHash)

	f.repo.AssertExpectations(t)
}

func TestService_InviteUser_Errors(t *testing.T) {
	t.Run("self link", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(acme, nil)
		f.users.On("FindByID", mock.Anything, 1).Return(user.User{ID: 1, Email: "boss@acme.fr"}, nil)

		_, err := f.service.InviteUser(context.Background(), 1, InviteRequest{Email: "boss@acme.fr"})
		assert.ErrorIs(t, err, ErrSelfLink)
	})

	t.Run("no pro account", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(nil, ErrProAccountNotFound)

		_, err := f.service.InviteUser(context.Background(), 1, InviteRequest{Email: "driver@acme.fr"})
		assert.ErrorIs(t, err, ErrProAccountNotFound)
	})

	t.Run("already linked", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(acme, nil)
		f.users.On("FindByID", mock.Anything, 1).Return(user.User{ID: 1, Email: "boss@acme.fr"}, nil)
		f.repo.On("CreateLink", mock.Anything, mock.Anything, mock.Anything).Return(ErrLinkExists)

		_, err := f.service.InviteUser(context.Background(), 1, InviteRequest{Email: "driver@acme.fr"})
		assert.ErrorIs(t, err, ErrLinkExists)
	})

	t.Run("bad email", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.InviteUser(context.Background(), 1, InviteRequest{Email: "driver"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestService_AcceptInvitation(t *testing.T) {
	pending := &Link{ID: 3, ProAccountID: 10, Email: "driver@acme.fr", Status: LinkPending}
	now := time.Now()
	active := &Link{ID: 3, ProAccountID: 10, Email: "driver@acme.fr", Status: LinkActive, UserID: intPtr(5), ActivatedAt: &now}

	t.Run("accepted", func(t *testing.T) {
		f := newFixture()
		f.repo.On("FindPendingByToken", mock.Anything, hashToken("tok")).Return(pending, nil)
		f.users.On("FindByID", mock.Anything, 5).Return(user.User{ID: 5, Email: "driver@acme.fr"}, nil)
		f.repo.On("ActivateLink", mock.Anything, 3, 5).Return(active, nil)

		link, err := f.service.AcceptInvitation(context.Background(), 5, "tok")
		require.NoError(t, err)
		assert.Equal(t, LinkActive, link.Status)
	})

	t.Run("other email", func(t *testing.T) {
		f := newFixture()
		f.repo.On("FindPendingByToken", mock.Anything, hashToken("tok")).Return(pending, nil)
		f.users.On("FindByID", mock.Anything, 6).Return(user.User{ID: 6, Email: "other@acme.fr"}, nil)

		_, err := f.service.AcceptInvitation(context.Background(), 6, "tok")
		assert.ErrorIs(t, err, ErrEmailMismatch)
		f.repo.AssertNotCalled(t, "ActivateLink", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("used token", func(t *testing.T) {
		f := newFixture()
		f.repo.On("FindPendingByToken", mock.Anything, hashToken("tok")).Return(nil, ErrLinkNotFound)

		_, err := f.service.AcceptInvitation(context.Background(), 5, "tok")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty token", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.AcceptInvitation(context.Background(), 5, " ")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestService_RevokeLink(t *testing.T) {
	f := newFixture()
	f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(acme, nil)
	f.repo.On("GetLink", mock.Anything, 10, 3).Return(&Link{ID: 3, Status: LinkActive}, nil).Once()
	f.repo.On("RevokeLink", mock.Anything, 10, 3).Return(nil).Once()

	require.NoError(t, f.service.RevokeLink(context.Background(), 1, 3))

	f.repo.On("GetLink", mock.Anything, 10, 3).Return(&Link{ID: 3, Status: LinkRevoked}, nil).Once()
	require.NoError(t, f.service.RevokeLink(context.Background(), 1, 3), "revoking twice is a no-op")

	f.repo.AssertNumberOfCalls(t, "RevokeLink", 1)
}

func TestService_AssignLicense(t *testing.T) {
	tests := []struct {
		name    string
		license *License
		link    *Link
		repoErr error
		wantErr error
	}{
		{
			name:    "assigned",
			license: &License{ID: 4, Status: LicenseAvailable},
			link:    &Link{ID: 3, Status: LinkActive, UserID: intPtr(5)},
		},
		{
			name:    "license taken",
			license: &License{ID: 4, Status: LicenseAssigned},
			wantErr: ErrLicenseUnavailable,
		},
		{
			name:    "pending link",
			license: &License{ID: 4, Status: LicenseAvailable},
			link:    &Link{ID: 3, Status: LinkPending},
			wantErr: ErrLinkNotActive,
		},
		{
			name:    "link already licensed",
			license: &License{ID: 4, Status: LicenseAvailable},
			link:    &Link{ID: 3, Status: LinkActive, UserID: intPtr(5)},
			repoErr: ErrLinkHasLicense,
			wantErr: ErrLinkHasLicense,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(acme, nil)
			f.repo.On("GetLicense", mock.Anything, 10, 4).Return(tt.license, nil)
			if tt.link != nil {
				f.repo.On("GetLink", mock.Anything, 10, 3).Return(tt.link, nil)
			}
			f.repo.On("AssignLicense", mock.Anything, 4, 3).Return(tt.repoErr)

			err := f.service.AssignLicense(context.Background(), 1, 4, 3)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			f.repo.AssertCalled(t, "AssignLicense", mock.Anything, 4, 3)
		})
	}
}

func TestService_AddLicenses(t *testing.T) {
	f := newFixture()

	_, err := f.service.AddLicenses(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(acme, nil)
	f.repo.On("AddLicenses", mock.Anything, 10, 2).Return([]License{{ID: 1}, {ID: 2}}, nil)

	licenses, err := f.service.AddLicenses(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, licenses, 2)
}

func TestService_LinkedTrips(t *testing.T) {
	trips := []record.Record{{ID: "t1", Kind: record.KindTrip}}

	t.Run("shared", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(acme, nil)
		f.repo.On("GetLink", mock.Anything, 10, 3).Return(&Link{ID: 3, Status: LinkActive, UserID: intPtr(5), ShareTrips: true}, nil)
		f.trips.On("GetByKind", mock.Anything, 5, record.KindTrip).Return(trips, nil)

		got, err := f.service.LinkedTrips(context.Background(), 1, 3)
		require.NoError(t, err)
		assert.Equal(t, trips, got)
	})

	t.Run("not shared", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(acme, nil)
		f.repo.On("GetLink", mock.Anything, 10, 3).Return(&Link{ID: 3, Status: LinkActive, UserID: intPtr(5)}, nil)

		_, err := f.service.LinkedTrips(context.Background(), 1, 3)
		assert.ErrorIs(t, err, ErrTripsNotShared)
	})

	t.Run("revoked", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(acme, nil)
		f.repo.On("GetLink", mock.Anything, 10, 3).Return(&Link{ID: 3, Status: LinkRevoked, UserID: intPtr(5), ShareTrips: true}, nil)

		_, err := f.service.LinkedTrips(context.Background(), 1, 3)
		assert.ErrorIs(t, err, ErrLinkNotActive)
	})
}

func TestService_GetProAccount_RepositoryError(t *testing.T) {
	f := newFixture()
	f.repo.On("GetProAccountByOwner", mock.Anything, 1).Return(nil, errors.New("timeout"))

	_, err := f.service.GetProAccount(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProAccountNotFound)
}
