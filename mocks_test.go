package access_test

import (
	"context"

	"github.com/goliatone/go-access"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockIdentityStore implements access.IdentityStore
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) GetAccountByID(ctx context.Context, id uuid.UUID) (*access.Account, error) {
	args := m.Called(ctx, id)
	if account, ok := args.Get(0).(*access.Account); ok {
		return account, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) GetActiveAccountByUsername(ctx context.Context, username string) (*access.Account, error) {
	args := m.Called(ctx, username)
	if account, ok := args.Get(0).(*access.Account); ok {
		return account, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) CreateAccount(ctx context.Context, account *access.Account) (*access.Account, error) {
	args := m.Called(ctx, account)
	if created, ok := args.Get(0).(*access.Account); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) UpdateAccountRole(ctx context.Context, id uuid.UUID, role access.AccountRole) (*access.Account, error) {
	args := m.Called(ctx, id, role)
	if account, ok := args.Get(0).(*access.Account); ok {
		return account, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIdentityStore) GetAbilityProfile(ctx context.Context, accountID uuid.UUID) (*access.AbilityProfile, error) {
	args := m.Called(ctx, accountID)
	if profile, ok := args.Get(0).(*access.AbilityProfile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) CreateAbilityProfile(ctx context.Context, profile *access.AbilityProfile) (*access.AbilityProfile, error) {
	args := m.Called(ctx, profile)
	if created, ok := args.Get(0).(*access.AbilityProfile); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) GetKeyByValue(ctx context.Context, keyValue string) (*access.InvitationKey, error) {
	args := m.Called(ctx, keyValue)
	if key, ok := args.Get(0).(*access.InvitationKey); ok {
		return key, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) InsertKey(ctx context.Context, key *access.InvitationKey) (*access.InvitationKey, error) {
	args := m.Called(ctx, key)
	if created, ok := args.Get(0).(*access.InvitationKey); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) MarkKeyRedeemed(ctx context.Context, keyID int64, usedBy uuid.UUID) error {
	args := m.Called(ctx, keyID, usedBy)
	return args.Error(0)
}

func (m *MockIdentityStore) DeleteKey(ctx context.Context, keyID int64) error {
	args := m.Called(ctx, keyID)
	return args.Error(0)
}

func (m *MockIdentityStore) ListKeys(ctx context.Context, offset, limit int) ([]*access.InvitationKey, int, error) {
	args := m.Called(ctx, offset, limit)
	if keys, ok := args.Get(0).([]*access.InvitationKey); ok {
		return keys, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *MockIdentityStore) AllKeys(ctx context.Context) ([]*access.InvitationKey, error) {
	args := m.Called(ctx)
	if keys, ok := args.Get(0).([]*access.InvitationKey); ok {
		return keys, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) ProcAuthenticate(ctx context.Context, username, passwordDigest string) ([]access.AuthenticatedRow, error) {
	args := m.Called(ctx, username, passwordDigest)
	if rows, ok := args.Get(0).([]access.AuthenticatedRow); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) ProcRegister(ctx context.Context, username, email, passwordDigest string) (*access.Account, error) {
	args := m.Called(ctx, username, email, passwordDigest)
	if account, ok := args.Get(0).(*access.Account); ok {
		return account, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityStore) ProcIssueKey(ctx context.Context, key *access.InvitationKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// testConfig implements access.Config with test-friendly values. The bcrypt
// cost is the minimum the library accepts so hashing stays fast.
type testConfig struct{}

func (testConfig) GetSigningKey() string   { return "test-signing-key" }
func (testConfig) GetTokenExpiration() int { return 24 }
func (testConfig) GetIssuer() string       { return "access-test" }
func (testConfig) GetAudience() []string   { return []string{"app:test"} }
func (testConfig) GetBcryptCost() int      { return 4 }
func (testConfig) GetKeyValidityDays() int { return 30 }

// quietLogger drops everything, tests assert behavior not log lines
type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

func transientErr(op string) error {
	return access.NewStoreError(access.StoreTransient, op, nil)
}

func policyErr(op string) error {
	return access.NewStoreError(access.StorePolicyDenied, op, nil)
}

func notFoundErr(op string) error {
	return access.NewStoreError(access.StoreNotFound, op, nil)
}

func conflictErr(op string) error {
	return access.NewStoreError(access.StoreConflict, op, nil)
}
