package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-access"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestServiceLoginSavesSession(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	store := new(MockIdentityStore)
	store.On("ProcAuthenticate", ctx, "wren", mock.Anything).Return([]access.AuthenticatedRow{
		{Account: *activeAccount(id, access.RoleBase)},
	}, nil)
	store.On("TouchLastLogin", ctx, id).Return(nil)

	sessions := access.NewMemorySessionStore()
	svc := access.NewService(store, sessions, testConfig{}).WithLogger(quietLogger{})

	resp := svc.Login(ctx, access.LoginRequest{Username: "wren", Password: "pw"})
	require.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.NotEmpty(t, resp.Data.Token)

	state, found, err := sessions.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, state.IsAuthenticated())
	assert.Equal(t, id.String(), state.Account.ID)
}

func TestServiceLoginFailureEnvelope(t *testing.T) {
	ctx := context.Background()

	store := new(MockIdentityStore)
	store.On("ProcAuthenticate", ctx, "wren", mock.Anything).Return(nil, transientErr("proc_authenticate"))
	store.On("GetActiveAccountByUsername", ctx, "wren").Return(nil, notFoundErr("get_active_account"))

	sessions := access.NewMemorySessionStore()
	svc := access.NewService(store, sessions, testConfig{}).WithLogger(quietLogger{})

	resp := svc.Login(ctx, access.LoginRequest{Username: "wren", Password: "nope"})
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.NotEmpty(t, resp.Message)
	assert.ErrorIs(t, resp.Err, access.ErrInvalidCredentials)

	_, found, err := sessions.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestServiceLoginValidation(t *testing.T) {
	ctx := context.Background()
	store := new(MockIdentityStore)
	svc := access.NewService(store, access.NewMemorySessionStore(), testConfig{}).WithLogger(quietLogger{})

	resp := svc.Login(ctx, access.LoginRequest{Username: "w", Password: ""})
	assert.False(t, resp.Success)
	// invalid payloads never reach the store
	store.AssertNotCalled(t, "ProcAuthenticate", mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceRegisterValidation(t *testing.T) {
	ctx := context.Background()
	store := new(MockIdentityStore)
	svc := access.NewService(store, access.NewMemorySessionStore(), testConfig{}).WithLogger(quietLogger{})

	tests := []struct {
		name string
		req  access.RegisterRequest
	}{
		{
			name: "mismatched confirmation",
			req: access.RegisterRequest{
				Username: "wren", Email: "wren@example.com",
				Password: "long-enough-pw", ConfirmPassword: "different-pw",
			},
		},
		{
			name: "bad email",
			req: access.RegisterRequest{
				Username: "wren", Email: "not-an-email",
				Password: "long-enough-pw", ConfirmPassword: "long-enough-pw",
			},
		},
		{
			name: "short password",
			req: access.RegisterRequest{
				Username: "wren", Email: "wren@example.com",
				Password: "short", ConfirmPassword: "short",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := svc.Register(ctx, tt.req)
			assert.False(t, resp.Success)
		})
	}

	store.AssertNotCalled(t, "ProcRegister", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceRegisterDoesNotCreateSession(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	store := new(MockIdentityStore)
	store.On("ProcRegister", ctx, "wren", "wren@example.com", mock.Anything).
		Return(activeAccount(id, access.RoleBase), nil)
	store.On("GetAbilityProfile", ctx, id).Return(&access.AbilityProfile{AccountID: id}, nil)

	sessions := access.NewMemorySessionStore()
	svc := access.NewService(store, sessions, testConfig{}).WithLogger(quietLogger{})

	resp := svc.Register(ctx, access.RegisterRequest{
		Username: "wren", Email: "wren@example.com",
		Password: "long-enough-pw", ConfirmPassword: "long-enough-pw",
	})
	require.True(t, resp.Success)
	assert.Empty(t, resp.Data.Token)

	// the new account logs in afterwards, no session is established
	_, found, err := sessions.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestServiceLogoutClearsSession(t *testing.T) {
	ctx := context.Background()
	sessions := access.NewMemorySessionStore()
	require.NoError(t, sessions.Save(ctx, access.SessionState{
		Token:   "tok",
		Account: access.AccountView{ID: "id"},
	}))

	svc := access.NewService(new(MockIdentityStore), sessions, testConfig{}).WithLogger(quietLogger{})

	resp := svc.Logout(ctx)
	assert.True(t, resp.Success)

	_, found, err := sessions.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestServiceCheckStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	minter := access.NewTokenMinter(testConfig{})
	token, err := minter.Mint(id, access.RoleBase)
	require.NoError(t, err)

	t.Run("no stored session", func(t *testing.T) {
		sessions := access.NewMemorySessionStore()
		svc := access.NewService(new(MockIdentityStore), sessions, testConfig{}).WithLogger(quietLogger{})

		resp := svc.CheckStatus(ctx)
		assert.False(t, resp.Success)
	})

	t.Run("valid session refreshed from store", func(t *testing.T) {
		store := new(MockIdentityStore)
		store.On("GetAccountByID", ctx, id).Return(activeAccount(id, access.RoleExaminer), nil)
		store.On("GetAbilityProfile", ctx, id).Return(&access.AbilityProfile{AccountID: id}, nil)

		sessions := access.NewMemorySessionStore()
		require.NoError(t, sessions.Save(ctx, access.SessionState{
			Token:   token,
			Account: access.AccountView{ID: id.String(), Role: access.RoleBase},
		}))

		svc := access.NewService(store, sessions, testConfig{}).WithLogger(quietLogger{})

		resp := svc.CheckStatus(ctx)
		require.True(t, resp.Success)
		assert.Equal(t, access.RoleExaminer, resp.Data.Account.Role)

		state, found, err := sessions.Load(ctx)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, access.RoleExaminer, state.Account.Role)
	})

	t.Run("stale session is cleared", func(t *testing.T) {
		store := new(MockIdentityStore)
		store.On("GetAccountByID", ctx, id).Return(nil, notFoundErr("get_account"))

		sessions := access.NewMemorySessionStore()
		require.NoError(t, sessions.Save(ctx, access.SessionState{
			Token:   token,
			Account: access.AccountView{ID: id.String()},
		}))

		svc := access.NewService(store, sessions, testConfig{}).WithLogger(quietLogger{})

		resp := svc.CheckStatus(ctx)
		assert.False(t, resp.Success)

		_, found, err := sessions.Load(ctx)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestServiceRedeemKeepsStoredToken(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	store := new(MockIdentityStore)
	store.On("GetKeyByValue", ctx, "K").Return(&access.InvitationKey{
		ID: 1, KeyValue: "K", KeyType: access.KeyTypePromotion,
		ExpiresAt: time.Now().Add(time.Hour), MaxUses: 1,
	}, nil)
	store.On("UpdateAccountRole", ctx, userID, access.RoleExaminer).
		Return(&access.Account{ID: userID, Role: access.RoleExaminer, Status: access.StatusActive}, nil)
	store.On("MarkKeyRedeemed", ctx, int64(1), userID).Return(nil)
	store.On("GetAbilityProfile", ctx, userID).Return(nil, notFoundErr("get_ability_profile"))

	sessions := access.NewMemorySessionStore()
	require.NoError(t, sessions.Save(ctx, access.SessionState{
		Token:   "existing-token",
		Account: access.AccountView{ID: userID.String(), Role: access.RoleBase},
	}))

	svc := access.NewService(store, sessions, testConfig{}).WithLogger(quietLogger{})

	resp := svc.Redeem(ctx, userID, access.RedeemRequest{KeyValue: "K"})
	require.True(t, resp.Success)
	assert.Equal(t, "existing-token", resp.Data.Token)
	assert.Equal(t, access.RoleExaminer, resp.Data.Account.Role)

	state, found, err := sessions.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, access.RoleExaminer, state.Account.Role)
	assert.Equal(t, "existing-token", state.Token)
}

func TestServiceRedeemValidation(t *testing.T) {
	ctx := context.Background()
	store := new(MockIdentityStore)
	svc := access.NewService(store, access.NewMemorySessionStore(), testConfig{}).WithLogger(quietLogger{})

	resp := svc.Redeem(ctx, uuid.New(), access.RedeemRequest{KeyValue: ""})
	assert.False(t, resp.Success)

	resp = svc.Redeem(ctx, uuid.New(), access.RedeemRequest{KeyValue: "K", TargetUserID: "not-a-uuid"})
	assert.False(t, resp.Success)

	store.AssertNotCalled(t, "GetKeyByValue", mock.Anything, mock.Anything)
}

func TestServiceIssueKeyDegradedMessage(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.New()

	store := adminStore(ctx, adminID)
	store.On("InsertKey", ctx, mock.Anything).Return(nil, transientErr("insert_key"))
	store.On("ProcIssueKey", ctx, mock.Anything).Return(nil)
	store.On("GetKeyByValue", ctx, mock.Anything).Return(nil, transientErr("get_key"))

	svc := access.NewService(store, access.NewMemorySessionStore(), testConfig{}).WithLogger(quietLogger{})

	resp := svc.IssueKey(ctx, adminID, access.IssueKeyRequest{KeyType: access.KeyTypeInvitation})
	require.True(t, resp.Success)
	assert.True(t, resp.Data.Degraded)
	assert.Contains(t, resp.Message, "unconfirmed")
}

func TestServiceBatchAndAdminSurfaces(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.New()

	t.Run("batch validation", func(t *testing.T) {
		store := adminStore(ctx, adminID)
		svc := access.NewService(store, access.NewMemorySessionStore(), testConfig{}).WithLogger(quietLogger{})

		resp := svc.IssueBatch(ctx, adminID, access.BatchIssueRequest{KeyType: access.KeyTypeInvitation, Count: 150})
		assert.False(t, resp.Success)
		assert.ErrorIs(t, resp.Err, access.ErrBatchCountOutOfRange)
	})

	t.Run("list", func(t *testing.T) {
		store := adminStore(ctx, adminID)
		store.On("ListKeys", ctx, 0, 20).Return([]*access.InvitationKey{{ID: 1}}, 1, nil)

		svc := access.NewService(store, access.NewMemorySessionStore(), testConfig{}).WithLogger(quietLogger{})

		resp := svc.ListKeys(ctx, adminID, 1, 20)
		require.True(t, resp.Success)
		assert.Equal(t, 1, resp.Data.Total)
	})

	t.Run("delete", func(t *testing.T) {
		store := adminStore(ctx, adminID)
		store.On("DeleteKey", ctx, int64(1)).Return(nil)

		svc := access.NewService(store, access.NewMemorySessionStore(), testConfig{}).WithLogger(quietLogger{})
		assert.True(t, svc.DeleteKey(ctx, adminID, 1).Success)
	})

	t.Run("stats", func(t *testing.T) {
		store := adminStore(ctx, adminID)
		store.On("AllKeys", ctx).Return([]*access.InvitationKey{
			{KeyType: access.KeyTypeInvitation, ExpiresAt: time.Now().Add(time.Hour), MaxUses: 1},
		}, nil)

		svc := access.NewService(store, access.NewMemorySessionStore(), testConfig{}).WithLogger(quietLogger{})

		resp := svc.KeyStats(ctx, adminID)
		require.True(t, resp.Success)
		assert.Equal(t, 1, resp.Data.TotalKeys)
	})
}

func TestServiceValidateKey(t *testing.T) {
	ctx := context.Background()

	store := new(MockIdentityStore)
	store.On("GetKeyByValue", ctx, "K").Return(&access.InvitationKey{
		ID: 1, KeyValue: "K", KeyType: access.KeyTypeInvitation,
		ExpiresAt: time.Now().Add(time.Hour), MaxUses: 1,
	}, nil)

	svc := access.NewService(store, access.NewMemorySessionStore(), testConfig{}).WithLogger(quietLogger{})

	resp := svc.ValidateKey(ctx, "K")
	require.True(t, resp.Success)
	assert.Equal(t, "K", resp.Data.KeyValue)
}
