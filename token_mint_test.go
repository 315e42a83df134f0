package access_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-access"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndParseToken(t *testing.T) {
	minted := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	minter := access.NewTokenMinter(testConfig{}).
		WithClock(func() time.Time { return minted })

	accountID := uuid.New()

	token, err := minter.Mint(accountID, access.RoleExaminer)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := access.ParseTokenUnverified(token)
	require.NoError(t, err)

	assert.Equal(t, accountID.String(), claims.UID)
	assert.Equal(t, access.RoleExaminer, claims.Role)
	assert.Equal(t, "access-test", claims.Issuer)
	assert.Equal(t, minted.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, minted.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())

	parsed, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, accountID, parsed)
}

func TestParseTokenUnverified(t *testing.T) {
	minter := access.NewTokenMinter(testConfig{})
	token, err := minter.Mint(uuid.New(), access.RoleBase)
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name:    "minted token",
			raw:     token,
			wantErr: false,
		},
		{
			name:    "empty string",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "not a token",
			raw:     "supabase_token_but_not_really",
			wantErr: true,
		},
		{
			name:    "two segments only",
			raw:     "aaaa.bbbb",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := access.ParseTokenUnverified(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, access.ErrTokenMalformed)
				assert.False(t, access.IsWellFormedToken(tt.raw))
				return
			}
			assert.NoError(t, err)
			assert.True(t, access.IsWellFormedToken(tt.raw))
		})
	}
}

func TestTokenClaimsAccountIDFallsBackToSubject(t *testing.T) {
	id := uuid.New()
	claims := &access.TokenClaims{}
	claims.Subject = id.String()

	resolved, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, id, resolved)
}

func TestTokenClaimsAccountIDRejectsGarbage(t *testing.T) {
	claims := &access.TokenClaims{UID: "not-a-uuid"}
	_, err := claims.AccountID()
	assert.ErrorIs(t, err, access.ErrTokenMalformed)
}
