package access

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// accountSnapshot is the resolved outcome of a login strategy: the
// authoritative account row plus its ability profile, when the path had one.
type accountSnapshot struct {
	account   *Account
	abilities *AbilityProfile
}

// Authenticator verifies login credentials against the identity store, with
// a layered fallback between the privileged procedure and the direct query
// path.
type Authenticator struct {
	store  IdentityStore
	hasher *Hasher
	minter *TokenMinter
	logger Logger
	now    func() time.Time
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store IdentityStore, opts Config) *Authenticator {
	return &Authenticator{
		store:  store,
		hasher: NewHasher(opts.GetBcryptCost()),
		minter: NewTokenMinter(opts),
		logger: defLogger{},
		now:    time.Now,
	}
}

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	a.logger = logger
	return a
}

// WithClock overrides the time source, used by tests
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	return a
}

// TokenMinter returns the minter used by this Authenticator
func (a *Authenticator) TokenMinter() *TokenMinter {
	return a.minter
}

// Login verifies (username, password) and returns the full session
// projection. Unknown usernames, wrong passwords, and inactive accounts all
// fail with ErrInvalidCredentials; only transport exhaustion surfaces as
// ErrStoreUnavailable.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*SessionData, error) {
	snapshot, path, err := runStrategies(ctx, a.logger, []strategy[*accountSnapshot]{
		{name: "privileged-authenticate", run: func(ctx context.Context) (*accountSnapshot, error) {
			return a.loginViaProcedure(ctx, username, password)
		}},
		{name: "direct-select", run: func(ctx context.Context) (*accountSnapshot, error) {
			return a.loginViaDirectQuery(ctx, username, password)
		}},
	})

	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		if IsStoreNotFound(err) {
			// account row absent on the winning path, fold into the
			// credential error so existence cannot be probed
			return nil, ErrInvalidCredentials
		}
		a.logger.Error("login: all access paths failed: %v", err)
		return nil, ErrStoreUnavailable
	}

	a.logger.Debug("login resolved account %s via %s", snapshot.account.ID, path)

	// best effort, a failed timestamp write never fails the login
	if err := a.store.TouchLastLogin(ctx, snapshot.account.ID); err != nil {
		a.logger.Warn("login: failed to update last_login_at for %s: %v", snapshot.account.ID, err)
	} else {
		now := a.now()
		snapshot.account.LastLoginAt = &now
	}

	token, err := a.minter.Mint(snapshot.account.ID, snapshot.account.Role)
	if err != nil {
		return nil, err
	}

	return ProjectSession(snapshot.account, snapshot.abilities, token), nil
}

// loginViaProcedure hashes the plaintext and invokes the privileged
// authenticate procedure. An empty row set from a transport-successful call
// is treated as path-unavailable rather than a verdict: the procedure's
// digest comparison is salt-sensitive, so the direct path gets to re-check
// with a proper bcrypt compare before credentials are rejected.
func (a *Authenticator) loginViaProcedure(ctx context.Context, username, password string) (*accountSnapshot, error) {
	digest, err := a.hasher.HashPassword(password)
	if err != nil {
		return nil, NewStoreError(StoreTransient, "proc_authenticate", err)
	}

	rows, err := a.store.ProcAuthenticate(ctx, username, digest)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, NewStoreError(StoreTransient, "proc_authenticate", errors.New("procedure returned no rows"))
	}

	row := rows[0]
	return &accountSnapshot{account: &row.Account, abilities: &row.Abilities}, nil
}

// loginViaDirectQuery selects the active account row and verifies the
// password with the credential hasher. An absent ability profile projects as
// all-zero, it is not an error.
func (a *Authenticator) loginViaDirectQuery(ctx context.Context, username, password string) (*accountSnapshot, error) {
	account, err := a.store.GetActiveAccountByUsername(ctx, username)
	if err != nil {
		if IsStoreNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := a.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	abilities, err := a.store.GetAbilityProfile(ctx, account.ID)
	if err != nil {
		if !IsStoreNotFound(err) {
			a.logger.Warn("login: ability lookup failed for %s: %v", account.ID, err)
		}
		abilities = nil
	}

	return &accountSnapshot{account: account, abilities: abilities}, nil
}

// Register creates a base-tier account with a zeroed ability profile. The
// requested role is never trusted from input; every registration lands in the
// base tier with unaffiliated standing. No token is issued, the caller logs
// in afterwards.
func (a *Authenticator) Register(ctx context.Context, username, email, password string) (*SessionData, error) {
	digest, err := a.hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}

	account, path, err := runStrategies(ctx, a.logger, []strategy[*Account]{
		{name: "privileged-register", run: func(ctx context.Context) (*Account, error) {
			return a.store.ProcRegister(ctx, username, email, digest)
		}},
		{name: "direct-insert", run: func(ctx context.Context) (*Account, error) {
			return a.registerViaDirectInsert(ctx, username, email, digest)
		}},
	})

	if err != nil {
		if IsStoreConflict(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "username or email already registered")
		}
		a.logger.Error("register: all access paths failed: %v", err)
		return nil, ErrStoreUnavailable
	}

	a.logger.Info("registered account %s via %s", account.ID, path)

	// profile creation is privileged-path work when the procedure handled
	// registration; create it here only if the row is missing
	if _, err := a.store.GetAbilityProfile(ctx, account.ID); err != nil && IsStoreNotFound(err) {
		if _, err := a.store.CreateAbilityProfile(ctx, &AbilityProfile{AccountID: account.ID}); err != nil {
			a.logger.Warn("register: failed to seed ability profile for %s: %v", account.ID, err)
		}
	}

	return ProjectSession(account, &AbilityProfile{AccountID: account.ID}, ""), nil
}

func (a *Authenticator) registerViaDirectInsert(ctx context.Context, username, email, digest string) (*Account, error) {
	account := &Account{
		Username:     strings.TrimSpace(username),
		Email:        strings.TrimSpace(email),
		PasswordHash: digest,
		Role:         RoleBase,
		Status:       StatusActive,
		BaseStanding: StandingUnaffiliated,
	}

	if id, err := hashid.NewUUID(account.Email); err == nil {
		account.ID = id
	} else {
		account.ID = uuid.New()
	}

	return a.store.CreateAccount(ctx, account)
}

// CheckStatus re-authenticates an opaque token: structural check, then a
// fresh account and ability lookup so the projection reflects current store
// state rather than whatever the token was minted with.
func (a *Authenticator) CheckStatus(ctx context.Context, token string) (*SessionData, error) {
	claims, err := ParseTokenUnverified(token)
	if err != nil {
		return nil, err
	}

	accountID, err := claims.AccountID()
	if err != nil {
		return nil, err
	}

	account, err := a.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if IsStoreNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, ErrStoreUnavailable
	}

	if account.Status != StatusActive {
		return nil, ErrInvalidCredentials
	}

	abilities, err := a.store.GetAbilityProfile(ctx, accountID)
	if err != nil {
		abilities = nil
	}

	return ProjectSession(account, abilities, token), nil
}
