package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// StoreErrorKind tags transport failures from the identity store
type StoreErrorKind string

const (
	// StoreNotFound means the row does not exist
	StoreNotFound StoreErrorKind = "not_found"
	// StorePolicyDenied means row-level authorization policy blocked the
	// direct operation; a privileged procedure may still succeed.
	StorePolicyDenied StoreErrorKind = "policy_denied"
	// StoreConflict means a uniqueness or constraint violation
	StoreConflict StoreErrorKind = "conflict"
	// StoreTransient covers everything else: timeouts, connectivity, the
	// store's own retry policy giving up. Treated as opaque.
	StoreTransient StoreErrorKind = "transient"
)

// StoreError is the only error type the IdentityStore surfaces. The adapter
// performs no business validation; it tags what the transport reported and
// leaves interpretation to the callers.
type StoreError struct {
	Kind StoreErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("store %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError tags err with a kind and the operation that produced it
func NewStoreError(kind StoreErrorKind, op string, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// storeErrorKind extracts the kind, defaulting to transient for untagged errors
func storeErrorKind(err error) (StoreErrorKind, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return StoreTransient, false
}

// IsStoreNotFound reports whether err is a tagged not-found
func IsStoreNotFound(err error) bool {
	kind, ok := storeErrorKind(err)
	return ok && kind == StoreNotFound
}

// IsStoreConflict reports whether err is a tagged conflict
func IsStoreConflict(err error) bool {
	kind, ok := storeErrorKind(err)
	return ok && kind == StoreConflict
}

// isStoreUnavailable reports whether err means the access path itself was
// blocked (policy) or broken (transient), as opposed to a row-level outcome.
// These are the kinds that let a fallback strategy run.
func isStoreUnavailable(err error) bool {
	kind, ok := storeErrorKind(err)
	if !ok {
		return err != nil
	}
	return kind == StorePolicyDenied || kind == StoreTransient
}

// AuthenticatedRow is the row shape returned by the authenticate procedure:
// the account joined with its ability scores.
type AuthenticatedRow struct {
	Account   Account
	Abilities AbilityProfile
}

// KeyStatistics aggregates the key table for the admin dashboard
type KeyStatistics struct {
	TotalKeys   int                    `json:"total_keys"`
	UsedKeys    int                    `json:"used_keys"`
	UnusedKeys  int                    `json:"unused_keys"`
	ExpiredKeys int                    `json:"expired_keys"`
	ByType      map[KeyType]TypeBucket `json:"by_type"`
}

// TypeBucket is the per-key-type slice of KeyStatistics
type TypeBucket struct {
	Total   int `json:"total"`
	Used    int `json:"used"`
	Expired int `json:"expired"`
}

// IdentityStore abstracts access to the remote account, ability, and key
// tables. Direct methods are row operations subject to the store's row-level
// authorization policy; Proc methods execute privileged remote procedures
// that bypass it. Every failure comes back as a tagged *StoreError.
type IdentityStore interface {
	// direct path: accounts
	GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetActiveAccountByUsername(ctx context.Context, username string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) (*Account, error)
	UpdateAccountRole(ctx context.Context, id uuid.UUID, role AccountRole) (*Account, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error

	// direct path: ability profiles
	GetAbilityProfile(ctx context.Context, accountID uuid.UUID) (*AbilityProfile, error)
	CreateAbilityProfile(ctx context.Context, profile *AbilityProfile) (*AbilityProfile, error)

	// direct path: invitation keys
	GetKeyByValue(ctx context.Context, keyValue string) (*InvitationKey, error)
	InsertKey(ctx context.Context, key *InvitationKey) (*InvitationKey, error)
	MarkKeyRedeemed(ctx context.Context, keyID int64, usedBy uuid.UUID) error
	DeleteKey(ctx context.Context, keyID int64) error
	ListKeys(ctx context.Context, offset, limit int) ([]*InvitationKey, int, error)
	AllKeys(ctx context.Context) ([]*InvitationKey, error)

	// privileged procedures
	ProcAuthenticate(ctx context.Context, username, passwordDigest string) ([]AuthenticatedRow, error)
	ProcRegister(ctx context.Context, username, email, passwordDigest string) (*Account, error)
	ProcIssueKey(ctx context.Context, key *InvitationKey) error
}
