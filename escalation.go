package access

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Escalator promotes an account's role by redeeming an invitation key. It
// composes the KeyRegistry (validation) with the IdentityStore (mutation) and
// rebuilds the session projection afterwards.
type Escalator struct {
	registry *KeyRegistry
	store    IdentityStore
	logger   Logger
	now      func() time.Time
}

// NewEscalator returns a new Escalator sharing the registry's store
func NewEscalator(registry *KeyRegistry, store IdentityStore) *Escalator {
	return &Escalator{
		registry: registry,
		store:    store,
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (e *Escalator) WithLogger(logger Logger) *Escalator {
	e.logger = logger
	return e
}

// WithClock overrides the time source, used by tests
func (e *Escalator) WithClock(now func() time.Time) *Escalator {
	e.now = now
	return e
}

// Redeem consumes a key to escalate an account's role. targetID names the
// account to promote; uuid.Nil means the current user promotes themselves.
//
// The role update and the key mutation are two separate store operations with
// no cross-table transaction at this layer: when the key write fails after
// the role write landed, the account keeps its new role and the error carries
// the store failure. There is no automatic rollback. Two near-simultaneous
// redemptions of a single-use key can likewise both pass validation before
// either writes the used flag; the store's per-row last-write-wins semantics
// are the only mutual exclusion, and current_uses can overshoot max_uses by
// one in the worst case.
func (e *Escalator) Redeem(ctx context.Context, keyValue string, currentUserID, targetID uuid.UUID) (*SessionData, error) {
	keyView, err := e.registry.Validate(ctx, keyValue)
	if err != nil {
		return nil, err
	}

	newRole, ok := EscalationTarget(keyView.KeyType)
	if !ok {
		return nil, ErrUnsupportedKeyType
	}

	target := targetID
	if target == uuid.Nil {
		target = currentUserID
	}

	account, err := e.store.UpdateAccountRole(ctx, target, newRole)
	if err != nil {
		e.logger.Error("redeem %q: role update failed for %s: %v", keyValue, target, err)
		return nil, e.wrapStoreFailure(err, "failed to update account role")
	}

	if err := e.store.MarkKeyRedeemed(ctx, keyView.ID, target); err != nil {
		// the role write already landed; surface the failure without
		// undoing step 4
		e.logger.Error("redeem %q: key mutation failed after role update for %s: %v", keyValue, target, err)
		return nil, e.wrapStoreFailure(err, "failed to mark key redeemed")
	}

	e.logger.Info("account %s escalated to %s with key %q", target, newRole, keyValue)

	abilities, err := e.store.GetAbilityProfile(ctx, target)
	if err != nil {
		abilities = nil
	}

	return ProjectSession(account, abilities, ""), nil
}

func (e *Escalator) wrapStoreFailure(err error, msg string) error {
	if IsStoreConflict(err) {
		return goerrors.Wrap(err, goerrors.CategoryConflict, msg).
			WithTextCode(TextCodeStoreConflict)
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeStoreUnavailable)
}
