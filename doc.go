// Package access implements credential verification and invitation-key
// redemption for a role-tiered account platform.
//
// Accounts start in the base tier and are promoted to elevated tiers
// (examiner, enterprise, admin) by redeeming single-use or multi-use
// invitation keys that only admin accounts can issue.
//
// Store access:
//   - IdentityStore is a dumb transport over the accounts, ability_profiles,
//     and invitation_keys tables. It exposes direct row operations, which are
//     subject to the store's row-level authorization policy, and privileged
//     procedures that execute with elevated rights and bypass that policy.
//     Every failure is surfaced as a tagged *StoreError.
//   - Components that need a row evaluate an ordered strategy list (privileged
//     procedure first, direct query second) until one yields a transport-level
//     result. See runStrategies.
//
// Sessions:
//   - SessionData is a full projection of the authenticated account: identity,
//     ability scores, and an opaque token. Downstream state holders replace the
//     whole projection on every change; nothing is merged field by field.
//   - SessionStore is the explicit load/save boundary at the process edge.
//     There is no package-level session singleton.
package access
