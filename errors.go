package access

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCreds marks credential failures. Unknown usernames,
	// wrong passwords, and inactive accounts all collapse into this code so
	// callers cannot probe for account existence.
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeKeyNotFound marks lookups for key values that do not exist
	TextCodeKeyNotFound = "KEY_NOT_FOUND"
	// TextCodeKeyUsed marks keys whose used flag is already set
	TextCodeKeyUsed = "KEY_ALREADY_USED"
	// TextCodeKeyExpired marks keys past their validity window
	TextCodeKeyExpired = "KEY_EXPIRED"
	// TextCodeKeyExhausted marks keys with no uses left
	TextCodeKeyExhausted = "KEY_USES_EXHAUSTED"
	// TextCodeUnsupportedKeyType marks key types with no escalation effect
	TextCodeUnsupportedKeyType = "UNSUPPORTED_KEY_TYPE"
	// TextCodeInsufficientPrivilege marks non-admin issuance attempts
	TextCodeInsufficientPrivilege = "INSUFFICIENT_PRIVILEGE"
	// TextCodeStoreUnavailable marks exhausted transport strategies
	TextCodeStoreUnavailable = "STORE_UNAVAILABLE"
	// TextCodeStoreConflict marks persistence conflicts
	TextCodeStoreConflict = "STORE_CONFLICT"
	// TextCodeBatchOutOfRange marks batch counts outside 1..100
	TextCodeBatchOutOfRange = "BATCH_COUNT_OUT_OF_RANGE"
	// TextCodeEmptyPassword marks empty plaintext handed to the hasher
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	// TextCodeTokenMalformed marks tokens that fail the structural check
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
)

// ErrInvalidCredentials is returned for unknown usernames, wrong passwords,
// and inactive accounts alike; the three cases are deliberately
// indistinguishable to the caller.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrKeyNotFound is returned when no key row matches the given value
var ErrKeyNotFound = goerrors.New("invitation key not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeKeyNotFound)

// ErrKeyAlreadyUsed is returned for keys whose used flag is set
var ErrKeyAlreadyUsed = goerrors.New("invitation key already used", goerrors.CategoryConflict).
	WithTextCode(TextCodeKeyUsed)

// ErrKeyExpired is returned for keys past their expiry timestamp
var ErrKeyExpired = goerrors.New("invitation key expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeKeyExpired)

// ErrKeyExhausted is returned when current_uses has reached max_uses
var ErrKeyExhausted = goerrors.New("invitation key has no uses left", goerrors.CategoryConflict).
	WithTextCode(TextCodeKeyExhausted)

// ErrUnsupportedKeyType is returned when redeeming a key type that exists in
// the data model but has no escalation effect (teacher keys).
var ErrUnsupportedKeyType = goerrors.New("key type has no escalation effect", goerrors.CategoryBadInput).
	WithTextCode(TextCodeUnsupportedKeyType)

// ErrInsufficientPrivilege is returned when a non-admin attempts to issue,
// list, or delete invitation keys.
var ErrInsufficientPrivilege = goerrors.New("only admin accounts can manage invitation keys", goerrors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientPrivilege)

// ErrStoreUnavailable is returned once every transport strategy has failed
var ErrStoreUnavailable = goerrors.New("identity store unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable)

// ErrStoreConflict is returned for persistence conflicts that survived the
// privileged retry.
var ErrStoreConflict = goerrors.New("identity store conflict", goerrors.CategoryConflict).
	WithTextCode(TextCodeStoreConflict)

// ErrBatchCountOutOfRange is returned before any key is generated when a
// batch request asks for fewer than 1 or more than MaxBatchSize keys.
var ErrBatchCountOutOfRange = goerrors.New("batch count must be between 1 and 100", goerrors.CategoryValidation).
	WithTextCode(TextCodeBatchOutOfRange)

// ErrNoEmptyString is returned by the hasher for empty plaintext
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrMismatchedHashAndPassword is the hasher-level mismatch error. The
// authenticator folds it into ErrInvalidCredentials before it reaches a
// caller.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match stored digest", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrTokenMalformed is returned when an opaque token fails the structural
// check during re-authentication.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed)

// IsKeyStateError reports whether err is one of the four validate-time key
// classifications. The classification order (not found, used, expired,
// exhausted) is contractual, see KeyRegistry.Validate.
func IsKeyStateError(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range []*goerrors.Error{ErrKeyNotFound, ErrKeyAlreadyUsed, ErrKeyExpired, ErrKeyExhausted} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// messageFor extracts a human-readable message for the response envelope
func messageFor(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Message
	}

	return err.Error()
}
