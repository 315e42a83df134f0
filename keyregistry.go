package access

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultKeyMaxUses is used when an issuance request omits max uses
	DefaultKeyMaxUses = 1
	// DefaultKeyValidityDays is used when a request omits the expiry window
	DefaultKeyValidityDays = 30
	// MaxBatchSize caps issueBatch, inclusive
	MaxBatchSize = 100

	keySuffixLength   = 16
	keySuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// IssueKeyOptions carries the optional knobs of a single key issuance
type IssueKeyOptions struct {
	MaxUses       int
	ExpiresInDays int
	Description   string
}

// BatchResult reports a batch issuance: each key attempt is independent, so
// the result carries whatever subset actually succeeded.
type BatchResult struct {
	Requested int       `json:"requested"`
	Issued    int       `json:"issued"`
	Keys      []KeyView `json:"keys"`
}

// KeyPage is one page of the admin key listing
type KeyPage struct {
	Keys       []KeyView `json:"keys"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
}

// KeyRegistry validates, creates, and redeems invitation keys against the
// identity store.
type KeyRegistry struct {
	store        IdentityStore
	logger       Logger
	now          func() time.Time
	validityDays int
}

// NewKeyRegistry returns a new KeyRegistry
func NewKeyRegistry(store IdentityStore, opts Config) *KeyRegistry {
	validityDays := DefaultKeyValidityDays
	if opts != nil && opts.GetKeyValidityDays() > 0 {
		validityDays = opts.GetKeyValidityDays()
	}

	return &KeyRegistry{
		store:        store,
		logger:       defLogger{},
		now:          time.Now,
		validityDays: validityDays,
	}
}

func (r *KeyRegistry) WithLogger(logger Logger) *KeyRegistry {
	r.logger = logger
	return r
}

// WithClock overrides the time source, used by tests
func (r *KeyRegistry) WithClock(now func() time.Time) *KeyRegistry {
	r.now = now
	return r
}

// Validate fetches the key by exact value and classifies its state. The
// check order is contractual: not-found, then already-used, then expired,
// then exhausted. A key can be in several bad states at once (used and
// expired); the fixed order keeps the classification deterministic for
// callers.
func (r *KeyRegistry) Validate(ctx context.Context, keyValue string) (*KeyView, error) {
	key, err := r.store.GetKeyByValue(ctx, keyValue)
	if err != nil {
		if IsStoreNotFound(err) {
			return nil, ErrKeyNotFound
		}
		r.logger.Error("validate: key lookup failed for %q: %v", keyValue, err)
		return nil, ErrStoreUnavailable
	}

	if key.Used {
		return nil, ErrKeyAlreadyUsed
	}

	if key.IsExpired(r.now()) {
		return nil, ErrKeyExpired
	}

	if key.IsExhausted() {
		return nil, ErrKeyExhausted
	}

	view := ProjectKey(key)
	return &view, nil
}

// Issue creates a single invitation key. Only accounts that resolve to the
// admin role in the store may issue; the caller's claim is never trusted.
//
// Persistence walks a fixed ladder: direct insert, then one retry through
// the privileged procedure, then - only when the procedure's result cannot
// be read back - a best-effort view synthesized from the locally computed
// values, flagged Degraded. The write is presumed to have landed; canonical
// state remains in the store and a later listing reconciles it.
func (r *KeyRegistry) Issue(ctx context.Context, creatorID uuid.UUID, keyType KeyType, opts IssueKeyOptions) (*KeyView, error) {
	if err := r.requireAdmin(ctx, creatorID); err != nil {
		return nil, err
	}

	if !IsValidKeyType(keyType) {
		return nil, ErrUnsupportedKeyType
	}

	key := r.buildKey(creatorID, keyType, opts, -1)
	return r.persistKey(ctx, key)
}

// IssueBatch generates count independent keys. The count is checked before
// any key is generated; within the batch each attempt stands alone, failures
// are logged and skipped, and the result reports the keys that made it.
// Attempts run sequentially to keep generated values deterministically
// orderable and to bound store load; a caller-side abort via ctx is
// cooperative between iterations only.
func (r *KeyRegistry) IssueBatch(ctx context.Context, creatorID uuid.UUID, keyType KeyType, count int, opts IssueKeyOptions) (*BatchResult, error) {
	if err := r.requireAdmin(ctx, creatorID); err != nil {
		return nil, err
	}

	if count < 1 || count > MaxBatchSize {
		return nil, ErrBatchCountOutOfRange
	}

	if !IsValidKeyType(keyType) {
		return nil, ErrUnsupportedKeyType
	}

	if opts.Description == "" {
		opts.Description = defaultKeyDescription(keyType)
	}

	result := &BatchResult{Requested: count, Keys: make([]KeyView, 0, count)}

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("batch issuance aborted after %d of %d keys: %v", len(result.Keys), count, err)
			break
		}

		// the sequence index keeps values collision-free within a millisecond
		key := r.buildKey(creatorID, keyType, opts, i)

		view, err := r.persistKey(ctx, key)
		if err != nil {
			r.logger.Warn("batch issuance: key %d of %d failed, skipping: %v", i+1, count, err)
			continue
		}

		result.Keys = append(result.Keys, *view)
	}

	result.Issued = len(result.Keys)
	return result, nil
}

// List returns one page of keys, newest first. Admin only.
func (r *KeyRegistry) List(ctx context.Context, callerID uuid.UUID, page, pageSize int) (*KeyPage, error) {
	if err := r.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	keys, total, err := r.store.ListKeys(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		r.logger.Error("list keys failed: %v", err)
		return nil, ErrStoreUnavailable
	}

	pageResult := &KeyPage{
		Keys:     make([]KeyView, 0, len(keys)),
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}
	for _, key := range keys {
		pageResult.Keys = append(pageResult.Keys, ProjectKey(key))
	}
	pageResult.TotalPages = (total + pageSize - 1) / pageSize

	return pageResult, nil
}

// Delete removes a key row. Admin only.
func (r *KeyRegistry) Delete(ctx context.Context, callerID uuid.UUID, keyID int64) error {
	if err := r.requireAdmin(ctx, callerID); err != nil {
		return err
	}

	if err := r.store.DeleteKey(ctx, keyID); err != nil {
		if IsStoreNotFound(err) {
			return ErrKeyNotFound
		}
		r.logger.Error("delete key %d failed: %v", keyID, err)
		return ErrStoreUnavailable
	}

	return nil
}

// Statistics aggregates the key table: totals plus per-type buckets of used
// and expired counts. Admin only.
func (r *KeyRegistry) Statistics(ctx context.Context, callerID uuid.UUID) (*KeyStatistics, error) {
	if err := r.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	keys, err := r.store.AllKeys(ctx)
	if err != nil {
		r.logger.Error("key statistics failed: %v", err)
		return nil, ErrStoreUnavailable
	}

	now := r.now()
	stats := &KeyStatistics{ByType: map[KeyType]TypeBucket{}}

	for _, key := range keys {
		stats.TotalKeys++
		bucket := stats.ByType[key.KeyType]
		bucket.Total++

		if key.Used {
			stats.UsedKeys++
			bucket.Used++
		}
		if key.IsExpired(now) {
			stats.ExpiredKeys++
			bucket.Expired++
		}

		stats.ByType[key.KeyType] = bucket
	}

	stats.UnusedKeys = stats.TotalKeys - stats.UsedKeys
	return stats, nil
}

// requireAdmin resolves the caller against the store; issuance rights are
// never taken from the request.
func (r *KeyRegistry) requireAdmin(ctx context.Context, callerID uuid.UUID) error {
	account, err := r.store.GetAccountByID(ctx, callerID)
	if err != nil {
		if IsStoreNotFound(err) {
			return ErrInsufficientPrivilege
		}
		return ErrStoreUnavailable
	}

	if !CanIssueKeys(account.Role) {
		return ErrInsufficientPrivilege
	}

	return nil
}

// buildKey computes a key row from local values. seq >= 0 adds the batch
// sequence index to the generated value.
func (r *KeyRegistry) buildKey(creatorID uuid.UUID, keyType KeyType, opts IssueKeyOptions, seq int) *InvitationKey {
	now := r.now()

	maxUses := opts.MaxUses
	if maxUses < 1 {
		maxUses = DefaultKeyMaxUses
	}

	days := opts.ExpiresInDays
	if days < 1 {
		days = r.validityDays
	}

	return &InvitationKey{
		KeyValue:    generateKeyValue(keyType, now, seq),
		KeyType:     keyType,
		CreatorID:   creatorID,
		ExpiresAt:   now.AddDate(0, 0, days),
		MaxUses:     maxUses,
		CurrentUses: 0,
		Description: opts.Description,
	}
}

// persistKey walks the direct-then-privileged ladder described on Issue
func (r *KeyRegistry) persistKey(ctx context.Context, key *InvitationKey) (*KeyView, error) {
	created, directErr := r.store.InsertKey(ctx, key)
	if directErr == nil {
		view := ProjectKey(created)
		return &view, nil
	}

	r.logger.Warn("direct key insert failed for %q, retrying via privileged procedure: %v", key.KeyValue, directErr)

	if procErr := r.store.ProcIssueKey(ctx, key); procErr != nil {
		if IsStoreConflict(directErr) || IsStoreConflict(procErr) {
			return nil, ErrStoreConflict
		}
		return nil, ErrStoreUnavailable
	}

	// the procedure reported success; read the canonical row back
	stored, err := r.store.GetKeyByValue(ctx, key.KeyValue)
	if err == nil {
		view := ProjectKey(stored)
		return &view, nil
	}

	// the write is presumed to have landed, synthesize a best-effort view
	// from the locally computed values and flag it so downstream code can
	// tell presumed from confirmed
	r.logger.Warn("issued key %q cannot be read back, returning degraded view: %v", key.KeyValue, err)

	view := ProjectKey(key)
	view.Degraded = true
	now := r.now()
	view.CreatedAt = &now
	view.UpdatedAt = &now

	return &view, nil
}

func defaultKeyDescription(keyType KeyType) string {
	switch keyType {
	case KeyTypeInvitation:
		return "enterprise partner invitation key"
	case KeyTypePromotion:
		return "examiner promotion key"
	case KeyTypeTeacher:
		return "teacher affiliation key"
	default:
		return ""
	}
}

// generateKeyValue renders {TYPE}-{millis}-[{seq}-]{16 random alphanumerics}.
// The timestamp plus random suffix gives practical global uniqueness; the
// sequence index disambiguates batch members minted in the same millisecond.
func generateKeyValue(keyType KeyType, now time.Time, seq int) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(string(keyType)))
	b.WriteByte('-')
	fmt.Fprintf(&b, "%d", now.UnixMilli())
	b.WriteByte('-')
	if seq >= 0 {
		fmt.Fprintf(&b, "%d-", seq)
	}
	b.WriteString(randomKeySuffix(keySuffixLength))
	return b.String()
}

func randomKeySuffix(length int) string {
	max := big.NewInt(int64(len(keySuffixAlphabet)))

	suffix := make([]byte, length)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken
			n = big.NewInt(time.Now().UnixNano() % int64(len(keySuffixAlphabet)))
		}
		suffix[i] = keySuffixAlphabet[n.Int64()]
	}

	return string(suffix)
}
