package access

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunIdentityStore implements IdentityStore on a bun database. Account and
// ability rows go through generic repositories; invitation keys carry an
// integer primary key and use plain bun queries. The privileged procedures are
// invoked as raw SQL function calls, matching how the remote store exposes
// them.
type BunIdentityStore struct {
	db       *bun.DB
	accounts repository.Repository[*Account]
	profiles repository.Repository[*AbilityProfile]
	now      func() time.Time
}

var _ IdentityStore = (*BunIdentityStore)(nil)

// NewBunIdentityStore returns a store backed by db
func NewBunIdentityStore(db *bun.DB) *BunIdentityStore {
	accounts := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(record *Account) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Account, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	profiles := repository.NewRepository[*AbilityProfile](db, repository.ModelHandlers[*AbilityProfile]{
		NewRecord: func() *AbilityProfile { return &AbilityProfile{} },
		GetID: func(record *AbilityProfile) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.AccountID
		},
		SetID: func(record *AbilityProfile, id uuid.UUID) {
			if record != nil {
				record.AccountID = id
			}
		},
		GetIdentifier: func() string {
			return "account_id"
		},
	})

	return &BunIdentityStore{
		db:       db,
		accounts: accounts,
		profiles: profiles,
		now:      time.Now,
	}
}

// WithClock overrides the time source, used by tests
func (s *BunIdentityStore) WithClock(now func() time.Time) *BunIdentityStore {
	s.now = now
	return s
}

func (s *BunIdentityStore) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, id.String())
	if err != nil {
		return nil, classifyStoreError("get_account", err)
	}
	return account, nil
}

func (s *BunIdentityStore) GetActiveAccountByUsername(ctx context.Context, username string) (*Account, error) {
	record := &Account{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", strings.TrimSpace(username)).
		Where("?TableAlias.status = ?", StatusActive).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, classifyStoreError("get_active_account", err)
	}
	return record, nil
}

func (s *BunIdentityStore) CreateAccount(ctx context.Context, account *Account) (*Account, error) {
	account.EnsureStatus()
	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		return nil, classifyStoreError("create_account", err)
	}
	return created, nil
}

func (s *BunIdentityStore) UpdateAccountRole(ctx context.Context, id uuid.UUID, role AccountRole) (*Account, error) {
	record := &Account{}
	now := s.now()
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, classifyStoreError("update_account_role", err)
	}

	record.Role = role
	record.UpdatedAt = &now

	_, err = s.db.NewUpdate().
		Model(record).
		Column("role", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, classifyStoreError("update_account_role", err)
	}

	return record, nil
}

func (s *BunIdentityStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	now := s.now()
	res, err := s.db.NewUpdate().
		Model((*Account)(nil)).
		Set("last_login_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return classifyStoreError("touch_last_login", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewStoreError(StoreNotFound, "touch_last_login", sql.ErrNoRows)
	}
	return nil
}

func (s *BunIdentityStore) GetAbilityProfile(ctx context.Context, accountID uuid.UUID) (*AbilityProfile, error) {
	record := &AbilityProfile{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, classifyStoreError("get_ability_profile", err)
	}
	return record, nil
}

func (s *BunIdentityStore) CreateAbilityProfile(ctx context.Context, profile *AbilityProfile) (*AbilityProfile, error) {
	created, err := s.profiles.Create(ctx, profile)
	if err != nil {
		return nil, classifyStoreError("create_ability_profile", err)
	}
	return created, nil
}

func (s *BunIdentityStore) GetKeyByValue(ctx context.Context, keyValue string) (*InvitationKey, error) {
	record := &InvitationKey{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.key_value = ?", keyValue).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, classifyStoreError("get_key", err)
	}
	return record, nil
}

func (s *BunIdentityStore) InsertKey(ctx context.Context, key *InvitationKey) (*InvitationKey, error) {
	now := s.now()
	if key.CreatedAt == nil {
		key.CreatedAt = &now
	}
	if key.UpdatedAt == nil {
		key.UpdatedAt = &now
	}

	_, err := s.db.NewInsert().
		Model(key).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, classifyStoreError("insert_key", err)
	}
	return key, nil
}

// MarkKeyRedeemed increments the use counter and, when the key transitions to
// exhausted, stamps the used flag, the redeemer, and the redemption time. A
// single-use key transitions on its first redemption.
func (s *BunIdentityStore) MarkKeyRedeemed(ctx context.Context, keyID int64, usedBy uuid.UUID) error {
	now := s.now()
	res, err := s.db.NewRaw(`
		UPDATE "invitation_keys" AS "key"
		SET
			"current_uses" = "key"."current_uses" + 1,
			"updated_at" = ?,
			"used" = CASE WHEN "key"."current_uses" + 1 >= "key"."max_uses" THEN TRUE ELSE "key"."used" END,
			"used_by" = CASE WHEN "key"."current_uses" + 1 >= "key"."max_uses" THEN ? ELSE "key"."used_by" END,
			"used_at" = CASE WHEN "key"."current_uses" + 1 >= "key"."max_uses" THEN ? ELSE "key"."used_at" END
		WHERE "key"."id" = ?;
	`, now, usedBy, now, keyID).Exec(ctx)
	if err != nil {
		return classifyStoreError("mark_key_redeemed", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewStoreError(StoreNotFound, "mark_key_redeemed", sql.ErrNoRows)
	}
	return nil
}

func (s *BunIdentityStore) DeleteKey(ctx context.Context, keyID int64) error {
	res, err := s.db.NewDelete().
		Model((*InvitationKey)(nil)).
		Where("id = ?", keyID).
		Exec(ctx)
	if err != nil {
		return classifyStoreError("delete_key", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewStoreError(StoreNotFound, "delete_key", sql.ErrNoRows)
	}
	return nil
}

func (s *BunIdentityStore) ListKeys(ctx context.Context, offset, limit int) ([]*InvitationKey, int, error) {
	var keys []*InvitationKey
	total, err := s.db.NewSelect().
		Model(&keys).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, classifyStoreError("list_keys", err)
	}
	return keys, total, nil
}

func (s *BunIdentityStore) AllKeys(ctx context.Context) ([]*InvitationKey, error) {
	var keys []*InvitationKey
	err := s.db.NewSelect().
		Model(&keys).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, classifyStoreError("all_keys", err)
	}
	return keys, nil
}

// authenticatedScan is the flat row shape the authenticate procedure returns:
// account columns joined with the ability columns.
type authenticatedScan struct {
	ID                  uuid.UUID  `bun:"id"`
	Username            string     `bun:"username"`
	Email               string     `bun:"email"`
	Role                string     `bun:"role"`
	Status              string     `bun:"status"`
	BaseStanding        string     `bun:"base_standing"`
	LastLoginAt         *time.Time `bun:"last_login_at"`
	FrontendPoints      int        `bun:"frontend_points"`
	AndroidPoints       int        `bun:"android_points"`
	BackendPoints       int        `bun:"backend_points"`
	AIPoints            int        `bun:"ai_points"`
	CommunicationPoints int        `bun:"communication_points"`
	CreativityPoints    int        `bun:"creativity_points"`
	LeadershipPoints    int        `bun:"leadership_points"`
}

func (s *BunIdentityStore) ProcAuthenticate(ctx context.Context, username, passwordDigest string) ([]AuthenticatedRow, error) {
	var flat []authenticatedScan
	err := s.db.NewRaw(
		`SELECT * FROM sp_authenticate_user(?, ?);`,
		username, passwordDigest,
	).Scan(ctx, &flat)
	if err != nil {
		return nil, classifyStoreError("proc_authenticate", err)
	}

	rows := make([]AuthenticatedRow, 0, len(flat))
	for _, r := range flat {
		rows = append(rows, AuthenticatedRow{
			Account: Account{
				ID:           r.ID,
				Username:     r.Username,
				Email:        r.Email,
				Role:         r.Role,
				Status:       r.Status,
				BaseStanding: r.BaseStanding,
				LastLoginAt:  r.LastLoginAt,
			},
			Abilities: AbilityProfile{
				AccountID:           r.ID,
				FrontendPoints:      r.FrontendPoints,
				AndroidPoints:       r.AndroidPoints,
				BackendPoints:       r.BackendPoints,
				AIPoints:            r.AIPoints,
				CommunicationPoints: r.CommunicationPoints,
				CreativityPoints:    r.CreativityPoints,
				LeadershipPoints:    r.LeadershipPoints,
			},
		})
	}

	return rows, nil
}

func (s *BunIdentityStore) ProcRegister(ctx context.Context, username, email, passwordDigest string) (*Account, error) {
	record := &Account{}
	err := s.db.NewRaw(
		`SELECT * FROM sp_register_user(?, ?, ?);`,
		username, email, passwordDigest,
	).Scan(ctx, record)
	if err != nil {
		return nil, classifyStoreError("proc_register", err)
	}
	return record, nil
}

func (s *BunIdentityStore) ProcIssueKey(ctx context.Context, key *InvitationKey) error {
	_, err := s.db.NewRaw(
		`SELECT sp_issue_invitation_key(?, ?, ?, ?, ?, ?);`,
		key.KeyValue, key.KeyType, key.CreatorID, key.ExpiresAt, key.MaxUses, key.Description,
	).Exec(ctx)
	if err != nil {
		return classifyStoreError("proc_issue_key", err)
	}
	return nil
}

// classifyStoreError tags a driver error with the StoreErrorKind callers
// dispatch on. Uniqueness and policy failures have no portable error codes
// across drivers, so classification falls back to message inspection.
func classifyStoreError(op string, err error) error {
	if err == nil {
		return nil
	}

	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return NewStoreError(StoreNotFound, op, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "constraint"):
		return NewStoreError(StoreConflict, op, err)
	case strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "row-level security") ||
		strings.Contains(msg, "policy"):
		return NewStoreError(StorePolicyDenied, op, err)
	}

	return NewStoreError(StoreTransient, op, err)
}
