package access

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's capability tier
type AccountRole = string

const (
	// RoleBase is the tier every account starts in
	RoleBase AccountRole = "base"
	// RoleExaminer reviews and scores base-tier accounts
	RoleExaminer AccountRole = "examiner"
	// RoleEnterprise is the enterprise-partner tier
	RoleEnterprise AccountRole = "enterprise"
	// RoleAdmin can issue and manage invitation keys
	RoleAdmin AccountRole = "admin"
)

// AccountStatus is the account's lifecycle status
type AccountStatus = string

const (
	StatusActive    AccountStatus = "active"
	StatusInactive  AccountStatus = "inactive"
	StatusSuspended AccountStatus = "suspended"
)

// BaseStanding is the optional sub-status carried by base-tier accounts.
type BaseStanding = string

const (
	// StandingUnaffiliated means no examiner has picked up the account yet
	StandingUnaffiliated BaseStanding = "unaffiliated"
	// StandingSelected means the account has been selected by an examiner
	StandingSelected BaseStanding = "selected"
)

// KeyType classifies invitation keys by the escalation they grant
type KeyType = string

const (
	// KeyTypeInvitation promotes the redeemer to the enterprise tier
	KeyTypeInvitation KeyType = "invitation"
	// KeyTypePromotion promotes the redeemer to the examiner tier
	KeyTypePromotion KeyType = "promotion"
	// KeyTypeTeacher exists in the data model but has no escalation effect;
	// redeeming one is rejected with ErrUnsupportedKeyType
	KeyTypeTeacher KeyType = "teacher"
)

// Account is the identity record
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string        `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string        `bun:"email,unique,nullzero" json:"email,omitempty"`
	PasswordHash  string        `bun:"password_hash" json:"password_hash,omitempty"`
	Role          AccountRole   `bun:"role,notnull" json:"role,omitempty"`
	Status        AccountStatus `bun:"status,notnull" json:"status,omitempty"`
	BaseStanding  BaseStanding  `bun:"base_standing,nullzero" json:"base_standing,omitempty"`
	LastLoginAt   *time.Time    `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus defaults the status to active when unset
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = StatusActive
	}
}

// AbilityProfile holds the seven capability scores, one row per account.
// Rows are created zeroed at registration; external scoring workflows own
// the values afterwards, this package only reads them.
type AbilityProfile struct {
	bun.BaseModel       `bun:"table:ability_profiles,alias:abp"`
	AccountID           uuid.UUID  `bun:"account_id,pk,type:uuid" json:"account_id,omitempty"`
	FrontendPoints      int        `bun:"frontend_points,notnull,default:0" json:"frontend_points"`
	AndroidPoints       int        `bun:"android_points,notnull,default:0" json:"android_points"`
	BackendPoints       int        `bun:"backend_points,notnull,default:0" json:"backend_points"`
	AIPoints            int        `bun:"ai_points,notnull,default:0" json:"ai_points"`
	CommunicationPoints int        `bun:"communication_points,notnull,default:0" json:"communication_points"`
	CreativityPoints    int        `bun:"creativity_points,notnull,default:0" json:"creativity_points"`
	LeadershipPoints    int        `bun:"leadership_points,notnull,default:0" json:"leadership_points"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// InvitationKey is a redeemable credential that escalates an account's role.
// Invariant: CurrentUses <= MaxUses, and Used implies CurrentUses >= 1.
type InvitationKey struct {
	bun.BaseModel `bun:"table:invitation_keys,alias:key"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	KeyValue      string     `bun:"key_value,notnull,unique" json:"key_value,omitempty"`
	KeyType       KeyType    `bun:"key_type,notnull" json:"key_type,omitempty"`
	CreatorID     uuid.UUID  `bun:"creator_id,type:uuid" json:"creator_id,omitempty"`
	Used          bool       `bun:"used,notnull,default:false" json:"used"`
	UsedBy        *uuid.UUID `bun:"used_by,nullzero,type:uuid" json:"used_by,omitempty"`
	UsedAt        *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	MaxUses       int        `bun:"max_uses,notnull,default:1" json:"max_uses,omitempty"`
	CurrentUses   int        `bun:"current_uses,notnull,default:0" json:"current_uses"`
	Description   string     `bun:"description,nullzero" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsExpired reports whether the key's validity window has passed
func (k *InvitationKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt.Before(now)
}

// IsExhausted reports whether the key has no uses left
func (k *InvitationKey) IsExhausted() bool {
	return k.CurrentUses >= k.MaxUses
}
