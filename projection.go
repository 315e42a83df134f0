package access

import (
	"time"

	"github.com/google/uuid"
)

// AccountView is the externally consumed identity shape
type AccountView struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	BaseStanding string     `json:"base_standing,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// AbilityView is the externally consumed capability shape
type AbilityView struct {
	AccountID           string     `json:"account_id"`
	FrontendPoints      int        `json:"frontend_points"`
	AndroidPoints       int        `json:"android_points"`
	BackendPoints       int        `json:"backend_points"`
	AIPoints            int        `json:"ai_points"`
	CommunicationPoints int        `json:"communication_points"`
	CreativityPoints    int        `json:"creativity_points"`
	LeadershipPoints    int        `json:"leadership_points"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// KeyView is the externally consumed key shape. Degraded marks views
// synthesized from locally computed values after a write that is presumed to
// have succeeded but could not be read back; canonical state lives in the
// store and a later list will reconcile it.
type KeyView struct {
	ID          int64      `json:"id"`
	KeyValue    string     `json:"key_value"`
	KeyType     string     `json:"key_type"`
	CreatorID   string     `json:"creator_id,omitempty"`
	Used        bool       `json:"used"`
	UsedBy      string     `json:"used_by,omitempty"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	MaxUses     int        `json:"max_uses"`
	CurrentUses int        `json:"current_uses"`
	Description string     `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Degraded    bool       `json:"degraded,omitempty"`
}

// SessionData is the full, replace-only projection handed to state holders
type SessionData struct {
	Account   AccountView `json:"account"`
	Abilities AbilityView `json:"abilities"`
	Token     string      `json:"token,omitempty"`
}

// ProjectAccount maps a raw account row to its view. Nil or malformed input
// projects as zero values; this function never fails.
func ProjectAccount(account *Account) AccountView {
	if account == nil {
		return AccountView{}
	}

	view := AccountView{
		ID:           account.ID.String(),
		Username:     account.Username,
		Email:        account.Email,
		Role:         account.Role,
		Status:       account.Status,
		BaseStanding: account.BaseStanding,
		LastLoginAt:  account.LastLoginAt,
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	}

	if account.ID == uuid.Nil {
		view.ID = ""
	}
	if view.Status == "" {
		view.Status = StatusActive
	}

	return view
}

// ProjectAbilities maps an ability row to its view. A nil profile projects as
// all-zero scores for the given account, absence is not an error.
func ProjectAbilities(accountID uuid.UUID, profile *AbilityProfile) AbilityView {
	view := AbilityView{}
	if accountID != uuid.Nil {
		view.AccountID = accountID.String()
	}

	if profile == nil {
		return view
	}

	view.FrontendPoints = profile.FrontendPoints
	view.AndroidPoints = profile.AndroidPoints
	view.BackendPoints = profile.BackendPoints
	view.AIPoints = profile.AIPoints
	view.CommunicationPoints = profile.CommunicationPoints
	view.CreativityPoints = profile.CreativityPoints
	view.LeadershipPoints = profile.LeadershipPoints
	view.UpdatedAt = profile.UpdatedAt

	return view
}

// ProjectKey maps a raw key row to its view
func ProjectKey(key *InvitationKey) KeyView {
	if key == nil {
		return KeyView{}
	}

	view := KeyView{
		ID:          key.ID,
		KeyValue:    key.KeyValue,
		KeyType:     key.KeyType,
		Used:        key.Used,
		UsedAt:      key.UsedAt,
		ExpiresAt:   key.ExpiresAt,
		MaxUses:     key.MaxUses,
		CurrentUses: key.CurrentUses,
		Description: key.Description,
		CreatedAt:   key.CreatedAt,
		UpdatedAt:   key.UpdatedAt,
	}

	if key.CreatorID != uuid.Nil {
		view.CreatorID = key.CreatorID.String()
	}
	if key.UsedBy != nil && *key.UsedBy != uuid.Nil {
		view.UsedBy = key.UsedBy.String()
	}

	return view
}

// ProjectSession assembles the full session view after a state change
func ProjectSession(account *Account, profile *AbilityProfile, token string) *SessionData {
	var accountID uuid.UUID
	if account != nil {
		accountID = account.ID
	}

	return &SessionData{
		Account:   ProjectAccount(account),
		Abilities: ProjectAbilities(accountID, profile),
		Token:     token,
	}
}
