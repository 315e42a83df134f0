package access

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

// Response is the uniform envelope handed to UI and state collaborators. Err
// keeps the causing error reachable for transports that map it to a status
// code; it never serializes.
type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *T     `json:"data"`
	Err     error  `json:"-"`
}

func ok[T any](message string, data *T) Response[T] {
	return Response[T]{Success: true, Message: message, Data: data}
}

func fail[T any](err error) Response[T] {
	return Response[T]{Success: false, Message: messageFor(err), Err: err}
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Password, validation.Required),
	)
}

// RegisterRequest payload. Role is never part of the payload; registration
// always lands in the base tier.
type RegisterRequest struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(matchesString(r.Password, "passwords must match")),
		),
	)
}

// IssueKeyRequest payload
type IssueKeyRequest struct {
	KeyType       string `form:"key_type" json:"key_type"`
	MaxUses       int    `form:"max_uses" json:"max_uses"`
	ExpiresInDays int    `form:"expires_in_days" json:"expires_in_days"`
	Description   string `form:"description" json:"description"`
}

// Validate will run validation rules
func (r IssueKeyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.KeyType,
			validation.Required,
			validation.In(KeyTypeInvitation, KeyTypePromotion, KeyTypeTeacher),
		),
	)
}

// BatchIssueRequest payload
type BatchIssueRequest struct {
	KeyType       string `form:"key_type" json:"key_type"`
	Count         int    `form:"count" json:"count"`
	MaxUses       int    `form:"max_uses" json:"max_uses"`
	ExpiresInDays int    `form:"expires_in_days" json:"expires_in_days"`
	Description   string `form:"description" json:"description"`
}

// Validate will run validation rules
func (r BatchIssueRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.KeyType,
			validation.Required,
			validation.In(KeyTypeInvitation, KeyTypePromotion, KeyTypeTeacher),
		),
		validation.Field(&r.Count, validation.Required),
	)
}

// RedeemRequest payload. TargetUserID is optional; empty means the caller
// redeems for themselves.
type RedeemRequest struct {
	KeyValue     string `form:"key_value" json:"key_value"`
	TargetUserID string `form:"target_user_id" json:"target_user_id"`
}

// Validate will run validation rules
func (r RedeemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.KeyValue, validation.Required),
		validation.Field(&r.TargetUserID, validation.By(optionalUUID)),
	)
}

func matchesString(expected, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return validation.NewError("validation_match", message)
		}
		return nil
	}
}

func optionalUUID(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return validation.NewError("validation_uuid", "must be a valid UUID")
	}
	return nil
}

// Service is the boundary exposed to UI and state collaborators. Every
// operation returns the uniform envelope and, on success, saves or clears the
// session through the explicit SessionStore.
type Service struct {
	auth     *Authenticator
	registry *KeyRegistry
	escalate *Escalator
	sessions SessionStore
	logger   Logger
}

// NewService wires the access components behind the envelope surface
func NewService(store IdentityStore, sessions SessionStore, opts Config) *Service {
	auth := NewAuthenticator(store, opts)
	registry := NewKeyRegistry(store, opts)

	return &Service{
		auth:     auth,
		registry: registry,
		escalate: NewEscalator(registry, store),
		sessions: sessions,
		logger:   defLogger{},
	}
}

func (s *Service) WithLogger(logger Logger) *Service {
	s.logger = logger
	s.auth.WithLogger(logger)
	s.registry.WithLogger(logger)
	s.escalate.WithLogger(logger)
	return s
}

// Authenticator exposes the underlying authenticator
func (s *Service) Authenticator() *Authenticator { return s.auth }

// Registry exposes the underlying key registry
func (s *Service) Registry() *KeyRegistry { return s.registry }

// Login verifies credentials and replaces the stored session on success
func (s *Service) Login(ctx context.Context, req LoginRequest) Response[SessionData] {
	if err := req.Validate(); err != nil {
		return fail[SessionData](err)
	}

	data, err := s.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return fail[SessionData](err)
	}

	if err := s.sessions.Save(ctx, FromSessionData(data)); err != nil {
		s.logger.Warn("login: failed to persist session state: %v", err)
	}

	return ok("login successful", data)
}

// Register creates a base-tier account. No session is established; the new
// account logs in afterwards.
func (s *Service) Register(ctx context.Context, req RegisterRequest) Response[SessionData] {
	if err := req.Validate(); err != nil {
		return fail[SessionData](err)
	}

	data, err := s.auth.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return fail[SessionData](err)
	}

	return ok("registration successful, account starts in the base tier", data)
}

// Logout clears the stored session. Clearing local state never fails the
// operation.
func (s *Service) Logout(ctx context.Context) Response[struct{}] {
	if err := s.sessions.Clear(ctx); err != nil {
		s.logger.Warn("logout: failed to clear session state: %v", err)
	}
	return ok[struct{}]("logged out", nil)
}

// CheckStatus re-validates the stored session against current store state.
// Any failure clears the session.
func (s *Service) CheckStatus(ctx context.Context) Response[SessionData] {
	state, found, err := s.sessions.Load(ctx)
	if err != nil || !found || !state.IsAuthenticated() {
		s.clearSession(ctx)
		return fail[SessionData](ErrInvalidCredentials)
	}

	data, err := s.auth.CheckStatus(ctx, state.Token)
	if err != nil {
		s.clearSession(ctx)
		return fail[SessionData](err)
	}

	if err := s.sessions.Save(ctx, FromSessionData(data)); err != nil {
		s.logger.Warn("check status: failed to persist session state: %v", err)
	}

	return ok("session valid", data)
}

// ValidateKey classifies a key without consuming it
func (s *Service) ValidateKey(ctx context.Context, keyValue string) Response[KeyView] {
	view, err := s.registry.Validate(ctx, keyValue)
	if err != nil {
		return fail[KeyView](err)
	}
	return ok("key is valid", view)
}

// IssueKey mints a single key on behalf of creatorID
func (s *Service) IssueKey(ctx context.Context, creatorID uuid.UUID, req IssueKeyRequest) Response[KeyView] {
	if err := req.Validate(); err != nil {
		return fail[KeyView](err)
	}

	view, err := s.registry.Issue(ctx, creatorID, req.KeyType, IssueKeyOptions{
		MaxUses:       req.MaxUses,
		ExpiresInDays: req.ExpiresInDays,
		Description:   req.Description,
	})
	if err != nil {
		return fail[KeyView](err)
	}

	message := "key issued"
	if view.Degraded {
		message = "key issued (unconfirmed, pending reconciliation)"
	}

	return ok(message, view)
}

// IssueBatch mints up to MaxBatchSize keys; partial success is still success
func (s *Service) IssueBatch(ctx context.Context, creatorID uuid.UUID, req BatchIssueRequest) Response[BatchResult] {
	if err := req.Validate(); err != nil {
		return fail[BatchResult](err)
	}

	result, err := s.registry.IssueBatch(ctx, creatorID, req.KeyType, req.Count, IssueKeyOptions{
		MaxUses:       req.MaxUses,
		ExpiresInDays: req.ExpiresInDays,
		Description:   req.Description,
	})
	if err != nil {
		return fail[BatchResult](err)
	}

	return ok("batch issued", result)
}

// Redeem consumes a key to escalate a role, then replaces the stored session
// with the post-escalation projection. The projection carries no fresh token;
// the previously stored one is kept.
func (s *Service) Redeem(ctx context.Context, currentUserID uuid.UUID, req RedeemRequest) Response[SessionData] {
	if err := req.Validate(); err != nil {
		return fail[SessionData](err)
	}

	target := uuid.Nil
	if req.TargetUserID != "" {
		target, _ = uuid.Parse(req.TargetUserID)
	}

	data, err := s.escalate.Redeem(ctx, req.KeyValue, currentUserID, target)
	if err != nil {
		return fail[SessionData](err)
	}

	if state, found, loadErr := s.sessions.Load(ctx); loadErr == nil && found {
		data.Token = state.Token
	}
	if err := s.sessions.Save(ctx, FromSessionData(data)); err != nil {
		s.logger.Warn("redeem: failed to persist session state: %v", err)
	}

	return ok("role escalated", data)
}

// ListKeys returns one admin page of keys
func (s *Service) ListKeys(ctx context.Context, callerID uuid.UUID, page, pageSize int) Response[KeyPage] {
	result, err := s.registry.List(ctx, callerID, page, pageSize)
	if err != nil {
		return fail[KeyPage](err)
	}
	return ok("keys listed", result)
}

// DeleteKey removes a key row
func (s *Service) DeleteKey(ctx context.Context, callerID uuid.UUID, keyID int64) Response[struct{}] {
	if err := s.registry.Delete(ctx, callerID, keyID); err != nil {
		return fail[struct{}](err)
	}
	return ok[struct{}]("key deleted", nil)
}

// KeyStats aggregates the key table for the admin dashboard
func (s *Service) KeyStats(ctx context.Context, callerID uuid.UUID) Response[KeyStatistics] {
	stats, err := s.registry.Statistics(ctx, callerID)
	if err != nil {
		return fail[KeyStatistics](err)
	}
	return ok("statistics computed", stats)
}

func (s *Service) clearSession(ctx context.Context) {
	if err := s.sessions.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear session state: %v", err)
	}
}
