package access

import (
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController exposes the access service as a JSON API. Responses always
// carry the service envelope; the status code is derived from the error
// category on failure.
type HTTPController struct {
	service *Service
	logger  Logger
}

// NewHTTPController returns a controller over service
func NewHTTPController(service *Service) *HTTPController {
	return &HTTPController{
		service: service,
		logger:  defLogger{},
	}
}

func (c *HTTPController) WithLogger(logger Logger) *HTTPController {
	c.logger = logger
	return c
}

// RegisterRoutes registers the access routes on group
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/login", c.Login)
	group.Post("/register", c.Register)
	group.Post("/logout", c.Logout)
	group.Get("/status", c.Status)

	group.Get("/keys", c.ListKeys)
	group.Get("/keys/stats", c.KeyStats)
	group.Get("/keys/validate", c.ValidateKey)
	group.Post("/keys", c.IssueKey)
	group.Post("/keys/batch", c.IssueBatch)
	group.Post("/keys/redeem", c.Redeem)
	group.Delete("/keys/:id", c.DeleteKey)
}

// Login verifies credentials and returns the session projection
func (c *HTTPController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return bindError(ctx, err)
	}

	resp := c.service.Login(ctx.Context(), *payload)
	return respond(ctx, resp.Success, resp.Err, resp)
}

// Register creates a base-tier account
func (c *HTTPController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)
	if err := ctx.Bind(payload); err != nil {
		return bindError(ctx, err)
	}

	resp := c.service.Register(ctx.Context(), *payload)
	return respond(ctx, resp.Success, resp.Err, resp)
}

// Logout clears the stored session
func (c *HTTPController) Logout(ctx router.Context) error {
	resp := c.service.Logout(ctx.Context())
	return respond(ctx, resp.Success, resp.Err, resp)
}

// Status re-validates the stored session
func (c *HTTPController) Status(ctx router.Context) error {
	resp := c.service.CheckStatus(ctx.Context())
	return respond(ctx, resp.Success, resp.Err, resp)
}

// ValidateKey classifies a key without consuming it
func (c *HTTPController) ValidateKey(ctx router.Context) error {
	keyValue := ctx.Query("key", "")
	resp := c.service.ValidateKey(ctx.Context(), keyValue)
	return respond(ctx, resp.Success, resp.Err, resp)
}

// IssueKey mints a single key for the authenticated caller
func (c *HTTPController) IssueKey(ctx router.Context) error {
	callerID, err := c.callerID(ctx)
	if err != nil {
		return respond(ctx, false, err, fail[KeyView](err))
	}

	payload := new(IssueKeyRequest)
	if err := ctx.Bind(payload); err != nil {
		return bindError(ctx, err)
	}

	resp := c.service.IssueKey(ctx.Context(), callerID, *payload)
	return respond(ctx, resp.Success, resp.Err, resp)
}

// IssueBatch mints up to MaxBatchSize keys for the authenticated caller
func (c *HTTPController) IssueBatch(ctx router.Context) error {
	callerID, err := c.callerID(ctx)
	if err != nil {
		return respond(ctx, false, err, fail[BatchResult](err))
	}

	payload := new(BatchIssueRequest)
	if err := ctx.Bind(payload); err != nil {
		return bindError(ctx, err)
	}

	resp := c.service.IssueBatch(ctx.Context(), callerID, *payload)
	return respond(ctx, resp.Success, resp.Err, resp)
}

// Redeem consumes a key to escalate a role
func (c *HTTPController) Redeem(ctx router.Context) error {
	callerID, err := c.callerID(ctx)
	if err != nil {
		return respond(ctx, false, err, fail[SessionData](err))
	}

	payload := new(RedeemRequest)
	if err := ctx.Bind(payload); err != nil {
		return bindError(ctx, err)
	}

	resp := c.service.Redeem(ctx.Context(), callerID, *payload)
	return respond(ctx, resp.Success, resp.Err, resp)
}

// ListKeys returns one page of keys, newest first
func (c *HTTPController) ListKeys(ctx router.Context) error {
	callerID, err := c.callerID(ctx)
	if err != nil {
		return respond(ctx, false, err, fail[KeyPage](err))
	}

	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.Query("page_size", "20"))

	resp := c.service.ListKeys(ctx.Context(), callerID, page, pageSize)
	return respond(ctx, resp.Success, resp.Err, resp)
}

// DeleteKey removes a key row
func (c *HTTPController) DeleteKey(ctx router.Context) error {
	callerID, err := c.callerID(ctx)
	if err != nil {
		return respond(ctx, false, err, fail[struct{}](err))
	}

	keyID, err := strconv.ParseInt(ctx.Param("id", ""), 10, 64)
	if err != nil {
		return respond(ctx, false, ErrKeyNotFound, fail[struct{}](ErrKeyNotFound))
	}

	resp := c.service.DeleteKey(ctx.Context(), callerID, keyID)
	return respond(ctx, resp.Success, resp.Err, resp)
}

// KeyStats aggregates the key table for the admin dashboard
func (c *HTTPController) KeyStats(ctx router.Context) error {
	callerID, err := c.callerID(ctx)
	if err != nil {
		return respond(ctx, false, err, fail[KeyStatistics](err))
	}

	resp := c.service.KeyStats(ctx.Context(), callerID)
	return respond(ctx, resp.Success, resp.Err, resp)
}

// callerID resolves the caller's account ID from the bearer token. The token
// check here is structural; issuance and escalation re-resolve the account
// against the store before trusting anything in it.
func (c *HTTPController) callerID(ctx router.Context) (uuid.UUID, error) {
	header := ctx.GetString("Authorization", "")
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return uuid.Nil, ErrTokenMalformed
	}

	claims, err := ParseTokenUnverified(strings.TrimSpace(header[len("bearer "):]))
	if err != nil {
		return uuid.Nil, err
	}

	return claims.AccountID()
}

func bindError(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, Response[struct{}]{
		Success: false,
		Message: "failed to parse request body: " + err.Error(),
	})
}

func respond[T any](ctx router.Context, success bool, err error, body T) error {
	if success {
		return ctx.JSON(router.StatusOK, body)
	}
	return ctx.JSON(statusFor(err), body)
}

// statusFor maps an error category to an HTTP status
func statusFor(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return router.StatusBadRequest
	}

	switch richErr.Category {
	case goerrors.CategoryAuth:
		return router.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return router.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return router.StatusBadRequest
	case goerrors.CategoryInternal, goerrors.CategoryOperation:
		return router.StatusInternalServerError
	}

	return router.StatusInternalServerError
}
