package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/traincore/lms-platform/internal/config"
	"github.com/traincore/lms-platform/internal/service"
)

// AuthHandler bundles the credential services behind thin HTTP
// endpoints. All business rules live in the service layer; handlers
// only bind, call, and translate errors to status codes.
type AuthHandler struct {
	Cfg   config.Config
	Auth  *service.AuthService
	Reset *service.PasswordResetService
	Email *service.EmailChangeService
	OAuth *service.OAuthService
}

func NewAuthHandler(
	cfg config.Config,
	auth *service.AuthService,
	reset *service.PasswordResetService,
	email *service.EmailChangeService,
	oauth *service.OAuthService,
) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: auth, Reset: reset, Email: email, OAuth: oauth}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type resetRequestReq struct {
	Email string `json:"email"`
}
type resetVerifyReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
type resetCommitReq struct {
	ChangeToken string `json:"change_token"`
	NewPassword string `json:"new_password"`
}
type emailChangeReq struct {
	OldEmail string `json:"old_email"`
	NewEmail string `json:"new_email"`
	Password string `json:"password"`
}
type emailResendReq struct {
	ResendToken string `json:"resend_token"`
}
type emailVerifyReq struct {
	ChangeToken string `json:"change_token"`
}
type changeRoleReq struct {
	UserID uint64 `json:"user_id"`
	Role   string `json:"role"`
}

// Login: verify credentials and return an AuthenticationResult. A failed
// authentication is a 401 whose body still carries the result, so
// clients render the message inline.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	result, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return h.serviceError(c, err)
	}
	if !result.IsAuthenticated {
		return c.JSON(http.StatusUnauthorized, result)
	}
	return c.JSON(http.StatusOK, result)
}

// Refresh: rotate the refresh token and return a fresh pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	result, err := h.Auth.Rotate(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Logout: delete the caller's refresh token. Requires a valid access
// token; the token in the body must belong to the same principal.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	uid, ok := c.Get("user_id").(uint64)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	ok, err := h.Auth.Logout(ctx, strings.TrimSpace(req.RefreshToken), uid)
	if err != nil {
		return h.serviceError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangeRole: admin-only role update; revokes the user's refresh tokens
// as a side effect since live access tokens cannot be recalled.
func (h *AuthHandler) ChangeRole(c echo.Context) error {
	var req changeRoleReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 || req.Role == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id/role required"})
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	if err := h.Auth.ChangeRole(ctx, req.UserID, strings.ToUpper(req.Role)); err != nil {
		return h.serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RequestPasswordReset: phase 1, mail a 6-digit code.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	if err := h.Reset.Request(ctx, strings.TrimSpace(req.Email)); err != nil {
		return h.serviceError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// VerifyPasswordReset: phase 2, exchange the code for a change token.
func (h *AuthHandler) VerifyPasswordReset(c echo.Context) error {
	var req resetVerifyReq
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/code required"})
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	token, err := h.Reset.Verify(ctx, strings.TrimSpace(req.Email), strings.TrimSpace(req.Code))
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"change_token": token})
}

// CommitPasswordReset: phase 3, redeem the change token for a new
// password.
func (h *AuthHandler) CommitPasswordReset(c echo.Context) error {
	var req resetCommitReq
	if err := c.Bind(&req); err != nil || req.ChangeToken == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "change_token/new_password required"})
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	if err := h.Reset.Commit(ctx, req.ChangeToken, req.NewPassword); err != nil {
		return h.serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RequestEmailChange: password-gated start of the email-change flow.
func (h *AuthHandler) RequestEmailChange(c echo.Context) error {
	var req emailChangeReq
	if err := c.Bind(&req); err != nil || req.OldEmail == "" || req.NewEmail == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "old_email/new_email/password required"})
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	resendToken, err := h.Email.Request(ctx, strings.TrimSpace(req.OldEmail), strings.TrimSpace(req.NewEmail), req.Password)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resend_token": resendToken})
}

// ResendEmailChange: retry delivery without re-entering the password.
func (h *AuthHandler) ResendEmailChange(c echo.Context) error {
	var req emailResendReq
	if err := c.Bind(&req); err != nil || req.ResendToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "resend_token required"})
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	resendToken, err := h.Email.Resend(ctx, req.ResendToken)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resend_token": resendToken})
}

// VerifyEmailChange: redeem the mailed change token.
func (h *AuthHandler) VerifyEmailChange(c echo.Context) error {
	var req emailVerifyReq
	if err := c.Bind(&req); err != nil || req.ChangeToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "change_token required"})
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	if err := h.Email.Verify(ctx, req.ChangeToken); err != nil {
		return h.serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// OAuthCallback handles the provider redirect. Provider rejections are
// forwarded to the frontend login page with the provider's error and
// error_description in the query string, never collapsed into a bare
// 500.
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	provider := c.Param("provider")
	code := c.QueryParam("code")
	if code == "" {
		return h.redirectWithError(c, c.QueryParam("error"), c.QueryParam("error_description"))
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	result, err := h.OAuth.Login(ctx, provider, code)
	if err != nil {
		var pe *service.ProviderExchangeError
		switch {
		case errors.As(err, &pe):
			return h.redirectWithError(c, pe.Code, pe.Description)
		case errors.Is(err, service.ErrConfigurationError):
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "oauth provider not configured"})
		default:
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "oauth exchange failed"})
		}
	}
	if !result.IsAuthenticated {
		return h.redirectWithError(c, "access_denied", result.Message)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) redirectWithError(c echo.Context, code, description string) error {
	q := url.Values{}
	if code == "" {
		code = "oauth_failed"
	}
	q.Set("error", code)
	if description != "" {
		q.Set("error_description", description)
	}
	return c.Redirect(http.StatusFound, h.Cfg.FrontendLoginURL+"?"+q.Encode())
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"email":   c.Get("email"),
		"role":    c.Get("role"),
	})
}

func (h *AuthHandler) reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// serviceError translates service error kinds into HTTP responses.
func (h *AuthHandler) serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrEntityNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrTokenExpired):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "token expired"})
	case errors.Is(err, service.ErrTokenMismatch):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "code does not match"})
	case errors.Is(err, service.ErrTokenSignatureInvalid):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	case errors.Is(err, service.ErrEmailShouldNotBeEmpty):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email should not be empty"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
