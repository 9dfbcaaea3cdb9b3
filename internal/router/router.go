package router

import (
	"github.com/labstack/echo/v4"

	"github.com/traincore/lms-platform/internal/handler"
	"github.com/traincore/lms-platform/internal/middleware"
	"github.com/traincore/lms-platform/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all credential-related routes. Unauthenticated
// operations live under /v1/auth; protected endpoints live under /v1.
// The optional rateLimit middleware guards the pre-auth surface where
// an attacker can probe credentials, codes and tokens.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if rateLimit != nil {
		g.Use(rateLimit)
	}

	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	// Two-phase password reset: request mails a short-lived code,
	// verify exchanges it for a signed change token, commit redeems it.
	g.POST("/password-reset/request", a.RequestPasswordReset)
	g.POST("/password-reset/verify", a.VerifyPasswordReset)
	g.POST("/password-reset/commit", a.CommitPasswordReset)

	// Email change: request is password-gated, resend re-mails without
	// the password, verify redeems the mailed token.
	g.POST("/email-change/request", a.RequestEmailChange)
	g.POST("/email-change/resend", a.ResendEmailChange)
	g.POST("/email-change/verify", a.VerifyEmailChange)

	// Provider redirect target for federated login.
	g.GET("/oauth/:provider/callback", a.OAuthCallback)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.POST("/logout", a.Logout)

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/users/role", a.ChangeRole)
}
