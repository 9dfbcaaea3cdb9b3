// Package service implements the credential and token lifecycle:
// login, refresh-token rotation, the two-phase password reset, the
// dual-token email change, and the federated login bridge. All of them
// terminate in the same token issuance path on AuthService.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrEntityNotFound is returned when a referenced user does not exist.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrForbidden covers ownership and authorization violations, such as
	// a wrong current password on an email-change request.
	ErrForbidden = errors.New("forbidden")
	// ErrTokenExpired is returned when a reset code or signed token is
	// past its expiry, regardless of whether the value itself matches.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMismatch is returned when a reset code does not match the
	// one stored for the user.
	ErrTokenMismatch = errors.New("token mismatch")
	// ErrTokenSignatureInvalid is returned when a signed token fails
	// verification against the expected key.
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	// ErrEmailAlreadyRegistered is returned when the requested new email
	// already belongs to an account.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrEmailShouldNotBeEmpty is returned when an email-change token
	// carries malformed (empty) email claims.
	ErrEmailShouldNotBeEmpty = errors.New("email should not be empty")
	// ErrInvalidRefreshToken is returned when a refresh token is unknown,
	// inactive, or its owning user cannot be resolved.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrConfigurationError is returned when an OAuth provider is missing
	// its client credentials.
	ErrConfigurationError = errors.New("oauth provider not configured")
)

// ProviderExchangeError reports that an OAuth provider rejected the
// authorization-code exchange. It preserves the provider's error payload
// so the callback can surface the reason instead of a bare failure.
type ProviderExchangeError struct {
	Provider    string
	StatusCode  int
	Code        string
	Description string
}

func (e *ProviderExchangeError) Error() string {
	return fmt.Sprintf("provider %s rejected code exchange (status %d): %s: %s",
		e.Provider, e.StatusCode, e.Code, e.Description)
}
