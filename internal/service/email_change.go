package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/traincore/lms-platform/internal/config"
	"github.com/traincore/lms-platform/internal/repository"
	"github.com/traincore/lms-platform/internal/utils"
)

const (
	claimOldEmail = "old_email"
	claimNewEmail = "new_email"
)

// EmailChangeService drives the dual-token email change. Every request
// signs two tokens carrying the identical old/new email pair: a "change"
// token mailed to the new address as the verification link, and a
// "resend" token handed back to the client so delivery can be retried
// without re-entering the password. The two tokens use independent keys
// and independent lifetimes, so neither verifies under the other's key.
type EmailChangeService struct {
	cfg          config.Config
	users        repository.UserRepository
	changeTokens *utils.ScopedToken
	resendTokens *utils.ScopedToken
	mail         Mailer
}

func NewEmailChangeService(cfg config.Config, users repository.UserRepository, mail Mailer) *EmailChangeService {
	return &EmailChangeService{
		cfg:          cfg,
		users:        users,
		changeTokens: utils.NewScopedToken(cfg.ChangeEmailSecret, time.Duration(cfg.ChangeEmailTTLMin)*time.Minute),
		resendTokens: utils.NewScopedToken(cfg.ResendEmailSecret, time.Duration(cfg.ResendEmailTTLMin)*time.Minute),
		mail:         mail,
	}
}

// WithClock overrides the time source of both token scopes. Intended for
// tests.
func (s *EmailChangeService) WithClock(now func() time.Time) *EmailChangeService {
	s.changeTokens.WithClock(now)
	s.resendTokens.WithClock(now)
	return s
}

// Request verifies account ownership via the current password, checks
// the new address is free, and issues the token pair. The returned
// string is the resend token; the change token travels only by mail.
func (s *EmailChangeService) Request(ctx context.Context, oldEmail, newEmail, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, oldEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrForbidden
		}
		return "", err
	}
	if !utils.VerifyPassword(user.HashPassword, password) {
		return "", ErrForbidden
	}
	if _, err := s.users.GetByEmail(ctx, newEmail); err == nil {
		return "", ErrEmailAlreadyRegistered
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	return s.issuePair(ctx, user.FirstName, oldEmail, newEmail)
}

// Resend redeems a valid resend token for a fresh pair and re-sends the
// verification mail. The password is not required again.
func (s *EmailChangeService) Resend(ctx context.Context, resendToken string) (string, error) {
	claims, err := s.resendTokens.Decode(resendToken)
	if err != nil {
		return "", mapTokenError(err)
	}
	oldEmail, newEmail := claims[claimOldEmail], claims[claimNewEmail]
	if oldEmail == "" || newEmail == "" {
		return "", ErrEmailShouldNotBeEmpty
	}

	user, err := s.users.GetByEmail(ctx, oldEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrEntityNotFound
		}
		return "", err
	}
	return s.issuePair(ctx, user.FirstName, oldEmail, newEmail)
}

// Verify redeems a change token and rewrites the account email. The
// signature is checked against the change key; expiry is compared
// manually after decoding, so an expired token surfaces as the domain's
// ErrTokenExpired rather than a parse failure.
func (s *EmailChangeService) Verify(ctx context.Context, changeToken string) error {
	claims, err := s.changeTokens.Decode(changeToken)
	if err != nil {
		return mapTokenError(err)
	}
	oldEmail, newEmail := claims[claimOldEmail], claims[claimNewEmail]
	if oldEmail == "" || newEmail == "" {
		return ErrEmailShouldNotBeEmpty
	}

	user, err := s.users.GetByEmail(ctx, oldEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntityNotFound
		}
		return err
	}
	if err := s.users.UpdateEmail(ctx, user.ID, newEmail); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return ErrEmailAlreadyRegistered
		}
		return err
	}
	return nil
}

// issuePair signs the change/resend token pair over identical claims and
// mails the change token to the new address.
func (s *EmailChangeService) issuePair(ctx context.Context, firstName, oldEmail, newEmail string) (string, error) {
	claims := map[string]string{claimOldEmail: oldEmail, claimNewEmail: newEmail}

	changeToken, err := s.changeTokens.Issue(claims)
	if err != nil {
		return "", err
	}
	resendToken, err := s.resendTokens.Issue(claims)
	if err != nil {
		return "", err
	}

	expiryMinutes := int(s.changeTokens.TTL() / time.Minute)
	if err := s.mail.SendChangeEmailMail(ctx, newEmail, firstName, changeToken, expiryMinutes, s.cfg.CompanyName); err != nil {
		log.Printf("email-change: mail delivery failed for %s: %v", newEmail, err)
	}
	return resendToken, nil
}
