package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/traincore/lms-platform/internal/config"
	"github.com/traincore/lms-platform/internal/repository"
	"github.com/traincore/lms-platform/internal/utils"
)

// PasswordResetService drives the two-phase reset protocol: a short
// numeric code delivered out-of-band, then a scoped signed token that
// authorizes the actual password change. The code is single-use; it is
// cleared the moment a change token is issued for it.
type PasswordResetService struct {
	cfg          config.Config
	users        repository.UserRepository
	changeTokens *utils.ScopedToken
	mail         Mailer
	now          func() time.Time
}

func NewPasswordResetService(cfg config.Config, users repository.UserRepository, mail Mailer) *PasswordResetService {
	return &PasswordResetService{
		cfg:          cfg,
		users:        users,
		changeTokens: utils.NewScopedToken(cfg.ChangeTokenSecret, cfg.ChangeTokenTTL),
		mail:         mail,
		now:          time.Now,
	}
}

// WithClock overrides the time source for the service and its change
// tokens. Intended for tests.
func (s *PasswordResetService) WithClock(now func() time.Time) *PasswordResetService {
	s.now = now
	s.changeTokens.WithClock(now)
	return s
}

// Request generates a 6-digit code with a short expiry, stores it on the
// user row and mails it. Nothing is returned to the caller; the code
// travels out-of-band only.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntityNotFound
		}
		return err
	}

	code, err := newResetCode()
	if err != nil {
		return err
	}
	expiry := s.now().UTC().Add(s.cfg.ResetCodeTTL)
	if err := s.users.SetResetCode(ctx, user.ID, code, expiry); err != nil {
		return err
	}

	if err := s.mail.SendForgotPasswordEmail(ctx, user.Email, user.FirstName, code, s.cfg.CompanyName); err != nil {
		log.Printf("password-reset: mail delivery failed for user %d: %v", user.ID, err)
	}
	return nil
}

// Verify checks the emailed code and, on success, mints the
// password-change token, persists it, and invalidates the code so it
// cannot be redeemed a second time. The token is returned to the caller
// for the commit phase.
func (s *PasswordResetService) Verify(ctx context.Context, email, code string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrEntityNotFound
		}
		return "", err
	}
	if user.PasswordResetTokenExpiry == nil || s.now().UTC().After(user.PasswordResetTokenExpiry.UTC()) {
		return "", ErrTokenExpired
	}
	if user.PasswordResetToken == "" || user.PasswordResetToken != code {
		return "", ErrTokenMismatch
	}

	token, err := s.changeTokens.Issue(map[string]string{"email": user.Email})
	if err != nil {
		return "", err
	}
	if err := s.users.SetChangeToken(ctx, user.ID, token); err != nil {
		return "", err
	}
	if err := s.users.ClearResetCode(ctx, user.ID); err != nil {
		return "", err
	}
	return token, nil
}

// Commit redeems the change token and overwrites the password hash.
// Signature and expiry are both enforced here, at the redemption point,
// not just at issuance.
func (s *PasswordResetService) Commit(ctx context.Context, token, newPassword string) error {
	claims, err := s.changeTokens.Decode(token)
	if err != nil {
		return mapTokenError(err)
	}
	email := claims["email"]
	if email == "" {
		return ErrEmailShouldNotBeEmpty
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntityNotFound
		}
		return err
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}

// newResetCode draws a number in [0, 1_000_000) from the secure RNG and
// zero-pads it to six digits.
func newResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// mapTokenError translates utils token errors into service error kinds.
func mapTokenError(err error) error {
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, utils.ErrTokenSignatureInvalid):
		return ErrTokenSignatureInvalid
	default:
		return ErrTokenSignatureInvalid
	}
}
