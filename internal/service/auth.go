package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/traincore/lms-platform/internal/config"
	"github.com/traincore/lms-platform/internal/model"
	"github.com/traincore/lms-platform/internal/repository"
	"github.com/traincore/lms-platform/internal/utils"
)

// Unknown email and wrong password return the same message so the login
// endpoint cannot be used to enumerate accounts.
const (
	msgInvalidCredentials = "invalid email or password"
	msgAccountInactive    = "account is inactive"
)

// maxTokenAttempts bounds regenerate-on-collision for refresh tokens.
// The UNIQUE index on the token column is the real guard; a collision on
// 64 random bytes basically signals a broken RNG, so a handful of
// retries is plenty.
const maxTokenAttempts = 5

// AuthService owns login, refresh-token rotation, revocation and
// logout. Every authentication path, direct or federated, ends in
// issueFor, so tokens always carry the same claims regardless of how a
// session started.
type AuthService struct {
	cfg    config.Config
	users  repository.UserRepository
	tokens repository.RefreshTokenRepository
	groups repository.GroupMemberRepository
	now    func() time.Time
}

func NewAuthService(
	cfg config.Config,
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	groups repository.GroupMemberRepository,
) *AuthService {
	return &AuthService{cfg: cfg, users: users, tokens: tokens, groups: groups, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Login verifies the credentials and issues a token pair. Credential and
// account-state failures come back as an unauthenticated result with a
// message rather than an error, so callers can render them inline.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.AuthenticationResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return failedAuth(msgInvalidCredentials), nil
		}
		return model.AuthenticationResult{}, err
	}
	if !utils.VerifyPassword(user.HashPassword, password) {
		return failedAuth(msgInvalidCredentials), nil
	}
	return s.Finalize(ctx, user)
}

// Finalize runs the shared tail of every login path: the Pending ->
// Active transition with default-group enrollment, the inactive-account
// gate, and token issuance. The federated bridge calls it directly.
func (s *AuthService) Finalize(ctx context.Context, user model.User) (model.AuthenticationResult, error) {
	if user.Status == model.StatusInActive {
		return failedAuth(msgAccountInactive), nil
	}
	if user.Status == model.StatusPending {
		if err := s.activate(ctx, &user); err != nil {
			return model.AuthenticationResult{}, err
		}
	}
	return s.issueFor(ctx, user)
}

// activate flips a pending account to active and enrolls trainees and
// trainers into the default group. Enrollment happens only on this
// transition, so it runs exactly once per account; a duplicate row means
// something else already enrolled the user and is surfaced as forbidden.
func (s *AuthService) activate(ctx context.Context, user *model.User) error {
	if err := s.users.UpdateStatus(ctx, user.ID, model.StatusActive); err != nil {
		return err
	}
	user.Status = model.StatusActive

	if user.Role == model.RoleTrainee || user.Role == model.RoleTrainer {
		if err := s.groups.Enroll(ctx, s.cfg.DefaultGroupID, user.ID); err != nil {
			if errors.Is(err, repository.ErrAlreadyEnrolled) {
				return ErrForbidden
			}
			return err
		}
	}
	return nil
}

// issueFor mints the access token and a fresh refresh token row.
func (s *AuthService) issueFor(ctx context.Context, user model.User) (model.AuthenticationResult, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.JWTAudience, user, s.cfg.AccessTTLMin)
	if err != nil {
		return model.AuthenticationResult{}, err
	}
	refresh, err := s.issueRefreshToken(ctx, user.ID)
	if err != nil {
		return model.AuthenticationResult{}, err
	}
	return model.AuthenticationResult{
		IsAuthenticated: true,
		Token:           access.Token,
		RefreshToken:    refresh,
		ExpiresIn:       int64(time.Duration(s.cfg.AccessTTLMin) * time.Minute / time.Second),
		Email:           user.Email,
		UserID:          user.ID,
		Role:            user.Role,
	}, nil
}

// issueRefreshToken generates an opaque value and inserts it, retrying a
// bounded number of times when the unique index reports a collision.
func (s *AuthService) issueRefreshToken(ctx context.Context, userID uint64) (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		value, err := utils.NewRefreshTokenValue()
		if err != nil {
			return "", err
		}
		_, err = s.tokens.Insert(ctx, &model.RefreshToken{
			UserID:   userID,
			Token:    value,
			LoginAt:  s.now().UTC(),
			IsActive: true,
		})
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, repository.ErrTokenExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("refresh token collision persisted after %d attempts", maxTokenAttempts)
}

// Rotate exchanges a refresh token for a new pair. The old row is
// deleted before the new one is issued; a second rotation on the same
// value therefore fails with ErrInvalidRefreshToken.
func (s *AuthService) Rotate(ctx context.Context, oldToken string) (model.AuthenticationResult, error) {
	row, err := s.tokens.GetByToken(ctx, oldToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.AuthenticationResult{}, ErrInvalidRefreshToken
		}
		return model.AuthenticationResult{}, err
	}
	if !row.IsActive {
		return model.AuthenticationResult{}, ErrInvalidRefreshToken
	}
	user, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.AuthenticationResult{}, ErrInvalidRefreshToken
		}
		return model.AuthenticationResult{}, err
	}
	if err := s.tokens.Delete(ctx, row.ID); err != nil {
		return model.AuthenticationResult{}, err
	}
	return s.issueFor(ctx, user)
}

// ChangeRole updates a user's role and revokes all of their refresh
// tokens. Outstanding access tokens keep the old role until exp; cutting
// off rotation is the only recall available.
func (s *AuthService) ChangeRole(ctx context.Context, userID uint64, role string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntityNotFound
		}
		return err
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	return s.tokens.DeactivateAllForUser(ctx, userID)
}

// Logout deletes the refresh token row, but only when it belongs to the
// requesting principal. Unknown tokens and ownership mismatches both
// report false.
func (s *AuthService) Logout(ctx context.Context, token string, requestingUserID uint64) (bool, error) {
	row, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if row.UserID != requestingUserID {
		return false, nil
	}
	if err := s.tokens.Delete(ctx, row.ID); err != nil {
		return false, err
	}
	return true, nil
}

func failedAuth(message string) model.AuthenticationResult {
	return model.AuthenticationResult{IsAuthenticated: false, Message: message}
}
