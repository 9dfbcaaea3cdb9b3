package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/traincore/lms-platform/internal/model"
	"github.com/traincore/lms-platform/internal/utils"
)

func newResetFixture(t *testing.T) (*PasswordResetService, *memUserRepo, *mailSpy) {
	t.Helper()
	users := newMemUserRepo()
	mail := &mailSpy{}
	return NewPasswordResetService(testConfig(), users, mail), users, mail
}

func TestResetRequestStoresAndMailsCode(t *testing.T) {
	svc, users, mail := newResetFixture(t)
	u := seedUser(t, users, "reset@example.com", "old-pass", model.StatusActive, model.RoleTrainee)

	if err := svc.Request(context.Background(), "reset@example.com"); err != nil {
		t.Fatalf("Request: %v", err)
	}

	got, _ := users.GetByID(context.Background(), u.ID)
	if len(got.PasswordResetToken) != 6 {
		t.Fatalf("stored code %q is not six digits", got.PasswordResetToken)
	}
	if got.PasswordResetTokenExpiry == nil {
		t.Fatal("expiry not set")
	}
	if mail.lastResetCode() != got.PasswordResetToken {
		t.Fatal("mailed code differs from stored code")
	}
}

func TestResetRequestUnknownEmail(t *testing.T) {
	svc, _, _ := newResetFixture(t)
	if err := svc.Request(context.Background(), "nobody@example.com"); !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("err = %v, want ErrEntityNotFound", err)
	}
}

func TestResetRequestSurvivesMailFailure(t *testing.T) {
	svc, users, mail := newResetFixture(t)
	mail.fail = errors.New("smtp down")
	u := seedUser(t, users, "reset@example.com", "old-pass", model.StatusActive, model.RoleTrainee)

	if err := svc.Request(context.Background(), "reset@example.com"); err != nil {
		t.Fatalf("Request with failing mail: %v", err)
	}
	got, _ := users.GetByID(context.Background(), u.ID)
	if got.PasswordResetToken == "" {
		t.Fatal("code not stored when mail failed")
	}
}

func TestResetFullFlow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, users, mail := newResetFixture(t)
	svc.WithClock(func() time.Time { return start })
	u := seedUser(t, users, "reset@example.com", "old-pass", model.StatusActive, model.RoleTrainee)

	if err := svc.Request(context.Background(), "reset@example.com"); err != nil {
		t.Fatal(err)
	}
	code := mail.lastResetCode()

	// Verify inside the 5-minute window.
	svc.WithClock(func() time.Time { return start.Add(4 * time.Minute) })
	token, err := svc.Verify(context.Background(), "reset@example.com", code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if token == "" {
		t.Fatal("empty change token")
	}

	// The code is single-use: it was cleared when the token was issued.
	got, _ := users.GetByID(context.Background(), u.ID)
	if got.PasswordResetToken != "" || got.PasswordResetTokenExpiry != nil {
		t.Fatal("reset code not cleared after verify")
	}
	if got.PasswordChangeToken != token {
		t.Fatal("change token not persisted")
	}
	if _, err := svc.Verify(context.Background(), "reset@example.com", code); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("second verify = %v, want ErrTokenExpired", err)
	}

	// Commit with the change token.
	if err := svc.Commit(context.Background(), token, "new-pass-9"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, _ = users.GetByID(context.Background(), u.ID)
	if !utils.VerifyPassword(got.HashPassword, "new-pass-9") {
		t.Fatal("new password not set")
	}
	if utils.VerifyPassword(got.HashPassword, "old-pass") {
		t.Fatal("old password still verifies")
	}
	if got.PasswordChangeToken != "" {
		t.Fatal("change token not cleared after commit")
	}
}

func TestResetVerifyExpiredCode(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, users, mail := newResetFixture(t)
	svc.WithClock(func() time.Time { return start })
	seedUser(t, users, "late@example.com", "old-pass", model.StatusActive, model.RoleTrainee)

	if err := svc.Request(context.Background(), "late@example.com"); err != nil {
		t.Fatal(err)
	}

	svc.WithClock(func() time.Time { return start.Add(6 * time.Minute) })
	if _, err := svc.Verify(context.Background(), "late@example.com", mail.lastResetCode()); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestResetVerifyWrongCode(t *testing.T) {
	svc, users, _ := newResetFixture(t)
	seedUser(t, users, "typo@example.com", "old-pass", model.StatusActive, model.RoleTrainee)

	if err := svc.Request(context.Background(), "typo@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(context.Background(), "typo@example.com", "000000"); err != nil && !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("err = %v, want ErrTokenMismatch", err)
	} else if err == nil {
		t.Skip("guessed the random code, one-in-a-million")
	}
}

func TestResetCommitExpiredToken(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, users, mail := newResetFixture(t)
	svc.WithClock(func() time.Time { return start })
	seedUser(t, users, "slow@example.com", "old-pass", model.StatusActive, model.RoleTrainee)

	if err := svc.Request(context.Background(), "slow@example.com"); err != nil {
		t.Fatal(err)
	}
	token, err := svc.Verify(context.Background(), "slow@example.com", mail.lastResetCode())
	if err != nil {
		t.Fatal(err)
	}

	// The change token carries its own 5-minute window.
	svc.WithClock(func() time.Time { return start.Add(6 * time.Minute) })
	if err := svc.Commit(context.Background(), token, "new-pass"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestResetCommitForeignSignature(t *testing.T) {
	svc, users, _ := newResetFixture(t)
	seedUser(t, users, "forged@example.com", "old-pass", model.StatusActive, model.RoleTrainee)

	// A token signed under a different key must be rejected even though
	// its claims look right.
	forged, err := utils.NewScopedToken("attacker-key", 5*time.Minute).
		Issue(map[string]string{"email": "forged@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Commit(context.Background(), forged, "new-pass"); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("err = %v, want ErrTokenSignatureInvalid", err)
	}
}
