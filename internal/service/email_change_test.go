package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/traincore/lms-platform/internal/model"
)

func newEmailFixture(t *testing.T) (*EmailChangeService, *memUserRepo, *mailSpy) {
	t.Helper()
	users := newMemUserRepo()
	mail := &mailSpy{}
	return NewEmailChangeService(testConfig(), users, mail), users, mail
}

func TestEmailChangeFullFlow(t *testing.T) {
	svc, users, mail := newEmailFixture(t)
	u := seedUser(t, users, "old@example.com", "pw123456", model.StatusActive, model.RoleTrainee)

	resend, err := svc.Request(context.Background(), "old@example.com", "new@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resend == "" {
		t.Fatal("no resend token returned")
	}
	// The change token goes to the NEW address only.
	if len(mail.changeMails) != 1 || mail.changeMails[0] != "new@example.com" {
		t.Fatalf("change mail recipients = %v, want [new@example.com]", mail.changeMails)
	}

	if err := svc.Verify(context.Background(), mail.lastChangeToken()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	got, _ := users.GetByID(context.Background(), u.ID)
	if got.Email != "new@example.com" {
		t.Fatalf("email = %s, want new@example.com", got.Email)
	}
}

func TestEmailChangeRequestWrongPassword(t *testing.T) {
	svc, users, _ := newEmailFixture(t)
	seedUser(t, users, "old@example.com", "pw123456", model.StatusActive, model.RoleTrainee)

	if _, err := svc.Request(context.Background(), "old@example.com", "new@example.com", "bad-pass"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestEmailChangeRequestUnknownAccount(t *testing.T) {
	svc, _, _ := newEmailFixture(t)
	if _, err := svc.Request(context.Background(), "ghost@example.com", "new@example.com", "pw"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestEmailChangeRequestAddressTaken(t *testing.T) {
	svc, users, _ := newEmailFixture(t)
	seedUser(t, users, "old@example.com", "pw123456", model.StatusActive, model.RoleTrainee)
	seedUser(t, users, "taken@example.com", "pw123456", model.StatusActive, model.RoleTrainee)

	if _, err := svc.Request(context.Background(), "old@example.com", "taken@example.com", "pw123456"); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestEmailChangeTokensNotInterchangeable(t *testing.T) {
	svc, users, mail := newEmailFixture(t)
	seedUser(t, users, "old@example.com", "pw123456", model.StatusActive, model.RoleTrainee)

	resend, err := svc.Request(context.Background(), "old@example.com", "new@example.com", "pw123456")
	if err != nil {
		t.Fatal(err)
	}

	// The two tokens carry identical claims but are signed with
	// independent keys; each verifies only under its own scope.
	if err := svc.Verify(context.Background(), resend); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("Verify(resend token) = %v, want ErrTokenSignatureInvalid", err)
	}
	if _, err := svc.Resend(context.Background(), mail.lastChangeToken()); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("Resend(change token) = %v, want ErrTokenSignatureInvalid", err)
	}
}

func TestEmailChangeResend(t *testing.T) {
	svc, users, mail := newEmailFixture(t)
	u := seedUser(t, users, "old@example.com", "pw123456", model.StatusActive, model.RoleTrainee)

	resend, err := svc.Request(context.Background(), "old@example.com", "new@example.com", "pw123456")
	if err != nil {
		t.Fatal(err)
	}

	// Resend needs no password and yields a fresh pair.
	resend2, err := svc.Resend(context.Background(), resend)
	if err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if resend2 == "" {
		t.Fatal("no fresh resend token")
	}
	if len(mail.changeMails) != 2 {
		t.Fatalf("change mails sent = %d, want 2", len(mail.changeMails))
	}

	// The re-mailed change token still completes the flow.
	if err := svc.Verify(context.Background(), mail.lastChangeToken()); err != nil {
		t.Fatalf("Verify after resend: %v", err)
	}
	got, _ := users.GetByID(context.Background(), u.ID)
	if got.Email != "new@example.com" {
		t.Fatalf("email = %s, want new@example.com", got.Email)
	}
}

func TestEmailChangeVerifyExpired(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, users, mail := newEmailFixture(t)
	svc.WithClock(func() time.Time { return start })
	seedUser(t, users, "old@example.com", "pw123456", model.StatusActive, model.RoleTrainee)

	if _, err := svc.Request(context.Background(), "old@example.com", "new@example.com", "pw123456"); err != nil {
		t.Fatal(err)
	}

	// Change tokens live 30 minutes in the test config.
	svc.WithClock(func() time.Time { return start.Add(31 * time.Minute) })
	if err := svc.Verify(context.Background(), mail.lastChangeToken()); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestEmailChangeVerifyAddressTakenMeanwhile(t *testing.T) {
	svc, users, mail := newEmailFixture(t)
	seedUser(t, users, "old@example.com", "pw123456", model.StatusActive, model.RoleTrainee)

	if _, err := svc.Request(context.Background(), "old@example.com", "new@example.com", "pw123456"); err != nil {
		t.Fatal(err)
	}
	// Someone claims the address between request and verify.
	seedUser(t, users, "new@example.com", "pw123456", model.StatusActive, model.RoleTrainee)

	if err := svc.Verify(context.Background(), mail.lastChangeToken()); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrEmailAlreadyRegistered", err)
	}
}
