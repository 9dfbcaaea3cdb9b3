package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/traincore/lms-platform/internal/config"
	"github.com/traincore/lms-platform/internal/model"
	"github.com/traincore/lms-platform/internal/repository"
)

// In-memory repository fakes. They enforce the same uniqueness rules as
// the MySQL implementations so collision and duplicate paths are
// exercised for real.

type memUserRepo struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: map[uint64]model.User{}}
}

func (r *memUserRepo) add(u model.User) model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.nextID
		r.nextID++
	} else if u.ID >= r.nextID {
		r.nextID = u.ID + 1
	}
	u.Email = strings.ToLower(u.Email)
	r.users[u.ID] = u
	return u
}

func (r *memUserRepo) Create(_ context.Context, u *model.User) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.users {
		if existing.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	id := r.nextID
	r.nextID++
	stored := *u
	stored.ID = id
	stored.Email = email
	r.users[id] = stored
	return id, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (r *memUserRepo) GetByID(_ context.Context, id uint64) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) mutate(id uint64, fn func(*model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	r.users[id] = u
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id uint64, hash string) error {
	return r.mutate(id, func(u *model.User) {
		u.HashPassword = hash
		u.PasswordChangeToken = ""
	})
}

func (r *memUserRepo) UpdateEmail(_ context.Context, id uint64, email string) error {
	r.mu.Lock()
	lowered := strings.ToLower(strings.TrimSpace(email))
	for otherID, other := range r.users {
		if otherID != id && other.Email == lowered {
			r.mu.Unlock()
			return repository.ErrEmailExists
		}
	}
	r.mu.Unlock()
	return r.mutate(id, func(u *model.User) { u.Email = lowered })
}

func (r *memUserRepo) UpdateStatus(_ context.Context, id uint64, status model.UserStatus) error {
	return r.mutate(id, func(u *model.User) { u.Status = status })
}

func (r *memUserRepo) UpdateRole(_ context.Context, id uint64, role string) error {
	return r.mutate(id, func(u *model.User) { u.Role = role })
}

func (r *memUserRepo) SetResetCode(_ context.Context, id uint64, code string, expiry time.Time) error {
	return r.mutate(id, func(u *model.User) {
		u.PasswordResetToken = code
		e := expiry
		u.PasswordResetTokenExpiry = &e
	})
}

func (r *memUserRepo) ClearResetCode(_ context.Context, id uint64) error {
	return r.mutate(id, func(u *model.User) {
		u.PasswordResetToken = ""
		u.PasswordResetTokenExpiry = nil
	})
}

func (r *memUserRepo) SetChangeToken(_ context.Context, id uint64, token string) error {
	return r.mutate(id, func(u *model.User) { u.PasswordChangeToken = token })
}

type memTokenRepo struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.RefreshToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{nextID: 1, rows: map[uint64]model.RefreshToken{}}
}

func (r *memTokenRepo) Insert(_ context.Context, t *model.RefreshToken) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Token == t.Token {
			return 0, repository.ErrTokenExists
		}
	}
	id := r.nextID
	r.nextID++
	stored := *t
	stored.ID = id
	r.rows[id] = stored
	return id, nil
}

func (r *memTokenRepo) GetByToken(_ context.Context, token string) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Token == token {
			return row, nil
		}
	}
	return model.RefreshToken{}, repository.ErrNotFound
}

func (r *memTokenRepo) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memTokenRepo) DeactivateAllForUser(_ context.Context, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.UserID == userID {
			row.IsActive = false
			r.rows[id] = row
		}
	}
	return nil
}

func (r *memTokenRepo) countForUser(userID uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n
}

type memGroupRepo struct {
	mu      sync.Mutex
	members map[string]map[uint64]bool
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{members: map[string]map[uint64]bool{}}
}

func (r *memGroupRepo) Enroll(_ context.Context, groupID string, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[groupID] == nil {
		r.members[groupID] = map[uint64]bool{}
	}
	if r.members[groupID][userID] {
		return repository.ErrAlreadyEnrolled
	}
	r.members[groupID][userID] = true
	return nil
}

func (r *memGroupRepo) enrolled(groupID string, userID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[groupID][userID]
}

// mailSpy records outbound mail instead of delivering it.
type mailSpy struct {
	mu           sync.Mutex
	resetCodes   []string
	changeMails  []string // recipient of each change-email mail
	changeTokens []string
	fail         error
}

func (m *mailSpy) SendForgotPasswordEmail(_ context.Context, email, firstName, code, companyName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.resetCodes = append(m.resetCodes, code)
	return nil
}

func (m *mailSpy) SendChangeEmailMail(_ context.Context, newEmail, firstName, changeToken string, expiryMinutes int, companyName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.changeMails = append(m.changeMails, newEmail)
	m.changeTokens = append(m.changeTokens, changeToken)
	return nil
}

func (m *mailSpy) lastResetCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetCodes) == 0 {
		return ""
	}
	return m.resetCodes[len(m.resetCodes)-1]
}

func (m *mailSpy) lastChangeToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.changeTokens) == 0 {
		return ""
	}
	return m.changeTokens[len(m.changeTokens)-1]
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		JWTSecret:      "test-jwt-secret",
		JWTIssuer:      "lms-test",
		JWTAudience:    "lms-clients",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,

		ResetCodeTTL:      5 * time.Minute,
		ChangeTokenSecret: "change-pass-secret",
		ChangeTokenTTL:    5 * time.Minute,

		ChangeEmailSecret: "change-email-secret",
		ChangeEmailTTLMin: 30,
		ResendEmailSecret: "resend-email-secret",
		ResendEmailTTLMin: 60,

		DefaultGroupID: "grp-default-0001",
		CompanyName:    "Traincore",
	}
}
