package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/traincore/lms-platform/internal/model"
)

// UserRepository is the persistence surface the credential services
// need. The user row is mutated exclusively through these methods.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	UpdateEmail(ctx context.Context, id uint64, email string) error
	UpdateStatus(ctx context.Context, id uint64, status model.UserStatus) error
	UpdateRole(ctx context.Context, id uint64, role string) error
	SetResetCode(ctx context.Context, id uint64, code string, expiry time.Time) error
	ClearResetCode(ctx context.Context, id uint64) error
	SetChangeToken(ctx context.Context, id uint64, token string) error
}

const userColumns = "id,first_name,last_name,email,hash_password,status,role," +
	"password_reset_token,password_reset_token_expiry,password_change_token,created_at,updated_at"

// UserRepo implements UserRepository over the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts the user and returns its ID. Emails are normalized to
// lower case so the unique index is effectively case-insensitive.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (first_name, last_name, email, hash_password, status, role) VALUES (?,?,?,?,?,?)",
		u.FirstName, u.LastName, email, u.HashPassword, u.Status, u.Role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	return r.exec(ctx, "UPDATE users SET hash_password=?, password_change_token='', updated_at=NOW() WHERE id=?", hash, id)
}

func (r *UserRepo) UpdateEmail(ctx context.Context, id uint64, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	err := r.exec(ctx, "UPDATE users SET email=?, updated_at=NOW() WHERE id=?", email, id)
	if err != nil && isDuplicate(err) {
		return ErrEmailExists
	}
	return err
}

func (r *UserRepo) UpdateStatus(ctx context.Context, id uint64, status model.UserStatus) error {
	return r.exec(ctx, "UPDATE users SET status=?, updated_at=NOW() WHERE id=?", status, id)
}

func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role string) error {
	return r.exec(ctx, "UPDATE users SET role=?, updated_at=NOW() WHERE id=?", role, id)
}

// SetResetCode stores the 6-digit reset code and its expiry on the row,
// replacing any earlier code so only the newest one can verify.
func (r *UserRepo) SetResetCode(ctx context.Context, id uint64, code string, expiry time.Time) error {
	return r.exec(ctx,
		"UPDATE users SET password_reset_token=?, password_reset_token_expiry=?, updated_at=NOW() WHERE id=?",
		code, expiry, id)
}

// ClearResetCode removes the reset code; called once a change token has
// been issued so the code cannot be redeemed twice.
func (r *UserRepo) ClearResetCode(ctx context.Context, id uint64) error {
	return r.exec(ctx,
		"UPDATE users SET password_reset_token='', password_reset_token_expiry=NULL, updated_at=NOW() WHERE id=?", id)
}

func (r *UserRepo) SetChangeToken(ctx context.Context, id uint64, token string) error {
	return r.exec(ctx, "UPDATE users SET password_change_token=?, updated_at=NOW() WHERE id=?", token, id)
}

func (r *UserRepo) exec(ctx context.Context, query string, args ...any) error {
	_, err := r.DB.ExecContext(ctx, query, args...)
	return err
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u      model.User
		reset  sql.NullString
		expiry sql.NullTime
		change sql.NullString
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.HashPassword, &u.Status, &u.Role,
		&reset, &expiry, &change, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	u.PasswordResetToken = reset.String
	if expiry.Valid {
		t := expiry.Time
		u.PasswordResetTokenExpiry = &t
	}
	u.PasswordChangeToken = change.String
	return u, nil
}

// isDuplicate detects MySQL error 1062 (duplicate entry on a unique key).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
