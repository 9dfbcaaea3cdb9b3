package repository

import (
	"context"
	"database/sql"

	"github.com/traincore/lms-platform/internal/model"
)

// RefreshTokenRepository persists opaque refresh tokens. The `token`
// column carries a UNIQUE index; Insert surfaces a collision as
// ErrTokenExists so the issuer can retry with a fresh value instead of
// trusting a check-then-insert race.
type RefreshTokenRepository interface {
	Insert(ctx context.Context, t *model.RefreshToken) (uint64, error)
	GetByToken(ctx context.Context, token string) (model.RefreshToken, error)
	Delete(ctx context.Context, id uint64) error
	DeactivateAllForUser(ctx context.Context, userID uint64) error
}

// RefreshTokenRepo implements RefreshTokenRepository over the
// `refresh_tokens` table.
type RefreshTokenRepo struct{ DB *sql.DB }

func NewRefreshTokenRepo(db *sql.DB) *RefreshTokenRepo { return &RefreshTokenRepo{DB: db} }

// Insert stores a refresh token row and returns its ID.
func (r *RefreshTokenRepo) Insert(ctx context.Context, t *model.RefreshToken) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token, login_at, is_active) VALUES (?,?,?,?)",
		t.UserID, t.Token, t.LoginAt, t.IsActive)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrTokenExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByToken looks a row up by its opaque value, active or not.
func (r *RefreshTokenRepo) GetByToken(ctx context.Context, token string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,token,login_at,is_active,created_at FROM refresh_tokens WHERE token=? LIMIT 1",
		token).Scan(&t.ID, &t.UserID, &t.Token, &t.LoginAt, &t.IsActive, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.RefreshToken{}, ErrNotFound
		}
		return model.RefreshToken{}, err
	}
	return t, nil
}

// Delete removes a row entirely; used by rotation and logout.
func (r *RefreshTokenRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE id=?", id)
	return err
}

// DeactivateAllForUser flips every row of the user inactive. Invoked on
// role change, since the role baked into live access tokens cannot be
// recalled before exp.
func (r *RefreshTokenRepo) DeactivateAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET is_active=0 WHERE user_id=? AND is_active=1", userID)
	return err
}
