package model

import "time"

// RefreshToken models a row in the `refresh_tokens` table. The opaque
// token value is stored as issued and is unique across all rows, active
// or not. A user may hold several rows at once: each concurrent login
// gets its own. Rotation deletes the row and inserts a replacement;
// a role change flips IsActive off for every row of the user instead,
// since outstanding access tokens cannot be recalled.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id
	Token     string    // refresh_tokens.token (unique, base64 of 64 random bytes)
	LoginAt   time.Time // refresh_tokens.login_at
	IsActive  bool      // refresh_tokens.is_active
	CreatedAt time.Time // refresh_tokens.created_at
}

// GroupMember models a row in the `group_members` table. Only the
// default-group auto-enrollment performed at first activation touches
// it from this subsystem; group management itself lives elsewhere.
type GroupMember struct {
	ID         uint64    // group_members.id
	GroupID    string    // group_members.group_id (GUID)
	UserID     uint64    // group_members.user_id
	EnrolledAt time.Time // group_members.enrolled_at
}
