package repository

import (
	"context"
	"database/sql"
)

// GroupMemberRepository covers the single group operation this subsystem
// performs: enrolling a freshly activated trainee or trainer into the
// configured default group. The (group_id, user_id) pair is unique, so a
// second enrollment attempt fails with ErrAlreadyEnrolled.
type GroupMemberRepository interface {
	Enroll(ctx context.Context, groupID string, userID uint64) error
}

// GroupMemberRepo implements GroupMemberRepository over `group_members`.
type GroupMemberRepo struct{ DB *sql.DB }

func NewGroupMemberRepo(db *sql.DB) *GroupMemberRepo { return &GroupMemberRepo{DB: db} }

func (r *GroupMemberRepo) Enroll(ctx context.Context, groupID string, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO group_members (group_id, user_id, enrolled_at) VALUES (?,?,NOW())",
		groupID, userID)
	if err != nil && isDuplicate(err) {
		return ErrAlreadyEnrolled
	}
	return err
}
