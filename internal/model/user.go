package model

import "time"

// UserStatus tracks the lifecycle of an account. New accounts start as
// Pending and become Active on their first successful login. InActive
// accounts are refused authentication entirely.
type UserStatus string

const (
	StatusPending  UserStatus = "PENDING"
	StatusActive   UserStatus = "ACTIVE"
	StatusInActive UserStatus = "INACTIVE"
)

// Platform roles. Trainees and trainers are auto-enrolled into the
// configured default group when their account first activates.
const (
	RoleAdmin   = "ADMIN"
	RoleTrainer = "TRAINER"
	RoleTrainee = "TRAINEE"
)

// User mirrors the `users` table. Emails are stored lowercased and are
// unique. HashPassword holds the PBKDF2 derivation in the
// "base64(key):base64(salt)" form produced by utils.HashPassword.
//
// PasswordResetToken and PasswordResetTokenExpiry carry the 6-digit reset
// code between the request and verify phases of the reset flow; the code
// is cleared as soon as a change token is issued for it. The change token
// itself is a signed JWT persisted transiently on the row.
type User struct {
	ID                       uint64     // users.id
	FirstName                string     // users.first_name
	LastName                 string     // users.last_name
	Email                    string     // users.email
	HashPassword             string     // users.hash_password
	Status                   UserStatus // users.status
	Role                     string     // users.role
	PasswordResetToken       string     // users.password_reset_token (empty when unset)
	PasswordResetTokenExpiry *time.Time // users.password_reset_token_expiry (nullable)
	PasswordChangeToken      string     // users.password_change_token (signed JWT)
	CreatedAt                time.Time  // users.created_at
	UpdatedAt                time.Time  // users.updated_at
}
