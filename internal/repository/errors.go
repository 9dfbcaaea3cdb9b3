// Package repository defines error values shared across repositories so
// the service layer can distinguish failure scenarios without depending
// on driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("entity not found")

// ErrEmailExists is returned when a user insert or email update collides
// with the unique email index.
var ErrEmailExists = errors.New("email already exists")

// ErrTokenExists is returned when a refresh token insert collides with
// the unique token index. The issuer retries with a fresh value.
var ErrTokenExists = errors.New("refresh token already exists")

// ErrAlreadyEnrolled is returned when a group membership insert collides
// with an existing (group, user) pair.
var ErrAlreadyEnrolled = errors.New("already enrolled in group")
