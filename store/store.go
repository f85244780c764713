// Package store provides the storage abstraction layer for portal user records.
package store

import (
	"context"
	"errors"
	"time"

	"golang.org/x/text/secure/precis"
)

var (
	// ErrNotFound is returned when no user matches the given id or username.
	ErrNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when creating or renaming a user would
	// collide with an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidUsername is returned when a username fails profile normalization.
	ErrInvalidUsername = errors.New("invalid username")
)

// Forgot-request status values stored on the user record.
const (
	ForgotStatusNone     = ""
	ForgotStatusPending  = "pending"
	ForgotStatusResolved = "resolved"
)

// User is a portal account as persisted by the credential store.
type User struct {
	ID                int64     `json:"id"`
	Username          string    `json:"username"`
	PasswordHash      []byte    `json:"-"`
	IsAdmin           bool      `json:"is_admin"`
	MustReset         bool      `json:"must_reset"`
	ForgotStatus      string    `json:"forgot_request_status,omitempty"`
	ForgotRequestedAt time.Time `json:"forgot_request_time,omitzero"`
	AdminNote         string    `json:"admin_note,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	LastLoginAt       time.Time `json:"last_login_time,omitzero"`
	PasswordChangedAt time.Time `json:"reset_password_time,omitzero"`
}

// ResetRequest is the admin-facing view of a pending forgot-password request.
type ResetRequest struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	RequestedAt time.Time `json:"requested_at"`
	Status      string    `json:"status"`
	AdminNote   string    `json:"admin_note,omitempty"`
}

// Repository defines the interface for user record storage.
// Implementations must be safe for concurrent use.
type Repository interface {
	// CreateUser persists a new user and assigns its ID.
	CreateUser(ctx context.Context, u *User) error
	// GetUser returns the user with the given id, or ErrNotFound.
	GetUser(ctx context.Context, id int64) (*User, error)
	// GetUserByName returns the user with the given normalized username,
	// or ErrNotFound.
	GetUserByName(ctx context.Context, username string) (*User, error)
	// UpdateUser replaces the stored record for u.ID.
	UpdateUser(ctx context.Context, u *User) error
	// ListUsers returns all users ordered by ID.
	ListUsers(ctx context.Context) ([]*User, error)
	// PendingResetRequests returns users with a pending forgot request,
	// newest request first.
	PendingResetRequests(ctx context.Context) ([]ResetRequest, error)
}

// usernameProfile enforces the PRECIS UsernameCaseMapped profile so that
// lookups are case-insensitive and visually confusable inputs are rejected
// before they reach storage.
var usernameProfile = precis.UsernameCaseMapped

// NormalizeUsername canonicalizes a username for storage and lookup.
func NormalizeUsername(username string) (string, error) {
	norm, err := usernameProfile.String(username)
	if err != nil {
		return "", ErrInvalidUsername
	}
	return norm, nil
}
