package session

import "errors"

var (
	// ErrSamePassword is the local pre-check rejection for a password
	// change where the new password equals the old one. The credential
	// store is never contacted.
	ErrSamePassword = errors.New("new password must differ from the old password")
	// ErrBusy is returned when an operation is invoked while a previous
	// call to the same operation is still pending.
	ErrBusy = errors.New("operation already in progress")
	// ErrResetRequired rejects every workflow action other than submitting
	// the password change while a mandatory reset is outstanding.
	ErrResetRequired = errors.New("you must change your password before doing anything else")
	// ErrNotAdmin rejects admin-only operations on a non-admin session.
	ErrNotAdmin = errors.New("admin session required")
	// ErrNotAuthenticated rejects operations that need a session when no
	// session exists.
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrAlreadyAuthenticated rejects a login attempt over a live session.
	ErrAlreadyAuthenticated = errors.New("already logged in; log out first")
	// ErrSessionExpired is surfaced when the credential store rejects the
	// current token and the workflow forces a transition to logged out.
	ErrSessionExpired = errors.New("session expired, please log in again")
)
