package client

import "errors"

// The error taxonomy surfaced by every client operation. Callers branch on
// these with errors.Is; the wrapped message carries the server's
// human-readable detail.
var (
	// ErrInvalidCredentials indicates a rejected login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates an expired or missing token on an
	// authenticated call. The session workflow treats it as forced expiry.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates a valid token without the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrValidationFailed indicates server-side field validation rejected
	// the request.
	ErrValidationFailed = errors.New("validation failed")
	// ErrNotFound indicates the referenced user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNetworkFailure indicates the request never completed.
	ErrNetworkFailure = errors.New("network failure")
)
