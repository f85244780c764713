// Package client implements the portal's view of the credential store API.
// Every operation is a single request/response round trip with no retry;
// failures are normalized into the package's error taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gatehouse/api"
	"gatehouse/store"
)

// TokenSource supplies the current bearer token, if any.
type TokenSource interface {
	Get() (token string, ok bool)
}

// Client issues requests against the credential store.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a per-request timeout. The zero default leaves requests
// without a client-side deadline; a hung request then stays pending until
// the caller's context is done.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a Client for the credential store at baseURL. The tokens
// source is consulted on every authenticated call; it may be nil for a
// client that only performs login and password-reset requests.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login authenticates and returns the issued token and principal.
// It does not touch the token source; session state is owned by the caller.
func (c *Client) Login(ctx context.Context, username, password string, asAdmin bool) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	err := c.do(ctx, http.MethodPost, "/login", api.LoginRequest{
		Username: username,
		Password: password,
		IsAdmin:  asAdmin,
	}, &resp, false)
	if err != nil {
		// A 401 on login means the credentials were rejected, not that an
		// existing session expired.
		if errors.Is(err, ErrUnauthorized) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, errMessage(err))
		}
		return nil, err
	}
	return &resp, nil
}

// ChangePassword changes the password for username, verifying the old one.
func (c *Client) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	var resp api.ChangePasswordResponse
	return c.do(ctx, http.MethodPut, "/change_password", api.ChangePasswordRequest{
		Username:    username,
		OldPassword: oldPassword,
		NewPassword: newPassword,
	}, &resp, false)
}

// ChangeOwnPassword changes the password of the token's principal.
func (c *Client) ChangeOwnPassword(ctx context.Context, oldPassword, newPassword string) error {
	var resp api.ChangePasswordResponse
	return c.do(ctx, http.MethodPut, "/change_own_password", api.ChangeOwnPasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	}, &resp, true)
}

// RequestReset records a forgot-password request for admin review.
func (c *Client) RequestReset(ctx context.Context, username string) error {
	var resp api.MessageResponse
	return c.do(ctx, http.MethodPost, "/forgot_request", api.ForgotRequestRequest{
		Username: username,
	}, &resp, false)
}

// AdminChangeCredentials updates the admin's own username and/or password.
func (c *Client) AdminChangeCredentials(ctx context.Context, currentPassword, newUsername, newPassword string) error {
	var resp api.MessageResponse
	return c.do(ctx, http.MethodPut, "/admin/change_credentials", api.AdminChangeCredentialsRequest{
		CurrentPassword: currentPassword,
		NewUsername:     newUsername,
		NewPassword:     newPassword,
	}, &resp, true)
}

// AdminCreateUser creates a new user account.
func (c *Client) AdminCreateUser(ctx context.Context, username, password string) error {
	var resp api.MessageResponse
	return c.do(ctx, http.MethodPost, "/admin/create_user", api.AdminCreateUserRequest{
		Username: username,
		Password: password,
	}, &resp, true)
}

// AdminResetUser sets a new password for the given user, resolving their
// pending forgot request and flagging a mandatory change on next login.
func (c *Client) AdminResetUser(ctx context.Context, userID int64, newPassword, note string) error {
	var resp api.MessageResponse
	return c.do(ctx, http.MethodPost, "/admin/reset_user_password", api.AdminResetUserPasswordRequest{
		UserID:      userID,
		NewPassword: newPassword,
		AdminNote:   note,
	}, &resp, true)
}

// ListUsers returns all user accounts.
func (c *Client) ListUsers(ctx context.Context) ([]*store.User, error) {
	var resp api.ListUsersResponse
	if err := c.do(ctx, http.MethodGet, "/users", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// ListResetRequests returns the pending forgot-password requests.
func (c *Client) ListResetRequests(ctx context.Context) ([]store.ResetRequest, error) {
	var resp api.ListResetRequestsResponse
	if err := c.do(ctx, http.MethodGet, "/admin/forgot_requests", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

// Me returns the principal behind the current token.
func (c *Client) Me(ctx context.Context) (*api.SessionUser, error) {
	var resp api.MeResponse
	if err := c.do(ctx, http.MethodGet, "/me", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.tokens != nil {
		if tok, ok := c.tokens.Get(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrNetworkFailure, err)
		}
	}
	return nil
}

// statusError maps an error response onto the taxonomy, carrying the
// server's message.
func statusError(resp *http.Response) error {
	var body api.ErrorResponse
	msg := resp.Status
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		msg = body.Error
	}
	var sentinel error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = ErrValidationFailed
	default:
		return fmt.Errorf("server error: %s", msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

// errMessage strips the taxonomy sentinel prefix, leaving the server detail.
func errMessage(err error) string {
	msg := err.Error()
	if _, detail, found := strings.Cut(msg, ": "); found {
		return detail
	}
	return msg
}
