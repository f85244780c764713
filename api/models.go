package api

import "gatehouse/store"

// LoginRequest is the JSON body for POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// IsAdmin requests an admin session; the server rejects it when the
	// account does not hold the admin role.
	IsAdmin bool `json:"is_admin,omitempty"`
}

// SessionUser describes the authenticated principal in login and /me responses.
type SessionUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
	MustReset bool   `json:"must_reset"`
}

// LoginResponse is returned from POST /login.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	User        SessionUser `json:"user"`
	MustReset   bool        `json:"must_reset"`
}

// ChangePasswordRequest is the JSON body for PUT /change_password.
type ChangePasswordRequest struct {
	Username    string `json:"username"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangeOwnPasswordRequest is the JSON body for PUT /change_own_password.
type ChangeOwnPasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordResponse is returned from the password-change endpoints.
type ChangePasswordResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ForgotRequestRequest is the JSON body for POST /forgot_request.
type ForgotRequestRequest struct {
	Username string `json:"username"`
}

// MessageResponse is the generic success body carrying a human-readable message.
type MessageResponse struct {
	Message string `json:"message"`
}

// AdminChangeCredentialsRequest is the JSON body for PUT /admin/change_credentials.
type AdminChangeCredentialsRequest struct {
	CurrentPassword string `json:"current_password"`
	NewUsername     string `json:"new_username,omitempty"`
	NewPassword     string `json:"new_password,omitempty"`
}

// AdminCreateUserRequest is the JSON body for POST /admin/create_user.
type AdminCreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminResetUserPasswordRequest is the JSON body for POST /admin/reset_user_password.
type AdminResetUserPasswordRequest struct {
	UserID      int64  `json:"user_id"`
	NewPassword string `json:"new_password"`
	AdminNote   string `json:"admin_note,omitempty"`
}

// ListUsersResponse is returned from GET /users.
type ListUsersResponse struct {
	Users []*store.User `json:"users"`
}

// ListResetRequestsResponse is returned from GET /admin/forgot_requests.
type ListResetRequestsResponse struct {
	Requests []store.ResetRequest `json:"requests"`
}

// MeResponse is returned from GET /me.
type MeResponse struct {
	User SessionUser `json:"user"`
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
