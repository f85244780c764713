package api

import (
	"net/http"
	"time"

	"gatehouse/store"
)

// AdminChangeCredentials handles PUT /admin/change_credentials.
// The admin may change username, password, or both in one request after
// confirming the current password.
func (a *API) AdminChangeCredentials(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	req, ok := decodeJSON[AdminChangeCredentialsRequest](w, r)
	if !ok {
		return
	}
	if req.CurrentPassword == "" {
		writeError(w, http.StatusBadRequest, "current_password is required")
		return
	}
	if req.NewUsername == "" && req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "either new_username or new_password is required")
		return
	}

	user, err := a.repo.GetUser(r.Context(), claims.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	if !checkPassword(user.PasswordHash, req.CurrentPassword) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	if req.NewUsername != "" {
		username, err := store.NormalizeUsername(req.NewUsername)
		if err != nil {
			mapError(w, err)
			return
		}
		user.Username = username
	}
	if req.NewPassword != "" {
		if len(req.NewPassword) < minPasswordLen {
			writeError(w, http.StatusBadRequest, "new password too short")
			return
		}
		hash, err := hashPassword(req.NewPassword)
		if err != nil {
			writeInternalError(w, "failed to hash password", err)
			return
		}
		user.PasswordHash = hash
		user.PasswordChangedAt = time.Now().UTC()
	}

	if err := a.repo.UpdateUser(r.Context(), user); err != nil {
		mapError(w, err)
		return
	}
	a.logger.Info("admin credentials updated", "user_id", user.ID)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "credentials updated successfully"})
}

// AdminCreateUser handles POST /admin/create_user.
func (a *API) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[AdminCreateUserRequest](w, r)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "password too short")
		return
	}

	username, err := store.NormalizeUsername(req.Username)
	if err != nil {
		mapError(w, err)
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		writeInternalError(w, "failed to hash password", err)
		return
	}

	user := &store.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.repo.CreateUser(r.Context(), user); err != nil {
		mapError(w, err)
		return
	}
	a.metrics.usersCreated.Inc()
	a.logger.Info("user created", "username", user.Username, "user_id", user.ID)
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "user created successfully"})
}

// AdminForgotRequests handles GET /admin/forgot_requests.
func (a *API) AdminForgotRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := a.repo.PendingResetRequests(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list requests", err)
		return
	}
	if reqs == nil {
		reqs = []store.ResetRequest{}
	}
	writeJSON(w, http.StatusOK, ListResetRequestsResponse{Requests: reqs})
}

// AdminResetUserPassword handles POST /admin/reset_user_password.
// The target user's pending forgot request is resolved and the account is
// flagged for a mandatory password change on next login.
func (a *API) AdminResetUserPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[AdminResetUserPasswordRequest](w, r)
	if !ok {
		return
	}
	if req.UserID == 0 || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "user_id and new_password required")
		return
	}
	if len(req.NewPassword) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "new password too short")
		return
	}

	user, err := a.repo.GetUser(r.Context(), req.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		writeInternalError(w, "failed to hash password", err)
		return
	}

	user.PasswordHash = hash
	user.MustReset = true
	user.ForgotStatus = store.ForgotStatusResolved
	user.AdminNote = req.AdminNote
	user.PasswordChangedAt = time.Now().UTC()
	if err := a.repo.UpdateUser(r.Context(), user); err != nil {
		mapError(w, err)
		return
	}
	a.metrics.adminResets.Inc()
	a.logger.Info("admin reset user password", "user_id", user.ID)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "user password reset by admin"})
}

// ListUsers handles GET /users.
func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.repo.ListUsers(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list users", err)
		return
	}
	if users == nil {
		users = []*store.User{}
	}
	writeJSON(w, http.StatusOK, ListUsersResponse{Users: users})
}
