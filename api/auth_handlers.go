package api

import (
	"net/http"
	"time"

	"gatehouse/store"
)

// Login handles POST /login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	username, err := store.NormalizeUsername(req.Username)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	user, err := a.repo.GetUserByName(r.Context(), username)
	if err != nil {
		a.logger.Info("login rejected", "username", username, "reason", "unknown user")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if req.IsAdmin && !user.IsAdmin {
		a.logger.Info("login rejected", "username", username, "reason", "admin role required")
		writeError(w, http.StatusUnauthorized, "admin authorization required")
		return
	}
	if !checkPassword(user.PasswordHash, req.Password) {
		a.logger.Info("login rejected", "username", username, "reason", "bad password")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	signed, err := a.tokens.Issue(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		writeInternalError(w, "failed to issue token", err)
		return
	}

	user.LastLoginAt = time.Now().UTC()
	if err := a.repo.UpdateUser(r.Context(), user); err != nil {
		writeInternalError(w, "failed to record login", err)
		return
	}

	a.metrics.logins.Inc()
	a.logger.Info("login", "username", user.Username, "is_admin", user.IsAdmin, "must_reset", user.MustReset)
	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: signed,
		User: SessionUser{
			ID:        user.ID,
			Username:  user.Username,
			IsAdmin:   user.IsAdmin,
			MustReset: user.MustReset,
		},
		MustReset: user.MustReset,
	})
}

// ChangePassword handles PUT /change_password.
//
// The endpoint is keyed by username rather than bearer token so the portal
// can complete a mandated reset immediately after login with the old
// password still in hand.
func (a *API) ChangePassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ChangePasswordRequest](w, r)
	if !ok {
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "old_password and new_password required")
		return
	}
	if len(req.NewPassword) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "new password too short")
		return
	}

	username, err := store.NormalizeUsername(req.Username)
	if err != nil {
		mapError(w, err)
		return
	}
	user, err := a.repo.GetUserByName(r.Context(), username)
	if err != nil {
		mapError(w, err)
		return
	}
	if !checkPassword(user.PasswordHash, req.OldPassword) {
		writeError(w, http.StatusUnauthorized, "old password incorrect")
		return
	}

	if err := a.setPassword(r, user, req.NewPassword); err != nil {
		writeInternalError(w, "failed to update password", err)
		return
	}
	a.logger.Info("password changed", "username", user.Username)
	writeJSON(w, http.StatusOK, ChangePasswordResponse{Success: true, Message: "password updated"})
}

// ChangeOwnPassword handles PUT /change_own_password for the token's principal.
func (a *API) ChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	req, ok := decodeJSON[ChangeOwnPasswordRequest](w, r)
	if !ok {
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "old_password and new_password required")
		return
	}
	if len(req.NewPassword) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "new password too short")
		return
	}

	user, err := a.repo.GetUser(r.Context(), claims.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	if !checkPassword(user.PasswordHash, req.OldPassword) {
		writeError(w, http.StatusUnauthorized, "old password incorrect")
		return
	}

	if err := a.setPassword(r, user, req.NewPassword); err != nil {
		writeInternalError(w, "failed to update password", err)
		return
	}
	a.logger.Info("password changed", "username", user.Username)
	writeJSON(w, http.StatusOK, ChangePasswordResponse{Success: true, Message: "password updated"})
}

// setPassword stores a new password hash and clears the mandatory-reset flag.
func (a *API) setPassword(r *http.Request, user *store.User, newPassword string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.MustReset = false
	user.PasswordChangedAt = time.Now().UTC()
	return a.repo.UpdateUser(r.Context(), user)
}

// ForgotRequest handles POST /forgot_request.
func (a *API) ForgotRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ForgotRequestRequest](w, r)
	if !ok {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}

	username, err := store.NormalizeUsername(req.Username)
	if err != nil {
		// Same response as an unknown username; see below.
		writeJSON(w, http.StatusOK, MessageResponse{Message: "If the username exists, a request has been recorded."})
		return
	}
	user, err := a.repo.GetUserByName(r.Context(), username)
	if err != nil {
		// Unknown usernames get the same answer as known ones so the
		// endpoint cannot be used to enumerate accounts.
		writeJSON(w, http.StatusOK, MessageResponse{Message: "If the username exists, a request has been recorded."})
		return
	}

	user.ForgotStatus = store.ForgotStatusPending
	user.ForgotRequestedAt = time.Now().UTC()
	if err := a.repo.UpdateUser(r.Context(), user); err != nil {
		writeInternalError(w, "failed to record request", err)
		return
	}
	a.metrics.resetRequests.Inc()
	a.logger.Info("forgot-password request recorded", "username", user.Username)
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "forgot password request created"})
}

// Me handles GET /me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	user, err := a.repo.GetUser(r.Context(), claims.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: SessionUser{
		ID:        user.ID,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		MustReset: user.MustReset,
	}})
}
