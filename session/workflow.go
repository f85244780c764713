// Package session owns the portal's client-side session state: the bearer
// token holder and the workflow state machine that gates every user action,
// including the mandatory password reset imposed after an admin-issued
// password reset.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"gatehouse/api"
	"gatehouse/client"
	"gatehouse/store"
)

// State is the workflow's position in the session lifecycle.
type State int

const (
	// StateLoggedOut is the initial state: no token, no identity.
	StateLoggedOut State = iota
	// StateAuthenticated is a live session with no restrictions.
	StateAuthenticated
	// StateMustResetPassword is a live user session that may do nothing but
	// submit a password change.
	StateMustResetPassword
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateMustResetPassword:
		return "must-reset-password"
	default:
		return "logged-out"
	}
}

// Role is the session's role, fixed by which login flow was used.
type Role string

const (
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Snapshot is the observable session state handed to views. Views never
// share mutable session state; they receive snapshots through Subscribe or
// ask for one explicitly.
type Snapshot struct {
	State         State
	Identity      string
	Role          Role
	MustReset     bool
	Authenticated bool
}

// Event is delivered to subscribers on every state transition.
type Event struct {
	Snapshot Snapshot
	// GoHome directs the view layer to navigate to the default view
	// immediately, with no confirmation dialog. Set when a mandatory
	// password reset completes.
	GoHome bool
}

// AuthAPI is the slice of the credential-store client the workflow drives.
// *client.Client satisfies it.
type AuthAPI interface {
	Login(ctx context.Context, username, password string, asAdmin bool) (*api.LoginResponse, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	RequestReset(ctx context.Context, username string) error
	AdminChangeCredentials(ctx context.Context, currentPassword, newUsername, newPassword string) error
	AdminCreateUser(ctx context.Context, username, password string) error
	AdminResetUser(ctx context.Context, userID int64, newPassword, note string) error
	ListUsers(ctx context.Context) ([]*store.User, error)
	ListResetRequests(ctx context.Context) ([]store.ResetRequest, error)
}

var _ AuthAPI = (*client.Client)(nil)

// minPasswordLen mirrors the server-side minimum so obviously short
// passwords are rejected without a round trip.
const minPasswordLen = 6

// Workflow is the session state machine. One instance is owned by the
// application root; all views act through it.
type Workflow struct {
	mu     sync.Mutex
	api    AuthAPI
	holder *TokenHolder

	state    State
	identity string
	role     Role

	// carried holds the password used for the login that entered
	// StateMustResetPassword, sealed in memory for pre-filling the
	// old-password field. It never leaves the process and is dropped as
	// soon as the state is left.
	carried *memguard.Enclave

	requests *lifecycleTable

	resetRequests []store.ResetRequest

	subMu sync.Mutex
	subs  []func(Event)
}

// New creates a Workflow in StateLoggedOut.
func New(authAPI AuthAPI, holder *TokenHolder) *Workflow {
	return &Workflow{
		api:      authAPI,
		holder:   holder,
		requests: newLifecycleTable(),
	}
}

// Subscribe registers fn to receive every state transition. Subscribers are
// called synchronously after the transition is applied.
func (w *Workflow) Subscribe(fn func(Event)) {
	w.subMu.Lock()
	w.subs = append(w.subs, fn)
	w.subMu.Unlock()
}

func (w *Workflow) notify(ev Event) {
	w.subMu.Lock()
	subs := make([]func(Event), len(w.subs))
	copy(subs, w.subs)
	w.subMu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Snapshot returns the current observable session state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workflow) snapshotLocked() Snapshot {
	return Snapshot{
		State:         w.state,
		Identity:      w.identity,
		Role:          w.role,
		MustReset:     w.state == StateMustResetPassword,
		Authenticated: w.holder.IsAuthenticated(),
	}
}

// State returns the current workflow state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// RequestState reports the lifecycle phase of the given operation.
func (w *Workflow) RequestState(op Op) RequestState {
	return w.requests.state(op)
}

// ResetRequests returns the reset-request list from the last fetch. It is
// refreshed by ListResetRequests and after every successful AdminResetUser.
func (w *Workflow) ResetRequests() []store.ResetRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	reqs := make([]store.ResetRequest, len(w.resetRequests))
	copy(reqs, w.resetRequests)
	return reqs
}

// Login authenticates and establishes a session. With asAdmin set the
// session carries the admin role; the server refuses the flag for non-admin
// accounts. A login response demanding a password reset moves the workflow
// to StateMustResetPassword and keeps the just-used password available via
// PendingOldPassword for pre-filling the change form.
func (w *Workflow) Login(ctx context.Context, username, password string, asAdmin bool) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", client.ErrValidationFailed)
	}

	w.mu.Lock()
	switch w.state {
	case StateMustResetPassword:
		w.mu.Unlock()
		return ErrResetRequired
	case StateAuthenticated:
		w.mu.Unlock()
		return ErrAlreadyAuthenticated
	}
	if err := w.requests.begin(OpLogin); err != nil {
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()

	resp, err := w.api.Login(ctx, username, password, asAdmin)
	w.requests.settle(OpLogin, err)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.holder.Set(resp.AccessToken)
	w.identity = resp.User.Username
	if asAdmin {
		w.role = RoleAdmin
	} else {
		w.role = RoleUser
	}
	// A mandatory reset only ever applies to user sessions.
	if resp.MustReset && w.role == RoleUser {
		w.state = StateMustResetPassword
		w.carried = memguard.NewEnclave([]byte(password))
	} else {
		w.state = StateAuthenticated
	}
	ev := Event{Snapshot: w.snapshotLocked()}
	w.mu.Unlock()

	w.notify(ev)
	return nil
}

// PendingOldPassword returns the password used for the login that entered
// the mandatory-reset state, for pre-filling the old-password field. The
// second return is false outside StateMustResetPassword.
func (w *Workflow) PendingOldPassword() (string, bool) {
	w.mu.Lock()
	enclave := w.carried
	w.mu.Unlock()
	if enclave == nil {
		return "", false
	}
	buf, err := enclave.Open()
	if err != nil {
		return "", false
	}
	defer buf.Destroy()
	return string(buf.Bytes()), true
}

// Logout destroys the session: token, identity, and role are cleared
// together. It is rejected while a mandatory reset is outstanding so the
// reset cannot be bypassed by cycling the session.
func (w *Workflow) Logout() error {
	w.mu.Lock()
	if w.state == StateMustResetPassword {
		w.mu.Unlock()
		return ErrResetRequired
	}
	w.clearLocked()
	ev := Event{Snapshot: w.snapshotLocked()}
	w.mu.Unlock()

	w.notify(ev)
	return nil
}

// clearLocked wipes all session fields in one step. Callers hold w.mu.
func (w *Workflow) clearLocked() {
	w.holder.Clear()
	w.identity = ""
	w.role = RoleNone
	w.carried = nil
	w.resetRequests = nil
	w.state = StateLoggedOut
}

// expire applies the forced-expiry transition after the credential store
// rejected the current token.
func (w *Workflow) expire() {
	w.mu.Lock()
	w.clearLocked()
	ev := Event{Snapshot: w.snapshotLocked()}
	w.mu.Unlock()
	w.notify(ev)
}

// authFailure translates an Unauthorized response on an authenticated call
// into the forced-expiry transition. All other errors pass through.
func (w *Workflow) authFailure(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		w.expire()
		return ErrSessionExpired
	}
	return err
}

// ChangePassword submits a password change for the current identity. The
// confirmation and same-password checks run locally; a request that would
// fail them never reaches the credential store. Completing the change while
// a mandatory reset is outstanding returns the session to
// StateAuthenticated and directs the view to the default view.
func (w *Workflow) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) error {
	if oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: old and new passwords are required", client.ErrValidationFailed)
	}
	if newPassword != confirm {
		return fmt.Errorf("%w: new password and confirmation do not match", client.ErrValidationFailed)
	}
	if newPassword == oldPassword {
		return ErrSamePassword
	}
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: new password must be at least %d characters", client.ErrValidationFailed, minPasswordLen)
	}

	w.mu.Lock()
	if w.state == StateLoggedOut {
		w.mu.Unlock()
		return ErrNotAuthenticated
	}
	identity := w.identity
	if err := w.requests.begin(OpChangePassword); err != nil {
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()

	err := w.api.ChangePassword(ctx, identity, oldPassword, newPassword)
	w.requests.settle(OpChangePassword, err)
	if err != nil {
		return err
	}

	w.mu.Lock()
	finishedReset := w.state == StateMustResetPassword
	if finishedReset {
		w.carried = nil
		w.state = StateAuthenticated
	}
	ev := Event{Snapshot: w.snapshotLocked(), GoHome: finishedReset}
	w.mu.Unlock()

	if finishedReset {
		w.notify(ev)
	}
	return nil
}

// RequestReset records a forgot-password request for admin review. It is
// available to logged-out users from the landing view, but not while a
// mandatory reset is outstanding.
func (w *Workflow) RequestReset(ctx context.Context, username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", client.ErrValidationFailed)
	}
	w.mu.Lock()
	if w.state == StateMustResetPassword {
		w.mu.Unlock()
		return ErrResetRequired
	}
	if err := w.requests.begin(OpRequestReset); err != nil {
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()

	err := w.api.RequestReset(ctx, username)
	w.requests.settle(OpRequestReset, err)
	return err
}

// beginAdmin runs the shared guards for admin-only operations: a live
// admin session with no pending mandatory reset and no in-flight request
// for op. The role check runs client-side regardless of server enforcement.
func (w *Workflow) beginAdmin(op Op) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.state == StateMustResetPassword:
		return ErrResetRequired
	case w.state == StateLoggedOut:
		return ErrNotAuthenticated
	case w.role != RoleAdmin:
		return ErrNotAdmin
	}
	return w.requests.begin(op)
}

// AdminChangeCredentials updates the admin's own username and/or password.
// Unlike a user's mandatory reset, admin credential changes are voluntary.
func (w *Workflow) AdminChangeCredentials(ctx context.Context, currentPassword, newUsername, newPassword string) error {
	if currentPassword == "" {
		return fmt.Errorf("%w: current password is required", client.ErrValidationFailed)
	}
	if newUsername == "" && newPassword == "" {
		return fmt.Errorf("%w: nothing to change", client.ErrValidationFailed)
	}
	if newPassword != "" && len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: new password must be at least %d characters", client.ErrValidationFailed, minPasswordLen)
	}
	if err := w.beginAdmin(OpAdminChangeCredentials); err != nil {
		return err
	}
	err := w.api.AdminChangeCredentials(ctx, currentPassword, newUsername, newPassword)
	w.requests.settle(OpAdminChangeCredentials, err)
	if err != nil {
		return w.authFailure(err)
	}
	if newUsername != "" {
		w.mu.Lock()
		w.identity = newUsername
		ev := Event{Snapshot: w.snapshotLocked()}
		w.mu.Unlock()
		w.notify(ev)
	}
	return nil
}

// AdminCreateUser creates a new user account.
func (w *Workflow) AdminCreateUser(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", client.ErrValidationFailed)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", client.ErrValidationFailed, minPasswordLen)
	}
	if err := w.beginAdmin(OpAdminCreateUser); err != nil {
		return err
	}
	err := w.api.AdminCreateUser(ctx, username, password)
	w.requests.settle(OpAdminCreateUser, err)
	if err != nil {
		return w.authFailure(err)
	}
	return nil
}

// AdminResetUser sets a new password for the given user and refreshes the
// reset-request list so the resolved entry disappears from the admin view.
func (w *Workflow) AdminResetUser(ctx context.Context, userID int64, newPassword, note string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", client.ErrValidationFailed)
	}
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: new password must be at least %d characters", client.ErrValidationFailed, minPasswordLen)
	}
	if err := w.beginAdmin(OpAdminResetUser); err != nil {
		return err
	}
	err := w.api.AdminResetUser(ctx, userID, newPassword, note)
	w.requests.settle(OpAdminResetUser, err)
	if err != nil {
		return w.authFailure(err)
	}

	// The credential store owns reset-request state; re-fetch rather than
	// patching the local list.
	reqs, err := w.api.ListResetRequests(ctx)
	if err != nil {
		return w.authFailure(err)
	}
	w.mu.Lock()
	w.resetRequests = reqs
	w.mu.Unlock()
	return nil
}

// ListUsers fetches all user accounts.
func (w *Workflow) ListUsers(ctx context.Context) ([]*store.User, error) {
	if err := w.beginAdmin(OpListUsers); err != nil {
		return nil, err
	}
	users, err := w.api.ListUsers(ctx)
	w.requests.settle(OpListUsers, err)
	if err != nil {
		return nil, w.authFailure(err)
	}
	return users, nil
}

// ListResetRequests fetches the pending forgot-password requests and caches
// them for ResetRequests.
func (w *Workflow) ListResetRequests(ctx context.Context) ([]store.ResetRequest, error) {
	if err := w.beginAdmin(OpListResetRequests); err != nil {
		return nil, err
	}
	reqs, err := w.api.ListResetRequests(ctx)
	w.requests.settle(OpListResetRequests, err)
	if err != nil {
		return nil, w.authFailure(err)
	}
	w.mu.Lock()
	w.resetRequests = reqs
	w.mu.Unlock()
	return reqs, nil
}
