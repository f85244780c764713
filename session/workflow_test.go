package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/api"
	"gatehouse/client"
	"gatehouse/session"
	"gatehouse/store"
)

// fakeAPI implements session.AuthAPI with scripted responses and call
// counters so tests can assert which operations reached the wire.
type fakeAPI struct {
	mu sync.Mutex

	loginResp  *api.LoginResponse
	loginErr   error
	loginCalls int
	loginGate  chan struct{} // when non-nil, Login blocks until closed

	changeErr   error
	changeCalls int
	changeUser  string
	changeOld   string
	changeNew   string

	resetErr   error
	resetCalls int

	adminResetErr   error
	adminResetCalls int

	createErr   error
	createCalls int

	credsErr   error
	credsCalls int

	users    []*store.User
	usersErr error

	requests    []store.ResetRequest
	requestsErr error
	listCalls   int
}

func (f *fakeAPI) Login(_ context.Context, username, password string, asAdmin bool) (*api.LoginResponse, error) {
	f.mu.Lock()
	f.loginCalls++
	gate := f.loginGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginResp, nil
}

func (f *fakeAPI) ChangePassword(_ context.Context, username, oldPassword, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changeCalls++
	f.changeUser = username
	f.changeOld = oldPassword
	f.changeNew = newPassword
	return f.changeErr
}

func (f *fakeAPI) RequestReset(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	return f.resetErr
}

func (f *fakeAPI) AdminChangeCredentials(_ context.Context, currentPassword, newUsername, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credsCalls++
	return f.credsErr
}

func (f *fakeAPI) AdminCreateUser(_ context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return f.createErr
}

func (f *fakeAPI) AdminResetUser(_ context.Context, userID int64, newPassword, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminResetCalls++
	return f.adminResetErr
}

func (f *fakeAPI) ListUsers(_ context.Context) ([]*store.User, error) {
	return f.users, f.usersErr
}

func (f *fakeAPI) ListResetRequests(_ context.Context) ([]store.ResetRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.requests, f.requestsErr
}

func userLoginResp(token, username string, mustReset bool) *api.LoginResponse {
	return &api.LoginResponse{
		AccessToken: token,
		User:        api.SessionUser{ID: 1, Username: username, MustReset: mustReset},
		MustReset:   mustReset,
	}
}

func adminLoginResp(token, username string) *api.LoginResponse {
	return &api.LoginResponse{
		AccessToken: token,
		User:        api.SessionUser{ID: 1, Username: username, IsAdmin: true},
	}
}

func newWorkflow(f *fakeAPI) (*session.Workflow, *session.TokenHolder) {
	holder := session.NewTokenHolder()
	return session.New(f, holder), holder
}

func TestLoginSuccess(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", false)}
	wf, holder := newWorkflow(f)

	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	snap := wf.Snapshot()
	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.Equal(t, "alice", snap.Identity)
	assert.Equal(t, session.RoleUser, snap.Role)
	assert.True(t, holder.IsAuthenticated())
	tok, ok := holder.Get()
	require.True(t, ok)
	assert.Equal(t, "T1", tok)
}

func TestLoginFailureStaysLoggedOut(t *testing.T) {
	f := &fakeAPI{loginErr: fmt.Errorf("%w: invalid credentials", client.ErrInvalidCredentials)}
	wf, holder := newWorkflow(f)

	err := wf.Login(context.Background(), "alice", "wrong", false)
	require.ErrorIs(t, err, client.ErrInvalidCredentials)
	assert.Equal(t, session.StateLoggedOut, wf.State())
	assert.False(t, holder.IsAuthenticated())
}

func TestLoginWithMandatoryResetCarriesPassword(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", true)}
	wf, holder := newWorkflow(f)

	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	snap := wf.Snapshot()
	assert.Equal(t, session.StateMustResetPassword, snap.State)
	assert.True(t, snap.MustReset)
	assert.True(t, holder.IsAuthenticated())

	old, ok := wf.PendingOldPassword()
	require.True(t, ok)
	assert.Equal(t, "p1", old)
}

func TestMandatoryResetNeverAppliesToAdmin(t *testing.T) {
	// Even if the server flags must_reset on an admin login, the session
	// invariant holds: mustReset implies the user role.
	f := &fakeAPI{loginResp: &api.LoginResponse{
		AccessToken: "T1",
		User:        api.SessionUser{ID: 1, Username: "root", IsAdmin: true, MustReset: true},
		MustReset:   true,
	}}
	wf, _ := newWorkflow(f)

	require.NoError(t, wf.Login(context.Background(), "root", "p1", true))
	snap := wf.Snapshot()
	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.Equal(t, session.RoleAdmin, snap.Role)
	assert.False(t, snap.MustReset)
}

func TestLogoutClearsEverything(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", false)}
	wf, holder := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	require.NoError(t, wf.Logout())

	snap := wf.Snapshot()
	assert.Equal(t, session.StateLoggedOut, snap.State)
	assert.Empty(t, snap.Identity)
	assert.Equal(t, session.RoleNone, snap.Role)
	assert.False(t, holder.IsAuthenticated())
}

func TestLogoutWhenLoggedOutIsNoOp(t *testing.T) {
	wf, _ := newWorkflow(&fakeAPI{})
	require.NoError(t, wf.Logout())
	assert.Equal(t, session.StateLoggedOut, wf.State())
}

func TestMandatoryResetBlocksEverythingButPasswordChange(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", true)}
	wf, holder := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	assert.ErrorIs(t, wf.Logout(), session.ErrResetRequired)
	assert.ErrorIs(t, wf.RequestReset(context.Background(), "alice"), session.ErrResetRequired)
	assert.ErrorIs(t, wf.Login(context.Background(), "alice", "p1", false), session.ErrResetRequired)

	// State and token are untouched by the rejected attempts.
	assert.Equal(t, session.StateMustResetPassword, wf.State())
	assert.True(t, holder.IsAuthenticated())
	assert.Zero(t, f.resetCalls)
	assert.Equal(t, 1, f.loginCalls)
}

func TestCompletingMandatoryReset(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", true)}
	wf, _ := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	var events []session.Event
	wf.Subscribe(func(ev session.Event) { events = append(events, ev) })

	require.NoError(t, wf.ChangePassword(context.Background(), "p1", "p2secret", "p2secret"))

	assert.Equal(t, session.StateAuthenticated, wf.State())
	require.Len(t, events, 1)
	assert.True(t, events[0].GoHome, "view must navigate home with no further prompt")

	_, ok := wf.PendingOldPassword()
	assert.False(t, ok, "carried password must be dropped once the reset completes")

	assert.Equal(t, "alice", f.changeUser)
	assert.Equal(t, "p1", f.changeOld)
	assert.Equal(t, "p2secret", f.changeNew)
}

func TestChangePasswordConfirmationMismatchNeverContactsServer(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", false)}
	wf, _ := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	err := wf.ChangePassword(context.Background(), "p1", "newpass", "different")
	require.ErrorIs(t, err, client.ErrValidationFailed)
	assert.Zero(t, f.changeCalls)
}

func TestChangePasswordSameAsOldNeverContactsServer(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", false)}
	wf, _ := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	err := wf.ChangePassword(context.Background(), "samepass", "samepass", "samepass")
	require.ErrorIs(t, err, session.ErrSamePassword)
	assert.Zero(t, f.changeCalls)
}

func TestChangePasswordTooShortNeverContactsServer(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", false)}
	wf, _ := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	err := wf.ChangePassword(context.Background(), "p1", "short", "short")
	require.ErrorIs(t, err, client.ErrValidationFailed)
	assert.Zero(t, f.changeCalls)
}

func TestForcedExpiryOnUnauthorized(t *testing.T) {
	f := &fakeAPI{
		loginResp: adminLoginResp("T1", "root"),
		usersErr:  fmt.Errorf("%w: invalid or expired token", client.ErrUnauthorized),
	}
	wf, holder := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "root", "p1", true))

	var events []session.Event
	wf.Subscribe(func(ev session.Event) { events = append(events, ev) })

	_, err := wf.ListUsers(context.Background())
	require.ErrorIs(t, err, session.ErrSessionExpired)

	snap := wf.Snapshot()
	assert.Equal(t, session.StateLoggedOut, snap.State)
	assert.Empty(t, snap.Identity)
	assert.Equal(t, session.RoleNone, snap.Role)
	assert.False(t, holder.IsAuthenticated())
	require.Len(t, events, 1)
	assert.Equal(t, session.StateLoggedOut, events[0].Snapshot.State)
}

func TestAdminOperationsRefusedForUserRole(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", false)}
	wf, _ := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	_, err := wf.ListUsers(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAdmin)
	_, err = wf.ListResetRequests(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAdmin)
	assert.ErrorIs(t, wf.AdminResetUser(context.Background(), 7, "newpass", ""), session.ErrNotAdmin)
	assert.ErrorIs(t, wf.AdminCreateUser(context.Background(), "bob", "secret1"), session.ErrNotAdmin)

	assert.Zero(t, f.adminResetCalls)
	assert.Zero(t, f.createCalls)
	assert.Zero(t, f.listCalls)
}

func TestAdminOperationsRefusedWhenLoggedOut(t *testing.T) {
	wf, _ := newWorkflow(&fakeAPI{})
	_, err := wf.ListUsers(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestAdminResetRefreshesRequestList(t *testing.T) {
	f := &fakeAPI{
		loginResp: adminLoginResp("T1", "root"),
		requests: []store.ResetRequest{
			{UserID: 7, Username: "alice", Status: store.ForgotStatusPending},
		},
	}
	wf, _ := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "root", "p1", true))

	reqs, err := wf.ListResetRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	// Resolving user 7 leaves no pending entries on the server.
	f.mu.Lock()
	f.requests = nil
	f.mu.Unlock()

	require.NoError(t, wf.AdminResetUser(context.Background(), 7, "newpass", "requested by phone"))
	assert.Equal(t, 1, f.adminResetCalls)
	assert.Empty(t, wf.ResetRequests(), "resolved request must disappear after the re-fetch")
}

func TestLoginBusyGuard(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", false), loginGate: gate}
	wf, _ := newWorkflow(f)

	done := make(chan error, 1)
	go func() { done <- wf.Login(context.Background(), "alice", "p1", false) }()

	// Wait for the first login to be in flight, then try a second.
	require.Eventually(t, func() bool {
		return wf.RequestState(session.OpLogin).Phase == session.PhasePending
	}, time.Second, time.Millisecond)

	err := wf.Login(context.Background(), "alice", "p1", false)
	assert.ErrorIs(t, err, session.ErrBusy)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, session.PhaseSettled, wf.RequestState(session.OpLogin).Phase)
}

func TestLoginWhileAuthenticatedRejected(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", false)}
	wf, _ := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	err := wf.Login(context.Background(), "bob", "p2", false)
	assert.ErrorIs(t, err, session.ErrAlreadyAuthenticated)
}

func TestChangePasswordRequiresSession(t *testing.T) {
	wf, _ := newWorkflow(&fakeAPI{})
	err := wf.ChangePassword(context.Background(), "old", "newpass", "newpass")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestVoluntaryChangePasswordDoesNotNavigateHome(t *testing.T) {
	f := &fakeAPI{loginResp: userLoginResp("T1", "alice", false)}
	wf, _ := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	var events []session.Event
	wf.Subscribe(func(ev session.Event) { events = append(events, ev) })

	require.NoError(t, wf.ChangePassword(context.Background(), "p1", "p2secret", "p2secret"))
	assert.Empty(t, events, "a voluntary change is not a state transition")
	assert.Equal(t, session.StateAuthenticated, wf.State())
}

func TestChangePasswordServerRejection(t *testing.T) {
	f := &fakeAPI{
		loginResp: userLoginResp("T1", "alice", true),
		changeErr: fmt.Errorf("%w: old password incorrect", client.ErrUnauthorized),
	}
	wf, holder := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	err := wf.ChangePassword(context.Background(), "wrong", "p2secret", "p2secret")
	require.Error(t, err)

	// A rejected old password is not a session expiry: the mandatory
	// reset remains outstanding and the token survives.
	assert.Equal(t, session.StateMustResetPassword, wf.State())
	assert.True(t, holder.IsAuthenticated())
}

func TestRequestResetFromLoggedOut(t *testing.T) {
	f := &fakeAPI{}
	wf, _ := newWorkflow(f)
	require.NoError(t, wf.RequestReset(context.Background(), "alice"))
	assert.Equal(t, 1, f.resetCalls)
	assert.Equal(t, session.StateLoggedOut, wf.State())
}

func TestAdminChangeCredentialsUpdatesIdentity(t *testing.T) {
	f := &fakeAPI{loginResp: adminLoginResp("T1", "root")}
	wf, _ := newWorkflow(f)
	require.NoError(t, wf.Login(context.Background(), "root", "p1", true))

	require.NoError(t, wf.AdminChangeCredentials(context.Background(), "p1", "superroot", ""))
	assert.Equal(t, "superroot", wf.Snapshot().Identity)
	assert.Equal(t, 1, f.credsCalls)
}

func TestValidationErrorsAreTyped(t *testing.T) {
	wf, _ := newWorkflow(&fakeAPI{loginResp: userLoginResp("T1", "alice", false)})
	require.NoError(t, wf.Login(context.Background(), "alice", "p1", false))

	for _, err := range []error{
		wf.ChangePassword(context.Background(), "", "newpass", "newpass"),
		wf.AdminCreateUser(context.Background(), "", ""),
		wf.RequestReset(context.Background(), ""),
	} {
		if !errors.Is(err, client.ErrValidationFailed) {
			// Role guards fire before validation for admin ops on a
			// user session.
			assert.ErrorIs(t, err, session.ErrNotAdmin)
		}
	}
}
