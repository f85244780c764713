package session

import "sync"

// Op identifies a workflow operation for request-lifecycle tracking.
type Op string

const (
	OpLogin                  Op = "login"
	OpChangePassword         Op = "change_password"
	OpRequestReset           Op = "request_reset"
	OpAdminChangeCredentials Op = "admin_change_credentials"
	OpAdminCreateUser        Op = "admin_create_user"
	OpAdminResetUser         Op = "admin_reset_user"
	OpListUsers              Op = "list_users"
	OpListResetRequests      Op = "list_reset_requests"
)

// Phase is the lifecycle phase of the most recent request for an operation.
// It replaces per-action boolean loading flags with a single tagged value.
type Phase int

const (
	// PhaseIdle means the operation has never been invoked.
	PhaseIdle Phase = iota
	// PhasePending means a request is in flight. At most one request per
	// operation may be pending; further calls are rejected with ErrBusy.
	PhasePending
	// PhaseSettled means the last request resolved, successfully or not.
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseSettled:
		return "settled"
	default:
		return "idle"
	}
}

// RequestState is the observable lifecycle state of one operation.
type RequestState struct {
	Phase Phase
	// Err holds the outcome of the last settled request, nil on success.
	Err error
}

// lifecycleTable tracks the in-flight discipline for every operation.
type lifecycleTable struct {
	mu     sync.Mutex
	states map[Op]RequestState
}

func newLifecycleTable() *lifecycleTable {
	return &lifecycleTable{states: make(map[Op]RequestState)}
}

// begin marks op pending, or returns ErrBusy if it already is.
func (t *lifecycleTable) begin(op Op) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[op].Phase == PhasePending {
		return ErrBusy
	}
	t.states[op] = RequestState{Phase: PhasePending}
	return nil
}

// settle records the outcome of the pending request for op.
func (t *lifecycleTable) settle(op Op, err error) {
	t.mu.Lock()
	t.states[op] = RequestState{Phase: PhaseSettled, Err: err}
	t.mu.Unlock()
}

func (t *lifecycleTable) state(op Op) RequestState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[op]
}
