package session

import "sync"

// TokenHolder stores the current bearer token for this process only.
// Nothing is ever written to disk, so a session lasts at most the life of
// the portal process. Clear is idempotent.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

// NewTokenHolder returns an empty holder.
func NewTokenHolder() *TokenHolder {
	return &TokenHolder{}
}

// Set stores the token, replacing any previous value.
func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

// Get returns the stored token and whether one is present.
func (h *TokenHolder) Get() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token, h.token != ""
}

// Clear removes the stored token. Calling it on an empty holder is a no-op.
func (h *TokenHolder) Clear() {
	h.mu.Lock()
	h.token = ""
	h.mu.Unlock()
}

// IsAuthenticated reports whether a token is present. This is a presence
// check only; staleness is discovered on the next failed request.
func (h *TokenHolder) IsAuthenticated() bool {
	_, ok := h.Get()
	return ok
}
