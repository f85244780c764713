package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/session"
)

func TestTokenHolder(t *testing.T) {
	h := session.NewTokenHolder()

	_, ok := h.Get()
	assert.False(t, ok)
	assert.False(t, h.IsAuthenticated())

	h.Set("T1")
	tok, ok := h.Get()
	require.True(t, ok)
	assert.Equal(t, "T1", tok)
	assert.True(t, h.IsAuthenticated())

	h.Set("T2")
	tok, _ = h.Get()
	assert.Equal(t, "T2", tok)

	h.Clear()
	assert.False(t, h.IsAuthenticated())

	// Clearing an empty holder is fine.
	h.Clear()
	assert.False(t, h.IsAuthenticated())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", session.PhaseIdle.String())
	assert.Equal(t, "pending", session.PhasePending.String())
	assert.Equal(t, "settled", session.PhaseSettled.String())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "logged-out", session.StateLoggedOut.String())
	assert.Equal(t, "authenticated", session.StateAuthenticated.String())
	assert.Equal(t, "must-reset-password", session.StateMustResetPassword.String())
}
