package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/token"
)

func TestIssueAndVerify(t *testing.T) {
	issuer, err := token.NewIssuer([]byte("secret"))
	require.NoError(t, err)

	signed, err := issuer.Issue(7, "alice", true)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := issuer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.IsAdmin)
	assert.NotEmpty(t, claims.ID, "every token carries a unique id")
}

func TestEmptySecretRejected(t *testing.T) {
	_, err := token.NewIssuer(nil)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	now := time.Now()
	issuer, err := token.NewIssuer([]byte("secret"),
		token.WithTTL(time.Minute),
		token.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	signed, err := issuer.Issue(1, "alice", false)
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	require.NoError(t, err)

	// Advance past the TTL.
	now = now.Add(2 * time.Minute)
	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestWrongSecretRejected(t *testing.T) {
	a, err := token.NewIssuer([]byte("secret-a"))
	require.NoError(t, err)
	b, err := token.NewIssuer([]byte("secret-b"))
	require.NoError(t, err)

	signed, err := a.Issue(1, "alice", false)
	require.NoError(t, err)

	_, err = b.Verify(signed)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestGarbageRejected(t *testing.T) {
	issuer, err := token.NewIssuer([]byte("secret"))
	require.NoError(t, err)

	for _, in := range []string{"", "not.a.jwt", "a.b.c"} {
		_, err := issuer.Verify(in)
		assert.ErrorIs(t, err, token.ErrInvalidToken, "input %q", in)
	}
}

func TestUnsignedAlgorithmRejected(t *testing.T) {
	issuer, err := token.NewIssuer([]byte("secret"))
	require.NoError(t, err)

	// alg=none with a valid-looking payload must never verify.
	unsigned := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." +
		"eyJ1c2VyX2lkIjoxLCJ1c2VybmFtZSI6ImFsaWNlIn0."
	_, err = issuer.Verify(unsigned)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}
