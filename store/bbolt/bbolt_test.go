package bbolt_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/store"
	"gatehouse/store/bbolt"
)

func openStore(t *testing.T) *bbolt.Store {
	t.Helper()
	s, err := bbolt.NewRepositoryFromFile(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := openStore(t)

	created := time.Now().UTC().Truncate(time.Second)
	u := &store.User{
		Username:     "alice",
		PasswordHash: []byte("bcrypt-hash"),
		IsAdmin:      true,
		MustReset:    true,
		CreatedAt:    created,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	require.NotZero(t, u.ID)

	got, err := s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, []byte("bcrypt-hash"), got.PasswordHash, "hash must survive persistence despite being hidden from API JSON")
	assert.True(t, got.IsAdmin)
	assert.True(t, got.MustReset)
	assert.Equal(t, created, got.CreatedAt)

	byName, err := s.GetUserByName(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
}

func TestNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetUser(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetUserByName(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDuplicateUsername(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.CreateUser(context.Background(), &store.User{Username: "alice"}))
	err := s.CreateUser(context.Background(), &store.User{Username: "alice"})
	assert.ErrorIs(t, err, store.ErrUsernameTaken)
}

func TestUpdateAndRename(t *testing.T) {
	s := openStore(t)
	u := &store.User{Username: "alice"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	require.NoError(t, s.CreateUser(context.Background(), &store.User{Username: "bob"}))

	u.Username = "bob"
	assert.ErrorIs(t, s.UpdateUser(context.Background(), u), store.ErrUsernameTaken)

	u.Username = "carol"
	u.MustReset = true
	require.NoError(t, s.UpdateUser(context.Background(), u))

	_, err := s.GetUserByName(context.Background(), "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := s.GetUserByName(context.Background(), "carol")
	require.NoError(t, err)
	assert.True(t, got.MustReset)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := bbolt.NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	u := &store.User{Username: "alice", PasswordHash: []byte("hash")}
	require.NoError(t, s.CreateUser(context.Background(), u))
	require.NoError(t, s.Close())

	s, err = bbolt.NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetUserByName(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, []byte("hash"), got.PasswordHash)
}

func TestPendingResetRequests(t *testing.T) {
	s := openStore(t)
	now := time.Now().UTC()

	pending := &store.User{Username: "alice", ForgotStatus: store.ForgotStatusPending, ForgotRequestedAt: now}
	quiet := &store.User{Username: "bob"}
	require.NoError(t, s.CreateUser(context.Background(), pending))
	require.NoError(t, s.CreateUser(context.Background(), quiet))

	reqs, err := s.PendingResetRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, pending.ID, reqs[0].UserID)
	assert.Equal(t, store.ForgotStatusPending, reqs[0].Status)
}
