// Package bbolt provides a BBolt-backed store.Repository.
package bbolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"gatehouse/store"
)

var (
	usersBucket = []byte("users")
	namesBucket = []byte("usernames")
)

// Store implements store.Repository backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ store.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(usersBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(namesBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("initializing buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func putUser(tx *bbolt.Tx, u *store.User) error {
	data, err := json.Marshal(userRecord{
		User:         *u,
		PasswordHash: u.PasswordHash,
	})
	if err != nil {
		return err
	}
	return tx.Bucket(usersBucket).Put(idKey(u.ID), data)
}

func getUser(tx *bbolt.Tx, id int64) (*store.User, error) {
	data := tx.Bucket(usersBucket).Get(idKey(id))
	if data == nil {
		return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	u := rec.User
	u.PasswordHash = rec.PasswordHash
	return &u, nil
}

func (s *Store) CreateUser(_ context.Context, u *store.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket(namesBucket)
		if names.Get([]byte(u.Username)) != nil {
			return store.ErrUsernameTaken
		}
		seq, err := tx.Bucket(usersBucket).NextSequence()
		if err != nil {
			return err
		}
		u.ID = int64(seq)
		if err := putUser(tx, u); err != nil {
			return err
		}
		return names.Put([]byte(u.Username), idKey(u.ID))
	})
}

func (s *Store) GetUser(_ context.Context, id int64) (*store.User, error) {
	var u *store.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		u, err = getUser(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) GetUserByName(_ context.Context, username string) (*store.User, error) {
	var u *store.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		ref := tx.Bucket(namesBucket).Get([]byte(username))
		if ref == nil {
			return fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		var err error
		u, err = getUser(tx, int64(binary.BigEndian.Uint64(ref)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u *store.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		prev, err := getUser(tx, u.ID)
		if err != nil {
			return err
		}
		if u.Username != prev.Username {
			names := tx.Bucket(namesBucket)
			if ref := names.Get([]byte(u.Username)); ref != nil && !bytes.Equal(ref, idKey(u.ID)) {
				return store.ErrUsernameTaken
			}
			if err := names.Delete([]byte(prev.Username)); err != nil {
				return err
			}
			if err := names.Put([]byte(u.Username), idKey(u.ID)); err != nil {
				return err
			}
		}
		return putUser(tx, u)
	})
}

func (s *Store) ListUsers(_ context.Context) ([]*store.User, error) {
	var users []*store.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(usersBucket).ForEach(func(_, data []byte) error {
			var rec userRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			u := rec.User
			u.PasswordHash = rec.PasswordHash
			users = append(users, &u)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) PendingResetRequests(ctx context.Context) ([]store.ResetRequest, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var reqs []store.ResetRequest
	for _, u := range users {
		if u.ForgotStatus != store.ForgotStatusPending {
			continue
		}
		reqs = append(reqs, store.ResetRequest{
			UserID:      u.ID,
			Username:    u.Username,
			RequestedAt: u.ForgotRequestedAt,
			Status:      u.ForgotStatus,
			AdminNote:   u.AdminNote,
		})
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].RequestedAt.After(reqs[j].RequestedAt) })
	return reqs, nil
}
