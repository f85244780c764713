// Package memory provides an in-memory store.Repository for tests and
// ephemeral servers. All data is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"gatehouse/store"
)

// Repository implements store.Repository backed by process memory.
type Repository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*store.User
	byName map[string]int64
}

var _ store.Repository = (*Repository)(nil)

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		nextID: 1,
		byID:   make(map[int64]*store.User),
		byName: make(map[string]int64),
	}
}

func (r *Repository) CreateUser(_ context.Context, u *store.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[u.Username]; exists {
		return store.ErrUsernameTaken
	}
	u.ID = r.nextID
	r.nextID++
	cp := *u
	r.byID[u.ID] = &cp
	r.byName[u.Username] = u.ID
	return nil
}

func (r *Repository) GetUser(_ context.Context, id int64) (*store.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *Repository) GetUserByName(_ context.Context, username string) (*store.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *Repository) UpdateUser(_ context.Context, u *store.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.byID[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	if u.Username != prev.Username {
		if owner, exists := r.byName[u.Username]; exists && owner != u.ID {
			return store.ErrUsernameTaken
		}
		delete(r.byName, prev.Username)
		r.byName[u.Username] = u.ID
	}
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *Repository) ListUsers(_ context.Context) ([]*store.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]*store.User, 0, len(r.byID))
	for _, u := range r.byID {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *Repository) PendingResetRequests(_ context.Context) ([]store.ResetRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var reqs []store.ResetRequest
	for _, u := range r.byID {
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
