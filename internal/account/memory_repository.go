package account

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory implementation of Repository for tests
// and local development.
type MemoryRepository struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber // key: username + "@" + domain
	xmppUsers   map[string]bool        // key: username
}

// NewMemoryRepository creates a new in-memory account repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		subscribers: make(map[string]*Subscriber),
		xmppUsers:   make(map[string]bool),
	}
}

// UpsertSubscriber writes the SIP digest row for an account.
func (r *MemoryRepository) UpsertSubscriber(_ context.Context, sub *Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *sub
	r.subscribers[sub.Username+"@"+sub.Domain] = &copied
	r.xmppUsers[sub.Username] = true
	return nil
}

// HasSubscriber reports whether a SIP digest row exists for the account.
func (r *MemoryRepository) HasSubscriber(_ context.Context, username, domain string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.subscribers[username+"@"+domain]
	return ok, nil
}

// DeleteAccountRows removes the subscriber and XMPP user rows for a
// username.
func (r *MemoryRepository) DeleteAccountRows(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, sub := range r.subscribers {
		if sub.Username == username {
			delete(r.subscribers, key)
		}
	}
	delete(r.xmppUsers, username)
	return nil
}

// Ensure MemoryRepository implements Repository interface.
var _ Repository = (*MemoryRepository)(nil)
