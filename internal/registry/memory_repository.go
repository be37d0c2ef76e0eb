package registry

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu   sync.RWMutex
	regs map[string]map[string]*Registration // jid -> device ID -> registration
}

// NewInMemoryRepository creates a new in-memory registration repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		regs: make(map[string]map[string]*Registration),
	}
}

// Upsert stores a registration, replacing any previous row for the pair.
func (r *InMemoryRepository) Upsert(_ context.Context, reg *Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices, ok := r.regs[reg.JID]
	if !ok {
		devices = make(map[string]*Registration)
		r.regs[reg.JID] = devices
	}

	stored := copyRegistration(reg)
	stored.RegisteredAt = time.Now()
	devices[reg.DeviceID] = stored
	return nil
}

// ListByJID retrieves all registrations for an account.
func (r *InMemoryRepository) ListByJID(_ context.Context, jid string) ([]*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Registration, 0, len(r.regs[jid]))
	for _, reg := range r.regs[jid] {
		items = append(items, copyRegistration(reg))
	}
	return items, nil
}

// Delete removes one registration, reporting ErrNotFound for a miss.
func (r *InMemoryRepository) Delete(_ context.Context, jid, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices, ok := r.regs[jid]
	if !ok {
		return ErrNotFound
	}
	if _, ok := devices[deviceID]; !ok {
		return ErrNotFound
	}

	delete(devices, deviceID)
	if len(devices) == 0 {
		delete(r.regs, jid)
	}
	return nil
}

// DeleteQuietly removes one registration whether or not it exists.
func (r *InMemoryRepository) DeleteQuietly(_ context.Context, jid, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if devices, ok := r.regs[jid]; ok {
		delete(devices, deviceID)
		if len(devices) == 0 {
			delete(r.regs, jid)
		}
	}
	return nil
}

// DeleteByJID removes every registration for an account.
func (r *InMemoryRepository) DeleteByJID(_ context.Context, jid string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := int64(len(r.regs[jid]))
	delete(r.regs, jid)
	return count, nil
}

// PurgeOlderThan removes registrations last written before the cutoff.
func (r *InMemoryRepository) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for jid, devices := range r.regs {
		for deviceID, reg := range devices {
			if reg.RegisteredAt.Before(cutoff) {
				delete(devices, deviceID)
				count++
			}
		}
		if len(devices) == 0 {
			delete(r.regs, jid)
		}
	}
	return count, nil
}

// copyRegistration creates a copy of a registration.
func copyRegistration(reg *Registration) *Registration {
	if reg == nil {
		return nil
	}
	regCopy := *reg
	return &regCopy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
