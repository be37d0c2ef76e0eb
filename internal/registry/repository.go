package registry

import (
	"context"
	"time"
)

// Repository defines the interface for registration persistence.
type Repository interface {
	// Upsert stores a registration, replacing the token, platform, and
	// app ID of any previous row for the same (jid, device_id) pair and
	// refreshing its registration time.
	Upsert(ctx context.Context, reg *Registration) error

	// ListByJID retrieves all registrations for an account. An account
	// with no registered devices yields an empty slice, not an error.
	ListByJID(ctx context.Context, jid string) ([]*Registration, error)

	// Delete removes one registration. Returns ErrNotFound when no row
	// matched.
	Delete(ctx context.Context, jid, deviceID string) error

	// DeleteQuietly removes one registration without reporting whether it
	// existed. Dispatch cleanup uses it and may race an explicit
	// deregistration for the same device.
	DeleteQuietly(ctx context.Context, jid, deviceID string) error

	// DeleteByJID removes every registration for an account and reports
	// how many rows went away. Account deletion cascades through this.
	DeleteByJID(ctx context.Context, jid string) (int64, error)

	// PurgeOlderThan removes registrations last written before the cutoff
	// and reports how many rows went away.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
