package registry

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// The push_registrations table lives in the database Veil shares with
// Kamailio; the column is named device_uuid there for historical reasons.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL registration repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Upsert stores a registration keyed by (jid, device_uuid).
func (r *PostgresRepository) Upsert(ctx context.Context, reg *Registration) error {
	query := `
		INSERT INTO push_registrations (jid, device_uuid, platform, push_token, app_id, registered_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (jid, device_uuid)
		DO UPDATE SET push_token = EXCLUDED.push_token,
		              platform = EXCLUDED.platform,
		              app_id = EXCLUDED.app_id,
		              registered_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		reg.JID,
		reg.DeviceID,
		reg.Platform,
		reg.PushToken,
		reg.AppID,
	)
	return err
}

// ListByJID retrieves all registrations for an account.
func (r *PostgresRepository) ListByJID(ctx context.Context, jid string) ([]*Registration, error) {
	query := `
		SELECT jid, device_uuid, platform, push_token, app_id, registered_at
		FROM push_registrations
		WHERE jid = $1
	`

	rows, err := r.pool.Query(ctx, query, jid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]*Registration, 0)
	for rows.Next() {
		var reg Registration
		err := rows.Scan(
			&reg.JID,
			&reg.DeviceID,
			&reg.Platform,
			&reg.PushToken,
			&reg.AppID,
			&reg.RegisteredAt,
		)
		if err != nil {
			return nil, err
		}
		regs = append(regs, &reg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return regs, nil
}

// Delete removes one registration, reporting ErrNotFound for a miss.
func (r *PostgresRepository) Delete(ctx context.Context, jid, deviceID string) error {
	query := `DELETE FROM push_registrations WHERE jid = $1 AND device_uuid = $2`

	result, err := r.pool.Exec(ctx, query, jid, deviceID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteQuietly removes one registration whether or not it exists.
func (r *PostgresRepository) DeleteQuietly(ctx context.Context, jid, deviceID string) error {
	query := `DELETE FROM push_registrations WHERE jid = $1 AND device_uuid = $2`

	_, err := r.pool.Exec(ctx, query, jid, deviceID)
	return err
}

// DeleteByJID removes every registration for an account.
func (r *PostgresRepository) DeleteByJID(ctx context.Context, jid string) (int64, error) {
	query := `DELETE FROM push_registrations WHERE jid = $1`

	result, err := r.pool.Exec(ctx, query, jid)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

// PurgeOlderThan removes registrations last written before the cutoff.
func (r *PostgresRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM push_registrations WHERE registered_at < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
