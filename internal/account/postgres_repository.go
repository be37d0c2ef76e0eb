package account

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL account repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// UpsertSubscriber writes the Kamailio digest row for an account.
func (r *PostgresRepository) UpsertSubscriber(ctx context.Context, sub *Subscriber) error {
	query := `
		INSERT INTO subscriber (username, domain, password, ha1, ha1b)
		VALUES ($1, $2, '', $3, $4)
		ON CONFLICT (username, domain) DO UPDATE
		SET ha1 = EXCLUDED.ha1, ha1b = EXCLUDED.ha1b
	`

	_, err := r.pool.Exec(ctx, query, sub.Username, sub.Domain, sub.HA1, sub.HA1B)
	if err != nil {
		return fmt.Errorf("upserting subscriber: %w", err)
	}

	return nil
}

// HasSubscriber reports whether a SIP digest row exists for the account.
func (r *PostgresRepository) HasSubscriber(ctx context.Context, username, domain string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM subscriber WHERE username = $1 AND domain = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, username, domain).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking subscriber: %w", err)
	}

	return exists, nil
}

// DeleteAccountRows removes the subscriber and XMPP user rows for a
// username. Both deletes commit together or not at all, so SIP and XMPP
// auth cannot drift apart.
func (r *PostgresRepository) DeleteAccountRows(ctx context.Context, username string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `DELETE FROM subscriber WHERE username = $1`, username); err != nil {
		return fmt.Errorf("deleting subscriber: %w", err)
	}

	// Ejabberd keeps accounts in its own users table when running the SQL
	// auth backend.
	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE username = $1`, username); err != nil {
		return fmt.Errorf("deleting xmpp user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delete transaction: %w", err)
	}

	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
