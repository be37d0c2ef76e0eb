package account

import "context"

// Repository stores the credential rows that back an account in the shared
// database. The subscriber table belongs to Kamailio and the users table to
// Ejabberd's SQL auth backend; both daemons read them directly, so writes
// here are visible to live SIP and XMPP traffic immediately.
type Repository interface {
	// UpsertSubscriber writes the SIP digest row for an account. Existing
	// rows get fresh hashes, so a login after a server-side password
	// change heals the SIP credentials.
	UpsertSubscriber(ctx context.Context, sub *Subscriber) error

	// HasSubscriber reports whether a SIP digest row exists for the
	// account.
	HasSubscriber(ctx context.Context, username, domain string) (bool, error)

	// DeleteAccountRows removes the subscriber and XMPP user rows for a
	// username in one transaction. Missing rows are not an error; account
	// deletion is idempotent.
	DeleteAccountRows(ctx context.Context, username string) error
}
