package accounts

import "context"

// Store persists accounts keyed by username.
type Store interface {
	// Create fails with ErrAccountExists when the username is taken.
	Create(ctx context.Context, account Account) error
	// Get fails with ErrAccountNotFound for unknown usernames.
	Get(ctx context.Context, username string) (Account, error)
}
