package session

import (
	"context"
	"errors"
	"time"
)

// Token is one device's refresh-token record. A record belongs to
// exactly one username and is addressed by (username, tokenID).
type Token struct {
	Username    string    `json:"username"`
	TokenID     string    `json:"token_id"`
	DeviceLabel string    `json:"device_label"`
	IP          string    `json:"ip"`
	IssuedAt    time.Time `json:"issued_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its absolute expiry.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ErrNotFound is returned by Store.Get when no record exists for the key.
var ErrNotFound = errors.New("session: token not found")

// Store is durable keyed storage for device tokens. Revocation deletes
// the record, so presence means live (expiry is the Manager's concern).
// Implementations must be safe for concurrent use; operations on the
// same (username, tokenID) key serialize at the backend with
// last-writer-wins semantics.
type Store interface {
	// Put inserts or overwrites a record. Idempotent.
	Put(ctx context.Context, t Token) error
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, username, tokenID string) (*Token, error)
	// ListByUser returns the user's records, most recently issued first.
	ListByUser(ctx context.Context, username string) ([]Token, error)
	// Delete removes a record, reporting whether one existed.
	Delete(ctx context.Context, username, tokenID string) (bool, error)
	// DeleteAllByUser removes all records of a user, returning the count removed.
	DeleteAllByUser(ctx context.Context, username string) (int, error)
}

// expiredPurger is implemented by stores that can sweep expired records.
// Backends with native TTL (Redis) don't need it.
type expiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
