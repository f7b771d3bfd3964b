// Package storage declares the persistence contracts behind server-rendered
// store snapshots.
//
// Storage holds the data the server reads before it builds populated stores.
// Stores themselves are never persisted; only the values they are built from.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/statehouse/internal/services/shared/stores/tokens"
)

// Session is one signed-in browser session.
type Session struct {
	ID    string
	Email string
	// UserID and UserName are copied from the identity the authenticator
	// returned at sign-in.
	UserID     string
	UserName   string
	RememberMe bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// DefaultCounter names the counter row shared by the web pages and the
// snapshot service.
const DefaultCounter = "default"

// CounterStore persists named counters.
type CounterStore interface {
	// LoadCounter returns the stored value, or zero when name was never saved.
	LoadCounter(ctx context.Context, name string) (int, error)
	SaveCounter(ctx context.Context, name string, value int) error
}

// TokenStore persists the token listing.
type TokenStore interface {
	// ListTokens returns tokens ordered by market cap, largest first.
	ListTokens(ctx context.Context) ([]tokens.Token, error)
	UpsertTokens(ctx context.Context, list []tokens.Token) error
}

// SessionStore persists browser sessions.
type SessionStore interface {
	SaveSession(ctx context.Context, session Session) error
	LoadSession(ctx context.Context, id string) (Session, bool, error)
	DeleteSession(ctx context.Context, id string) error
}

// Store is the full persistence contract for the web service.
type Store interface {
	CounterStore
	TokenStore
	SessionStore
	Close() error
}
