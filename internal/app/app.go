package app

import (
	"context"
	"errors"
	"time"

	"bookbazaar/pkg/auth"
	"bookbazaar/pkg/queue"
	"bookbazaar/pkg/storage"
	"bookbazaar/pkg/store"
)

// SeedQueue hands seed requests to background workers.
type SeedQueue interface {
	Enqueue(ctx context.Context, sellerID int64) (queue.SeedJob, error)
	GetJob(ctx context.Context, jobID string) (queue.SeedJob, bool, error)
}

// Config holds runtime dependencies for the core application.
type Config struct {
	Store    store.Store
	Sessions *auth.SessionIssuer
	// Objects stores cover images; nil disables cover uploads.
	Objects storage.ObjectStore
	// Queue runs explicit seed requests asynchronously; nil seeds inline.
	Queue  SeedQueue
	Seeder *Seeder
	// SeedOnRead seeds demo sales the first time an empty seller lists sales.
	SeedOnRead    bool
	PresignExpiry time.Duration
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store         store.Store
	sessions      *auth.SessionIssuer
	objects       storage.ObjectStore
	queue         SeedQueue
	seeder        *Seeder
	seedOnRead    bool
	presignExpiry time.Duration
}

// New constructs the application from already-initialized dependencies.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session issuer required")
	}
	seeder := cfg.Seeder
	if seeder == nil {
		seeder = NewSeeder(nil, nil)
	}
	presignExpiry := cfg.PresignExpiry
	if presignExpiry <= 0 {
		presignExpiry = 15 * time.Minute
	}
	return &App{
		store:         cfg.Store,
		sessions:      cfg.Sessions,
		objects:       cfg.Objects,
		queue:         cfg.Queue,
		seeder:        seeder,
		seedOnRead:    cfg.SeedOnRead,
		presignExpiry: presignExpiry,
	}, nil
}

// SessionTTL is the lifetime of issued session tokens.
func (a *App) SessionTTL() time.Duration {
	return a.sessions.TTL()
}

// VerifySession resolves a session token to the seller it was issued for.
// A missing token and an invalid one are the same outcome.
func (a *App) VerifySession(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	claims, ok := a.sessions.Verify(token)
	if !ok {
		return 0, false
	}
	return claims.SellerID, true
}

// Health reports whether the backing store is reachable.
func (a *App) Health(ctx context.Context) error {
	return a.store.Ping(ctx)
}
