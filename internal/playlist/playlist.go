package playlist

import (
	"context"
	"errors"
)

var (
	ErrUnresolvableSession = errors.New("session does not resolve to a playlist")
)

type Item struct {
	ID         string
	Title      string
	NominalBPM *int
	Content    string
}

type Resolved struct {
	DisplayName string
	ItemIDs     []string
}

type Resolver interface {
	Resolve(ctx context.Context, sessionID string) (Resolved, error)
}

type Catalog interface {
	// Lookup reports false when the item does not exist.
	Lookup(ctx context.Context, itemID string) (Item, bool, error)
}

// Watcher is implemented by resolvers whose playlists can change while a
// session is live. Watch blocks, calling onChange for every relevant change,
// until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, sessionID string, onChange func()) error
}
