package service

import (
	"context"
	"encoding/json"

	"github.com/modremote/spawn-relay/relay/session"
)

// RelayService defines all relay operations exposed to the transports.
type RelayService interface {
	// Session Management
	StartSession(ctx context.Context) (*SessionInfo, error)
	EndSession(ctx context.Context, token string) error
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	SessionValid(ctx context.Context, token string) bool

	// Command Relay
	SpawnItem(ctx context.Context, token, itemID string, quantity int) (*SpawnResult, error)

	// Shared State
	Catalog(ctx context.Context) (json.RawMessage, error)
	BroadcastCatalog(ctx context.Context, doc json.RawMessage) int
}

// SessionStore defines the session lifecycle operations the relay needs.
type SessionStore interface {
	Start() string
	End(token string) bool
	IsValid(token string) bool
	Touch(token string)
	Get(token string) (session.Session, bool)
	List() []session.Session
}

// CatalogStore provides read access to the shared item catalog.
type CatalogStore interface {
	Read(ctx context.Context) (json.RawMessage, error)
}
