package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/modremote/spawn-relay/relay/registry"
)

// relayServiceImpl implements the RelayService interface.
type relayServiceImpl struct {
	sessions SessionStore
	registry *registry.Registry
	catalog  CatalogStore
}

// NewRelayService creates a new relay service instance.
func NewRelayService(sessions SessionStore, reg *registry.Registry, catalog CatalogStore) RelayService {
	return &relayServiceImpl{
		sessions: sessions,
		registry: reg,
		catalog:  catalog,
	}
}

// StartSession issues a new session token.
func (s *relayServiceImpl) StartSession(ctx context.Context) (*SessionInfo, error) {
	token := s.sessions.Start()

	sess, exists := s.sessions.Get(token)
	if !exists {
		// The store never drops a token between Start and Get; treat it
		// as an internal inconsistency rather than crashing the caller.
		return nil, fmt.Errorf("session %s missing immediately after creation", token)
	}

	return &SessionInfo{
		Token:          sess.Token,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
	}, nil
}

// EndSession removes a session. Ending an unknown or already-ended
// token returns ErrSessionNotFound.
func (s *relayServiceImpl) EndSession(ctx context.Context, token string) error {
	if !s.sessions.End(token) {
		return ErrSessionNotFound
	}
	return nil
}

// ListSessions returns all sessions with their connection status.
func (s *relayServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()

	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		_, connected := s.registry.Lookup(sess.Token)
		result = append(result, &SessionInfo{
			Token:          sess.Token,
			CreatedAt:      sess.CreatedAt,
			LastAccessedAt: sess.LastAccessedAt,
			Connected:      connected,
		})
	}
	return result, nil
}

// SessionValid reports whether the token identifies a live session.
// A passing check counts as activity: the WebSocket gate calls this on
// every handshake, and an attach should reset the idle clock.
func (s *relayServiceImpl) SessionValid(ctx context.Context, token string) bool {
	if !s.sessions.IsValid(token) {
		return false
	}
	s.sessions.Touch(token)
	return true
}

// SpawnItem relays a spawn command to the single connection registered
// under token. Delivery is at-most-once: one send attempt, no retry, no
// queueing. On a send failure the stale connection is unregistered so
// subsequent dispatches report the missing connection instead.
func (s *relayServiceImpl) SpawnItem(ctx context.Context, token, itemID string, quantity int) (*SpawnResult, error) {
	if itemID == "" {
		return nil, ErrMalformedCommand
	}
	if quantity < 1 {
		quantity = 1
	}

	if !s.sessions.IsValid(token) {
		return nil, ErrSessionInvalid
	}

	conn, exists := s.registry.Lookup(token)
	if !exists {
		return nil, ErrNoActiveConnection
	}

	data, err := json.Marshal(NewSpawnCommand(itemID, quantity))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal spawn command: %w", err)
	}

	if err := conn.Send(data); err != nil {
		s.registry.Unregister(token, conn)
		conn.Close()
		log.Printf("Spawn delivery failed for session %s, connection dropped: %v", token, err)
		return nil, ErrDeliveryFailed
	}

	s.sessions.Touch(token)

	return &SpawnResult{ItemID: itemID, Quantity: quantity}, nil
}

// Catalog returns a snapshot of the shared item catalog.
func (s *relayServiceImpl) Catalog(ctx context.Context) (json.RawMessage, error) {
	return s.catalog.Read(ctx)
}

// BroadcastCatalog pushes the catalog document to every registered
// connection and returns how many deliveries succeeded. The document is
// serialized once; per-connection failures are isolated, and a failing
// peer is unregistered and closed.
func (s *relayServiceImpl) BroadcastCatalog(ctx context.Context, doc json.RawMessage) int {
	data, err := json.Marshal(NewUpdateMessage(doc))
	if err != nil {
		log.Printf("Failed to marshal catalog update: %v", err)
		return 0
	}

	delivered := 0
	for token, conn := range s.registry.Snapshot() {
		if err := conn.Send(data); err != nil {
			s.registry.Unregister(token, conn)
			conn.Close()
			log.Printf("Catalog broadcast to session %s failed, connection dropped: %v", token, err)
			continue
		}
		delivered++
	}
	return delivered
}
