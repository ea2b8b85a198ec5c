// Package registry maps session tokens to live duplex connections.
//
// The registry is the only shared mutable structure in the relay core.
// It holds at most one connection per token (last registered wins) and
// guards unregistration so a stale connection handle can never evict a
// newer connection registered under the same token. All operations are
// linearizable with respect to each other.
package registry

import "sync"

// Conn is an abstract duplex channel capable of sending discrete text
// messages to a remote peer and signaling closure. Implementations must
// serialize their own writes: Send may be called concurrently by the
// dispatcher and the broadcaster.
type Conn interface {
	// Send delivers one message to the peer. It returns an error when
	// the peer is gone or the connection's write path is torn down.
	Send(data []byte) error

	// Close tears down the connection.
	Close() error
}

// Registry is a thread-safe token-to-connection map.
type Registry struct {
	conns map[string]Conn
	mu    sync.RWMutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		conns: make(map[string]Conn),
	}
}

// Register stores conn under token, replacing any prior connection.
// The displaced connection, if any, is returned so the caller can close
// it; the registry never closes a connection it displaces.
func (r *Registry) Register(token string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior := r.conns[token]
	r.conns[token] = conn
	return prior
}

// Unregister removes the mapping for token only if conn is the
// connection currently stored. It returns whether a removal happened.
// A stale handle (already replaced or already removed) is a no-op.
func (r *Registry) Unregister(token string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.conns[token]; exists && current == conn {
		delete(r.conns, token)
		return true
	}
	return false
}

// Lookup returns the connection registered under token, if any.
func (r *Registry) Lookup(token string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[token]
	return conn, exists
}

// Snapshot returns a point-in-time copy of all registered connections.
// Broadcasts iterate the snapshot so a slow or failing peer never holds
// the registry lock.
func (r *Registry) Snapshot() map[string]Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]Conn, len(r.conns))
	for token, conn := range r.conns {
		snapshot[token] = conn
	}
	return snapshot
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
