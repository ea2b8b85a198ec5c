// Package session provides session management for the spawn relay.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Cryptographically-unpredictable token generation
//   - Idle-based session expiry
//   - Concurrent access control
//
// Core Types:
//
// Store is the session store that owns the set of issued tokens.
// Session represents an individual session with its creation and
// last-accessed timestamps.
//
// Session Tokens:
//
// Tokens are opaque UUIDv4 strings. A token, once issued, uniquely
// identifies at most one session until it is ended or expires. Tokens
// carry no meaning beyond possession: whoever holds the token controls
// the session.
//
// Expiry:
//
// Sessions expire after staying idle longer than the configured TTL.
// Validity checks apply the TTL passively, so an expired session is
// rejected even before the periodic Sweep reclaims it. A TTL of zero
// disables expiry. The clock is injected so expiry is testable.
//
// Concurrency:
//
// The store is safe for concurrent use. Multiple goroutines can start,
// end, and validate sessions simultaneously; internal locking keeps the
// token set consistent.
//
// Usage:
//
//	store := session.NewStore(session.DefaultTTL)
//
//	token := store.Start()
//
//	if store.IsValid(token) {
//		// relay a command
//	}
//
//	store.End(token)
package session
