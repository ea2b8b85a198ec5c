package service

import (
	"encoding/json"
	"errors"
	"time"
)

// Error taxonomy for relay operations. The transports map these to
// structured responses; none of them are fatal to the serving task.
var (
	// ErrSessionInvalid means the token does not identify a live session.
	ErrSessionInvalid = errors.New("invalid or expired session")

	// ErrSessionNotFound means an end-session request named an unknown token.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoActiveConnection means the session exists but no duplex peer
	// is connected. This is an expected outcome, not a server failure.
	ErrNoActiveConnection = errors.New("no active connection for session")

	// ErrDeliveryFailed means the write to the peer failed; the stale
	// connection has been unregistered.
	ErrDeliveryFailed = errors.New("command delivery failed")

	// ErrMalformedCommand means the command was missing its item id.
	ErrMalformedCommand = errors.New("malformed command")
)

// SessionInfo describes one session for the control surface.
type SessionInfo struct {
	Token          string    `json:"uuid"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Connected      bool      `json:"connected"`
}

// SpawnResult echoes the command actually dispatched so the caller can
// confirm what was sent.
type SpawnResult struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// SpawnCommand is the wire message relayed to the single connection
// registered under the target token.
type SpawnCommand struct {
	Action   string `json:"action"`
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// UpdateMessage is the wire message broadcast to every connection when
// the shared catalog changes, and pushed once on connect.
type UpdateMessage struct {
	Type  string          `json:"type"`
	Items json.RawMessage `json:"items"`
}

// NewSpawnCommand builds a tagged spawnItem command.
func NewSpawnCommand(itemID string, quantity int) SpawnCommand {
	return SpawnCommand{Action: "spawnItem", ItemID: itemID, Quantity: quantity}
}

// NewUpdateMessage wraps a catalog document in the update envelope.
func NewUpdateMessage(items json.RawMessage) UpdateMessage {
	return UpdateMessage{Type: "update", Items: items}
}
