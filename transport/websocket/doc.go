// Package websocket provides the duplex transport for the spawn relay.
//
// The websocket package implements:
//   - Session-aware WebSocket connections
//   - Initial catalog push on connect
//   - Connection lifecycle management against the registry
//   - Single-writer delivery per connection
//
// Architecture:
//
// The Hub accepts upgraded connections and binds each one to its
// session token in the connection registry. Each client connection is
// handled by two dedicated goroutines: readPump detects disconnection,
// writePump is the sole writer to the socket.
//
// Message Protocol:
//
// Messages are JSON-encoded tagged structs:
//   - Catalog push: {"type":"update","items":<catalog>}
//   - Relayed command: {"action":"spawnItem","itemId":"...","quantity":n}
//
// Clients do not speak back over the socket; commands arrive through
// the HTTP control plane and are relayed down the matching connection.
//
// Connection Lifecycle:
//
// 1. Client connects with ?UUID=<token> (validated by the API layer)
// 2. Connection registered, displacing and closing any prior one
// 3. Current catalog pushed once
// 4. Connection receives broadcasts and relayed commands
// 5. Disconnection unregisters this exact connection instance
//
// Concurrency:
//
// The hub supports many concurrent connections. Relay and broadcast
// writes to the same peer are serialized through a buffered send
// channel, and a send never blocks on a slow peer's socket: a full
// buffer fails the send and the peer is treated as dead.
package websocket
