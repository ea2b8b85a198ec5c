// Package service defines the relay's business operations.
//
// The service package implements:
//   - RelayService interface for all transports (HTTP, WebSocket, MCP)
//   - Point-to-point command dispatch to a session's connection
//   - Catalog fan-out broadcast to every registered connection
//   - The relay's error taxonomy and tagged wire message types
//
// Architecture:
//
// RelayService sits between the transports and the core stores. The
// HTTP API, the WebSocket hub, and the MCP transport all talk to this
// interface; the implementation composes the session store, the
// connection registry, and the catalog store, which are injected at
// construction.
//
// Delivery Semantics:
//
// Dispatch is at-most-once. A command gets exactly one send attempt; a
// failed write unregisters the presumed-dead connection and reports
// ErrDeliveryFailed. Broadcast iterates a snapshot of the registry with
// per-connection error containment, so one bad peer never blocks the
// rest.
//
// Wire Messages:
//
// Messages are discriminated by their tag field rather than free-form
// key lookup: UpdateMessage carries {"type":"update","items":...} and
// SpawnCommand carries {"action":"spawnItem","itemId":...,"quantity":...}.
package service
