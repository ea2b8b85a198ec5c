// Package api implements the HTTP control plane for the spawn relay.
//
// The api package provides:
//   - Session lifecycle endpoints (start/end)
//   - The token-addressed spawn relay endpoint
//   - Catalog reads for the web remote
//   - The WebSocket upgrade gate
//   - Static file fallback for the remote UI
//
// Endpoints:
//
//	POST /session/start
//	  -> 200 {"UUID": "<token>"}
//
//	POST /session/end        body {"UUID": "<token>"}
//	  -> 200 {"success": true}
//	  -> 404 {"success": false, "message": "Session not found"}
//
//	GET /{token}/spawn?item=<id>&quantity=<n>
//	  -> 200 {"success": true,  "message": "Item <id> (x<n>) spawned."}
//	  -> 400 {"success": false, "message": "Missing item id"}
//	  -> 403 {"success": false, "message": "Invalid or expired session"}
//	  -> 404 {"success": false, "message": "No active WebSocket connection for this session."}
//	  quantity defaults to 1 when absent, unparseable, or < 1.
//
//	GET /api/items, GET /info.json
//	  -> raw catalog JSON, or 500 {"error": "Failed to read item list."}
//
//	GET /api/sessions, GET /healthz
//	  -> ops visibility
//
//	GET /ws?UUID=<token>
//	  -> WebSocket upgrade; untokened or invalid-token handshakes are
//	     rejected with 403 before the upgrade.
//
// All failures are structured JSON with a stable success boolean; no
// relay failure ever tears down the HTTP serving task or another
// session's connection.
//
// The server is an http.Handler built on gorilla/mux. Dependencies
// (relay service, websocket hub) are injected at construction; the
// package holds no global state.
package api
