// Package mcp exposes the spawn relay over the Model Context Protocol.
//
// The package is a thin proxy: every tool call is translated into a
// request against the REST API, so MCP clients and web remotes always
// observe identical behavior. It supports two modes:
//
//   - HTTP: mounted at POST /mcp on the main server
//   - stdio: run via the stdio-mcp mode of the binary
//
// Tools: start_session, end_session, list_sessions, spawn_item,
// list_items.
package mcp
