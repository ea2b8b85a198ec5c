// Package catalog provides access to the shared item catalog file and
// change detection over it.
//
// The catalog (info.json) is the state document broadcast to every
// connected client. It is owned externally: admin tooling writes it,
// this package only reads consistent snapshots. Reads are gated on
// json.Valid so a half-written file is never published.
//
// Change detection is poll-based. Watcher compares the file's size and
// modification time on a fixed interval and invokes the broadcast
// callback with a fresh snapshot when either differs. The clock is
// injected so the polling loop is testable with a fake ticker.
package catalog
