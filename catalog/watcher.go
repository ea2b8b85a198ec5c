package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultPollInterval is how often the watcher checks the catalog file.
const DefaultPollInterval = 2 * time.Second

// Watcher polls the catalog file and invokes a callback with a fresh
// snapshot whenever the file's size or modification time changes.
type Watcher struct {
	store    *Store
	interval time.Duration
	clock    clockwork.Clock
	onChange func(json.RawMessage)

	lastSize int64
	lastMod  int64
	seen     bool
}

// NewWatcher creates a watcher that calls onChange with the new catalog
// document after every detected mutation.
func NewWatcher(store *Store, interval time.Duration, onChange func(json.RawMessage)) *Watcher {
	return NewWatcherWithClock(store, interval, clockwork.NewRealClock(), onChange)
}

// NewWatcherWithClock creates a watcher with an injected clock.
func NewWatcherWithClock(store *Store, interval time.Duration, clock clockwork.Clock, onChange func(json.RawMessage)) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		store:    store,
		interval: interval,
		clock:    clock,
		onChange: onChange,
	}
}

// Run polls until ctx is canceled. It blocks, so callers start it in
// its own goroutine. The first observation only primes the baseline;
// connected clients already received the initial push on attach.
func (w *Watcher) Run(ctx context.Context) {
	// Prime the baseline so startup does not count as a change.
	w.check(ctx, false)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			w.check(ctx, true)
		}
	}
}

// check compares the file's stat against the last observation and, when
// notify is set, reads and publishes the document on change. Stat and
// read errors are logged and skipped; a missing or torn file must never
// stop the watcher.
func (w *Watcher) check(ctx context.Context, notify bool) {
	size, mod, err := w.store.Stat()
	if err != nil {
		return
	}

	changed := !w.seen || size != w.lastSize || mod != w.lastMod
	w.lastSize = size
	w.lastMod = mod
	w.seen = true

	if !changed || !notify {
		return
	}

	doc, err := w.store.Read(ctx)
	if err != nil {
		if !errors.Is(err, ErrCatalogNotFound) {
			log.Printf("Catalog changed but could not be read: %v", err)
		}
		return
	}

	w.onChange(doc)
}
