// Package notify is a pluggable, best-effort notifier: a registered Handler
// per backend, with notifications dropped rather than blocking the caller
// when the handler is saturated or not ready.
package notify

import "time"

// Receipt is a single notification to deliver.
type Receipt struct {
	// Username is the account the notification concerns.
	Username string
	// Email is the address to notify, if any.
	Email string
	// What identifies the event, e.g. "welcome".
	What string
	// Timestamp of the event.
	Timestamp time.Time
}

// Handler is implemented by each notification backend.
type Handler interface {
	// Init configures the handler from a backend-specific config string.
	Init(config string) error
	// IsReady reports whether Init succeeded.
	IsReady() bool
	// Push returns the channel the server enqueues receipts onto.
	Push() chan<- *Receipt
	// Stop terminates the handler's background worker.
	Stop()
}

var active Handler

// SetHandler installs the handler used by Notify. A nil handler disables
// notifications entirely.
func SetHandler(h Handler) {
	active = h
}

// Notify enqueues r on the active handler. It never blocks: a full or absent
// handler simply drops the receipt, matching push.Push's discipline.
func Notify(r *Receipt) {
	if active == nil || !active.IsReady() {
		return
	}
	select {
	case active.Push() <- r:
	default:
	}
}

// Stop terminates the active handler, if any.
func Stop() {
	if active != nil && active.IsReady() {
		active.Stop()
	}
}
