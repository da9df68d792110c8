package session

import (
	"log"
	"time"
)

// Reaper periodically sweeps the registry for sessions past idle timeout.
type Reaper struct {
	registry *Registry
	idle     time.Duration
	interval time.Duration
	stop     chan struct{}
}

// NewReaper builds a reaper that sweeps registry once per interval,
// destroying sessions idle longer than idleTimeout.
func NewReaper(registry *Registry, idleTimeout, interval time.Duration) *Reaper {
	return &Reaper{
		registry: registry,
		idle:     idleTimeout,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Run blocks, sweeping on each tick until Stop is called. Call it in its own
// goroutine.
func (r *Reaper) Run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if destroyed := r.registry.Sweep(r.idle); len(destroyed) > 0 {
				log.Printf("session: idle reaper destroyed %d session(s)", len(destroyed))
			}
		case <-r.stop:
			return
		}
	}
}

// Stop terminates the reaper's goroutine.
func (r *Reaper) Stop() {
	close(r.stop)
}
