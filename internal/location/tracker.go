// Package location holds the latest driver position and forwards it to
// the telemetry pipeline. Single writer, snapshot readers.
package location

import (
	"sync"
	"time"

	"github.com/example/driver-agent/internal/models"
)

// Tracker keeps the most recent DriverPosition. The platform location
// provider is the only writer; everyone else reads snapshots.
type Tracker struct {
	mu   sync.RWMutex
	pos  models.DriverPosition
	seen bool

	forward Forwarder
}

// Forwarder receives each accepted position update, best-effort.
type Forwarder interface {
	Forward(pos models.DriverPosition)
}

func NewTracker(forward Forwarder) *Tracker {
	return &Tracker{forward: forward}
}

// Update replaces the latest snapshot. Out-of-order provider updates
// (older timestamp than the current snapshot) are ignored.
func (t *Tracker) Update(pos models.DriverPosition) {
	if pos.Updated.IsZero() {
		pos.Updated = time.Now()
	}
	t.mu.Lock()
	if t.seen && pos.Updated.Before(t.pos.Updated) {
		t.mu.Unlock()
		return
	}
	t.pos = pos
	t.seen = true
	t.mu.Unlock()

	if t.forward != nil {
		t.forward.Forward(pos)
	}
}

// Latest returns the current snapshot; ok is false before the first
// provider update.
func (t *Tracker) Latest() (models.DriverPosition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pos, t.seen
}
