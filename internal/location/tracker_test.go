package location

import (
	"sync"
	"testing"
	"time"

	"github.com/example/driver-agent/internal/models"
)

type recordingForwarder struct {
	mu   sync.Mutex
	seen []models.DriverPosition
}

func (r *recordingForwarder) Forward(p models.DriverPosition) {
	r.mu.Lock()
	r.seen = append(r.seen, p)
	r.mu.Unlock()
}

func TestLatestBeforeAnyUpdate(t *testing.T) {
	tr := NewTracker(nil)
	if _, ok := tr.Latest(); ok {
		t.Fatal("expected no position before first update")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	fwd := &recordingForwarder{}
	tr := NewTracker(fwd)
	p := models.DriverPosition{Loc: models.Coord{Lat: 1, Lon: 2}, Updated: time.Now()}
	tr.Update(p)
	got, ok := tr.Latest()
	if !ok || got.Loc != p.Loc {
		t.Fatalf("snapshot mismatch: ok=%v got=%+v", ok, got)
	}
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	if len(fwd.seen) != 1 {
		t.Fatalf("expected one forwarded update, got %d", len(fwd.seen))
	}
}

func TestStaleUpdateIgnored(t *testing.T) {
	tr := NewTracker(nil)
	now := time.Now()
	tr.Update(models.DriverPosition{Loc: models.Coord{Lat: 5, Lon: 5}, Updated: now})
	tr.Update(models.DriverPosition{Loc: models.Coord{Lat: 9, Lon: 9}, Updated: now.Add(-time.Minute)})
	got, _ := tr.Latest()
	if got.Loc.Lat != 5 {
		t.Fatalf("stale update clobbered snapshot: %+v", got)
	}
}

func TestZeroTimestampFilledIn(t *testing.T) {
	tr := NewTracker(nil)
	tr.Update(models.DriverPosition{Loc: models.Coord{Lat: 1, Lon: 1}})
	got, _ := tr.Latest()
	if got.Updated.IsZero() {
		t.Fatal("timestamp not filled in")
	}
}
