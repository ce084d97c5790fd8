package offer

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/example/driver-agent/internal/agenterr"
	"github.com/example/driver-agent/internal/models"
)

type decisionSink struct {
	mu        sync.Mutex
	decisions []models.OfferDecision
}

func (s *decisionSink) emit(d models.OfferDecision) {
	s.mu.Lock()
	s.decisions = append(s.decisions, d)
	s.mu.Unlock()
}

func (s *decisionSink) all() []models.OfferDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.OfferDecision, len(s.decisions))
	copy(out, s.decisions)
	return out
}

func fastConfig(seconds int) Config {
	cfg := DefaultConfig()
	cfg.CountdownSeconds = seconds
	cfg.TickInterval = 5 * time.Millisecond
	return cfg
}

func testOffer(id string) models.RideOffer {
	return models.RideOffer{
		ID:      id,
		RiderID: "rider-1",
		Pickup:  models.Coord{Lat: 40.7128, Lon: -74.0060},
	}
}

var testPos = models.Coord{Lat: 40.7306, Lon: -73.9866}

func TestAcceptEmitsExactlyOnce(t *testing.T) {
	sink := &decisionSink{}
	c, err := Present(testOffer("o1"), &testPos,fastConfig(30), sink.emit, slog.Default())
	if err != nil {
		t.Fatalf("present failed: %v", err)
	}
	if err := c.Accept(); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if err := c.Accept(); !errors.Is(err, agenterr.ErrAlreadyResolved) {
		t.Fatalf("second accept must report already resolved, got %v", err)
	}
	if err := c.Reject(); !errors.Is(err, agenterr.ErrAlreadyResolved) {
		t.Fatalf("reject after accept must report already resolved, got %v", err)
	}
	ds := sink.all()
	if len(ds) != 1 || ds[0].Outcome != models.OutcomeAccepted {
		t.Fatalf("expected single accepted decision, got %v", ds)
	}
}

func TestRejectCarriesUserReason(t *testing.T) {
	sink := &decisionSink{}
	c, err := Present(testOffer("o2"), &testPos,fastConfig(30), sink.emit, slog.Default())
	if err != nil {
		t.Fatalf("present failed: %v", err)
	}
	if err := c.Reject(); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	ds := sink.all()
	if len(ds) != 1 || ds[0].Outcome != models.OutcomeRejected || ds[0].Reason != models.RejectByUser {
		t.Fatalf("unexpected decision: %v", ds)
	}
}

func TestCountdownExpiresWithTimeoutReason(t *testing.T) {
	sink := &decisionSink{}
	c, err := Present(testOffer("o3"), &testPos,fastConfig(3), sink.emit, slog.Default())
	if err != nil {
		t.Fatalf("present failed: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for len(sink.all()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ds := sink.all()
	if len(ds) != 1 || ds[0].Outcome != models.OutcomeExpired || ds[0].Reason != models.RejectByTimeout {
		t.Fatalf("expected expired/timeout, got %v", ds)
	}
	// late accept is a no-op, nothing re-emitted
	if err := c.Accept(); !errors.Is(err, agenterr.ErrAlreadyResolved) {
		t.Fatalf("accept after expiry must report already resolved, got %v", err)
	}
	if got := sink.all(); len(got) != 1 {
		t.Fatalf("decision emitted more than once: %v", got)
	}
}

func TestAcceptRacesTimeoutOneWinner(t *testing.T) {
	// run several rounds; whichever transition lands first must be the
	// only decision ever emitted
	for i := 0; i < 20; i++ {
		sink := &decisionSink{}
		cfg := fastConfig(1)
		c, err := Present(testOffer("o4"), &testPos,cfg, sink.emit, slog.Default())
		if err != nil {
			t.Fatalf("present failed: %v", err)
		}
		time.Sleep(cfg.TickInterval)
		_ = c.Accept()

		deadline := time.Now().Add(time.Second)
		for len(sink.all()) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(3 * cfg.TickInterval)
		ds := sink.all()
		if len(ds) != 1 {
			t.Fatalf("round %d: expected exactly one decision, got %v", i, ds)
		}
		if ds[0].Outcome != models.OutcomeAccepted && ds[0].Outcome != models.OutcomeExpired {
			t.Fatalf("round %d: impossible outcome %v", i, ds[0])
		}
	}
}

func TestQuoteComputedOnceAtPresentation(t *testing.T) {
	sink := &decisionSink{}
	c, err := Present(testOffer("o5"), &testPos,fastConfig(30), sink.emit, slog.Default())
	if err != nil {
		t.Fatalf("present failed: %v", err)
	}
	defer c.Cancel()
	q := c.Quote()
	if q.DistanceMeters <= 0 || q.ETAMinutes <= 0 || q.FareEstimate <= 0 || !q.PositionFix {
		t.Fatalf("quote not computed: %+v", q)
	}
	time.Sleep(20 * time.Millisecond)
	if c.Quote() != q {
		t.Fatal("quote must not change after presentation")
	}
}

func TestPresentRejectsMalformedCoordinates(t *testing.T) {
	o := testOffer("o6")
	o.Pickup = models.Coord{Lat: math.NaN(), Lon: 0}
	_, err := Present(o, &testPos,fastConfig(30), func(models.OfferDecision) {}, slog.Default())
	if !errors.Is(err, agenterr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPresentRejectsEmptyOfferID(t *testing.T) {
	o := testOffer("")
	_, err := Present(o, &testPos,fastConfig(30), func(models.OfferDecision) {}, slog.Default())
	if !errors.Is(err, agenterr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPresentWithoutPositionFix(t *testing.T) {
	sink := &decisionSink{}
	c, err := Present(testOffer("o8"), nil, fastConfig(30), sink.emit, slog.Default())
	if err != nil {
		t.Fatalf("present failed: %v", err)
	}
	defer c.Cancel()
	q := c.Quote()
	if q.PositionFix {
		t.Fatal("quote must be marked position-less")
	}
	if q.DistanceMeters != 0 || q.FareEstimate != 0 {
		t.Fatalf("position-less quote must not invent estimates: %+v", q)
	}
}

func TestPresentWithoutPositionStillRejectsMalformedPickup(t *testing.T) {
	o := testOffer("o9")
	o.Pickup = models.Coord{Lat: math.NaN(), Lon: 0}
	_, err := Present(o, nil, fastConfig(30), func(models.OfferDecision) {}, slog.Default())
	if !errors.Is(err, agenterr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCancelSuppressesDecision(t *testing.T) {
	sink := &decisionSink{}
	c, err := Present(testOffer("o7"), &testPos,fastConfig(1), sink.emit, slog.Default())
	if err != nil {
		t.Fatalf("present failed: %v", err)
	}
	c.Cancel()
	time.Sleep(50 * time.Millisecond)
	if ds := sink.all(); len(ds) != 0 {
		t.Fatalf("cancelled controller emitted: %v", ds)
	}
}
