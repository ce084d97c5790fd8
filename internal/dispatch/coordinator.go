// Package dispatch wires inbound ride offers to per-offer controllers
// and routes decisions back out. At most one offer is ever active; the
// newest inbound offer waits in a single pending slot.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/example/driver-agent/internal/journal"
	"github.com/example/driver-agent/internal/models"
	"github.com/example/driver-agent/internal/observability"
	"github.com/example/driver-agent/internal/offer"
	"github.com/example/driver-agent/internal/realtime"
)

// Channel is the slice of the realtime channel the coordinator needs.
type Channel interface {
	Subscribe(e realtime.Event, h realtime.Handler) int
	Unsubscribe(e realtime.Event, id int)
	Publish(e realtime.Event, payload any)
}

// PositionSource provides the driver position captured at offer
// presentation.
type PositionSource interface {
	Latest() (models.DriverPosition, bool)
}

// Decider confirms terminal decisions with the backend over HTTP,
// best-effort alongside the channel publication. Satisfied by the API
// client.
type Decider interface {
	AcceptRide(ctx context.Context, offerID string) error
	RejectRide(ctx context.Context, offerID string, reason models.RejectReason) error
}

// Coordinator owns the active-offer slot. One per agent.
type Coordinator struct {
	ch      Channel
	pos     PositionSource
	journal journal.Journal
	decider Decider
	cfg     offer.Config
	logger  *slog.Logger

	mu         sync.Mutex
	active     *offer.Controller
	presenting bool // slot claimed while a controller is being built
	pending    *models.RideOffer
	closed     bool
	rideStatus string

	subRequest int
	subStatus  int
}

func NewCoordinator(ch Channel, pos PositionSource, jnl journal.Journal, decider Decider, cfg offer.Config, logger *slog.Logger) *Coordinator {
	return &Coordinator{ch: ch, pos: pos, journal: jnl, decider: decider, cfg: cfg, logger: logger}
}

// Start subscribes to the inbound events. Call once.
func (c *Coordinator) Start() {
	c.subRequest = c.ch.Subscribe(realtime.EventRideRequest, c.handleRideRequest)
	c.subStatus = c.ch.Subscribe(realtime.EventRideStatus, c.handleRideStatus)
}

// Close cancels the active countdown, drops the pending slot and
// detaches from the channel.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	active := c.active
	c.active = nil
	c.pending = nil
	c.mu.Unlock()

	c.ch.Unsubscribe(realtime.EventRideRequest, c.subRequest)
	c.ch.Unsubscribe(realtime.EventRideStatus, c.subStatus)
	if active != nil {
		active.Cancel()
	}
}

// Accept forwards the driver's acceptance to the active controller.
func (c *Coordinator) Accept() error {
	ctrl, err := c.activeController()
	if err != nil {
		return err
	}
	return ctrl.Accept()
}

// Reject forwards an explicit rejection to the active controller.
func (c *Coordinator) Reject() error {
	ctrl, err := c.activeController()
	if err != nil {
		return err
	}
	return ctrl.Reject()
}

// ErrNoActiveOffer is returned by Accept/Reject when nothing is under
// evaluation.
var ErrNoActiveOffer = errNoActive{}

type errNoActive struct{}

func (errNoActive) Error() string { return "no active offer" }

func (c *Coordinator) activeController() (*offer.Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil, ErrNoActiveOffer
	}
	return c.active, nil
}

// Active returns the offer under evaluation, its quote and the seconds
// remaining, for the diagnostics API.
func (c *Coordinator) Active() (models.RideOffer, models.Quote, int, bool) {
	c.mu.Lock()
	ctrl := c.active
	c.mu.Unlock()
	if ctrl == nil {
		return models.RideOffer{}, models.Quote{}, 0, false
	}
	return ctrl.Offer(), ctrl.Quote(), ctrl.Remaining(), true
}

// RideStatus reports the last pushed status for the current ride.
func (c *Coordinator) RideStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rideStatus
}

func (c *Coordinator) handleRideStatus(payload json.RawMessage) {
	var upd struct {
		RideID string `json:"ride_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &upd); err != nil {
		c.logger.Warn("malformed ride status update", "error", err)
		return
	}
	c.mu.Lock()
	c.rideStatus = upd.Status
	c.mu.Unlock()
	c.logger.Info("ride status update", "ride_id", upd.RideID, "status", upd.Status)
}

func (c *Coordinator) handleRideRequest(payload json.RawMessage) {
	observability.OffersReceived.Inc()
	var o models.RideOffer
	if err := json.Unmarshal(payload, &o); err != nil {
		observability.OffersDiscarded.Inc()
		c.logger.Warn("malformed ride offer discarded", "error", err)
		return
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.active != nil || c.presenting {
		// single pending slot, last one wins
		prev := c.pending
		c.pending = &o
		c.mu.Unlock()
		if prev != nil {
			c.reportSuperseded(*prev)
		}
		c.logger.Info("offer queued behind active", "offer_id", o.ID)
		return
	}
	c.presenting = true
	c.mu.Unlock()

	c.present(o)
}

// reportSuperseded records the replaced pending offer. Runs outside
// c.mu: the journal write may block on I/O.
func (c *Coordinator) reportSuperseded(o models.RideOffer) {
	d := models.OfferDecision{OfferID: o.ID, Outcome: models.OutcomeSuperseded, DecidedAt: time.Now()}
	observability.OffersDecided.WithLabelValues(string(models.OutcomeSuperseded)).Inc()
	if c.journal != nil {
		if err := c.journal.Record(d); err != nil {
			c.logger.Warn("journal write failed", "offer_id", o.ID, "error", err)
		}
	}
	c.logger.Info("pending offer superseded", "offer_id", o.ID)
}

func (c *Coordinator) present(o models.RideOffer) {
	var pos *models.Coord
	if c.pos != nil {
		if p, ok := c.pos.Latest(); ok {
			pos = &p.Loc
		} else {
			c.logger.Warn("presenting offer without a position fix", "offer_id", o.ID)
		}
	}

	ctrl, err := offer.Present(o, pos, c.cfg, c.onDecision, c.logger)
	if err != nil {
		// malformed offer: discard, keep the coordinator alive, let the
		// pending slot move up
		observability.OffersDiscarded.Inc()
		c.logger.Warn("offer discarded", "offer_id", o.ID, "error", err)
		c.mu.Lock()
		c.presenting = false
		c.mu.Unlock()
		c.promotePending()
		return
	}

	c.mu.Lock()
	c.presenting = false
	if c.closed {
		c.mu.Unlock()
		ctrl.Cancel()
		return
	}
	c.active = ctrl
	c.mu.Unlock()
	c.logger.Info("offer presented", "offer_id", o.ID,
		"distance_m", ctrl.Quote().DistanceMeters, "eta_min", ctrl.Quote().ETAMinutes, "fare", ctrl.Quote().FareEstimate)
}

func (c *Coordinator) onDecision(d models.OfferDecision) {
	c.mu.Lock()
	var presentedAt time.Time
	if c.active != nil && c.active.Offer().ID == d.OfferID {
		presentedAt = c.active.PresentedAt()
		c.active = nil
	}
	c.mu.Unlock()

	observability.OffersDecided.WithLabelValues(string(d.Outcome)).Inc()
	if !presentedAt.IsZero() {
		observability.DecisionSeconds.Observe(time.Since(presentedAt).Seconds())
	}
	if c.journal != nil {
		if err := c.journal.Record(d); err != nil {
			c.logger.Warn("journal write failed", "offer_id", d.OfferID, "error", err)
		}
	}
	c.publishDecision(d)
	c.promotePending()
}

func (c *Coordinator) publishDecision(d models.OfferDecision) {
	switch d.Outcome {
	case models.OutcomeAccepted:
		c.ch.Publish(realtime.EventRideAccepted, map[string]string{"offer_id": d.OfferID})
		if c.decider != nil {
			go c.confirmHTTP(d)
		}
	case models.OutcomeRejected, models.OutcomeExpired:
		c.ch.Publish(realtime.EventRideRejected, map[string]string{
			"offer_id": d.OfferID,
			"reason":   string(d.Reason),
		})
		if c.decider != nil {
			go c.confirmHTTP(d)
		}
	}
}

// confirmHTTP mirrors the decision to the HTTP API so the backend sees
// it even if the channel frame is lost. The executor inside the client
// handles retries.
func (c *Coordinator) confirmHTTP(d models.OfferDecision) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	var err error
	if d.Outcome == models.OutcomeAccepted {
		err = c.decider.AcceptRide(ctx, d.OfferID)
	} else {
		err = c.decider.RejectRide(ctx, d.OfferID, d.Reason)
	}
	if err != nil {
		c.logger.Warn("decision confirmation failed", "offer_id", d.OfferID, "error", err)
	}
}

func (c *Coordinator) promotePending() {
	c.mu.Lock()
	if c.closed || c.active != nil || c.presenting || c.pending == nil {
		c.mu.Unlock()
		return
	}
	next := *c.pending
	c.pending = nil
	c.presenting = true
	c.mu.Unlock()
	c.present(next)
}
