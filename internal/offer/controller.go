// Package offer runs the per-offer decision window: one countdown, one
// terminal outcome, no network I/O.
package offer

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/driver-agent/internal/agenterr"
	"github.com/example/driver-agent/internal/geomath"
	"github.com/example/driver-agent/internal/models"
)

// DecisionFn receives the single terminal decision. The owner (the
// dispatch coordinator) publishes it and disposes the controller.
type DecisionFn func(models.OfferDecision)

// Config tunes the decision window. TickInterval is injectable so
// tests never wait out a real 30 seconds.
type Config struct {
	CountdownSeconds int
	TickInterval     time.Duration
	SpeedKph         float64
	Rates            geomath.FareRates
}

func DefaultConfig() Config {
	return Config{
		CountdownSeconds: 30,
		TickInterval:     time.Second,
		SpeedKph:         geomath.DefaultSpeedKph,
		Rates:            geomath.DefaultFareRates(),
	}
}

// Controller owns exactly one RideOffer from presentation to terminal
// state. Accept, Reject and the countdown tick are serialized by one
// mutex; whichever resolves first wins and the rest are no-ops.
type Controller struct {
	offer       models.RideOffer
	quote       models.Quote
	emit        DecisionFn
	logger      *slog.Logger
	presentedAt time.Time
	tick        time.Duration

	mu        sync.Mutex
	resolved  bool
	remaining int
	stop      chan struct{}
}

// Present computes the quote from the driver's position at presentation
// time (never re-computed on tick) and starts the countdown. pos is nil
// when no position fix exists yet; the quote is then marked
// position-less rather than computed from the zero coordinate.
// Malformed coordinates surface a validation error and no controller is
// created.
func Present(o models.RideOffer, pos *models.Coord, cfg Config, emit DecisionFn, logger *slog.Logger) (*Controller, error) {
	if o.ID == "" {
		return nil, agenterr.Validation("offer.present", errors.New("empty offer id"))
	}
	var quote models.Quote
	if pos != nil {
		q, err := geomath.QuoteFor(*pos, o, cfg.SpeedKph, cfg.Rates)
		if err != nil {
			return nil, err
		}
		quote = q
	} else if err := geomath.ValidatePoint(o.Pickup); err != nil {
		return nil, err
	}
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = 30
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	c := &Controller{
		offer:       o,
		quote:       quote,
		emit:        emit,
		logger:      logger,
		presentedAt: time.Now(),
		tick:        cfg.TickInterval,
		remaining:   cfg.CountdownSeconds,
		stop:        make(chan struct{}),
	}
	go c.countdown()
	return c, nil
}

// Offer returns the immutable offer under evaluation.
func (c *Controller) Offer() models.RideOffer { return c.offer }

// Quote returns the presentation-time estimate.
func (c *Controller) Quote() models.Quote { return c.quote }

// PresentedAt reports when the decision window opened.
func (c *Controller) PresentedAt() time.Time { return c.presentedAt }

// Remaining returns the seconds left in the decision window.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Accept resolves the offer in the driver's favor. Valid only while
// presented; afterwards it reports ErrAlreadyResolved without
// re-emitting.
func (c *Controller) Accept() error {
	return c.resolve(models.OfferDecision{
		OfferID: c.offer.ID,
		Outcome: models.OutcomeAccepted,
	})
}

// Reject resolves the offer with an explicit driver rejection.
func (c *Controller) Reject() error {
	return c.resolve(models.OfferDecision{
		OfferID: c.offer.ID,
		Outcome: models.OutcomeRejected,
		Reason:  models.RejectByUser,
	})
}

// Cancel stops the countdown without emitting a decision. Used when
// the coordinator itself is shutting down.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return
	}
	c.resolved = true
	close(c.stop)
}

func (c *Controller) resolve(d models.OfferDecision) error {
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return agenterr.ErrAlreadyResolved
	}
	c.resolved = true
	close(c.stop)
	c.mu.Unlock()

	d.DecidedAt = time.Now()
	c.logger.Info("offer resolved",
		"offer_id", d.OfferID, "outcome", string(d.Outcome), "reason", string(d.Reason))
	c.emit(d)
	return nil
}

func (c *Controller) countdown() {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.mu.Lock()
			if c.resolved {
				c.mu.Unlock()
				return
			}
			c.remaining--
			expired := c.remaining <= 0
			c.mu.Unlock()
			if expired {
				// equivalent in effect to a rejection, but kept
				// distinguishable for acceptance-rate analytics
				_ = c.resolve(models.OfferDecision{
					OfferID: c.offer.ID,
					Outcome: models.OutcomeExpired,
					Reason:  models.RejectByTimeout,
				})
				return
			}
		}
	}
}
