// Package availability reconciles the driver's optimistic
// online/offline toggle with the authoritative backend.
package availability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/driver-agent/internal/agenterr"
	"github.com/example/driver-agent/internal/models"
	"github.com/example/driver-agent/internal/observability"
	"github.com/example/driver-agent/internal/realtime"
)

// Confirmer issues the backend confirmation for a toggle. Satisfied by
// the API client; retries and per-attempt deadlines live there.
type Confirmer interface {
	SetAvailability(ctx context.Context, available bool, version uint64, pos *models.DriverPosition) error
}

// Publisher announces settled states to local observers over the
// realtime channel. Satisfied by *realtime.Channel.
type Publisher interface {
	Publish(e realtime.Event, payload any)
}

// PositionSource provides the latest location snapshot, forwarded
// opportunistically with confirmations.
type PositionSource interface {
	Latest() (models.DriverPosition, bool)
}

// Ack is the server acknowledgement payload carried on the realtime
// channel.
type Ack struct {
	Available bool   `json:"available"`
	Version   uint64 `json:"version"`
}

// Synchronizer owns AvailabilityState. Transitions run only along
// Offline→GoingOnline→Online→GoingOffline→Offline; a failed
// confirmation rolls back to the pre-toggle value instead of sticking
// in a transitional phase.
type Synchronizer struct {
	confirm Confirmer
	publish Publisher
	pos     PositionSource
	logger  *slog.Logger

	mu      sync.Mutex
	session models.DriverSession
	state   models.AvailabilityState
	settled models.AvailabilityPhase // last confirmed phase, the rollback target
}

func NewSynchronizer(confirm Confirmer, publish Publisher, pos PositionSource, session models.DriverSession, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		confirm: confirm,
		publish: publish,
		pos:     pos,
		logger:  logger,
		session: session,
		state:   models.AvailabilityState{Phase: models.Offline},
		settled: models.Offline,
	}
}

// UpdateSession refreshes the driver identity after a re-login.
func (s *Synchronizer) UpdateSession(sess models.DriverSession) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

// State returns a read-only snapshot.
func (s *Synchronizer) State() models.AvailabilityState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// GoOnline optimistically enters GoingOnline and confirms with the
// backend. Without a driver identity it fails immediately with an auth
// error and the state stays Offline. While already Online it is a
// no-op.
func (s *Synchronizer) GoOnline(ctx context.Context) error {
	return s.setAvailable(ctx, true)
}

// GoOffline is the symmetric path with the same rollback contract.
func (s *Synchronizer) GoOffline(ctx context.Context) error {
	return s.setAvailable(ctx, false)
}

// Toggle flips away from the last settled state.
func (s *Synchronizer) Toggle(ctx context.Context) error {
	s.mu.Lock()
	want := s.settled != models.Online
	s.mu.Unlock()
	return s.setAvailable(ctx, want)
}

func (s *Synchronizer) setAvailable(ctx context.Context, want bool) error {
	s.mu.Lock()
	if !s.session.Present() {
		s.mu.Unlock()
		observability.AvailabilityToggles.WithLabelValues("auth_denied").Inc()
		return agenterr.Auth("availability.toggle", errors.New("driver identity absent"))
	}
	target := models.Offline
	if want {
		target = models.Online
	}
	if s.state.Phase == target {
		// already there; re-entering a transitional phase would leave
		// the cycle
		s.mu.Unlock()
		return nil
	}
	if want {
		s.state.Phase = models.GoingOnline
	} else {
		s.state.Phase = models.GoingOffline
	}
	s.state.Version++
	version := s.state.Version
	s.mu.Unlock()

	var pos *models.DriverPosition
	if s.pos != nil {
		if p, ok := s.pos.Latest(); ok {
			pos = &p
		}
	}

	err := s.confirm.SetAvailability(ctx, want, version, pos)

	s.mu.Lock()
	if s.state.Version != version {
		// superseded by a newer toggle; that toggle's confirmation
		// governs the state now
		s.mu.Unlock()
		s.logger.Info("toggle confirmation superseded", "version", version)
		return err
	}
	if err != nil {
		s.state.Phase = s.settled
		s.mu.Unlock()
		observability.AvailabilityToggles.WithLabelValues("rolled_back").Inc()
		s.logger.Warn("availability toggle rolled back", "wanted_online", want, "error", err)
		return err
	}
	s.settleLocked(want, version)
	s.mu.Unlock()
	observability.AvailabilityToggles.WithLabelValues("confirmed").Inc()
	return nil
}

// HandleAck applies a server acknowledgement pushed over the realtime
// channel. Acks for a superseded version are stale and discarded.
func (s *Synchronizer) HandleAck(payload json.RawMessage) {
	var ack Ack
	if err := json.Unmarshal(payload, &ack); err != nil {
		s.logger.Warn("malformed availability ack", "error", err)
		return
	}
	s.mu.Lock()
	if ack.Version != s.state.Version {
		s.mu.Unlock()
		s.logger.Info("discarding stale availability ack",
			"ack_version", ack.Version, "current_version", s.state.Version)
		return
	}
	s.settleLocked(ack.Available, ack.Version)
	s.mu.Unlock()
}

// settleLocked commits a confirmed phase and announces it. Caller
// holds s.mu.
func (s *Synchronizer) settleLocked(online bool, version uint64) {
	if online {
		s.state.Phase = models.Online
		observability.DriverOnline.Set(1)
	} else {
		s.state.Phase = models.Offline
		observability.DriverOnline.Set(0)
	}
	s.settled = s.state.Phase
	if s.publish != nil {
		s.publish.Publish(realtime.EventAvailability, Ack{Available: online, Version: version})
	}
}
