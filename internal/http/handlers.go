package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/driver-agent/internal/agenterr"
	"github.com/example/driver-agent/internal/dispatch"
	"github.com/example/driver-agent/internal/models"
)

// AvailabilityController is the slice of the synchronizer the local
// API drives.
type AvailabilityController interface {
	State() models.AvailabilityState
	GoOnline(ctx context.Context) error
	GoOffline(ctx context.Context) error
	Toggle(ctx context.Context) error
}

// OfferView exposes the coordinator's active slot.
type OfferView interface {
	Active() (models.RideOffer, models.Quote, int, bool)
	Accept() error
	Reject() error
	RideStatus() string
}

// ConnView exposes the realtime connection state read-only.
type ConnView interface {
	State() models.ConnectionState
}

// PositionView exposes the latest location snapshot and accepts
// updates from the platform location provider.
type PositionView interface {
	Latest() (models.DriverPosition, bool)
	Update(pos models.DriverPosition)
}

// PayoutInitiator triggers an instant cash-out. Nil when Stripe is not
// configured.
type PayoutInitiator interface {
	CashOut(ctx context.Context, amountCents int64, currency string) (string, error)
}

// Server is the agent's local diagnostics and control surface. It
// binds to localhost in production; nothing here is reachable from the
// network at large.
type Server struct {
	avail   AvailabilityController
	offers  OfferView
	conn    ConnView
	pos     PositionView
	payouts PayoutInitiator
	logger  *slog.Logger
	mux     *mux.Router
}

func NewServer(avail AvailabilityController, offers OfferView, conn ConnView, pos PositionView, payouts PayoutInitiator, logger *slog.Logger) *Server {
	s := &Server{
		avail:   avail,
		offers:  offers,
		conn:    conn,
		pos:     pos,
		payouts: payouts,
		logger:  logger,
		mux:     mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())

	s.mux.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.mux.HandleFunc("/availability/online", s.handleAvailability(func(ctx context.Context) error { return s.avail.GoOnline(ctx) })).Methods("POST")
	s.mux.HandleFunc("/availability/offline", s.handleAvailability(func(ctx context.Context) error { return s.avail.GoOffline(ctx) })).Methods("POST")
	s.mux.HandleFunc("/availability/toggle", s.handleAvailability(func(ctx context.Context) error { return s.avail.Toggle(ctx) })).Methods("POST")
	s.mux.HandleFunc("/offer/accept", s.handleOfferAction(func() error { return s.offers.Accept() })).Methods("POST")
	s.mux.HandleFunc("/offer/reject", s.handleOfferAction(func() error { return s.offers.Reject() })).Methods("POST")
	s.mux.HandleFunc("/location", s.handleLocation).Methods("POST")
	s.mux.HandleFunc("/payouts", s.handlePayout).Methods("POST")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type statusResponse struct {
	Availability models.AvailabilityState `json:"availability"`
	Connection   models.ConnectionState   `json:"connection"`
	RideStatus   string                   `json:"ride_status,omitempty"`
	Position     *models.DriverPosition   `json:"position,omitempty"`
	ActiveOffer  *activeOffer             `json:"active_offer,omitempty"`
}

type activeOffer struct {
	Offer     models.RideOffer `json:"offer"`
	Quote     models.Quote     `json:"quote"`
	Remaining int              `json:"remaining_seconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Availability: s.avail.State(),
		Connection:   s.conn.State(),
		RideStatus:   s.offers.RideStatus(),
	}
	if p, ok := s.pos.Latest(); ok {
		resp.Position = &p
	}
	if o, q, remaining, ok := s.offers.Active(); ok {
		resp.ActiveOffer = &activeOffer{Offer: o, Quote: q, Remaining: remaining}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAvailability(op func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.avail.State())
	}
}

func (s *Server) handleOfferAction(op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var pos models.DriverPosition
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		http.Error(w, "invalid position", http.StatusBadRequest)
		return
	}
	s.pos.Update(pos)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePayout(w http.ResponseWriter, r *http.Request) {
	if s.payouts == nil {
		http.Error(w, "payouts not configured", http.StatusNotImplemented)
		return
	}
	var req struct {
		AmountCents int64  `json:"amount_cents"`
		Currency    string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AmountCents <= 0 {
		http.Error(w, "invalid payout request", http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}
	id, err := s.payouts.CashOut(r.Context(), req.AmountCents, req.Currency)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"payout_id": id})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, agenterr.ErrAuth):
		status = http.StatusUnauthorized
	case errors.Is(err, agenterr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, agenterr.ErrNetwork):
		status = http.StatusServiceUnavailable
	case errors.Is(err, agenterr.ErrAlreadyResolved), errors.Is(err, dispatch.ErrNoActiveOffer):
		status = http.StatusConflict
	}
	s.logger.Warn("request failed", "status", status, "error", err)
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
