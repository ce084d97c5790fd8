package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RideOffer is a ride proposal presented to this driver for a bounded
// decision window. Immutable once created; owned by the controller
// evaluating it.
type RideOffer struct {
	ID          string    `json:"offer_id"`
	RiderID     string    `json:"rider_id"`
	Pickup      Coord     `json:"pickup"`
	Destination *Coord    `json:"destination,omitempty"`
	FareOffered *float64  `json:"fare,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Outcome is the terminal disposition of an offer.
type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeRejected   Outcome = "rejected"
	OutcomeExpired    Outcome = "expired"
	OutcomeSuperseded Outcome = "superseded"
)

// RejectReason distinguishes an explicit driver rejection from a
// countdown timeout; downstream acceptance-rate metrics treat them
// differently.
type RejectReason string

const (
	RejectByUser    RejectReason = "user"
	RejectByTimeout RejectReason = "timeout"
)

// OfferDecision is produced exactly once per offer.
type OfferDecision struct {
	OfferID   string       `json:"offer_id"`
	Outcome   Outcome      `json:"outcome"`
	Reason    RejectReason `json:"reason,omitempty"`
	DecidedAt time.Time    `json:"decided_at"`
}

// Quote is the distance/eta/fare estimate computed once when an offer
// is presented, from the driver position at presentation time.
type Quote struct {
	DistanceMeters float64 `json:"distance_meters"`
	ETAMinutes     int     `json:"eta_minutes"`
	FareEstimate   float64 `json:"fare_estimate"`

	// PositionFix is false when no driver position was known at
	// presentation time; zero estimates then mean "unknown", not "at
	// the pickup".
	PositionFix bool `json:"position_fix"`
}

// DriverPosition is the latest known location. Single writer (the
// location tracker), snapshot reads everywhere else.
type DriverPosition struct {
	Loc     Coord     `json:"loc"`
	Updated time.Time `json:"updated"`
}

// AvailabilityPhase tracks the online/offline toggle, including the
// transitional phases while a backend confirmation is in flight.
type AvailabilityPhase string

const (
	Offline      AvailabilityPhase = "offline"
	GoingOnline  AvailabilityPhase = "going_online"
	Online       AvailabilityPhase = "online"
	GoingOffline AvailabilityPhase = "going_offline"
)

// AvailabilityState pairs the phase with a monotonically increasing
// version; server acks carrying an older version are stale and dropped.
type AvailabilityState struct {
	Phase   AvailabilityPhase `json:"phase"`
	Version uint64            `json:"version"`
}

type ConnState string

const (
	Disconnected ConnState = "disconnected"
	Connecting   ConnState = "connecting"
	Connected    ConnState = "connected"
)

// ConnectionState is owned by the realtime channel and observed
// read-only by everything else.
type ConnectionState struct {
	State     ConnState `json:"state"`
	LastError string    `json:"last_error,omitempty"`
}

// DriverSession is the explicit identity handle passed to components at
// construction; refreshed through an explicit update, never mutated
// from arbitrary call sites.
type DriverSession struct {
	DriverID string
	Token    string
}

// Present reports whether a driver identity is available to act with.
func (s DriverSession) Present() bool { return s.DriverID != "" && s.Token != "" }

type Ride struct {
	ID     string `json:"ride_id"`
	Status string `json:"status"` // accepted, arrived, ongoing, completed, canceled
}

type Profile struct {
	DriverID string  `json:"driver_id"`
	Name     string  `json:"name"`
	Rating   float64 `json:"rating"`
	Vehicle  string  `json:"vehicle"`
}

type EarningsSummary struct {
	Period     string  `json:"period"`
	Trips      int     `json:"trips"`
	GrossUSD   float64 `json:"gross_usd"`
	OnlineMins int     `json:"online_minutes"`
}
