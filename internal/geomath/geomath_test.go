package geomath

import (
	"errors"
	"math"
	"testing"

	"github.com/example/driver-agent/internal/agenterr"
	"github.com/example/driver-agent/internal/models"
)

func TestDistanceZero(t *testing.T) {
	d, err := Distance(models.Coord{}, models.Coord{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceOneDegreeAtEquator(t *testing.T) {
	// one degree of longitude at the equator is ~111,195 m
	d, err := Distance(models.Coord{Lat: 0, Lon: 0}, models.Coord{Lat: 0, Lon: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	const want = 111195.0
	if math.Abs(d-want)/want > 0.005 {
		t.Fatalf("expected ~%0.f m (±0.5%%), got %f", want, d)
	}
}

func TestDistanceNaNPropagates(t *testing.T) {
	d, err := Distance(models.Coord{Lat: math.NaN(), Lon: 0}, models.Coord{})
	if !errors.Is(err, agenterr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !math.IsNaN(d) {
		t.Fatalf("expected NaN result, got %f", d)
	}
}

func TestDistanceOutOfRange(t *testing.T) {
	_, err := Distance(models.Coord{Lat: 91, Lon: 0}, models.Coord{})
	if !errors.Is(err, agenterr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestETAMinutesRoundsUp(t *testing.T) {
	// 1 km at 25 kph = 2.4 min -> 3
	if got := ETAMinutes(1000, 25); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	// zero distance stays zero
	if got := ETAMinutes(0, 25); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestETAMinutesDefaultsSpeed(t *testing.T) {
	if got, want := ETAMinutes(25000, 0), 60; got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestEstimateFareDefaults(t *testing.T) {
	// 5.00 + 2.0*2.50 + 10*0.25 = 12.50
	got := EstimateFare(2.0, 10, DefaultFareRates())
	if got != 12.50 {
		t.Fatalf("expected 12.50, got %f", got)
	}
}

func TestEstimateFareRoundsToCents(t *testing.T) {
	got := EstimateFare(1.333, 7, DefaultFareRates())
	if got != math.Round(got*100)/100 {
		t.Fatalf("fare not rounded: %v", got)
	}
}

func TestQuoteForMalformedPickup(t *testing.T) {
	offer := models.RideOffer{ID: "o1", Pickup: models.Coord{Lat: math.NaN(), Lon: 2}}
	_, err := QuoteFor(models.Coord{Lat: 1, Lon: 1}, offer, 25, DefaultFareRates())
	if !errors.Is(err, agenterr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
