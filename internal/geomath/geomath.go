package geomath

import (
	"fmt"
	"math"

	"github.com/example/driver-agent/internal/agenterr"
	"github.com/example/driver-agent/internal/models"
)

const (
	earthRadiusMeters = 6371000.0
	metersPerMile     = 1609.344

	// DefaultSpeedKph is the assumed city speed when config does not
	// override it.
	DefaultSpeedKph = 25.0
)

// FareRates holds the per-trip pricing constants.
type FareRates struct {
	Base      float64
	PerMile   float64
	PerMinute float64
}

// DefaultFareRates mirrors the production defaults.
func DefaultFareRates() FareRates {
	return FareRates{Base: 5.00, PerMile: 2.50, PerMinute: 0.25}
}

// Distance returns the great-circle distance between a and b in meters.
// NaN or out-of-range coordinates yield a validation error, never a
// silent zero.
func Distance(a, b models.Coord) (float64, error) {
	if err := ValidatePoint(a); err != nil {
		return math.NaN(), err
	}
	if err := ValidatePoint(b); err != nil {
		return math.NaN(), err
	}
	return haversine(a.Lat, a.Lon, b.Lat, b.Lon), nil
}

// ValidatePoint rejects NaN or out-of-range coordinates.
func ValidatePoint(c models.Coord) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return agenterr.Validation("geomath.distance", fmt.Errorf("NaN coordinate"))
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return agenterr.Validation("geomath.distance", fmt.Errorf("coordinate out of range: %.4f,%.4f", c.Lat, c.Lon))
	}
	return nil
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// ETAMinutes converts a distance into whole minutes at the assumed
// speed, rounding up so short hops never show "0 min".
func ETAMinutes(distanceMeters, speedKph float64) int {
	if speedKph <= 0 {
		speedKph = DefaultSpeedKph
	}
	km := distanceMeters / 1000.0
	return int(math.Ceil(km / speedKph * 60.0))
}

// Miles converts meters to statute miles for the fare formula.
func Miles(meters float64) float64 { return meters / metersPerMile }

// EstimateFare applies base + distance + time pricing, rounded to
// cents.
func EstimateFare(distanceMiles float64, etaMinutes int, r FareRates) float64 {
	fare := r.Base + distanceMiles*r.PerMile + float64(etaMinutes)*r.PerMinute
	return math.Round(fare*100) / 100
}

// QuoteFor computes the presentation-time quote for an offer from the
// driver's position. Returns a validation error on malformed
// coordinates; the caller discards the offer rather than guessing.
func QuoteFor(pos models.Coord, offer models.RideOffer, speedKph float64, rates FareRates) (models.Quote, error) {
	d, err := Distance(pos, offer.Pickup)
	if err != nil {
		return models.Quote{}, err
	}
	eta := ETAMinutes(d, speedKph)
	fare := EstimateFare(Miles(d), eta, rates)
	return models.Quote{DistanceMeters: d, ETAMinutes: eta, FareEstimate: fare, PositionFix: true}, nil
}
