package geo

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidCoordinate is returned for NaN, infinite, or out-of-range coordinates.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const earthRadiusMeters = 6371000

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that both components are finite and inside
// [-90,90] / [-180,180].
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) ||
		math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return ErrInvalidCoordinate
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

// DistanceMeters returns the great-circle distance between two points in meters.
func DistanceMeters(from, to Coordinate) (float64, error) {
	if err := from.Validate(); err != nil {
		return 0, err
	}
	if err := to.Validate(); err != nil {
		return 0, err
	}
	return haversineMeters(from, to), nil
}

// SpeedMetersPerSecond returns the straight-line speed implied by moving from
// one point to the other in the given elapsed time. Non-positive elapsed time
// with any displacement yields +Inf so callers can treat it as implausible.
func SpeedMetersPerSecond(from, to Coordinate, elapsed time.Duration) (float64, error) {
	dist, err := DistanceMeters(from, to)
	if err != nil {
		return 0, err
	}
	if elapsed <= 0 {
		if dist == 0 {
			return 0, nil
		}
		return math.Inf(1), nil
	}
	return dist / elapsed.Seconds(), nil
}

// BearingDegrees returns the initial great-circle bearing from one point to
// the other, in degrees clockwise from true north, normalized to [0,360).
func BearingDegrees(from, to Coordinate) (float64, error) {
	if err := from.Validate(); err != nil {
		return 0, err
	}
	if err := to.Validate(); err != nil {
		return 0, err
	}

	lat1Rad := from.Latitude * (math.Pi / 180.0)
	lat2Rad := to.Latitude * (math.Pi / 180.0)
	dLonRad := (to.Longitude - from.Longitude) * (math.Pi / 180.0)

	y := math.Sin(dLonRad) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(dLonRad)

	deg := math.Atan2(y, x) * (180.0 / math.Pi)
	return math.Mod(deg+360, 360), nil
}

func haversineMeters(from, to Coordinate) float64 {
	dLat := (to.Latitude - from.Latitude) * (math.Pi / 180.0)
	dLon := (to.Longitude - from.Longitude) * (math.Pi / 180.0)

	lat1Rad := from.Latitude * (math.Pi / 180.0)
	lat2Rad := to.Latitude * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1Rad)*math.Cos(lat2Rad)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
