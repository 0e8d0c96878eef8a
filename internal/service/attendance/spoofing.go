package attendance

import (
	"time"

	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/geo"
)

// punchPoint is a reported position with its timestamp, used to compare a
// new punch against the user's previous one.
type punchPoint struct {
	Coordinate geo.Coordinate
	At         time.Time
}

// detectSpoofing runs the plausibility rules against a punch reading.
// Rules fire in a fixed order and the first match wins:
//
//  1. reported accuracy below the plausible floor (consumer GPS cannot do
//     sub-meter; a mocked location usually claims it can)
//  2. implied travel speed from the previous punch above the ceiling
//
// Returns the matched flag reason, or "" for a clean reading. The result is
// advisory: a flagged punch still goes through, marked for review.
func detectSpoofing(current punchPoint, accuracyMeters float64, previous *punchPoint, minAccuracy, maxSpeed float64) string {
	if accuracyMeters < minAccuracy {
		return attendance.ReasonImplausibleAccuracy
	}

	if previous != nil {
		dist, err := geo.DistanceMeters(previous.Coordinate, current.Coordinate)
		if err == nil {
			// Elapsed is floored at one second so two near-simultaneous
			// punches do not divide by zero or explode the speed.
			elapsed := current.At.Sub(previous.At).Seconds()
			if elapsed < 1 {
				elapsed = 1
			}
			if dist/elapsed > maxSpeed {
				return attendance.ReasonImplausibleMovement
			}
		}
	}

	return ""
}
