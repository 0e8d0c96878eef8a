package attendance

import (
	"github.com/kerjalabs/attendance-backend-go/internal/domain/workplace"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/geo"
)

// zoneMatch is the outcome of checking a punch location against a
// workplace's geofence zones.
type zoneMatch struct {
	// Zone is the containing zone, or the nearest one when outside all.
	Zone workplace.GeofenceZone
	// Inside reports whether any zone contains the point. Containment is
	// boundary-inclusive: a point exactly on the radius is inside.
	Inside bool
	// DistanceMeters is the distance to the matched zone's center.
	DistanceMeters float64
	// GapMeters is how far beyond the matched zone's boundary the point
	// lies. Zero when inside.
	GapMeters float64
}

// matchZones resolves which geofence zone a punch belongs to. When several
// zones contain the point the smallest radius wins, so a punch inside a
// loading dock nested in a campus zone attributes to the dock. When no zone
// contains the point the zone with the smallest boundary gap is reported.
// zones must be non-empty; a workplace without zones skips geofencing.
func matchZones(point geo.Coordinate, zones []workplace.GeofenceZone) (zoneMatch, error) {
	var best zoneMatch
	found := false

	for _, zone := range zones {
		center := geo.Coordinate{Latitude: zone.Latitude, Longitude: zone.Longitude}
		dist, err := geo.DistanceMeters(point, center)
		if err != nil {
			return zoneMatch{}, err
		}

		match := zoneMatch{
			Zone:           zone,
			Inside:         dist <= zone.RadiusMeters,
			DistanceMeters: dist,
		}
		if !match.Inside {
			match.GapMeters = dist - zone.RadiusMeters
		}

		if !found {
			best = match
			found = true
			continue
		}

		switch {
		case match.Inside && !best.Inside:
			best = match
		case match.Inside && best.Inside && zone.RadiusMeters < best.Zone.RadiusMeters:
			best = match
		case !match.Inside && !best.Inside && match.GapMeters < best.GapMeters:
			best = match
		}
	}

	return best, nil
}
