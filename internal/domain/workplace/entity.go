package workplace

import (
	"time"
)

// Workplace is the site an attendance record belongs to. Workplace management
// lives in another system; this service reads the rows it needs.
type Workplace struct {
	ID              string
	Name            string
	Timezone        string
	EnforceGeofence bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GeofenceZone is a circular area punches are matched against. Containment is
// boundary-inclusive: a point exactly on the radius counts as inside.
type GeofenceZone struct {
	ID           string
	WorkplaceID  string
	Name         string
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Shift is the expected working window used for lateness, early-leave, and
// overtime accounting. StartTime/EndTime carry only the clock time; the date
// part is ignored.
type Shift struct {
	ID                 string
	WorkplaceID        string
	Name               string
	StartTime          time.Time
	EndTime            time.Time
	EndsNextDay        bool
	GracePeriodMinutes int
	StandardMinutes    int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StartOn anchors the shift's start clock time onto the given day in loc.
func (s Shift) StartOn(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		s.StartTime.Hour(), s.StartTime.Minute(), 0, 0, loc)
}

// EndOn anchors the shift's end clock time onto the given day in loc,
// rolling to the next day for overnight shifts.
func (s Shift) EndOn(day time.Time, loc *time.Location) time.Time {
	end := time.Date(day.Year(), day.Month(), day.Day(),
		s.EndTime.Hour(), s.EndTime.Minute(), 0, 0, loc)
	if s.EndsNextDay {
		end = end.Add(24 * time.Hour)
	}
	return end
}
