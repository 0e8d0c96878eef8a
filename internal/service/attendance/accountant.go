package attendance

import (
	"math"
	"time"

	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/workplace"
)

// timeTotals is the settled accounting of a closed session, in whole minutes.
type timeTotals struct {
	GrossMinutes    int
	BreakMinutes    int
	NetMinutes      int
	OvertimeMinutes int
}

// settleTotals computes the worked-time figures for a closing record.
// gross = punch-out - punch-in, net = gross - breaks, overtime = net above
// the standard shift. Break time is capped at the session length, so net
// stays >= 0 and net + break == gross holds exactly. A punch-out before the
// punch-in cannot come out of the state machine and is rejected outright.
func settleTotals(punchIn, punchOut time.Time, breakMinutes, standardShiftMinutes int) (timeTotals, error) {
	if punchOut.Before(punchIn) {
		return timeTotals{}, attendance.ErrInvalidTimeRange
	}

	gross := int(punchOut.Sub(punchIn).Minutes())

	if breakMinutes < 0 {
		breakMinutes = 0
	}
	if breakMinutes > gross {
		breakMinutes = gross
	}

	net := gross - breakMinutes

	overtime := net - standardShiftMinutes
	if overtime < 0 {
		overtime = 0
	}

	return timeTotals{
		GrossMinutes:    gross,
		BreakMinutes:    breakMinutes,
		NetMinutes:      net,
		OvertimeMinutes: overtime,
	}, nil
}

// closedBreakMinutes sums the settled minutes of a record's closed breaks.
func closedBreakMinutes(breaks []attendance.Break) int {
	total := 0
	for _, b := range breaks {
		if b.Minutes != nil {
			total += *b.Minutes
		}
	}
	return total
}

// shiftDeviation measures lateness at punch-in and early leave at punch-out
// against the shift window anchored on the punch-in day. Arriving within the
// grace period counts as on time; lateness past it is measured from the
// scheduled start, not from the end of the grace.
func shiftDeviation(sh workplace.Shift, loc *time.Location, punchIn time.Time, punchOut *time.Time) (lateMinutes, earlyLeaveMinutes int) {
	day := punchIn.In(loc)

	scheduledIn := sh.StartOn(day, loc)
	graceLimit := scheduledIn.Add(time.Duration(sh.GracePeriodMinutes) * time.Minute)
	if punchIn.After(graceLimit) {
		lateMinutes = int(math.Floor(punchIn.Sub(scheduledIn).Minutes()))
	}

	if punchOut != nil {
		scheduledOut := sh.EndOn(day, loc)
		if punchOut.Before(scheduledOut) {
			earlyLeaveMinutes = int(math.Floor(scheduledOut.Sub(*punchOut).Minutes()))
		}
	}

	return lateMinutes, earlyLeaveMinutes
}
