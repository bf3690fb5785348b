package remind

import (
	"time"

	"notebell/internal/stamp"
)

// NextAfter returns the first instant on the cadence anchored at base
// that is strictly after now. A base already in the future is returned
// unchanged.
//
// Minute and hour cadences are fixed-width, so the step count is
// computed in closed form. Day and week cadences step through the
// calendar (AddDate) so reminders stay pinned to wall-clock time across
// DST shifts.
func NextAfter(base time.Time, r stamp.Recurrence, now time.Time) time.Time {
	if base.After(now) {
		return base
	}

	switch r.Unit {
	case stamp.UnitMinutes, stamp.UnitHours:
		step := time.Duration(r.Every) * time.Minute
		if r.Unit == stamp.UnitHours {
			step = time.Duration(r.Every) * time.Hour
		}
		n := now.Sub(base)/step + 1
		return base.Add(time.Duration(n) * step)

	default:
		days := r.Every
		if r.Unit == stamp.UnitWeeks {
			days *= 7
		}
		// Jump close with a deliberately low estimate, then settle by
		// stepping; DST makes calendar days uneven.
		n := int(now.Sub(base).Hours())/(24*days) - 1
		if n > 0 {
			base = base.AddDate(0, 0, n*days)
		}
		for !base.After(now) {
			base = base.AddDate(0, 0, days)
		}
		return base
	}
}
