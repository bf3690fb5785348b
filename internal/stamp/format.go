package stamp

import (
	"fmt"
	"time"
)

// Format renders t as a reminder stamp, the one on-disk format this
// package also parses. twelveHour selects "H:MM AM/PM" over "H:MM".
func Format(t time.Time, twelveHour bool) string {
	date := t.Format("2006-01-02")
	if !twelveHour {
		return fmt.Sprintf("⏰ %s %d:%02d", date, t.Hour(), t.Minute())
	}

	hour := t.Hour()
	suffix := "AM"
	switch {
	case hour == 0:
		hour = 12
	case hour == 12:
		suffix = "PM"
	case hour > 12:
		hour -= 12
		suffix = "PM"
	}
	return fmt.Sprintf("⏰ %s %d:%02d %s", date, hour, t.Minute(), suffix)
}

// FormatRecurring renders a stamp with its recurrence suffix attached.
func FormatRecurring(t time.Time, twelveHour bool, r Recurrence) string {
	return Format(t, twelveHour) + " " + r.String()
}
