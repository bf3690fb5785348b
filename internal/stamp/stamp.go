package stamp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Unit is a recurrence cadence unit.
type Unit int

const (
	UnitMinutes Unit = iota
	UnitHours
	UnitDays
	UnitWeeks
)

func (u Unit) String() string {
	switch u {
	case UnitMinutes:
		return "minutes"
	case UnitHours:
		return "hours"
	case UnitDays:
		return "days"
	case UnitWeeks:
		return "weeks"
	default:
		return "unknown"
	}
}

// Recurrence is a repeat cadence attached to an occurrence. Every is >= 1.
type Recurrence struct {
	Every int
	Unit  Unit
}

func (r Recurrence) String() string {
	return fmt.Sprintf("every %d %s", r.Every, r.Unit)
}

// Occurrence is one resolved stamp extracted from a line.
//
// LineText is the line with this occurrence's own consumed span removed
// (stamp plus its recurrence suffix). Sibling stamps on the same line are
// left verbatim in LineText; each occurrence only strips itself.
//
// Offset is the byte offset of the stamp within the original line. It is
// part of the occurrence's identity because a line can carry several
// stamps resolving to the same instant.
type Occurrence struct {
	LineText string
	When     time.Time
	Offset   int
	Recur    *Recurrence
}

var (
	stampRe = regexp.MustCompile(`⏰\s*(\d{4})-(\d{2})-(\d{2})\s+(\d{1,2})(?::(\d{2}))?(?:\s*((?i:am|pm)))?\b`)
	recurRe = regexp.MustCompile(`^\s+every\s+(\d+)\s*(minutes?|mins?|hours?|hrs?|days?|weeks?|wks?|m|h|d|w)\b`)
)

// Parse extracts all well-formed occurrences from one line, left to right,
// resolved in the local time zone. Malformed stamps (impossible dates,
// hour > 23, minute > 59) produce no occurrence and no error.
func Parse(line string) []Occurrence {
	return ParseInLocation(line, time.Local)
}

// ParseInLocation is Parse with an explicit zone, for deterministic tests.
func ParseInLocation(line string, loc *time.Location) []Occurrence {
	matches := stampRe.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return nil
	}

	out := make([]Occurrence, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]

		when, ok := resolveWhen(line, m, loc)
		if !ok {
			continue
		}

		// A recurrence suffix, when present, extends the consumed span.
		recur, suffixLen := parseRecurSuffix(line[end:])
		end += suffixLen

		out = append(out, Occurrence{
			LineText: cutSpan(line, start, end),
			When:     when,
			Offset:   start,
			Recur:    recur,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveWhen(line string, m []int, loc *time.Location) (time.Time, bool) {
	group := func(i int) string {
		lo, hi := m[2*i], m[2*i+1]
		if lo < 0 {
			return ""
		}
		return line[lo:hi]
	}

	year, _ := strconv.Atoi(group(1))
	month, _ := strconv.Atoi(group(2))
	day, _ := strconv.Atoi(group(3))
	hour, _ := strconv.Atoi(group(4))

	minute := 0
	if s := group(5); s != "" {
		minute, _ = strconv.Atoi(s)
	}

	switch strings.ToLower(group(6)) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	// time.Date normalizes impossible calendar dates (Feb 30 -> Mar 2);
	// detect that by checking the components survived.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func parseRecurSuffix(tail string) (*Recurrence, int) {
	m := recurRe.FindStringSubmatch(tail)
	if m == nil {
		return nil, 0
	}
	every, err := strconv.Atoi(m[1])
	if err != nil || every < 1 {
		return nil, 0
	}
	unit, ok := parseUnit(m[2])
	if !ok {
		return nil, 0
	}
	return &Recurrence{Every: every, Unit: unit}, len(m[0])
}

func parseUnit(s string) (Unit, bool) {
	switch strings.ToLower(s) {
	case "m", "min", "mins", "minute", "minutes":
		return UnitMinutes, true
	case "h", "hr", "hrs", "hour", "hours":
		return UnitHours, true
	case "d", "day", "days":
		return UnitDays, true
	case "w", "wk", "wks", "week", "weeks":
		return UnitWeeks, true
	default:
		return 0, false
	}
}

// cutSpan removes line[start:end] and joins the trimmed remainders with a
// single space when both are non-empty.
func cutSpan(line string, start, end int) string {
	before := strings.TrimSpace(line[:start])
	after := strings.TrimSpace(line[end:])
	switch {
	case before == "":
		return after
	case after == "":
		return before
	default:
		return before + " " + after
	}
}
