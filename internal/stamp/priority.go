package stamp

import "strings"

// Notification priority levels, matching the 1..5 scale of the push
// protocol (5 = max).
const (
	PriorityLowest  = 1
	PriorityLow     = 2
	PriorityDefault = 3
	PriorityHigh    = 4
	PriorityHighest = 5
)

// priorityMarkers is checked in order; the first glyph present in the
// line wins, regardless of where it appears.
var priorityMarkers = []struct {
	glyph    string
	priority int
}{
	{"🔺", PriorityHighest},
	{"⏫", PriorityHigh},
	{"🔼", PriorityDefault},
	{"🔽", PriorityLow},
	{"⏬", PriorityLowest},
}

// Priority maps a line's marker glyph to an urgency level. Lines without
// a marker get PriorityDefault. Presence only; counting and position do
// not matter.
func Priority(line string) int {
	for _, m := range priorityMarkers {
		if strings.Contains(line, m.glyph) {
			return m.priority
		}
	}
	return PriorityDefault
}
