package stamp

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// checkboxRe matches a task-list prefix: leading whitespace, a list
// marker, then a bracket pair holding exactly one status character.
var checkboxRe = regexp.MustCompile(`^\s*[-*+]\s*\[(.)\]`)

// StatusChar extracts the task-status character from a checkbox prefix.
// ok is false when the line has no checkbox prefix.
func StatusChar(line string) (status rune, ok bool) {
	m := checkboxRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(m[1])
	return r, true
}

// Dismissed reports whether the line's task status suppresses scheduling.
// The comparison against dismissSet is case-insensitive. Lines without a
// checkbox prefix are never dismissed.
func Dismissed(line, dismissSet string) bool {
	if dismissSet == "" {
		return false
	}
	status, ok := StatusChar(line)
	if !ok {
		return false
	}
	status = unicode.ToLower(status)
	for _, r := range dismissSet {
		if unicode.ToLower(r) == status {
			return true
		}
	}
	return false
}

// NormalizeDismissSet trims whitespace and separators from a configured
// dismiss-set so "x, -" and "x-" behave the same.
func NormalizeDismissSet(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == ',' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
