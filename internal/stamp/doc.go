// Package stamp extracts reminder stamps from note lines.
//
// A stamp is the inline marker "⏰ YYYY-MM-DD H[:MM] [AM|PM]", optionally
// followed immediately by a recurrence suffix "every N <unit>". Parsing is
// pure: one line in, zero or more occurrences out, malformed stamps are
// silently skipped.
//
// The package also hosts the two other per-line decisions that feed
// scheduling: priority detection (marker glyphs) and dismissal filtering
// (checkbox status characters).
package stamp
