package vault

// ChangedLine compares two document snapshots and returns the index of
// the single line that differs. ok is false when the line count changed
// or when more than one line differs; callers then fall back to a full
// document rescan.
func ChangedLine(oldText, newText string) (line int, ok bool) {
	if oldText == newText {
		return 0, false
	}
	oldLines := SplitLines(oldText)
	newLines := SplitLines(newText)
	if len(oldLines) != len(newLines) {
		return 0, false
	}

	line = -1
	for i := range newLines {
		if oldLines[i] != newLines[i] {
			if line >= 0 {
				return 0, false
			}
			line = i
		}
	}
	if line < 0 {
		return 0, false
	}
	return line, true
}
