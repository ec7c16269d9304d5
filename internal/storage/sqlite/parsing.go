package sqlite

import (
	"fmt"
	"time"
)

// timeLayouts are the formats a stored timestamp column might use: the
// RFC3339Nano form this package always writes, plain RFC3339 for rows
// written by an older build, and the space-separated form SQLite's own
// CURRENT_TIMESTAMP default would have produced on a hand-edited database.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimeString parses a stored timestamp column, trying each known
// layout in turn.
func parseTimeString(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", raw, lastErr)
}

// formatTime renders t in the RFC3339Nano form every write uses.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
