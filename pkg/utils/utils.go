package utils

import (
	"fmt"
	"time"
)

// FormatUsageTime renders a duration the way the usage summary shows
// it: "2 hr 5 mins" above an hour, "12 minutes" below.
func FormatUsageTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d.Minutes())
	if minutes >= 60 {
		return fmt.Sprintf("%d hr %d mins", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// FormatRoundedUnit renders a duration as a single rounded unit.
func FormatRoundedUnit(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	seconds := int64(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds >= 3600 {
		return fmt.Sprintf("%dh", seconds/3600)
	}
	return fmt.Sprintf("%dm", seconds/60)
}

// Truncate shortens a string to maxLen runes with an ellipsis.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
