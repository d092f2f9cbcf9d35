package utils

import (
	"fmt"
	"strings"
	"time"
)

// HoldDuration renders how long a position was held, e.g. "2d 3h 15m".
// Units that are zero are skipped; anything under a minute is "0m".
func HoldDuration(open, closed time.Time) string {
	d := closed.Sub(open)
	if d < time.Minute {
		return "0m"
	}

	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	return strings.Join(parts, " ")
}
