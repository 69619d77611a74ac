package cli

import (
	"fmt"
	"time"
)

// FormatDuration formats a duration for progress and summary lines:
// "850ms", "4.2s", "2m5.5s".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d / time.Minute)
	rest := d - time.Duration(mins)*time.Minute
	return fmt.Sprintf("%dm%.1fs", mins, rest.Seconds())
}

// FormatBytes formats a payload size using binary units.
func FormatBytes(n int) string {
	const (
		KB = 1 << 10
		MB = 1 << 20
		GB = 1 << 30
	)

	switch {
	case n >= GB:
		return fmt.Sprintf("%.2f GB", float64(n)/GB)
	case n >= MB:
		return fmt.Sprintf("%.2f MB", float64(n)/MB)
	case n >= KB:
		return fmt.Sprintf("%.2f KB", float64(n)/KB)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
