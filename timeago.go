package site

import (
	"fmt"
	"math"
	"time"
)

// timeUnits is the ladder used by TimeAgo. Each size is the number of seconds
// at which the next unit takes over; the last unit never ends.
var timeUnits = []struct {
	name string
	size float64
}{
	{"second", 60},
	{"minute", 3600},
	{"hour", 86400},
	{"day", 604800},
	{"week", 2628002},
	{"month", 31557600},
	{"year", -1},
}

// TimeAgo formats a duration in seconds as "N unit suffix", picking the
// largest unit in which the value is at least 1 (0.5 when rounded is set).
// Units are pluralized only when plural is set and N is not 1. Halves round
// to even.
func TimeAgo(seconds float64, suffix string, plural, rounded bool) string {
	threshold := 1.0
	if rounded {
		threshold = 0.5
	}
	prev := seconds
	for _, u := range timeUnits {
		v := seconds / u.size
		if u.size < 0 || v < threshold {
			n := int64(math.RoundToEven(prev))
			name := u.name
			if plural && n != 1 {
				name += "s"
			}
			return fmt.Sprintf("%d %s %s", n, name, suffix)
		}
		prev = v
	}
	return ""
}

// Since formats the time elapsed since t, e.g. "3 days ago".
func Since(t time.Time) string {
	return TimeAgo(time.Since(t).Seconds(), "ago", true, false)
}

// FormatReadTime formats an estimated reading time, e.g. "2 minute read".
func FormatReadTime(seconds float64) string {
	return TimeAgo(seconds, "read", false, true)
}
