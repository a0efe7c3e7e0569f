package site

import (
	"testing"
	"time"
)

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		seconds float64
		suffix  string
		plural  bool
		rounded bool
		want    string
	}{
		{0, "ago", true, false, "0 seconds ago"},
		{1, "ago", true, false, "1 second ago"},
		{30, "ago", true, false, "30 seconds ago"},
		{90, "ago", true, false, "2 minutes ago"},
		{5 * 3600, "ago", true, false, "5 hours ago"},
		{3 * 86400, "ago", true, false, "3 days ago"},
		{14 * 86400, "ago", true, false, "2 weeks ago"},
		{400 * 86400, "ago", true, false, "1 year ago"},
		{150, "read", false, true, "2 minute read"},
		{45, "read", false, true, "1 minute read"},
		{20, "read", false, true, "20 second read"},
		{600, "read", false, true, "10 minute read"},
	}
	for _, tt := range tests {
		if got := TimeAgo(tt.seconds, tt.suffix, tt.plural, tt.rounded); got != tt.want {
			t.Errorf("TimeAgo(%v, %q, %v, %v) = %q, want %q",
				tt.seconds, tt.suffix, tt.plural, tt.rounded, got, tt.want)
		}
	}
}

func TestSince(t *testing.T) {
	if got := Since(time.Now().Add(-3 * time.Hour)); got != "3 hours ago" {
		t.Errorf("Since = %q", got)
	}
}

func TestFormatReadTime(t *testing.T) {
	if got := FormatReadTime(240); got != "4 minute read" {
		t.Errorf("FormatReadTime(240) = %q", got)
	}
}
