package types

import "time"

// Resolutions lists the bar resolutions accepted on selection.
var Resolutions = []string{
	"1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1M",
}

var resolutionDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
	"1M":  30 * 24 * time.Hour,
}

func ValidResolution(r string) bool {
	_, ok := resolutionDurations[r]
	return ok
}

// ResolutionDuration returns the nominal bar length; 1M is taken as 30 days.
func ResolutionDuration(r string) (time.Duration, bool) {
	d, ok := resolutionDurations[r]
	return d, ok
}
