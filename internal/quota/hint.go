package quota

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ResetTime resolves a reset hint against now. Duration hints ("120ms",
// "2s", "6m", "1h") and bare decimal seconds ("0.5", "30") are offsets from
// now; RFC 3339 timestamps are absolute. ok is false when the hint cannot
// be interpreted.
func ResetTime(hint string, now time.Time) (time.Time, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" || hint == UnknownReset {
		return time.Time{}, false
	}
	if d, err := time.ParseDuration(hint); err == nil {
		if d < 0 {
			d = 0
		}
		return now.Add(d), true
	}
	if secs, err := strconv.ParseFloat(hint, 64); err == nil {
		if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return time.Time{}, false
		}
		return now.Add(time.Duration(secs * float64(time.Second))), true
	}
	if ts, err := time.Parse(time.RFC3339, hint); err == nil {
		return ts, true
	}
	return time.Time{}, false
}
