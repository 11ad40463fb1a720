package batch

import (
	"time"

	"github.com/jackzampolin/biograph/internal/quota"
)

// EstimateResume picks the instant a quota pause should lift: the
// provider's request-reset hint first, then the token-reset hint, then
// next local midnight when a daily limit is configured. Without any of
// those the pause needs a manual resume and ok is false.
func EstimateResume(m *quota.Monitor, now time.Time) (time.Time, bool) {
	if snap, ok := m.Snapshot(); ok {
		if t, ok := quota.ResetTime(snap.ResetRequests, now); ok {
			return t, true
		}
		if t, ok := quota.ResetTime(snap.ResetTokens, now); ok {
			return t, true
		}
	}
	if m.Metrics().DailyLimit > 0 {
		return nextLocalMidnight(now), true
	}
	return time.Time{}, false
}

// nextLocalMidnight is when the daily request counter resets.
func nextLocalMidnight(now time.Time) time.Time {
	local := now.Local()
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, local.Location())
}
