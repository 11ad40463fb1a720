package quota

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Pause thresholds. The daily counter pauses earlier than the provider
// window because the daily budget is the operator's own spend guard.
const (
	DefaultPauseThreshold = 0.8

	dailyPausePercent     = 80.0
	immediatePausePercent = 95.0

	// maxUsagePercent bounds reported usage; counters can legitimately
	// overshoot a limit by a little before the pause takes effect.
	maxUsagePercent = 110.0
)

// Metrics is the monitor's decision derived from the latest Snapshot and
// the daily counter.
type Metrics struct {
	RequestsUsedToday int64   `json:"requests_used_today" yaml:"requests_used_today"`
	DailyLimit        int64   `json:"daily_limit,omitempty" yaml:"daily_limit,omitempty"`
	UsagePercent      float64 `json:"usage_percentage" yaml:"usage_percentage"`
	ShouldPause       bool    `json:"should_pause" yaml:"should_pause"`
	PauseReason       string  `json:"pause_reason,omitempty" yaml:"pause_reason,omitempty"`
}

// Config configures a Monitor.
type Config struct {
	// DailyLimit caps requests per local calendar day. Zero disables the
	// daily threshold; usage then tracks the provider request window.
	DailyLimit int64

	// PauseThreshold in (0,1] flags a pause once usage reaches this share
	// of the budget. Defaults to DefaultPauseThreshold.
	PauseThreshold float64

	Logger *slog.Logger
}

// Monitor tracks provider rate-limit state and the local daily counter.
// Safe for concurrent use.
type Monitor struct {
	mu             sync.Mutex
	dailyLimit     int64
	pauseThreshold float64
	usedToday      int64
	lastReset      time.Time
	snapshot       Snapshot
	metrics        Metrics
	haveSnapshot   bool
	logger         *slog.Logger
	now            func() time.Time
}

// NewMonitor creates a Monitor with the daily counter anchored at now.
func NewMonitor(cfg Config) *Monitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.PauseThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultPauseThreshold
	}
	m := &Monitor{
		dailyLimit:     cfg.DailyLimit,
		pauseThreshold: threshold,
		logger:         logger,
		now:            time.Now,
	}
	m.lastReset = m.now()
	return m
}

// UpdateFromResponse folds one provider response into the monitor: parses
// the rate-limit headers, charges totalTokens against the token window,
// rolls the daily counter across local midnight, counts the request, and
// recomputes Metrics.
func (m *Monitor) UpdateFromResponse(headers http.Header, totalTokens int64) Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := ParseHeaders(headers)
	if totalTokens > 0 && totalTokens <= snap.TokensRemaining {
		snap.TokensRemaining -= totalTokens
	}

	now := m.now()
	if !sameLocalDay(now, m.lastReset) {
		m.logger.Info("daily quota counter reset",
			"previous_used", m.usedToday,
			"previous_reset", m.lastReset.Format(time.RFC3339),
		)
		m.usedToday = 0
		m.lastReset = now
	}
	m.usedToday++

	m.snapshot = snap
	m.haveSnapshot = true
	m.metrics = m.computeLocked(snap)
	return m.metrics
}

// computeLocked derives Metrics from snap and the daily counter.
func (m *Monitor) computeLocked(snap Snapshot) Metrics {
	met := Metrics{
		RequestsUsedToday: m.usedToday,
		DailyLimit:        m.dailyLimit,
	}

	if m.dailyLimit > 0 {
		met.UsagePercent = 100 * float64(m.usedToday) / float64(m.dailyLimit)
	} else {
		met.UsagePercent = snap.RequestsUsedPercent()
	}
	if met.UsagePercent > maxUsagePercent {
		met.UsagePercent = maxUsagePercent
	}
	if met.UsagePercent < 0 {
		met.UsagePercent = 0
	}

	switch {
	case m.dailyLimit > 0 && met.UsagePercent >= dailyPausePercent:
		met.ShouldPause = true
		met.PauseReason = fmt.Sprintf("daily usage at %.1f%%", met.UsagePercent)
	case snap.RequestsUsedPercent() >= immediatePausePercent:
		met.ShouldPause = true
		met.PauseReason = fmt.Sprintf("request window at %.1f%%", snap.RequestsUsedPercent())
	case snap.TokensUsedPercent() >= immediatePausePercent:
		met.ShouldPause = true
		met.PauseReason = fmt.Sprintf("token window at %.1f%%", snap.TokensUsedPercent())
	}
	return met
}

// ShouldPause reports the cached pause decision, additionally flagging a
// pause once usage reaches the configured threshold share of the budget.
func (m *Monitor) ShouldPause() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.metrics.ShouldPause {
		return true, m.metrics.PauseReason
	}
	if m.metrics.UsagePercent >= 100*m.pauseThreshold {
		return true, fmt.Sprintf("usage %.1f%% reached pause threshold %.0f%%",
			m.metrics.UsagePercent, 100*m.pauseThreshold)
	}
	return false, ""
}

// SetPauseThreshold replaces the pause threshold. Out-of-range values are
// ignored. Applied by config hot reload mid-run.
func (m *Monitor) SetPauseThreshold(t float64) {
	if t <= 0 || t > 1 {
		return
	}
	m.mu.Lock()
	m.pauseThreshold = t
	m.mu.Unlock()
}

// Metrics returns the latest computed Metrics.
func (m *Monitor) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

// Snapshot returns the latest provider Snapshot; ok is false before the
// first update.
func (m *Monitor) Snapshot() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot, m.haveSnapshot
}

func sameLocalDay(a, b time.Time) bool {
	a, b = a.Local(), b.Local()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
