package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// persistedState is the on-disk shape of a Monitor.
type persistedState struct {
	DailyLimitRequests int64     `json:"daily_limit_requests"`
	PauseThreshold     float64   `json:"pause_threshold"`
	RequestsUsedToday  int64     `json:"requests_used_today"`
	LastReset          string    `json:"last_reset"`
	QuotaStatus        *Snapshot `json:"quota_status,omitempty"`
	QuotaMetrics       *Metrics  `json:"quota_metrics,omitempty"`
}

// PersistState writes the monitor state to path atomically: the JSON is
// written to a temp file in the same directory and renamed into place, so
// a crash mid-write never leaves a truncated state file.
func (m *Monitor) PersistState(path string) error {
	m.mu.Lock()
	st := persistedState{
		DailyLimitRequests: m.dailyLimit,
		PauseThreshold:     m.pauseThreshold,
		RequestsUsedToday:  m.usedToday,
		LastReset:          m.lastReset.Format(time.RFC3339),
	}
	if m.haveSnapshot {
		snap := m.snapshot
		met := m.metrics
		st.QuotaStatus = &snap
		st.QuotaMetrics = &met
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal quota state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".quota_state_*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write quota state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace quota state: %w", err)
	}
	return nil
}

// LoadState restores the monitor from path. A missing file is not an
// error; loaded reports whether state was actually read.
func (m *Monitor) LoadState(path string) (loaded bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read quota state: %w", err)
	}

	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return false, fmt.Errorf("parse quota state %s: %w", path, err)
	}

	lastReset, err := time.Parse(time.RFC3339, st.LastReset)
	if err != nil {
		return false, fmt.Errorf("parse quota state %s: bad last_reset %q: %w", path, st.LastReset, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyLimit = st.DailyLimitRequests
	if st.PauseThreshold > 0 && st.PauseThreshold <= 1 {
		m.pauseThreshold = st.PauseThreshold
	}
	m.usedToday = st.RequestsUsedToday
	m.lastReset = lastReset
	if st.QuotaStatus != nil {
		m.snapshot = *st.QuotaStatus
		m.haveSnapshot = true
	}
	if st.QuotaMetrics != nil {
		m.metrics = *st.QuotaMetrics
	}
	return true, nil
}
