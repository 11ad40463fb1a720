package quota

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestStatePersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota_state.json")

	m := NewMonitor(Config{DailyLimit: 100, PauseThreshold: 0.7, Logger: testLogger()})
	for i := 0; i < 7; i++ {
		m.UpdateFromResponse(healthyHeaders(), 250)
	}
	if err := m.PersistState(path); err != nil {
		t.Fatalf("PersistState() error = %v", err)
	}

	restored := NewMonitor(Config{Logger: testLogger()})
	loaded, err := restored.LoadState(path)
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if !loaded {
		t.Fatal("expected state to load")
	}

	want := m.Metrics()
	got := restored.Metrics()
	if got != want {
		t.Fatalf("restored metrics = %+v, want %+v", got, want)
	}

	wantSnap, _ := m.Snapshot()
	gotSnap, ok := restored.Snapshot()
	if !ok {
		t.Fatal("expected restored snapshot")
	}
	if gotSnap.RequestsRemaining != wantSnap.RequestsRemaining ||
		gotSnap.TokensRemaining != wantSnap.TokensRemaining ||
		gotSnap.ResetRequests != wantSnap.ResetRequests {
		t.Fatalf("restored snapshot = %+v, want %+v", gotSnap, wantSnap)
	}

	wantPause, wantReason := m.ShouldPause()
	gotPause, gotReason := restored.ShouldPause()
	if gotPause != wantPause || gotReason != wantReason {
		t.Fatalf("restored decision = (%v, %q), want (%v, %q)", gotPause, gotReason, wantPause, wantReason)
	}
}

func TestStateFileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota_state.json")

	m := NewMonitor(Config{DailyLimit: 50, Logger: testLogger()})
	m.UpdateFromResponse(healthyHeaders(), 0)
	if err := m.PersistState(path); err != nil {
		t.Fatalf("PersistState() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	for _, key := range []string{
		"daily_limit_requests",
		"pause_threshold",
		"requests_used_today",
		"last_reset",
		"quota_status",
		"quota_metrics",
	} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("state file missing key %q", key)
		}
	}

	// The atomic write must not leave temp files next to the state file.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read state dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the state file, found %d entries", len(entries))
	}
}

func TestLoadStateMissingFile(t *testing.T) {
	m := NewMonitor(Config{Logger: testLogger()})
	loaded, err := m.LoadState(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if loaded {
		t.Fatal("expected loaded=false for a missing file")
	}
}

func TestLoadStateMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota_state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m := NewMonitor(Config{Logger: testLogger()})
	if _, err := m.LoadState(path); err == nil {
		t.Fatal("expected error for malformed state file")
	}
}
