package batch

import (
	"testing"
	"time"

	"github.com/jackzampolin/biograph/internal/providers"
	"github.com/jackzampolin/biograph/internal/quota"
)

func TestEstimateResume(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 30, 0, 0, time.Local)

	t.Run("request hint preferred", func(t *testing.T) {
		m := quota.NewMonitor(quota.Config{Logger: testLogger()})
		h := providers.HealthyHeaders()
		h.Set(quota.HeaderResetRequests, "2s")
		h.Set(quota.HeaderResetTokens, "6m")
		m.UpdateFromResponse(h, 0)

		at, ok := EstimateResume(m, now)
		if !ok {
			t.Fatal("EstimateResume() ok = false")
		}
		if want := now.Add(2 * time.Second); !at.Equal(want) {
			t.Errorf("EstimateResume() = %v, want %v", at, want)
		}
	})

	t.Run("token hint fallback", func(t *testing.T) {
		m := quota.NewMonitor(quota.Config{Logger: testLogger()})
		h := providers.HealthyHeaders()
		h.Del(quota.HeaderResetRequests)
		h.Set(quota.HeaderResetTokens, "6m")
		m.UpdateFromResponse(h, 0)

		at, ok := EstimateResume(m, now)
		if !ok {
			t.Fatal("EstimateResume() ok = false")
		}
		if want := now.Add(6 * time.Minute); !at.Equal(want) {
			t.Errorf("EstimateResume() = %v, want %v", at, want)
		}
	})

	t.Run("daily limit falls back to midnight", func(t *testing.T) {
		m := quota.NewMonitor(quota.Config{DailyLimit: 100, Logger: testLogger()})

		at, ok := EstimateResume(m, now)
		if !ok {
			t.Fatal("EstimateResume() ok = false")
		}
		want := time.Date(2026, 8, 26, 0, 0, 0, 0, time.Local)
		if !at.Equal(want) {
			t.Errorf("EstimateResume() = %v, want %v", at, want)
		}
	})

	t.Run("no hints and no daily limit means manual", func(t *testing.T) {
		m := quota.NewMonitor(quota.Config{Logger: testLogger()})
		if _, ok := EstimateResume(m, now); ok {
			t.Error("EstimateResume() ok = true, want false")
		}
	})

	t.Run("unknown hints fall through to midnight", func(t *testing.T) {
		m := quota.NewMonitor(quota.Config{DailyLimit: 100, Logger: testLogger()})
		h := providers.HealthyHeaders()
		h.Del(quota.HeaderResetRequests)
		h.Del(quota.HeaderResetTokens)
		m.UpdateFromResponse(h, 0)

		at, ok := EstimateResume(m, now)
		if !ok {
			t.Fatal("EstimateResume() ok = false")
		}
		want := time.Date(2026, 8, 26, 0, 0, 0, 0, time.Local)
		if !at.Equal(want) {
			t.Errorf("EstimateResume() = %v, want %v", at, want)
		}
	})
}

func TestNextLocalMidnight(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid-day",
			now:  time.Date(2026, 8, 25, 10, 30, 0, 0, time.Local),
			want: time.Date(2026, 8, 26, 0, 0, 0, 0, time.Local),
		},
		{
			name: "just before midnight",
			now:  time.Date(2026, 8, 25, 23, 59, 59, 0, time.Local),
			want: time.Date(2026, 8, 26, 0, 0, 0, 0, time.Local),
		},
		{
			name: "month boundary",
			now:  time.Date(2026, 8, 31, 12, 0, 0, 0, time.Local),
			want: time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local),
		},
		{
			name: "year boundary",
			now:  time.Date(2026, 12, 31, 18, 0, 0, 0, time.Local),
			want: time.Date(2027, 1, 1, 0, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextLocalMidnight(tt.now); !got.Equal(tt.want) {
				t.Errorf("nextLocalMidnight(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}
