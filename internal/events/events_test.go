package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/biograph/internal/quota"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestUsageBand(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{0, TagQuotaMetrics},
		{59.9, TagQuotaMetrics},
		{60, TagQuotaWarning},
		{79.9, TagQuotaWarning},
		{80, TagQuotaCritical},
		{94.9, TagQuotaCritical},
		{95, TagQuotaEmergency},
		{110, TagQuotaEmergency},
	}
	for _, tt := range tests {
		if got := UsageBand(tt.pct); got != tt.want {
			t.Fatalf("UsageBand(%.1f) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

func TestEmitLineFormat(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(Config{Writer: &buf, Logger: testLogger()})

	e.Transaction(TransactionEvent{
		ArtistID:    "0c2b4f5d-9a1e-4c3f-8d7a-6b5e4f3d2c1b",
		ArtistName:  "Nina Simone",
		Worker:      "W02",
		ResponseID:  "resp_123",
		DBStatus:    "updated",
		TotalTokens: 512,
	})

	line := strings.TrimSuffix(buf.String(), "\n")
	if strings.Contains(line, "\n") {
		t.Fatalf("expected a single line, got %q", buf.String())
	}
	tag, body, found := strings.Cut(line, " ")
	if !found {
		t.Fatalf("expected tag and body, got %q", line)
	}
	if tag != TagTransaction {
		t.Fatalf("expected tag %s, got %s", TagTransaction, tag)
	}

	var ev TransactionEvent
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if ev.ArtistName != "Nina Simone" || ev.DBStatus != "updated" {
		t.Fatalf("unexpected body: %+v", ev)
	}
	if strings.Contains(body, `"error"`) {
		t.Fatalf("success body must omit error: %s", body)
	}
}

func TestTransactionFailureCarriesError(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(Config{Writer: &buf, Logger: testLogger()})

	e.TransactionFailure(TransactionEvent{
		ArtistID:   "0c2b4f5d-9a1e-4c3f-8d7a-6b5e4f3d2c1b",
		ArtistName: "Nina Simone",
		Error:      "db timeout",
	})

	line := buf.String()
	if !strings.HasPrefix(line, TagTransactionFailure+" ") {
		t.Fatalf("expected %s prefix, got %q", TagTransactionFailure, line)
	}
	if !strings.Contains(line, `"error":"db timeout"`) {
		t.Fatalf("expected error in body, got %q", line)
	}
}

func TestQuotaMetricsSuppression(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(Config{Writer: &buf, Logger: testLogger(), MetricsInterval: time.Minute})

	clock := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }

	// First event in a band always emits.
	e.QuotaMetrics(quota.Metrics{UsagePercent: 10})
	// Same band, inside the interval: suppressed.
	clock = clock.Add(10 * time.Second)
	e.QuotaMetrics(quota.Metrics{UsagePercent: 12})
	// Band change emits regardless of spacing.
	e.QuotaMetrics(quota.Metrics{UsagePercent: 65})
	// Same band again, inside the interval: suppressed.
	e.QuotaMetrics(quota.Metrics{UsagePercent: 70})
	// Interval elapsed within the band: emits.
	clock = clock.Add(2 * time.Minute)
	e.QuotaMetrics(quota.Metrics{UsagePercent: 71})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 events, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], TagQuotaMetrics+" ") {
		t.Fatalf("unexpected first event: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], TagQuotaWarning+" ") {
		t.Fatalf("unexpected second event: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], TagQuotaWarning+" ") {
		t.Fatalf("unexpected third event: %q", lines[2])
	}
}

func TestQuotaPauseResume(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(Config{Writer: &buf, Logger: testLogger()})

	resumeAt := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	e.QuotaPause("daily usage at 81.0%", resumeAt)
	e.QuotaResume("auto-resume")

	out := buf.String()
	if !strings.Contains(out, TagQuotaPause+" ") {
		t.Fatalf("missing pause event: %q", out)
	}
	if !strings.Contains(out, `"resume_at":"2026-08-26T00:00:00Z"`) {
		t.Fatalf("missing resume_at: %q", out)
	}
	if !strings.Contains(out, TagQuotaResume+" ") {
		t.Fatalf("missing resume event: %q", out)
	}
	if !strings.Contains(out, `"reason":"auto-resume"`) {
		t.Fatalf("missing resume reason: %q", out)
	}
}

func TestRateLimitEvents(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(Config{Writer: &buf, Logger: testLogger()})

	e.RateLimit429("W01", 1, 3*time.Second)
	e.RateLimitQuota("W01", 2, "insufficient_quota")
	e.RateLimitExhausted("W01", "0c2b4f5d-9a1e-4c3f-8d7a-6b5e4f3d2c1b", "rate_limit")

	out := buf.String()
	for _, tag := range []string{TagRateLimit429, TagRateLimitQuota, TagRateLimitEvent} {
		if !strings.Contains(out, tag+" ") {
			t.Fatalf("missing %s event: %q", tag, out)
		}
	}
	if !strings.Contains(out, `"retry_after_seconds":3`) {
		t.Fatalf("missing retry_after_seconds: %q", out)
	}
}
