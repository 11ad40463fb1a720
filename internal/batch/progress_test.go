package batch

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/biograph/internal/results"
)

func successRecord(id string) *results.Record {
	return &results.Record{ArtistID: id, ArtistName: "Artist " + id, DBStatus: results.DBUpdated}
}

func TestProgressDecileBoundaries(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	p := NewProgress(20, logger)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	for i := 0; i < 20; i++ {
		p.Record(successRecord("a"), "W01")
	}

	// With a frozen clock only the 10% boundaries fire: 2, 4, ..., 20.
	if got := strings.Count(buf.String(), "msg=progress"); got != 10 {
		t.Errorf("progress summaries = %d, want 10\n%s", got, buf.String())
	}

	successful, failed := p.Counts()
	if successful != 20 || failed != 0 {
		t.Errorf("Counts() = (%d, %d), want (20, 0)", successful, failed)
	}
}

func TestProgressIntervalElapsed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	p := NewProgress(100, logger)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	p.Record(successRecord("a"), "W01")
	if got := strings.Count(buf.String(), "msg=progress"); got != 0 {
		t.Fatalf("summary logged before boundary or interval: %d", got)
	}

	clock = clock.Add(6 * time.Second)
	p.Record(successRecord("b"), "W02")
	if got := strings.Count(buf.String(), "msg=progress"); got != 1 {
		t.Errorf("progress summaries = %d, want 1 after the interval", got)
	}
}

func TestProgressCompletionAlwaysLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	p := NewProgress(3, logger)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	p.Record(successRecord("a"), "W01")

	failed := successRecord("b")
	failed.Fail("generate: boom")
	failed.DBStatus = results.DBSkipped
	p.Record(failed, "W02")

	p.Record(successRecord("c"), "W03")

	out := buf.String()
	if !strings.Contains(out, "msg=\"artist failed\"") {
		t.Error("failure line missing")
	}
	if !strings.Contains(out, "level=WARN") {
		t.Error("failures must log at warning level")
	}
	// done==total fires a summary regardless of clock and boundaries.
	if !strings.Contains(out, "failed=1") {
		t.Error("final summary missing failure count")
	}

	successful, failedCount := p.Counts()
	if successful != 2 || failedCount != 1 {
		t.Errorf("Counts() = (%d, %d), want (2, 1)", successful, failedCount)
	}
}
