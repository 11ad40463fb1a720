// Package events emits the machine-readable event stream: one line per
// event, a leading tag followed by a JSON body. The stream is separate
// from diagnostic logging so operators can grep a run by tag.
package events

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jackzampolin/biograph/internal/quota"
)

// Event tags.
const (
	TagTransaction        = "TRANSACTION"
	TagTransactionFailure = "TRANSACTION_FAILURE"
	TagQuotaMetrics       = "QUOTA_METRICS"
	TagQuotaWarning       = "QUOTA_WARNING"
	TagQuotaCritical      = "QUOTA_CRITICAL"
	TagQuotaEmergency     = "QUOTA_EMERGENCY"
	TagQuotaPause         = "QUOTA_PAUSE"
	TagQuotaResume        = "QUOTA_RESUME"
	TagRateLimitQuota     = "RATE_LIMIT_QUOTA"
	TagRateLimit429       = "RATE_LIMIT_429"
	TagRateLimitEvent     = "RATE_LIMIT_EVENT"
)

// DefaultMetricsInterval is the minimum spacing between quota-metric
// events within one usage band.
const DefaultMetricsInterval = 60 * time.Second

// UsageBand maps a usage percentage to its quota event tag.
func UsageBand(pct float64) string {
	switch {
	case pct >= 95:
		return TagQuotaEmergency
	case pct >= 80:
		return TagQuotaCritical
	case pct >= 60:
		return TagQuotaWarning
	default:
		return TagQuotaMetrics
	}
}

// TransactionEvent is the body of TRANSACTION and TRANSACTION_FAILURE.
type TransactionEvent struct {
	ArtistID    string `json:"artist_id"`
	ArtistName  string `json:"artist_name"`
	Worker      string `json:"worker,omitempty"`
	ResponseID  string `json:"response_id,omitempty"`
	DBStatus    string `json:"db_status,omitempty"`
	TotalTokens int64  `json:"total_tokens,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Config configures an Emitter.
type Config struct {
	// Writer receives the event lines. Defaults to os.Stdout.
	Writer io.Writer

	// MetricsInterval spaces quota-metric events within a band. Band
	// changes always emit. Defaults to DefaultMetricsInterval.
	MetricsInterval time.Duration

	Logger *slog.Logger
}

// Emitter writes tagged events. Safe for concurrent use.
type Emitter struct {
	mu       sync.Mutex
	w        io.Writer
	logger   *slog.Logger
	interval time.Duration
	lastBand string
	lastAt   time.Time
	now      func() time.Time
}

// NewEmitter creates an Emitter.
func NewEmitter(cfg Config) *Emitter {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = DefaultMetricsInterval
	}
	return &Emitter{
		w:        w,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Emit writes one tagged line. Marshal failures are logged, not raised;
// the event stream is advisory.
func (e *Emitter) Emit(tag string, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		e.logger.Error("marshal event body", "tag", tag, "error", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.w, "%s %s\n", tag, data); err != nil {
		e.logger.Error("write event", "tag", tag, "error", err)
	}
}

// Transaction records a successful database step for one item.
func (e *Emitter) Transaction(ev TransactionEvent) {
	e.Emit(TagTransaction, ev)
}

// TransactionFailure records a failed item.
func (e *Emitter) TransactionFailure(ev TransactionEvent) {
	e.Emit(TagTransactionFailure, ev)
}

// QuotaMetrics emits the metrics under the band's tag. Within one band,
// events closer together than the configured interval are dropped; a band
// change always emits.
func (e *Emitter) QuotaMetrics(m quota.Metrics) {
	band := UsageBand(m.UsagePercent)

	e.mu.Lock()
	now := e.now()
	if band == e.lastBand && now.Sub(e.lastAt) < e.interval {
		e.mu.Unlock()
		return
	}
	e.lastBand = band
	e.lastAt = now
	e.mu.Unlock()

	e.Emit(band, m)
}

// QuotaPause records the gate closing.
func (e *Emitter) QuotaPause(reason string, resumeAt time.Time) {
	body := map[string]any{"reason": reason}
	if !resumeAt.IsZero() {
		body["resume_at"] = resumeAt.Format(time.RFC3339)
	}
	e.Emit(TagQuotaPause, body)
}

// QuotaResume records the gate reopening.
func (e *Emitter) QuotaResume(reason string) {
	e.Emit(TagQuotaResume, map[string]any{"reason": reason})
}

// RateLimit429 records one plain rate-limit rejection.
func (e *Emitter) RateLimit429(worker string, attempt uint, retryAfter time.Duration) {
	body := map[string]any{"worker": worker, "attempt": attempt}
	if retryAfter > 0 {
		body["retry_after_seconds"] = retryAfter.Seconds()
	}
	e.Emit(TagRateLimit429, body)
}

// RateLimitQuota records one quota-exhaustion rejection.
func (e *Emitter) RateLimitQuota(worker string, attempt uint, message string) {
	e.Emit(TagRateLimitQuota, map[string]any{
		"worker":  worker,
		"attempt": attempt,
		"message": message,
	})
}

// RateLimitExhausted records an item abandoned to rate limiting after all
// retries.
func (e *Emitter) RateLimitExhausted(worker, artistID, kind string) {
	e.Emit(TagRateLimitEvent, map[string]any{
		"worker":    worker,
		"artist_id": artistID,
		"kind":      kind,
	})
}
