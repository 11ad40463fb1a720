package batch

import (
	"log/slog"
	"time"

	"github.com/jackzampolin/biograph/internal/results"
)

// progressLogInterval is the longest gap between summary lines while
// completions are arriving.
const progressLogInterval = 5 * time.Second

// Progress tracks run totals and emits a summary line whenever a 10%
// boundary is crossed, the interval has elapsed, or the run completes.
// Owned by the coordinator; not safe for concurrent use.
type Progress struct {
	total      int
	successful int
	failed     int
	lastLog    time.Time
	lastDecile int
	logger     *slog.Logger
	now        func() time.Time
}

// NewProgress creates a tracker for a run of total items.
func NewProgress(total int, logger *slog.Logger) *Progress {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Progress{total: total, logger: logger, now: time.Now}
	p.lastLog = p.now()
	return p
}

// Record tallies one completed record: an info line for success, a
// warning for failure, plus any due summary.
func (p *Progress) Record(rec *results.Record, worker string) {
	if rec.Failed() {
		p.failed++
		p.logger.Warn("artist failed",
			"artist_id", rec.ArtistID,
			"artist_name", rec.ArtistName,
			"worker", worker,
			"error", rec.ErrorMessage(),
		)
	} else {
		p.successful++
		p.logger.Info("artist processed",
			"artist_id", rec.ArtistID,
			"artist_name", rec.ArtistName,
			"worker", worker,
			"db_status", rec.DBStatus,
		)
	}
	p.maybeSummarize()
}

// Counts returns the tallies so far.
func (p *Progress) Counts() (successful, failed int) {
	return p.successful, p.failed
}

func (p *Progress) maybeSummarize() {
	done := p.successful + p.failed
	decile := 0
	percent := 0.0
	if p.total > 0 {
		decile = done * 10 / p.total
		percent = 100 * float64(done) / float64(p.total)
	}

	complete := done == p.total
	if !complete && decile == p.lastDecile && p.now().Sub(p.lastLog) < progressLogInterval {
		return
	}

	p.logger.Info("progress",
		"processed", done,
		"total", p.total,
		"successful", p.successful,
		"failed", p.failed,
		"percent", percent,
	)
	p.lastLog = p.now()
	p.lastDecile = decile
}
