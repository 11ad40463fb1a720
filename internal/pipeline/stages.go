package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackzampolin/biograph/internal/events"
	"github.com/jackzampolin/biograph/internal/metrics"
	"github.com/jackzampolin/biograph/internal/postgres"
	"github.com/jackzampolin/biograph/internal/quota"
	"github.com/jackzampolin/biograph/internal/results"
)

// HeaderStage lifts rate-limit headers and usage out of the raw result.
type HeaderStage struct{}

func (*HeaderStage) Name() string { return "headers" }

func (*HeaderStage) Run(_ context.Context, item *Item) error {
	if item.Result == nil {
		return nil
	}
	item.Headers = item.Result.Headers
	item.TotalTokens = item.Result.TotalTokens
	return nil
}

// ParseStage copies text, response id and timestamp into the record,
// stripping trailing citations from the text.
type ParseStage struct {
	Logger *slog.Logger
}

func (*ParseStage) Name() string { return "parse" }

func (s *ParseStage) Run(_ context.Context, item *Item) error {
	rec := item.Record
	if rec.Failed() || item.Result == nil || !item.Result.Success {
		return nil
	}

	text, altered := StripTrailingCitations(item.Result.Text)
	if altered {
		s.Logger.Info("stripped trailing citations",
			"artist_id", rec.ArtistID,
			"worker", item.Worker,
			"removed_bytes", len(item.Result.Text)-len(text),
		)
	}
	if text == "" {
		return errors.New("empty response text")
	}

	rec.ResponseText = text
	rec.ResponseID = item.Result.ResponseID
	rec.Created = item.Result.Created
	return nil
}

// QuotaStage feeds headers and token usage into the monitor and reports
// the resulting metrics.
type QuotaStage struct {
	Monitor *quota.Monitor
	Emitter *events.Emitter
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (*QuotaStage) Name() string { return "quota" }

func (s *QuotaStage) Run(_ context.Context, item *Item) error {
	// A call that never reached the provider carries no headers and must
	// not count against the quota.
	if s.Monitor == nil || len(item.Headers) == 0 {
		return nil
	}

	m := s.Monitor.UpdateFromResponse(item.Headers, int64(item.TotalTokens))
	if s.Emitter != nil {
		s.Emitter.QuotaMetrics(m)
	}
	s.Metrics.SetQuotaUsage(m.UsagePercent)

	args := []any{
		"usage_percentage", m.UsagePercent,
		"requests_used_today", m.RequestsUsedToday,
		"should_pause", m.ShouldPause,
	}
	switch events.UsageBand(m.UsagePercent) {
	case events.TagQuotaEmergency, events.TagQuotaCritical:
		s.Logger.Error("quota usage high", args...)
	case events.TagQuotaWarning:
		s.Logger.Warn("quota usage elevated", args...)
	default:
		s.Logger.Debug("quota usage", args...)
	}
	return nil
}

// DBStage writes the bio to the destination table. A database failure is
// recorded in db_status without failing the item: the text was obtained,
// so the item is not re-generated on resume. Systemic errors are
// returned and abort the run.
type DBStage struct {
	Store        *postgres.Store // nil disables database writes
	TestMode     bool
	SkipExisting bool
	Logger       *slog.Logger
}

func (*DBStage) Name() string { return "db" }

func (s *DBStage) Run(ctx context.Context, item *Item) error {
	rec := item.Record
	if rec.Failed() || s.Store == nil {
		rec.DBStatus = results.DBNone
		return nil
	}

	status, err := s.Store.UpdateBio(ctx, item.Artist.ID, rec.ResponseText, s.TestMode, s.SkipExisting)
	if err != nil {
		rec.DBStatus = results.DBError
		if postgres.IsSystemic(err) {
			return err
		}
		s.Logger.Warn("database update failed",
			"artist_id", rec.ArtistID,
			"class", postgres.Classify(err),
			"error", err,
		)
		return nil
	}
	rec.DBStatus = status
	return nil
}

// TransactionStage emits one TRANSACTION or TRANSACTION_FAILURE event
// per item.
type TransactionStage struct {
	Emitter *events.Emitter
}

func (*TransactionStage) Name() string { return "transaction" }

func (s *TransactionStage) Run(_ context.Context, item *Item) error {
	if s.Emitter == nil {
		return nil
	}
	rec := item.Record
	ev := events.TransactionEvent{
		ArtistID:    rec.ArtistID,
		ArtistName:  rec.ArtistName,
		Worker:      item.Worker,
		ResponseID:  rec.ResponseID,
		DBStatus:    rec.DBStatus,
		TotalTokens: int64(item.TotalTokens),
	}
	switch {
	case rec.Failed():
		ev.Error = rec.ErrorMessage()
		s.Emitter.TransactionFailure(ev)
	case rec.DBStatus == results.DBError:
		ev.Error = "database update failed"
		s.Emitter.TransactionFailure(ev)
	default:
		s.Emitter.Transaction(ev)
	}
	return nil
}

// OutputStage appends the record to the result log. Runs last so every
// item, failed or not, leaves a line.
type OutputStage struct {
	Log *results.Log
}

func (*OutputStage) Name() string { return "output" }

func (s *OutputStage) Run(_ context.Context, item *Item) error {
	if s.Log == nil {
		return nil
	}
	return s.Log.Append(item.Record)
}
