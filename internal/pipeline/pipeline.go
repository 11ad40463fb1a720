// Package pipeline turns one raw generation result into a result-log
// record through an ordered list of stages. Stages are isolated: a stage
// failure is captured into the record's error field and the remaining
// stages still run, so a failed item still reaches the result log.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackzampolin/biograph/internal/catalog"
	"github.com/jackzampolin/biograph/internal/events"
	"github.com/jackzampolin/biograph/internal/metrics"
	"github.com/jackzampolin/biograph/internal/postgres"
	"github.com/jackzampolin/biograph/internal/prompts"
	"github.com/jackzampolin/biograph/internal/providers"
	"github.com/jackzampolin/biograph/internal/quota"
	"github.com/jackzampolin/biograph/internal/results"
)

// Item carries one artist through the stages.
type Item struct {
	Artist catalog.Artist
	Prompt prompts.Bio
	Worker string

	// Result is the raw provider outcome; nil when the call never
	// completed. Rate-limit headers are present even on some failures.
	Result *providers.BioResult

	// Record accumulates the result-log line.
	Record *results.Record

	// Extracted by the header stage.
	Headers     http.Header
	TotalTokens int
}

// NewItem starts an item with its record initialised from the catalog row.
func NewItem(artist catalog.Artist, prompt prompts.Bio, worker string) *Item {
	return &Item{
		Artist: artist,
		Prompt: prompt,
		Worker: worker,
		Record: results.NewRecord(artist, prompt),
	}
}

// Fail marks the item's record failed (first failure wins).
func (it *Item) Fail(msg string) {
	it.Record.Fail(msg)
}

// Stage transforms one item. Stages must be safe to run on an
// already-failed item.
type Stage interface {
	Name() string
	Run(ctx context.Context, item *Item) error
}

// Config wires the stage dependencies.
type Config struct {
	Quota   *quota.Monitor
	Emitter *events.Emitter
	Metrics *metrics.Metrics

	// Store may be nil; db_status is then recorded as none.
	Store *postgres.Store

	// Log receives every processed record.
	Log *results.Log

	TestMode     bool
	SkipExisting bool

	Logger *slog.Logger
}

// Pipeline runs the stages in order.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New builds the default six-stage pipeline: header extraction, response
// parsing, quota update, database update, transaction event, output.
func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return NewWithStages(cfg.Logger,
		&HeaderStage{},
		&ParseStage{Logger: cfg.Logger},
		&QuotaStage{Monitor: cfg.Quota, Emitter: cfg.Emitter, Metrics: cfg.Metrics, Logger: cfg.Logger},
		&DBStage{Store: cfg.Store, TestMode: cfg.TestMode, SkipExisting: cfg.SkipExisting, Logger: cfg.Logger},
		&TransactionStage{Emitter: cfg.Emitter},
		&OutputStage{Log: cfg.Log},
	)
}

// NewWithStages builds a pipeline from an explicit stage list.
func NewWithStages(logger *slog.Logger, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{stages: stages, logger: logger}
}

// Process runs every stage on the item. Stage errors are captured into
// the record and later stages still run; only a systemic database error
// is returned, after the full pass, so the record is logged before the
// run aborts.
func (p *Pipeline) Process(ctx context.Context, item *Item) error {
	var systemic error
	for _, st := range p.stages {
		err := st.Run(ctx, item)
		if err == nil {
			continue
		}
		if postgres.IsSystemic(err) {
			// The text was obtained; the store is what failed. The record
			// keeps its content and the failure aborts the run instead.
			systemic = err
		} else {
			item.Record.Fail(fmt.Sprintf("%s: %v", st.Name(), err))
		}
		p.logger.Warn("pipeline stage failed",
			"stage", st.Name(),
			"artist_id", item.Record.ArtistID,
			"worker", item.Worker,
			"error", err,
		)
	}
	return systemic
}
