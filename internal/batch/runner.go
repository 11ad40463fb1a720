// Package batch drives a catalog through generation with a bounded worker
// pool: a dispatcher feeds items in input order, workers run the
// retry-wrapped remote call and the pipeline, and a coordinator consumes
// completions in arrival order, pausing the run when quota runs low.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/biograph/internal/catalog"
	"github.com/jackzampolin/biograph/internal/events"
	"github.com/jackzampolin/biograph/internal/metrics"
	"github.com/jackzampolin/biograph/internal/pause"
	"github.com/jackzampolin/biograph/internal/pipeline"
	"github.com/jackzampolin/biograph/internal/prompts"
	"github.com/jackzampolin/biograph/internal/providers"
	"github.com/jackzampolin/biograph/internal/quota"
	"github.com/jackzampolin/biograph/internal/retry"
)

// DefaultWorkers is the pool size when the caller does not choose one.
const DefaultWorkers = 4

// Config wires a Runner.
type Config struct {
	Provider providers.BioProvider
	Pipeline *pipeline.Pipeline
	Retrier  *retry.Executor

	// Quota and Pause may be nil when quota monitoring is disabled; the
	// run then never pauses itself.
	Quota *quota.Monitor
	Pause *pause.Controller

	Emitter *events.Emitter
	Metrics *metrics.Metrics

	Prompt  prompts.Bio
	Workers int

	// Timeout bounds each remote call (default 60s, applied by the
	// provider).
	Timeout time.Duration

	Logger *slog.Logger
}

// Runner owns one batch run.
type Runner struct {
	provider providers.BioProvider
	pipe     *pipeline.Pipeline
	retrier  *retry.Executor
	quota    *quota.Monitor
	pause    *pause.Controller
	emitter  *events.Emitter
	metrics  *metrics.Metrics
	prompt   prompts.Bio
	workers  int
	timeout  time.Duration
	logger   *slog.Logger

	timers timerRegistry
	now    func() time.Time
}

// New builds a Runner.
func New(cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		provider: cfg.Provider,
		pipe:     cfg.Pipeline,
		retrier:  cfg.Retrier,
		quota:    cfg.Quota,
		pause:    cfg.Pause,
		emitter:  cfg.Emitter,
		metrics:  cfg.Metrics,
		prompt:   cfg.Prompt,
		workers:  cfg.Workers,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// WorkerTag derives the log-correlation tag for a submission index. Tags
// cycle W01..WN; they identify the submission slot, not a routing choice.
func WorkerTag(index, workers int) string {
	return fmt.Sprintf("W%02d", index%workers+1)
}

type completion struct {
	item     *pipeline.Item
	systemic error
}

// Run processes the artists and returns (successful, failed). The error
// is nil for a completed run, the systemic database error for an aborted
// one, and the context error when submission was interrupted. Inflight
// work always drains; cancellation stops submission only.
func (r *Runner) Run(ctx context.Context, artists []catalog.Artist) (int, int, error) {
	total := len(artists)
	progress := NewProgress(total, r.logger)
	if total == 0 {
		r.logger.Info("nothing to process")
		return 0, 0, nil
	}
	defer r.timers.StopAll()

	// Inflight calls survive ctx cancellation: SIGINT stops submission
	// and running work proceeds to completion.
	workCtx := context.WithoutCancel(ctx)

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	items := make(chan *pipeline.Item)
	completions := make(chan completion)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.metrics.WorkerStarted()
			defer r.metrics.WorkerDone()
			for item := range items {
				completions <- r.process(workCtx, item)
			}
		}()
	}

	go func() {
		defer close(items)
		for i, artist := range artists {
			select {
			case <-dispatchCtx.Done():
				r.logger.Info("submission stopped", "submitted", i, "total", total)
				return
			default:
			}
			if r.pause != nil {
				if err := r.pause.WaitIfPaused(dispatchCtx); err != nil {
					r.logger.Info("submission stopped", "submitted", i, "total", total)
					return
				}
			}
			item := pipeline.NewItem(artist, r.prompt, WorkerTag(i, r.workers))
			select {
			case items <- item:
			case <-dispatchCtx.Done():
				r.logger.Info("submission stopped", "submitted", i, "total", total)
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(completions)
	}()

	var abortErr error
	for c := range completions {
		progress.Record(c.item.Record, c.item.Worker)
		if c.item.Record.Failed() {
			r.metrics.ItemProcessed(metrics.StatusFailed)
		} else {
			r.metrics.ItemProcessed(metrics.StatusSuccess)
		}

		if c.systemic != nil {
			if abortErr == nil {
				abortErr = c.systemic
				r.logger.Error("aborting run", "error", c.systemic)
				stopDispatch()
			}
			continue
		}
		r.checkQuota()
	}

	successful, failed := progress.Counts()
	if abortErr != nil {
		return successful, failed, abortErr
	}
	if err := ctx.Err(); err != nil {
		return successful, failed, err
	}
	return successful, failed, nil
}

// process runs one item: retry-wrapped generation, then the pipeline.
func (r *Runner) process(ctx context.Context, item *pipeline.Item) completion {
	start := time.Now()
	var result *providers.BioResult
	attempt := uint(0)

	err := r.retrier.Do(ctx, item.Worker, func() error {
		res, callErr := r.provider.Generate(ctx, &providers.GenerateRequest{
			PromptID:  item.Prompt.ID,
			Version:   item.Prompt.Version,
			Variables: item.Prompt.Variables(item.Artist),
			Timeout:   r.timeout,
			WorkerTag: item.Worker,
		})
		if res != nil {
			// Keep the latest result even on failure: rate-limit headers
			// from a 429 still feed the quota monitor.
			result = res
		}
		if callErr != nil {
			r.noteAttempt(item.Worker, attempt, callErr)
			attempt++
		}
		return callErr
	})
	r.metrics.ObserveGenerate(time.Since(start))

	item.Result = result
	if err != nil {
		item.Fail(fmt.Sprintf("generate: %v", err))
		cls := retry.Classify(err)
		if r.emitter != nil && (cls.Kind == retry.KindRateLimit || cls.Kind == retry.KindQuota) {
			r.emitter.RateLimitExhausted(item.Worker, item.Record.ArtistID, string(cls.Kind))
		}
	}

	systemic := r.pipe.Process(ctx, item)
	return completion{item: item, systemic: systemic}
}

// noteAttempt records one failed attempt in metrics and the event stream.
func (r *Runner) noteAttempt(worker string, attempt uint, err error) {
	cls := retry.Classify(err)
	r.metrics.RetryAttempt(string(cls.Kind))
	if r.emitter == nil {
		return
	}
	switch cls.Kind {
	case retry.KindQuota:
		r.emitter.RateLimitQuota(worker, attempt, err.Error())
	case retry.KindRateLimit:
		r.emitter.RateLimit429(worker, attempt, cls.RetryAfter)
	}
}

// checkQuota pauses the run when the monitor says so, arming an
// auto-resume timer when a resume time can be estimated.
func (r *Runner) checkQuota() {
	if r.quota == nil || r.pause == nil {
		return
	}
	should, reason := r.quota.ShouldPause()
	if !should || r.pause.IsPaused() {
		return
	}

	resumeAt, ok := EstimateResume(r.quota, r.now())
	if !ok {
		r.logger.Warn("no resume estimate available; manual resume required", "reason", reason)
		r.pause.Pause(reason, time.Time{})
		return
	}
	if r.pause.Pause(reason, resumeAt) {
		r.armResume(resumeAt)
	}
}

func (r *Runner) armResume(at time.Time) {
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	r.timers.Add(time.AfterFunc(d, func() {
		r.pause.Resume(pause.AutoResumeReason)
	}))
}

// timerRegistry tracks auto-resume timers so shutdown can cancel them en
// masse.
type timerRegistry struct {
	mu     sync.Mutex
	timers []*time.Timer
}

func (tr *timerRegistry) Add(t *time.Timer) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.timers = append(tr.timers, t)
}

func (tr *timerRegistry) StopAll() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, t := range tr.timers {
		t.Stop()
	}
	tr.timers = nil
}
