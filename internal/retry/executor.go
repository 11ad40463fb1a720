package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

const (
	// Exponential bases and caps per kind. rate_limit and quota waits are
	// quota semantics, not tunables; the transient base/cap are configurable.
	rateLimitBase = 60 * time.Second
	quotaBase     = 300 * time.Second
	quotaCap      = 3600 * time.Second

	defaultTransientBase = 500 * time.Millisecond
	defaultTransientCap  = 4 * time.Second

	// minDelay is the floor for any computed backoff.
	minDelay = 100 * time.Millisecond

	// DefaultMaxAttempts is the total number of tries for a remote call.
	DefaultMaxAttempts = 5
)

// Executor wraps calls with classify-and-backoff retries. One Executor is
// shared by all workers; the jitter source is guarded by a mutex.
type Executor struct {
	maxAttempts uint
	base        time.Duration // server/network exponential base
	maxDelay    time.Duration // server/network exponential cap
	logger      *slog.Logger

	// retryIf decides whether an error is worth another attempt; delayFn
	// computes the wait before attempt n+1. Both default to remote-call
	// classification and the per-kind schedule.
	retryIf func(error) bool
	delayFn func(n uint, err error) time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAttempts sets the total attempt bound (first try included).
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = uint(n)
		}
	}
}

// WithTransientDelays overrides the server/network exponential base and cap.
func WithTransientDelays(base, max time.Duration) Option {
	return func(e *Executor) {
		if base > 0 {
			e.base = base
		}
		if max > 0 {
			e.maxDelay = max
		}
	}
}

// WithJitterSeed makes backoff deterministic for tests.
func WithJitterSeed(seed int64) Option {
	return func(e *Executor) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

// WithPolicy replaces the classification-driven retry decision and delay
// schedule. Used by the database layer, which classifies SQLSTATEs instead
// of HTTP statuses.
func WithPolicy(retryIf func(error) bool, delayFn func(n uint, err error) time.Duration) Option {
	return func(e *Executor) {
		e.retryIf = retryIf
		e.delayFn = delayFn
	}
}

// New creates an Executor with the remote-call schedule.
func New(logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		maxAttempts: DefaultMaxAttempts,
		base:        defaultTransientBase,
		maxDelay:    defaultTransientCap,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retryIf == nil {
		e.retryIf = func(err error) bool { return Classify(err).ShouldRetry }
	}
	if e.delayFn == nil {
		e.delayFn = e.classifiedDelay
	}
	return e
}

// Do runs fn until it succeeds, fails permanently, exhausts the attempt
// bound, or ctx is cancelled. tag correlates log lines with the worker.
func (e *Executor) Do(ctx context.Context, tag string, fn func() error) error {
	return retrygo.Do(
		fn,
		retrygo.Context(ctx),
		retrygo.Attempts(e.maxAttempts),
		retrygo.RetryIf(e.retryIf),
		retrygo.DelayType(func(n uint, err error, _ *retrygo.Config) time.Duration {
			d := e.delayFn(n, err)
			e.logger.Warn("retrying after failure",
				"worker", tag,
				"attempt", n+1,
				"max_attempts", e.maxAttempts,
				"delay", d,
				"error", err,
			)
			return d
		}),
		retrygo.LastErrorOnly(true),
	)
}

// classifiedDelay implements the per-kind schedule. n is zero-based: the
// wait before the second attempt uses n = 0.
func (e *Executor) classifiedDelay(n uint, err error) time.Duration {
	c := Classify(err)

	var d time.Duration
	switch c.Kind {
	case KindRateLimit:
		// Honour the provider's requested wait on the first retry only;
		// repeated 429s mean the hint was too optimistic.
		if n == 0 && c.RetryAfter > 0 {
			d = c.RetryAfter
		} else {
			d = e.jitter(expDelay(rateLimitBase, n, quotaCap))
		}
	case KindQuota:
		if n == 0 && c.RetryAfter > 0 {
			d = c.RetryAfter
		} else {
			d = e.jitter(expDelay(quotaBase, n, quotaCap))
		}
	case KindServer:
		if c.RetryAfter > 0 {
			d = c.RetryAfter
		} else {
			d = e.jitter(expDelay(e.base, n, e.maxDelay))
		}
	default:
		d = e.jitter(expDelay(e.base, n, e.maxDelay))
	}

	if d < minDelay {
		d = minDelay
	}
	return d
}

// expDelay computes base * 2^n clamped to max.
func expDelay(base time.Duration, n uint, max time.Duration) time.Duration {
	d := base
	for i := uint(0); i < n; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// jitter applies +-25% uniform noise.
func (e *Executor) jitter(d time.Duration) time.Duration {
	e.mu.Lock()
	f := 0.75 + e.rng.Float64()*0.5
	e.mu.Unlock()
	return time.Duration(f * float64(d))
}
