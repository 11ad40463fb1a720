// Package retry provides the single retry mechanism used for both remote
// generation calls and database statements: errors are classified into
// kinds, and each kind maps to its own backoff schedule.
package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"

	"github.com/jackzampolin/biograph/internal/providers"
)

// Kind buckets a remote failure for backoff selection.
type Kind string

const (
	KindRateLimit Kind = "rate_limit"
	KindQuota     Kind = "quota"
	KindServer    Kind = "server"
	KindNetwork   Kind = "network"
	KindPermanent Kind = "permanent"
)

// Classification is the retry decision for one error.
type Classification struct {
	Kind        Kind
	RetryAfter  time.Duration // provider-requested wait, 0 when absent
	ShouldRetry bool
}

// Classify buckets err. First match wins:
//
//  1. 429 with a quota-exhaustion code -> quota
//  2. 429 otherwise                    -> rate_limit
//  3. 500/502/503/504                  -> server
//  4. transport timeouts, connection and DNS failures -> network
//  5. other 4xx                        -> permanent
//
// Anything unrecognised is treated as permanent: retrying an error we cannot
// name hides bugs behind backoff sleeps.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: KindPermanent, ShouldRetry: false}
	}

	// Cancellation propagates; the run is shutting down.
	if errors.Is(err, context.Canceled) {
		return Classification{Kind: KindPermanent, ShouldRetry: false}
	}

	if rle, ok := providers.IsRateLimitError(err); ok {
		kind := KindRateLimit
		if rle.QuotaExhausted() {
			kind = KindQuota
		}
		return Classification{Kind: kind, RetryAfter: rle.RetryAfter, ShouldRetry: true}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, retryAfterFromResponse(apiErr), apiErr.Code)
	}

	// A deadline on the call context is a transport timeout.
	if errors.Is(err, context.DeadlineExceeded) {
		return Classification{Kind: KindNetwork, ShouldRetry: true}
	}

	// url.Error, net.OpError, and DNS failures all implement net.Error.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Classification{Kind: KindNetwork, ShouldRetry: true}
	}

	return classifyMessage(err.Error())
}

func classifyStatus(status int, retryAfter time.Duration, code string) Classification {
	switch {
	case status == http.StatusTooManyRequests && code == providers.QuotaExhaustedCode:
		return Classification{Kind: KindQuota, RetryAfter: retryAfter, ShouldRetry: true}
	case status == http.StatusTooManyRequests:
		return Classification{Kind: KindRateLimit, RetryAfter: retryAfter, ShouldRetry: true}
	case status == http.StatusInternalServerError,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return Classification{Kind: KindServer, RetryAfter: retryAfter, ShouldRetry: true}
	case status >= 400 && status < 500:
		return Classification{Kind: KindPermanent, ShouldRetry: false}
	default:
		return Classification{Kind: KindPermanent, ShouldRetry: false}
	}
}

// classifyMessage is the string fallback for errors that lost their type
// through fmt.Errorf without %w.
func classifyMessage(msg string) Classification {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, providers.QuotaExhaustedCode):
		return Classification{Kind: KindQuota, ShouldRetry: true}
	case strings.Contains(lower, "429"), strings.Contains(lower, "rate limit"):
		return Classification{Kind: KindRateLimit, ShouldRetry: true}
	case strings.Contains(lower, "status 500"),
		strings.Contains(lower, "status 502"),
		strings.Contains(lower, "status 503"),
		strings.Contains(lower, "status 504"),
		strings.Contains(lower, "internal server error"):
		return Classification{Kind: KindServer, ShouldRetry: true}
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "broken pipe"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "eof"):
		return Classification{Kind: KindNetwork, ShouldRetry: true}
	default:
		return Classification{Kind: KindPermanent, ShouldRetry: false}
	}
}

func retryAfterFromResponse(apiErr *openai.Error) time.Duration {
	if apiErr.Response == nil {
		return 0
	}
	value := strings.TrimSpace(apiErr.Response.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if d, err := time.ParseDuration(value + "s"); err == nil && d > 0 {
		return d
	}
	return 0
}
