package providers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuotaExhaustedCode is the provider error code signalling that the account
// quota (not the per-minute rate limit) ran out.
const QuotaExhaustedCode = "insufficient_quota"

// RateLimitError is returned when the provider responds with HTTP 429.
// Code distinguishes plain rate limiting from quota exhaustion.
type RateLimitError struct {
	Message    string
	Code       string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// QuotaExhausted reports whether the 429 indicates exhausted quota rather
// than transient rate limiting.
func (e *RateLimitError) QuotaExhausted() bool {
	return e.Code == QuotaExhaustedCode
}

// IsRateLimitError unwraps err looking for a RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter interprets a Retry-After header value. Both the
// delta-seconds and HTTP-date forms are accepted; anything else yields 0.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}

	if at, err := time.Parse(time.RFC1123, value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return 0
}
