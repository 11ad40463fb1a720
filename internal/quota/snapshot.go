// Package quota tracks provider rate-limit state and a local daily request
// counter, and decides when the run should pause. One Monitor is shared by
// all workers; updates are serialised by its lock.
package quota

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Rate-limit headers returned by the provider on every response.
const (
	HeaderRemainingRequests = "x-ratelimit-remaining-requests"
	HeaderLimitRequests     = "x-ratelimit-limit-requests"
	HeaderRemainingTokens   = "x-ratelimit-remaining-tokens"
	HeaderLimitTokens       = "x-ratelimit-limit-tokens"
	HeaderResetRequests     = "x-ratelimit-reset-requests"
	HeaderResetTokens       = "x-ratelimit-reset-tokens"
)

// Documented provider defaults, used when headers are missing or malformed.
// Requests degrade pessimistically (none remaining) and tokens optimistically
// (full window) so a blind run pauses rather than burns through quota.
const (
	DefaultRequestLimit int64 = 5000
	DefaultTokenLimit   int64 = 4_000_000
)

// UnknownReset marks a reset hint that was absent or unparseable.
const UnknownReset = "unknown"

// Snapshot is the provider-side rate-limit picture taken from one response.
type Snapshot struct {
	RequestsRemaining int64     `json:"requests_remaining" yaml:"requests_remaining"`
	RequestsLimit     int64     `json:"requests_limit" yaml:"requests_limit"`
	TokensRemaining   int64     `json:"tokens_remaining" yaml:"tokens_remaining"`
	TokensLimit       int64     `json:"tokens_limit" yaml:"tokens_limit"`
	ResetRequests     string    `json:"reset_requests_hint" yaml:"reset_requests_hint"`
	ResetTokens       string    `json:"reset_tokens_hint" yaml:"reset_tokens_hint"`
	CapturedAt        time.Time `json:"captured_at" yaml:"captured_at"`
}

// ParseHeaders builds a Snapshot from response headers. Missing or malformed
// values fall back to the defaults above; remaining counts clamp at zero.
func ParseHeaders(h http.Header) Snapshot {
	s := Snapshot{
		RequestsLimit: headerInt(h, HeaderLimitRequests, DefaultRequestLimit),
		TokensLimit:   headerInt(h, HeaderLimitTokens, DefaultTokenLimit),
		CapturedAt:    time.Now(),
	}
	if s.RequestsLimit <= 0 {
		s.RequestsLimit = DefaultRequestLimit
	}
	if s.TokensLimit <= 0 {
		s.TokensLimit = DefaultTokenLimit
	}

	s.RequestsRemaining = headerInt(h, HeaderRemainingRequests, 0)
	if s.RequestsRemaining < 0 {
		s.RequestsRemaining = 0
	}
	s.TokensRemaining = headerInt(h, HeaderRemainingTokens, s.TokensLimit)
	if s.TokensRemaining < 0 {
		s.TokensRemaining = 0
	}

	s.ResetRequests = normalizeResetHint(headerValue(h, HeaderResetRequests))
	s.ResetTokens = normalizeResetHint(headerValue(h, HeaderResetTokens))
	return s
}

// RequestsUsedPercent is the provider-window request usage.
func (s Snapshot) RequestsUsedPercent() float64 {
	return usedPercent(s.RequestsRemaining, s.RequestsLimit)
}

// TokensUsedPercent is the provider-window token usage.
func (s Snapshot) TokensUsedPercent() float64 {
	return usedPercent(s.TokensRemaining, s.TokensLimit)
}

func usedPercent(remaining, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	used := limit - remaining
	if used < 0 {
		used = 0
	}
	return 100 * float64(used) / float64(limit)
}

func headerValue(h http.Header, name string) string {
	if h == nil {
		return ""
	}
	return strings.TrimSpace(h.Get(name))
}

func headerInt(h http.Header, name string, fallback int64) int64 {
	v := headerValue(h, name)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// normalizeResetHint keeps hints the resume scheduler can interpret (duration
// suffix, decimal seconds, or an RFC 3339 timestamp) and maps everything else
// to UnknownReset.
func normalizeResetHint(v string) string {
	if _, ok := ResetTime(v, time.Now()); ok {
		return v
	}
	return UnknownReset
}
