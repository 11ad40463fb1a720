package providers

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

const MockProviderName = "mock"

// MockProvider is a BioProvider for testing.
//
// The zero value succeeds with ResponseText for every call. Tests needing
// per-call behaviour (rate limits on attempt one, headers that trip quota
// thresholds, permanent failures for one artist) set GenerateFunc.
type MockProvider struct {
	// Configurable behavior
	Latency      time.Duration
	ResponseText string
	Tokens       int
	Headers      http.Header // returned on every successful call
	Err          error       // when set, every call fails with this error

	// GenerateFunc, when set, replaces the built-in behaviour entirely.
	GenerateFunc func(ctx context.Context, req *GenerateRequest) (*BioResult, error)

	// State
	requestCount atomic.Int64
}

// NewMockProvider creates a mock with sensible defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Latency:      time.Millisecond,
		ResponseText: "mock bio",
		Tokens:       42,
		Headers:      HealthyHeaders(),
	}
}

// HealthyHeaders returns rate-limit headers far from any pause threshold.
// Without headers the quota monitor assumes the worst and pauses, so the
// default mock must look healthy.
func HealthyHeaders() http.Header {
	h := http.Header{}
	h.Set("x-ratelimit-remaining-requests", "4999")
	h.Set("x-ratelimit-limit-requests", "5000")
	h.Set("x-ratelimit-remaining-tokens", "3999000")
	h.Set("x-ratelimit-limit-tokens", "4000000")
	h.Set("x-ratelimit-reset-requests", "12ms")
	h.Set("x-ratelimit-reset-tokens", "6m0s")
	return h
}

// Name returns the provider identifier.
func (p *MockProvider) Name() string {
	return MockProviderName
}

// Generate returns the scripted or default result.
func (p *MockProvider) Generate(ctx context.Context, req *GenerateRequest) (*BioResult, error) {
	count := p.requestCount.Add(1)

	if p.GenerateFunc != nil {
		return p.GenerateFunc(ctx, req)
	}

	start := time.Now()

	if p.Err != nil {
		return &BioResult{
			Success:       false,
			ErrorMessage:  p.Err.Error(),
			ExecutionTime: time.Since(start),
		}, p.Err
	}

	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return &BioResult{
				Success:       false,
				ErrorMessage:  ctx.Err().Error(),
				ExecutionTime: time.Since(start),
			}, ctx.Err()
		}
	}

	return &BioResult{
		Text:          p.ResponseText,
		ResponseID:    fmt.Sprintf("resp_mock_%d", count),
		Created:       time.Now().Unix(),
		TotalTokens:   p.Tokens,
		Headers:       p.Headers,
		ExecutionTime: time.Since(start),
		Success:       true,
	}, nil
}

// RequestCount returns the number of calls made.
func (p *MockProvider) RequestCount() int64 {
	return p.requestCount.Load()
}

// Reset resets the call counter.
func (p *MockProvider) Reset() {
	p.requestCount.Store(0)
}

// Verify interface
var _ BioProvider = (*MockProvider)(nil)
