// Package providers abstracts the remote text-generation service behind a
// small interface so the batch runner and tests never touch the SDK directly.
package providers

import (
	"context"
	"net/http"
	"time"
)

// BioProvider generates artist bios from a server-side prompt template.
type BioProvider interface {
	// Generate renders the prompt with the given variables and returns the
	// generated text plus provider metadata. The returned error is the raw
	// transport/API error for the retry layer to classify; when a result
	// could still be assembled (rate-limit metadata on failures) it is
	// returned alongside the error.
	Generate(ctx context.Context, req *GenerateRequest) (*BioResult, error)

	// Name returns the provider identifier (e.g., "openai").
	Name() string
}

// HealthChecker is implemented by providers that can verify connectivity
// and credentials before a run dispatches any work.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// GenerateRequest is one bio-generation request.
type GenerateRequest struct {
	// PromptID addresses the server-side prompt template (required).
	PromptID string

	// Version pins a prompt version; empty uses the provider default.
	Version string

	// Variables are substituted into the template.
	Variables map[string]string

	// Timeout bounds the remote call wall-clock time.
	Timeout time.Duration

	// WorkerTag correlates log lines with the submitting worker.
	WorkerTag string
}

// BioResult is the outcome of one generation call.
type BioResult struct {
	// Response content
	Text       string `json:"text"`
	ResponseID string `json:"response_id"`
	Created    int64  `json:"created"` // epoch seconds reported by the provider

	// Usage
	TotalTokens int `json:"total_tokens"`

	// Rate-limit metadata captured from the transport; nil when the call
	// never reached the provider.
	Headers http.Header `json:"-"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`

	// Success/error
	Success      bool          `json:"success"`
	ErrorType    string        `json:"error_type,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	RetryAfter   time.Duration `json:"-"`
}
