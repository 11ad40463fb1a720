package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	OpenAIName           = "openai"
	openAIDefaultTimeout = 60 * time.Second
)

// OpenAIConfig holds configuration for the OpenAI Responses client.
type OpenAIConfig struct {
	APIKey     string
	Timeout    time.Duration // Per-request wall clock (default 60s)
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIClient implements BioProvider against the OpenAI Responses API.
//
// SDK-level retries are disabled: the batch retry executor owns backoff and
// needs to observe every 429/5xx itself.
type OpenAIClient struct {
	timeout time.Duration
	client  openai.Client
}

// NewOpenAIClient creates a new OpenAI Responses client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = openAIDefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		timeout: cfg.Timeout,
		client:  openai.NewClient(opts...),
	}, nil
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// HealthCheck verifies the API is reachable and the key is valid.
func (c *OpenAIClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("openai models list failed: %w", mapOpenAIError(err))
	}
	if page == nil {
		return fmt.Errorf("openai models list returned nil response")
	}
	return nil
}

// Generate renders the server-side prompt and returns the generated bio.
func (c *OpenAIClient) Generate(ctx context.Context, req *GenerateRequest) (*BioResult, error) {
	start := time.Now()

	if req == nil || req.PromptID == "" {
		err := fmt.Errorf("prompt id is required")
		return &BioResult{
			Success:       false,
			ErrorType:     "invalid_request",
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vars := make(map[string]responses.ResponsePromptVariableUnionParam, len(req.Variables))
	for k, v := range req.Variables {
		vars[k] = responses.ResponsePromptVariableUnionParam{OfString: openai.String(v)}
	}

	prompt := responses.ResponsePromptParam{
		ID:        req.PromptID,
		Variables: vars,
	}
	if req.Version != "" {
		prompt.Version = openai.String(req.Version)
	}

	var raw *http.Response
	resp, err := c.client.Responses.New(callCtx, responses.ResponseNewParams{Prompt: prompt},
		option.WithResponseInto(&raw))
	if err != nil {
		err = mapOpenAIError(err)
		result := &BioResult{
			Success:       false,
			ErrorType:     errorTypeOf(err),
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}
		if raw != nil {
			result.Headers = raw.Header
		}
		if rle, ok := IsRateLimitError(err); ok {
			result.RetryAfter = rle.RetryAfter
		}
		return result, err
	}

	result := &BioResult{
		Text:          resp.OutputText(),
		ResponseID:    resp.ID,
		Created:       int64(resp.CreatedAt),
		TotalTokens:   int(resp.Usage.TotalTokens),
		ExecutionTime: time.Since(start),
		Success:       true,
	}
	if raw != nil {
		result.Headers = raw.Header
	}
	return result, nil
}

// mapOpenAIError converts 429s into RateLimitError so callers can branch on
// quota exhaustion versus rate limiting; other API errors keep their openai
// error in the chain for status-based classification.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("openai rate limited: %s", apiErr.Message),
				Code:       apiErr.Code,
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		return fmt.Errorf("openai error (status %d): %w", apiErr.StatusCode, err)
	}
	return err
}

func errorTypeOf(err error) string {
	if rle, ok := IsRateLimitError(err); ok {
		if rle.QuotaExhausted() {
			return "quota"
		}
		return "rate_limit"
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("api_status_%d", apiErr.StatusCode)
	}
	return "transport"
}

var _ BioProvider = (*OpenAIClient)(nil)
var _ HealthChecker = (*OpenAIClient)(nil)
