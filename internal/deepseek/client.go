// Package deepseek is a client for a chat completion endpoint that accepts
// PDF attachments. It validates its configuration once, builds requests,
// and consumes both single-shot and streamed responses. Every failure is an
// *apperr.Error.
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/pdfbatch/internal/apperr"
	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

const (
	DefaultBaseURL     = "https://api.deepseek.com"
	DefaultModel       = "deepseek-coder"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
	DefaultTimeout     = 120 * time.Second
	DefaultPrompt      = "Please analyze this PDF and provide a detailed summary."

	completionsPath = "/chat/completions"
	errorBodyLimit  = 512
)

// Config holds the client settings. Temperature and MaxTokens are used as
// given; DefaultConfig supplies the usual values.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Prompt      string
	PromptFile  string
	Timeout     time.Duration
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
}

// Client talks to the completion endpoint. It is safe for concurrent use;
// nothing mutable is shared between calls.
type Client struct {
	cfg      Config
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient validates cfg and builds a Client. Validation failures are
// CONFIGURATION_ERROR and mean the pipeline must not start.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := ValidateConfig(cfg.Temperature, cfg.MaxTokens); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperr.New(apperr.ConfigurationError, "API base URL is invalid", "Current value: "+cfg.BaseURL)
	}
	c := &Client{
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + completionsPath,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Info("deepseek.client.init",
		"model", cfg.Model,
		"temperature", cfg.Temperature,
		"max_tokens", cfg.MaxTokens,
	)
	return c, nil
}

// ValidateConfig checks the sampling settings.
func ValidateConfig(temperature float64, maxTokens int) error {
	if temperature < 0 || temperature > 1 {
		return apperr.New(apperr.ConfigurationError,
			"Temperature must be between 0 and 1",
			fmt.Sprintf("Current value: %f", temperature))
	}
	if maxTokens <= 0 {
		return apperr.New(apperr.ConfigurationError,
			"Max tokens must be positive",
			fmt.Sprintf("Current value: %d", maxTokens))
	}
	return nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends a single non-streamed request for doc. An empty prompt
// falls back to the configured prompt chain.
func (c *Client) Complete(ctx context.Context, doc *model.Document, prompt string) (*model.CompletionResult, error) {
	logger := c.logger.With("op", operationID(), "file", fileName(doc))
	logger.Info("deepseek.complete.start")

	req, err := c.BuildRequest(doc, prompt, false)
	if err != nil {
		logger.Error("deepseek.complete.build_failed", "error", err)
		return nil, err
	}
	resp, err := c.post(ctx, logger, req)
	if err != nil {
		logger.Error("deepseek.complete.failed", "error", err)
		return nil, apperr.Wrap(apperr.APICommunicationError, "Failed to process PDF", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("deepseek.complete.read_failed", "error", err)
		return nil, apperr.Wrap(apperr.APICommunicationError, "Failed to read API response", err)
	}
	result, err := parseResponse(raw)
	if err != nil {
		logger.Error("deepseek.complete.invalid_response", "error", err, "bytes", len(raw))
		return nil, err
	}
	logger.Info("deepseek.complete.done", "id", result.ID)
	logger.Debug("deepseek.complete.usage", "usage", result.Usage)
	return result, nil
}

// Stream opens a streamed request for doc. The returned Stream must be
// closed by the caller.
func (c *Client) Stream(ctx context.Context, doc *model.Document, prompt string) (*Stream, error) {
	logger := c.logger.With("op", operationID(), "file", fileName(doc))
	logger.Info("deepseek.stream.start")

	req, err := c.BuildRequest(doc, prompt, true)
	if err != nil {
		logger.Error("deepseek.stream.build_failed", "error", err)
		return nil, err
	}
	resp, err := c.post(ctx, logger, req)
	if err != nil {
		logger.Error("deepseek.stream.failed", "error", err)
		return nil, apperr.Wrap(apperr.StreamProcessingError, "Error during stream processing", err)
	}
	return newStream(resp.Body, logger), nil
}

// post sends req and returns the response when the status is 2xx. The
// caller owns the body.
func (c *Client) post(ctx context.Context, logger *slog.Logger, req *ChatCompletionRequest) (*http.Response, error) {
	reqID := uuid.NewString()
	start := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	logger.Debug("deepseek.http.request",
		"req_id", reqID,
		"url", c.endpoint,
		"content_length", len(body),
		"stream", req.Stream,
	)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Error("deepseek.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	logger.Debug("deepseek.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		return nil, fmt.Errorf("non-2xx status: %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}

func operationID() string {
	return fmt.Sprintf("OP%d", time.Now().UnixMilli()%10000)
}

func fileName(doc *model.Document) string {
	if doc == nil {
		return ""
	}
	return doc.FileName
}
