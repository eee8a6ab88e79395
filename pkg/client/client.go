// Package client is a Go client for the loan-support HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/iwvelando/loan-support/pkg/constants"
	"github.com/iwvelando/loan-support/pkg/eligibility"
	"go.uber.org/zap"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = 250 * time.Millisecond
	maxResponseBytes     = 4 << 20
)

// Config holds everything a Client needs. There is no ambient settings lookup;
// callers pass the base URL and token explicitly.
type Config struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Logger      *zap.Logger

	// MaxRetries bounds attempts for idempotent GET requests. Zero means 3.
	MaxRetries           uint
	RetryInitialInterval time.Duration
}

// Client calls the versioned API.
type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	logger        *zap.Logger
	maxRetries    uint
	retryInterval time.Duration
}

// HealthStatus is the health endpoint response.
type HealthStatus struct {
	Status string `json:"status"`
}

// IngestResult reports what an ingestion run processed.
type IngestResult struct {
	Status   string `json:"status"`
	Ingested struct {
		Pages  int `json:"pages"`
		Chunks int `json:"chunks"`
	} `json:"ingested"`
}

// EligibilityRequest is the body of an eligibility calculation. A nil
// LoanAmount asks the server to derive the EMI from income.
type EligibilityRequest struct {
	MonthlyIncome      float64  `json:"monthly_income"`
	MonthlyObligations float64  `json:"monthly_obligations"`
	ROI                float64  `json:"roi"`
	TenureMonths       int      `json:"tenure_months"`
	LoanAmount         *float64 `json:"loan_amount,omitempty"`
}

// HistoryEntry is one audited calculation.
type HistoryEntry struct {
	ID                 uint      `json:"id"`
	RequestID          string    `json:"request_id,omitempty"`
	MonthlyIncome      float64   `json:"monthly_income"`
	MonthlyObligations float64   `json:"monthly_obligations"`
	ROI                float64   `json:"roi"`
	TenureMonths       int       `json:"tenure_months"`
	LoanAmount         *float64  `json:"loan_amount,omitempty"`
	EMI                int64     `json:"emi"`
	FOIR               float64   `json:"foir"`
	EligibleLoanAmount int64     `json:"eligible_loan_amount"`
	CreatedAt          time.Time `json:"created_at"`
}

// New validates cfg and creates a Client. An empty BaseURL falls back to
// constants.DefaultAPIBase.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = constants.DefaultAPIBase
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid API base %q: %w", base, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid API base %q: scheme must be http or https", base)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid API base %q: missing host", base)
	}

	c := &Client{
		baseURL:       base,
		token:         strings.TrimSpace(cfg.BearerToken),
		httpClient:    cfg.HTTPClient,
		logger:        cfg.Logger,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInitialInterval,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.maxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.retryInterval <= 0 {
		c.retryInterval = defaultRetryInterval
	}
	return c, nil
}

// BaseURL returns the normalized API base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks the service, retrying transient failures.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Version returns the server build version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	err := c.do(ctx, http.MethodGet, "/version", nil, &out)
	return out.Version, err
}

// Ingest starts ingestion of path, or of the server default when path is empty.
func (c *Client) Ingest(ctx context.Context, path string) (IngestResult, error) {
	body := map[string]string{}
	if strings.TrimSpace(path) != "" {
		body["path"] = path
	}

	var out IngestResult
	err := c.do(ctx, http.MethodPost, "/ingest", body, &out)
	return out, err
}

// Ask sends a question and returns the answer. topK <= 0 means
// constants.DefaultTopK.
func (c *Client) Ask(ctx context.Context, query string, topK int) (string, error) {
	if topK <= 0 {
		topK = constants.DefaultTopK
	}
	body := struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}{Query: query, TopK: topK}

	var out struct {
		Answer string `json:"answer"`
	}
	err := c.do(ctx, http.MethodPost, "/chat/ask", body, &out)
	return out.Answer, err
}

// CalculateEligibility runs an eligibility calculation. It is never retried.
func (c *Client) CalculateEligibility(ctx context.Context, req EligibilityRequest) (eligibility.Result, error) {
	var out eligibility.Result
	err := c.do(ctx, http.MethodPost, "/eligibility/calculate", req, &out)
	return out, err
}

// History lists recent calculations, newest first. limit <= 0 uses the server
// default.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	path := "/eligibility/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out struct {
		Calculations []HistoryEntry `json:"calculations"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Calculations, err
}

// do sends one request and decodes a 2xx JSON body into out. GET requests are
// retried on transport failures and 502/503/504 responses.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = encoded
	}
	endpoint := c.baseURL + constants.APIPrefix + path

	operation := func() (struct{}, error) {
		return struct{}{}, c.attempt(ctx, method, endpoint, payload, out)
	}

	tries := uint(1)
	if method == http.MethodGet {
		tries = c.maxRetries
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxInterval = c.retryInterval * 10

	notify := func(err error, wait time.Duration) {
		c.logger.Info("retrying request",
			zap.String("op", "client.do"),
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(notify),
	)
	return err
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("request canceled: %w", err))
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, data)
		if retryableStatus(resp.StatusCode) {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
