// Package client is a typed HTTP client for the IzzoCam commentary API.
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

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/ratelimit"
	"github.com/splax/izzocam/internal/service/monitoring"
	"github.com/splax/izzocam/internal/service/recap"
)

// Client provides typed access to the IzzoCam API for interactive tools.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithUserID sends id as X-User-ID on every request.
func WithUserID(id string) Option {
	return func(c *Client) {
		c.userID = strings.TrimSpace(id)
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API. RetryAfter is set on
// rate-limited responses.
type APIError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("api request failed (%d): %s (retry in %s)", e.Status, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return apiErr
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if payload.Message != "" {
		return strings.TrimSpace(payload.Message)
	}
	return strings.TrimSpace(payload.Error)
}

// SystemStatus accompanies the commentary config.
type SystemStatus struct {
	CommentaryEnabled   bool       `json:"commentaryEnabled"`
	LastSuccessfulRecap *time.Time `json:"lastSuccessfulRecap"`
}

// ConfigResponse is returned by the config endpoints.
type ConfigResponse struct {
	Config       domain.CommentaryConfig `json:"config"`
	SystemStatus *SystemStatus           `json:"systemStatus,omitempty"`
}

// UsageResponse wraps a usage summary.
type UsageResponse struct {
	Window  string              `json:"window"`
	Summary domain.UsageSummary `json:"summary"`
}

// ErrorsResponse wraps an error summary.
type ErrorsResponse struct {
	Window  string              `json:"window"`
	Summary domain.ErrorSummary `json:"summary"`
}

// RateLimitResponse lists an identity's limiter counters.
type RateLimitResponse struct {
	Identity string            `json:"identity"`
	Limiters []ratelimit.Usage `json:"limiters"`
}

// Latest lists up to limit recent entries, newest first.
func (c *Client) Latest(ctx context.Context, limit int) ([]domain.CommentaryEntry, error) {
	path := "/commentary/latest"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Entries []domain.CommentaryEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// LatestHourly returns the most recent hourly recap.
func (c *Client) LatestHourly(ctx context.Context) (domain.CommentaryEntry, error) {
	var resp struct {
		Entry domain.CommentaryEntry `json:"entry"`
	}
	err := c.do(ctx, http.MethodGet, "/commentary/latest/hourly", nil, "", &resp)
	return resp.Entry, err
}

// Request asks for an on-demand commentary as the configured user.
func (c *Client) Request(ctx context.Context) (domain.CommentaryEntry, error) {
	var resp struct {
		Entry domain.CommentaryEntry `json:"entry"`
	}
	err := c.do(ctx, http.MethodPost, "/commentary/request", nil, "", &resp)
	return resp.Entry, err
}

// Generate triggers a generation with the scheduler token.
func (c *Client) Generate(ctx context.Context, token string, mode domain.CommentaryMode, since *time.Time) (domain.CommentaryEntry, error) {
	body := map[string]any{"mode": mode}
	if since != nil {
		body["since"] = since.UTC()
	}
	var resp struct {
		Entry domain.CommentaryEntry `json:"entry"`
	}
	err := c.do(ctx, http.MethodPost, "/commentary/generate", body, token, &resp)
	return resp.Entry, err
}

// Recap runs the guarded hourly recap.
func (c *Client) Recap(ctx context.Context, token string) (recap.Result, error) {
	var resp recap.Result
	err := c.do(ctx, http.MethodPost, "/cron/generate-recap", nil, token, &resp)
	return resp, err
}

// CheckCosts runs the cost alert check.
func (c *Client) CheckCosts(ctx context.Context, token string) (monitoring.CostCheck, error) {
	var resp monitoring.CostCheck
	err := c.do(ctx, http.MethodPost, "/cron/monitor-costs", nil, token, &resp)
	return resp, err
}

// Usage summarises usage over window, for example "24h" or "7d".
func (c *Client) Usage(ctx context.Context, token, window string) (UsageResponse, error) {
	var resp UsageResponse
	err := c.do(ctx, http.MethodGet, "/monitoring/usage"+windowQuery(window), nil, token, &resp)
	return resp, err
}

// Errors summarises recorded errors over window.
func (c *Client) Errors(ctx context.Context, token, window string) (ErrorsResponse, error) {
	var resp ErrorsResponse
	err := c.do(ctx, http.MethodGet, "/monitoring/errors"+windowQuery(window), nil, token, &resp)
	return resp, err
}

// RateLimit reports limiter counters for identity, e.g. "user:abc".
func (c *Client) RateLimit(ctx context.Context, token, identity string) (RateLimitResponse, error) {
	var resp RateLimitResponse
	path := "/monitoring/ratelimit?identity=" + url.QueryEscape(identity)
	err := c.do(ctx, http.MethodGet, path, nil, token, &resp)
	return resp, err
}

// Health returns the monitoring health report.
func (c *Client) Health(ctx context.Context) (monitoring.Health, error) {
	var resp monitoring.Health
	err := c.do(ctx, http.MethodGet, "/monitoring/health", nil, "", &resp)
	return resp, err
}

// Config fetches the commentary config and system status.
func (c *Client) Config(ctx context.Context) (ConfigResponse, error) {
	var resp ConfigResponse
	err := c.do(ctx, http.MethodGet, "/commentary/config", nil, "", &resp)
	return resp, err
}

// UpdateConfig applies a partial config update with the admin token.
func (c *Client) UpdateConfig(ctx context.Context, token string, patch domain.CommentaryConfig) (domain.CommentaryConfig, error) {
	var resp ConfigResponse
	err := c.do(ctx, http.MethodPut, "/commentary/config", patch, token, &resp)
	return resp.Config, err
}

func windowQuery(window string) string {
	window = strings.TrimSpace(window)
	if window == "" {
		return ""
	}
	return "?window=" + url.QueryEscape(window)
}
