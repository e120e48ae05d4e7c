package stacks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 0
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Client against the Stacks node REST API.
type HTTPClient struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	metrics     *observability.Metrics
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithMetrics records call latency and errors.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *HTTPClient) {
		c.metrics = m
	}
}

// NewHTTPClient creates a client for the node API at baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// statusError is a non-2xx answer. Body is kept for callers that can
// interpret it.
type statusError struct {
	Code int
	Body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, strings.TrimSpace(string(e.Body)))
}

func (e *statusError) Unwrap() error {
	return domain.ErrConnectivity
}

// do performs an HTTP request with retries and exponential backoff.
// Transport failures and retryable statuses are retried; other statuses
// return a *statusError immediately.
func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body []byte) (respBody []byte, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordChainCall(metricName(path), time.Since(start).Seconds(), err)
	}()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrConnectivity, ctx.Err())
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: http request: %v", domain.ErrConnectivity, err)
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read response: %v", domain.ErrConnectivity, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &statusError{Code: resp.StatusCode, Body: data}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return data, &statusError{Code: resp.StatusCode, Body: data}
		}

		return data, nil
	}

	if c.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// metricName collapses a request path to its endpoint family.
func metricName(path string) string {
	switch {
	case strings.HasPrefix(path, "/v2/contracts/call-read/"):
		return "call-read"
	case strings.HasPrefix(path, "/v2/accounts/"):
		return "account"
	case strings.HasPrefix(path, "/v2/transactions"):
		return "broadcast"
	}
	return "other"
}

// readOnlyRequest is the body of a call-read request.
type readOnlyRequest struct {
	Sender    string   `json:"sender"`
	Arguments []string `json:"arguments"`
}

// readOnlyResponse is the raw API response for call-read.
type readOnlyResponse struct {
	Okay   *bool  `json:"okay"`
	Result string `json:"result"`
	Cause  string `json:"cause"`
}

// CallReadOnly evaluates a read-only contract function.
func (c *HTTPClient) CallReadOnly(ctx context.Context, call ReadOnlyCall) (*ReadOnlyResult, error) {
	args := call.Args
	if args == nil {
		args = []string{}
	}
	sender := call.Sender
	if sender == "" {
		sender = call.ContractAddress
	}
	body, err := json.Marshal(readOnlyRequest{Sender: sender, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	path := fmt.Sprintf("/v2/contracts/call-read/%s/%s/%s",
		url.PathEscape(call.ContractAddress), url.PathEscape(call.ContractName), url.PathEscape(call.FunctionName))

	data, err := c.do(ctx, http.MethodPost, path, "application/json", body)
	if err != nil {
		// The node reports some contract failures with a non-2xx status
		// and a regular call-read body.
		if res, ok := decodeReadOnly(data); ok && !res.Okay {
			return res, nil
		}
		return nil, err
	}

	res, ok := decodeReadOnly(data)
	if !ok {
		return nil, fmt.Errorf("%w: call-read response: %s", domain.ErrDecoding, truncate(data))
	}
	return res, nil
}

func decodeReadOnly(data []byte) (*ReadOnlyResult, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var raw readOnlyResponse
	if err := json.Unmarshal(data, &raw); err != nil || raw.Okay == nil {
		return nil, false
	}
	if *raw.Okay && raw.Result == "" {
		return nil, false
	}
	return &ReadOnlyResult{Okay: *raw.Okay, Result: raw.Result, Cause: raw.Cause}, true
}

// accountResponse is the raw API response for an account lookup.
type accountResponse struct {
	Balance string  `json:"balance"`
	Nonce   *uint64 `json:"nonce"`
}

// GetAccountNonce returns the next nonce for principal.
func (c *HTTPClient) GetAccountNonce(ctx context.Context, principal string) (uint64, error) {
	data, err := c.do(ctx, http.MethodGet, "/v2/accounts/"+url.PathEscape(principal)+"?proof=0", "", nil)
	if err != nil {
		return 0, err
	}
	var raw accountResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("%w: account response: %v", domain.ErrDecoding, err)
	}
	if raw.Nonce == nil {
		return 0, fmt.Errorf("%w: account response without nonce", domain.ErrDecoding)
	}
	return *raw.Nonce, nil
}

// broadcastRejection is the body of a rejected broadcast.
type broadcastRejection struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
	TxID   string `json:"txid"`
}

// BroadcastError reports a transaction the node refused.
type BroadcastError struct {
	Reason string
	TxID   string
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("transaction %s rejected: %s", e.TxID, e.Reason)
}

// BroadcastTransaction submits a signed transaction.
func (c *HTTPClient) BroadcastTransaction(ctx context.Context, tx []byte) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/v2/transactions", "application/octet-stream", tx)
	if err != nil {
		var rej broadcastRejection
		if len(data) > 0 && json.Unmarshal(data, &rej) == nil && rej.Error != "" {
			reason := rej.Reason
			if reason == "" {
				reason = rej.Error
			}
			return "", &BroadcastError{Reason: reason, TxID: rej.TxID}
		}
		return "", err
	}

	var txid string
	if err := json.Unmarshal(data, &txid); err != nil {
		txid = strings.Trim(strings.TrimSpace(string(data)), `"`)
	}
	if txid == "" {
		return "", fmt.Errorf("%w: empty broadcast response", domain.ErrDecoding)
	}
	if !strings.HasPrefix(txid, "0x") {
		txid = "0x" + txid
	}
	return txid, nil
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
