package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/delaycast/delaycast/pkg/types"
	"github.com/delaycast/delaycast/server/internal/predict"
)

const defaultTimeout = 10 * time.Second

// Options configure a Client.
type Options struct {
	// Endpoint is the server base URL, e.g. "http://localhost:8080".
	Endpoint string

	// APIKey is sent in Header on every request when non-empty.
	APIKey string
	Header string

	Timeout            time.Duration
	InsecureSkipVerify bool
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

// Client is a delaycast HTTP client. It is safe for concurrent use.
type Client struct {
	base string
	http *http.Client
}

// New builds a Client. The HTTP client is built once and reused.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("client: endpoint is required")
	}
	if !strings.HasPrefix(opts.Endpoint, "http://") && !strings.HasPrefix(opts.Endpoint, "https://") {
		return nil, fmt.Errorf("client: endpoint %q must start with http:// or https://", opts.Endpoint)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	header := opts.Header
	if header == "" {
		header = "x-api-key"
	}

	transport := &authRoundTripper{
		base: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}, //nolint:gosec // user-configured
		},
		header: header,
		key:    opts.APIKey,
	}
	return &Client{
		base: strings.TrimRight(opts.Endpoint, "/"),
		http: &http.Client{Transport: transport, Timeout: timeout},
	}, nil
}

// authRoundTripper injects the API key into every outgoing request.
type authRoundTripper struct {
	base   http.RoundTripper
	header string
	key    string
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.key != "" {
		req = req.Clone(req.Context())
		req.Header.Set(t.header, t.key)
	}
	return t.base.RoundTrip(req)
}

// Health calls GET /health and returns nil when the server reports OK.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "OK" {
		return fmt.Errorf("client: health status %q", out.Status)
	}
	return nil
}

// Predict posts flights to /predict and returns one label per flight.
func (c *Client) Predict(ctx context.Context, flights []types.Flight) ([]int, error) {
	body, err := json.Marshal(struct {
		Flights []types.Flight `json:"flights"`
	}{Flights: flights})
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}
	var out struct {
		Predict []int `json:"predict"`
	}
	if err := c.do(ctx, http.MethodPost, "/predict", body, &out); err != nil {
		return nil, err
	}
	if len(out.Predict) != len(flights) {
		return nil, fmt.Errorf("client: got %d predictions for %d flights", len(out.Predict), len(flights))
	}
	return out.Predict, nil
}

// Model fetches GET /api/v1/model.
func (c *Client) Model(ctx context.Context) (predict.ModelInfo, error) {
	var info predict.ModelInfo
	err := c.do(ctx, http.MethodGet, "/api/v1/model", nil, &info)
	return info, err
}

// Status scrapes GET /metrics and summarises the delaycast series.
func (c *Client) Status(ctx context.Context) (Status, error) {
	mfs, err := fetchMetrics(ctx, c.http, c.base+"/metrics")
	if err != nil {
		return Status{}, fmt.Errorf("client: scrape metrics: %w", err)
	}
	return statusFrom(mfs), nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Detail string `json:"detail"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Detail == "" {
			e.Detail = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Detail: e.Detail}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s response: %w", path, err)
	}
	return nil
}
