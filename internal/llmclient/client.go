// Package llmclient provides the shared HTTP client used by all provider
// adapters: request marshaling, credential header injection, normalized
// error parsing and metrics hooks. Each request makes exactly one upstream
// attempt; the gateway performs no automatic retries.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/harbz07/mindbridge-router/internal/core"
	"github.com/harbz07/mindbridge-router/internal/httpclient"
)

// Hooks receives a callback for every completed upstream request.
// Implementations must be safe for concurrent use.
type Hooks interface {
	// ObserveUpstreamRequest is called once per upstream attempt with the
	// provider tag, the endpoint path, the upstream HTTP status (0 on
	// transport failure) and the attempt duration.
	ObserveUpstreamRequest(provider, endpoint string, status int, duration time.Duration)
}

// Config holds configuration for the client.
type Config struct {
	// ProviderTag identifies the provider in errors and metrics.
	ProviderTag string

	// BaseURL is the API base URL.
	BaseURL string

	// Timeout bounds each upstream call. Zero means the httpclient default.
	Timeout time.Duration

	// Hooks receives per-request observations. Optional.
	Hooks Hooks
}

// HeaderSetter is a function that sets headers on an HTTP request,
// typically attaching the provider's credential.
type HeaderSetter func(req *http.Request)

// Client is the shared HTTP client for provider adapters.
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
}

// New creates a new client with a pooled transport and bounded timeout.
func New(config Config, headerSetter HeaderSetter) *Client {
	return &Client{
		httpClient:   httpclient.NewWithTimeout(config.Timeout),
		config:       config,
		headerSetter: headerSetter,
	}
}

// NewWithHTTPClient creates a client with a caller-supplied HTTP client.
// Used by tests to point adapters at httptest servers.
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = httpclient.NewDefault()
	}
	return &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}
}

// SetBaseURL updates the base URL. Only called during adapter construction.
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Request represents an HTTP request to be made.
type Request struct {
	Method   string
	Endpoint string
	Body     interface{} // JSON marshaled if not nil
	Headers  map[string]string
	Query    map[string]string
}

// Do executes a request and unmarshals the response body into result.
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	body, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return core.NewUpstreamError(c.config.ProviderTag, 0, "failed to decode provider response", err)
		}
	}
	return nil
}

// DoRaw executes a request and returns the raw response body. Non-2xx
// responses and transport failures come back as *core.GatewayError.
func (c *Client) DoRaw(ctx context.Context, req Request) ([]byte, error) {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.ClassifyTransportError(c.config.ProviderTag, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, core.ParseUpstreamError(c.config.ProviderTag, resp.StatusCode, body)
	}
	return body, nil
}

// DoStream executes a streaming request, returning the raw response body.
// The caller must close it; the body is tied to the request context, so
// cancellation propagates to the upstream connection.
func (c *Client) DoStream(ctx context.Context, req Request) (io.ReadCloser, error) {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			body = nil
		}
		_ = resp.Body.Close() //nolint:errcheck
		return nil, core.ParseUpstreamError(c.config.ProviderTag, resp.StatusCode, body)
	}
	return resp.Body, nil
}

// roundTrip builds and sends the request, recording the observation hook.
func (c *Client) roundTrip(ctx context.Context, req Request) (*http.Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req.Endpoint, 0, time.Since(start))
		return nil, core.ClassifyTransportError(c.config.ProviderTag, err)
	}
	c.observe(req.Endpoint, resp.StatusCode, time.Since(start))
	return resp, nil
}

func (c *Client) observe(endpoint string, status int, duration time.Duration) {
	if c.config.Hooks != nil {
		c.config.Hooks.ObserveUpstreamRequest(c.config.ProviderTag, endpoint, status, duration)
	}
}

// buildRequest creates an HTTP request from a Request.
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := c.config.BaseURL + req.Endpoint

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewUpstreamError(c.config.ProviderTag, 0, "failed to encode provider request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, core.NewUpstreamError(c.config.ProviderTag, 0, "failed to build provider request", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for key, value := range req.Query {
			q.Set(key, value)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	return httpReq, nil
}
