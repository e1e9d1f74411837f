package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"archflow/internal/services"
)

const defaultTimeout = 10 * time.Second

// maxResponseBytes caps gateway payloads.
const maxResponseBytes = 8 << 20

type searchResponse struct {
	Records []Record `json:"records"`
}

// HTTPClient queries a catalog gateway that answers
// GET <url>?field=<field>&value=<value> with {"records":[...]}.
type HTTPClient struct {
	id         string
	endpoint   string
	httpClient *http.Client
}

var _ Lookup = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the client timeout when positive.
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		if timeout > 0 {
			clone := *c.httpClient
			clone.Timeout = timeout
			c.httpClient = &clone
		}
	}
}

// NewHTTPClient creates a gateway client for the catalog id at endpoint.
func NewHTTPClient(id, endpoint string, opts ...Option) (*HTTPClient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("catalog id required")
	}
	endpoint = strings.TrimSpace(endpoint)
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("catalog %s: invalid url %q", id, endpoint)
	}
	client := &HTTPClient{
		id:         id,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ID returns the catalog id.
func (c *HTTPClient) ID() string { return c.id }

// Find queries the gateway.
func (c *HTTPClient) Find(ctx context.Context, field, value string) ([]Record, error) {
	field = strings.TrimSpace(field)
	value = strings.TrimSpace(value)
	if field == "" || value == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", c.id, "field and value are required", nil)
	}
	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, integrationError(c.id, "parse url", err)
	}
	params := endpoint.Query()
	params.Set("field", field)
	params.Set("value", value)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, integrationError(c.id, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, integrationError(c.id, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, integrationError(c.id, fmt.Sprintf("gateway returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, integrationError(c.id, "decode response", err)
	}
	return payload.Records, nil
}
