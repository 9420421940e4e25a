// Package yelp provides a client for the Yelp Fusion business search API.
package yelp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

// Client defines the Yelp Fusion operations.
type Client interface {
	// SearchBusinesses runs a term+location search and returns all businesses
	// on the first page.
	SearchBusinesses(ctx context.Context, req SearchRequest) ([]Business, error)
}

// SearchRequest is one business search call.
type SearchRequest struct {
	Term     string
	Location string
	Limit    int      // default 50
	Proxy    *url.URL // nil for a direct connection
}

// Business is one listing from a search response.
type Business struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	URL      string        `json:"url"`
	Phone    string        `json:"phone"`
	Location Location      `json:"location"`
	Attrs    BusinessAttrs `json:"attributes"`
}

// Location holds the formatted address of a business.
type Location struct {
	DisplayAddress []string `json:"display_address"`
}

// BusinessAttrs holds the optional attributes block.
type BusinessAttrs struct {
	BusinessURL string `json:"business_url"`
}

// Address joins the display address into one line.
func (b Business) Address() string {
	return strings.Join(b.Location.DisplayAddress, ", ")
}

// Website returns the business's own site when Yelp knows it, falling back
// to the Yelp listing URL.
func (b Business) Website() string {
	if b.Attrs.BusinessURL != "" {
		return b.Attrs.BusinessURL
	}
	return b.URL
}

type searchResponse struct {
	Businesses []Business `json:"businesses"`
	Total      int        `json:"total"`
}

// Option configures the Yelp client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.timeout = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration

	mu         sync.Mutex
	transports map[string]*http.Transport
}

// NewClient creates a new Yelp Fusion client for one API key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    "https://api.yelp.com/v3",
		timeout:    15 * time.Second,
		transports: make(map[string]*http.Transport),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// transportFor returns a transport routed through the given proxy. Transports
// are cached per endpoint so connections are reused across calls.
func (c *httpClient) transportFor(proxy *url.URL) *http.Transport {
	key := ""
	if proxy != nil {
		key = proxy.String()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.transports[key]; ok {
		return t
	}
	t := &http.Transport{
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxy != nil {
		t.Proxy = http.ProxyURL(proxy)
	}
	c.transports[key] = t
	return t
}

func (c *httpClient) SearchBusinesses(ctx context.Context, req SearchRequest) ([]Business, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	q := url.Values{}
	q.Set("term", req.Term)
	q.Set("location", req.Location)
	q.Set("limit", strconv.Itoa(limit))
	reqURL := fmt.Sprintf("%s/businesses/search?%s", c.baseURL, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "yelp: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: c.timeout, Transport: c.transportFor(req.Proxy)}
	resp, err := client.Do(httpReq)
	if err != nil {
		err = eris.Wrap(err, "yelp: request failed")
		if resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(err, 0)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "yelp: read response body"), resp.StatusCode)
	}

	if err := classifyStatus(resp, body); err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "yelp: unmarshal response"), resp.StatusCode)
	}
	return result.Businesses, nil
}

// classifyStatus maps a non-200 response to its failure class. 429 carries
// the Retry-After hint, retryable server statuses are transient, and any
// other status means the key or the request itself is unusable.
func classifyStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	err := eris.Errorf("yelp: status %d: %s", resp.StatusCode, string(body))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return resilience.NewRateLimitedError(err, parseRetryAfter(resp.Header.Get("Retry-After")))
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(err, resp.StatusCode)
	default:
		return resilience.NewFatalCredentialError(err, resp.StatusCode)
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
