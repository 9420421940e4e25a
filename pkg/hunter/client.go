// Package hunter provides a client for the Hunter.io domain search API.
package hunter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

// Client defines the Hunter.io operations.
type Client interface {
	// DomainSearch returns every address Hunter knows for a domain.
	DomainSearch(ctx context.Context, req SearchRequest) (*DomainResult, error)
}

// SearchRequest is one domain search call.
type SearchRequest struct {
	Domain string
	Proxy  *url.URL // nil for a direct connection
}

// DomainResult is the data block of a domain search response.
type DomainResult struct {
	Domain string  `json:"domain"`
	Emails []Email `json:"emails"`
}

// Email is one discovered address.
type Email struct {
	Value      string   `json:"value"`
	Type       string   `json:"type"`
	Confidence int      `json:"confidence"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Position   string   `json:"position"`
	Sources    []Source `json:"sources"`
}

// Source is one page where an address was seen.
type Source struct {
	URI string `json:"uri"`
}

type searchResponse struct {
	Data DomainResult `json:"data"`
}

// Option configures the Hunter client.
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

// NewClient creates a new Hunter.io client for one API key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    "https://api.hunter.io/v2",
		timeout:    20 * time.Second,
		transports: make(map[string]*http.Transport),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

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

func (c *httpClient) DomainSearch(ctx context.Context, req SearchRequest) (*DomainResult, error) {
	q := url.Values{}
	q.Set("domain", req.Domain)
	q.Set("api_key", c.apiKey)
	reqURL := fmt.Sprintf("%s/domain-search?%s", c.baseURL, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: create request")
	}
	httpReq.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: c.timeout, Transport: c.transportFor(req.Proxy)}
	resp, err := client.Do(httpReq)
	if err != nil {
		err = eris.Wrap(err, "hunter: request failed")
		if resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(err, 0)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "hunter: read response body"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("hunter: status %d: %s", resp.StatusCode, string(body))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, resilience.NewRateLimitedError(statusErr, parseRetryAfter(resp.Header.Get("Retry-After")))
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		default:
			return nil, resilience.NewFatalCredentialError(statusErr, resp.StatusCode)
		}
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "hunter: unmarshal response"), resp.StatusCode)
	}
	return &result.Data, nil
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
