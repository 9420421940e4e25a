// Package snov provides a client for the Snov.io domain email API.
package snov

import (
	"context"
	"encoding/json"
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

// Client defines the Snov.io operations.
type Client interface {
	// DomainEmails returns the addresses Snov knows for a domain.
	DomainEmails(ctx context.Context, req SearchRequest) ([]Email, error)
}

// SearchRequest is one domain email lookup.
type SearchRequest struct {
	Domain string
	Proxy  *url.URL // nil for a direct connection
}

// Email is one discovered address with its prospect info.
type Email struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Position  string `json:"position"`
}

type searchResponse struct {
	Success bool    `json:"success"`
	Emails  []Email `json:"emails"`
}

// Option configures the Snov client.
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
	token   string
	baseURL string
	timeout time.Duration

	mu         sync.Mutex
	transports map[string]*http.Transport
}

// NewClient creates a new Snov.io client for one access token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:      token,
		baseURL:    "https://api.snov.io/v2",
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

func (c *httpClient) DomainEmails(ctx context.Context, req SearchRequest) ([]Email, error) {
	form := url.Values{}
	form.Set("domain", req.Domain)
	form.Set("type", "all")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/domain-emails-with-info", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "snov: create request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	client := &http.Client{Timeout: c.timeout, Transport: c.transportFor(req.Proxy)}
	resp, err := client.Do(httpReq)
	if err != nil {
		err = eris.Wrap(err, "snov: request failed")
		if resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(err, 0)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "snov: read response body"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("snov: status %d: %s", resp.StatusCode, string(body))
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
		return nil, resilience.NewTransientError(eris.Wrap(err, "snov: unmarshal response"), resp.StatusCode)
	}
	return result.Emails, nil
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
