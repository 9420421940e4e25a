// Package googleplaces provides a client for the Google Places text search API.
package googleplaces

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

const fieldMask = "places.id,places.displayName,places.websiteUri,places.formattedAddress,places.nationalPhoneNumber"

// Client defines the Places API operations.
type Client interface {
	// SearchText runs a text search ("coffee shops in austin, tx") and
	// returns the matching places.
	SearchText(ctx context.Context, req SearchRequest) ([]Place, error)
}

// SearchRequest is one text search call.
type SearchRequest struct {
	Query string
	Proxy *url.URL // nil for a direct connection
}

// Place is one result from a text search.
type Place struct {
	ID          string      `json:"id"`
	DisplayName DisplayName `json:"displayName"`
	WebsiteURI  string      `json:"websiteUri"`
	Address     string      `json:"formattedAddress"`
	Phone       string      `json:"nationalPhoneNumber"`
}

// DisplayName is the localized place name.
type DisplayName struct {
	Text string `json:"text"`
}

type searchResponse struct {
	Places []Place `json:"places"`
}

// Option configures the Places client.
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

// NewClient creates a new Places client for one API key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    "https://places.googleapis.com/v1",
		timeout:    15 * time.Second,
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

func (c *httpClient) SearchText(ctx context.Context, req SearchRequest) ([]Place, error) {
	payload, err := json.Marshal(map[string]string{"textQuery": req.Query})
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/places:searchText", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", fieldMask)

	client := &http.Client{Timeout: c.timeout, Transport: c.transportFor(req.Proxy)}
	resp, err := client.Do(httpReq)
	if err != nil {
		err = eris.Wrap(err, "places: request failed")
		if resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(err, 0)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "places: read response body"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("places: status %d: %s", resp.StatusCode, string(body))
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
		return nil, resilience.NewTransientError(eris.Wrap(err, "places: unmarshal response"), resp.StatusCode)
	}
	return result.Places, nil
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
