package hunter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

func TestDomainSearch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/domain-search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("unexpected api key: %q", got)
		}
		if got := r.URL.Query().Get("domain"); got != "bluebottle.com" {
			t.Errorf("unexpected domain: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"domain": "bluebottle.com",
				"emails": [{
					"value": "jane@bluebottle.com",
					"type": "personal",
					"confidence": 94,
					"first_name": "Jane",
					"last_name": "Doe",
					"position": "Owner",
					"sources": [{"uri": "https://bluebottle.com/about"}]
				}]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	result, err := c.DomainSearch(context.Background(), SearchRequest{Domain: "bluebottle.com"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Domain != "bluebottle.com" || len(result.Emails) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	e := result.Emails[0]
	if e.Value != "jane@bluebottle.com" || e.Confidence != 94 || len(e.Sources) != 1 {
		t.Errorf("unexpected email: %+v", e)
	}
}

func TestDomainSearch_RateLimitedWithoutHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.DomainSearch(context.Background(), SearchRequest{Domain: "x.com"})

	var rl *resilience.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %T: %v", err, err)
	}
	// No Retry-After header means no hint; the caller picks the backoff.
	if rl.RetryAfter != 0 {
		t.Errorf("expected zero retry hint, got %s", rl.RetryAfter)
	}
}

func TestDomainSearch_QuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.DomainSearch(context.Background(), SearchRequest{Domain: "x.com"})

	if resilience.Classify(err) != resilience.OutcomeFatal {
		t.Errorf("expected fatal outcome for exhausted plan, got %v", resilience.Classify(err))
	}
}

func TestDomainSearch_UnexpectedStatusIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.DomainSearch(context.Background(), SearchRequest{Domain: "x.com"})

	if resilience.Classify(err) != resilience.OutcomeFatal {
		t.Errorf("expected fatal outcome for misconfigured request, got %v", resilience.Classify(err))
	}
}

func TestDomainSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.DomainSearch(context.Background(), SearchRequest{Domain: "x.com"})

	if resilience.Classify(err) != resilience.OutcomeTransient {
		t.Errorf("expected transient outcome, got %v", resilience.Classify(err))
	}
}
