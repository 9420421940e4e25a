package yelp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

func TestSearchBusinesses_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if r.URL.Path != "/businesses/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("term"); got != "coffee shops" {
			t.Errorf("unexpected term: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"total": 1,
			"businesses": [{
				"id": "abc123",
				"name": "Blue Bottle Coffee",
				"url": "https://www.yelp.com/biz/blue-bottle",
				"phone": "+15125550100",
				"location": {"display_address": ["123 Main St", "Austin, TX 78701"]},
				"attributes": {"business_url": "https://bluebottle.com"}
			}]
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	businesses, err := c.SearchBusinesses(context.Background(), SearchRequest{
		Term: "coffee shops", Location: "austin, tx",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(businesses) != 1 {
		t.Fatalf("expected 1 business, got %d", len(businesses))
	}
	b := businesses[0]
	if b.Name != "Blue Bottle Coffee" {
		t.Errorf("unexpected name: %q", b.Name)
	}
	if got := b.Address(); got != "123 Main St, Austin, TX 78701" {
		t.Errorf("unexpected address: %q", got)
	}
	if got := b.Website(); got != "https://bluebottle.com" {
		t.Errorf("expected business site over listing url, got %q", got)
	}
}

func TestSearchBusinesses_WebsiteFallsBackToListing(t *testing.T) {
	b := Business{URL: "https://www.yelp.com/biz/x"}
	if got := b.Website(); got != "https://www.yelp.com/biz/x" {
		t.Errorf("unexpected website: %q", got)
	}
}

func TestSearchBusinesses_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.SearchBusinesses(context.Background(), SearchRequest{Term: "a", Location: "b"})
	if err == nil {
		t.Fatal("expected error")
	}

	var rl *resilience.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %T: %v", err, err)
	}
	if rl.RetryAfter.Seconds() != 120 {
		t.Errorf("expected 120s retry hint, got %s", rl.RetryAfter)
	}
}

func TestSearchBusinesses_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := c.SearchBusinesses(context.Background(), SearchRequest{Term: "a", Location: "b"})

	var fatal *resilience.FatalCredentialError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalCredentialError, got %T: %v", err, err)
	}
	if resilience.Classify(err) != resilience.OutcomeFatal {
		t.Error("expected fatal outcome")
	}
}

func TestSearchBusinesses_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.SearchBusinesses(context.Background(), SearchRequest{Term: "a", Location: "b"})

	var tr *resilience.TransientError
	if !errors.As(err, &tr) {
		t.Fatalf("expected TransientError, got %T: %v", err, err)
	}
	if tr.StatusCode != http.StatusBadGateway {
		t.Errorf("unexpected status: %d", tr.StatusCode)
	}
}

func TestSearchBusinesses_UnexpectedStatusIsFatal(t *testing.T) {
	// A 404 means the endpoint or request is misconfigured; retrying the same
	// request on this key cannot help.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.SearchBusinesses(context.Background(), SearchRequest{Term: "a", Location: "b"})

	var fatal *resilience.FatalCredentialError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalCredentialError, got %T: %v", err, err)
	}
	if fatal.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected status: %d", fatal.StatusCode)
	}
}

func TestSearchBusinesses_ConnectionRefused(t *testing.T) {
	// A server that is already closed refuses connections.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.SearchBusinesses(context.Background(), SearchRequest{Term: "a", Location: "b"})

	if resilience.Classify(err) != resilience.OutcomeTransient {
		t.Errorf("expected transient outcome for refused connection, got %v", resilience.Classify(err))
	}
}
