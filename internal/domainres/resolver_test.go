package domainres

import (
	"errors"
	"testing"
)

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name     string
		url      string
		want     string
		rejected bool
	}{
		{"plain https", "https://bluebottle.com/menu", "bluebottle.com", false},
		{"www stripped", "https://www.bluebottle.com", "bluebottle.com", false},
		{"deep subdomain stripped", "http://shop.eu.bluebottle.com", "bluebottle.com", false},
		{"upper-cased host", "HTTPS://BlueBottle.COM", "bluebottle.com", false},
		{"bare host", "bluebottle.com", "bluebottle.com", false},
		{"scheme-relative", "//bluebottle.com/about", "bluebottle.com", false},
		{"host with port", "https://bluebottle.com:8443", "bluebottle.com", false},
		{"multi-label public suffix", "https://www.acme.co.uk", "acme.co.uk", false},
		{"facebook rejected", "https://www.facebook.com/bluebottle", "", true},
		{"yelp rejected", "https://www.yelp.com/biz/blue-bottle", "", true},
		{"linkedin rejected", "https://linkedin.com/company/bluebottle", "", true},
		{"freemail rejected", "https://gmail.com", "", true},
		{"relative path rejected", "/biz/blue-bottle", "", true},
		{"empty rejected", "", "", true},
		{"hostless rejected", "https://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.url)
			if tt.rejected {
				if !errors.Is(err, ErrRejected) {
					t.Fatalf("expected ErrRejected, got %v (domain %q)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestResolver_ExtraDenylist(t *testing.T) {
	r := NewResolver("Example.com")

	if _, err := r.Resolve("https://www.example.com"); !errors.Is(err, ErrRejected) {
		t.Error("configured extra denylist entry must reject")
	}
	if _, err := r.Resolve("https://example.org"); err != nil {
		t.Errorf("unrelated domain must pass: %v", err)
	}
}

func TestResolver_SubdomainOfDeniedDomain(t *testing.T) {
	r := NewResolver()
	if _, err := r.Resolve("https://m.facebook.com/some-biz"); !errors.Is(err, ErrRejected) {
		t.Error("subdomains of denied domains must also be rejected")
	}
}

func TestResolver_IsPure(t *testing.T) {
	r := NewResolver()
	a, _ := r.Resolve("https://shop.bluebottle.com")
	b, _ := r.Resolve("https://shop.bluebottle.com")
	if a != b {
		t.Error("resolution must be deterministic")
	}
}
