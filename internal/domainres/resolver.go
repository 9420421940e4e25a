// Package domainres derives canonical registrable domains from company URLs.
package domainres

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/publicsuffix"
)

// ErrRejected is returned when a URL resolves to a platform or freemail
// domain, or to no usable host at all. A rejection is a filtering decision,
// not a failure.
var ErrRejected = eris.New("domain rejected")

// platformDomains lists registrable domains that never identify a business's
// own website: listing providers, social platforms, and freemail hosts.
var platformDomains = []string{
	"yelp.com",
	"google.com",
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"foursquare.com",
	"yellowpages.com",
	"gmail.com",
	"yahoo.com",
	"hotmail.com",
	"outlook.com",
	"aol.com",
	"icloud.com",
	"live.com",
	"msn.com",
}

// Resolver normalizes company URLs into registrable domains and filters out
// non-business domains. Deterministic and pure: no network, no state.
type Resolver struct {
	deny map[string]struct{}
}

// NewResolver builds a resolver with the standard denylist plus any extra
// registrable domains from configuration.
func NewResolver(extraDeny ...string) *Resolver {
	deny := make(map[string]struct{}, len(platformDomains)+len(extraDeny))
	for _, d := range platformDomains {
		deny[d] = struct{}{}
	}
	for _, d := range extraDeny {
		deny[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return &Resolver{deny: deny}
}

// Resolve extracts the host from rawURL, strips subdomains down to the
// registrable (public-suffix aware) domain, lower-cases it, and rejects
// denylisted or hostless URLs with ErrRejected.
func (r *Resolver) Resolve(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrRejected
	}

	// Scheme-relative and bare-host inputs show up in listing data.
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	} else if strings.HasPrefix(rawURL, "/") {
		return "", ErrRejected // relative path without a base
	} else if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", ErrRejected
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", ErrRejected
	}

	if _, denied := r.deny[domain]; denied {
		return "", ErrRejected
	}
	return domain, nil
}
