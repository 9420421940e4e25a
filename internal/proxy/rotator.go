// Package proxy supplies one proxy endpoint per outbound HTTP attempt.
package proxy

import (
	"net/url"
	"sync"

	"github.com/rotisserie/eris"
)

// Rotator round-robins across the configured proxy list at the granularity of
// one call per invocation: every outbound attempt, including retries, asks for
// a fresh endpoint regardless of which provider instance issues the call.
// Proxies are assumed fungible; no health tracking happens here.
type Rotator struct {
	mu        sync.Mutex
	endpoints []*url.URL
	idx       int
}

// NewRotator parses the endpoint list. A disabled pool or empty list yields a
// rotator whose Next always returns nil (direct connection).
func NewRotator(endpoints []string, enabled bool) (*Rotator, error) {
	r := &Rotator{}
	if !enabled {
		return r, nil
	}
	for _, e := range endpoints {
		u, err := url.Parse(e)
		if err != nil {
			return nil, eris.Wrapf(err, "proxy: parse endpoint %q", e)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, eris.Errorf("proxy: endpoint %q needs a scheme and host", e)
		}
		r.endpoints = append(r.endpoints, u)
	}
	return r, nil
}

// Next returns the next proxy endpoint, or nil for a direct connection.
func (r *Rotator) Next() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.endpoints) == 0 {
		return nil
	}
	u := r.endpoints[r.idx%len(r.endpoints)]
	r.idx++
	return u
}

// Size returns the number of configured endpoints.
func (r *Rotator) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints)
}
