package resilience

import (
	"net/http"
	"sync"
	"time"
)

// Transport is an http.RoundTripper that runs each request through a
// circuit breaker keyed by target host, so a flapping provider API cannot
// stall every call to it. Transport errors and 5xx responses count as
// failures; 4xx responses are the caller's problem and do not trip the
// breaker.
type Transport struct {
	base      http.RoundTripper
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewTransport wraps base with per-host circuit breaking. A nil base uses
// http.DefaultTransport.
func NewTransport(base http.RoundTripper, threshold int, cooldown time.Duration) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:      base,
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*Breaker),
	}
}

func (t *Transport) breaker(host string) *Breaker {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.breakers[host]
	if !ok {
		b = NewBreaker(t.threshold, t.cooldown)
		t.breakers[host] = b
	}
	return b
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	b := t.breaker(r.URL.Host)
	if !b.Allow() {
		return nil, ErrCircuitOpen
	}

	resp, err := t.base.RoundTrip(r)
	switch {
	case err != nil:
		b.Failure()
		return nil, err
	case resp.StatusCode >= 500:
		b.Failure()
	default:
		b.Success()
	}
	return resp, nil
}
