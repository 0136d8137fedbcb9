package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpalmerr/sitewatch/internal/store"
)

// ErrInvalidURL is returned by [HTTPProber.Probe] for URLs rejected by [IsValidURL].
var ErrInvalidURL = errors.New("invalid URL")

// Prober checks a single URL and returns its HTTP status code.
//
// On failure the status is [store.FailedStatus] and err describes why.
type Prober interface {
	Probe(ctx context.Context, url string) (status int, err error)
}

// HTTPProber is a [Prober] that issues one GET request per probe.
type HTTPProber struct {
	client  *Client
	metrics *Metrics
}

// NewHTTPProber creates an [HTTPProber] with the given timeout.
// metrics may be nil.
func NewHTTPProber(timeout time.Duration, metrics *Metrics) *HTTPProber {
	return &HTTPProber{
		client:  NewClient(timeout),
		metrics: metrics,
	}
}

// Probe returns the status code the server answered with, including 4xx and
// 5xx codes. Invalid URLs are rejected without touching the network.
func (p *HTTPProber) Probe(ctx context.Context, url string) (int, error) {
	if !IsValidURL(url) {
		p.metrics.observeProbe(outcomeInvalid, 0)
		return store.FailedStatus, fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}

	resp := p.client.Fetch(ctx, url)
	if resp.Error != nil {
		p.metrics.observeProbe(outcomeError, resp.Latency)
		return store.FailedStatus, resp.Error
	}

	p.metrics.observeProbe(outcomeOK, resp.Latency)
	return resp.StatusCode, nil
}

// Close releases idle connections.
func (p *HTTPProber) Close() {
	p.client.Close()
}
