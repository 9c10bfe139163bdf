package strategy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lzyats/offagent/internal/breaker"
	"github.com/lzyats/offagent/internal/metrics"
	"github.com/lzyats/offagent/internal/partition"
)

// HTTPFetcher fetches upstream resources over HTTP. Relative URLs are
// resolved against Base. An optional breaker refuses fetches to hosts that
// are currently failing; a refused fetch is an ordinary network failure for
// fallback purposes.
type HTTPFetcher struct {
	Client  *http.Client
	Base    string // upstream origin, e.g. "http://10.0.0.12:8080"
	Breaker *breaker.Breaker
}

func NewHTTPFetcher(base string, timeout time.Duration, br *breaker.Breaker) *HTTPFetcher {
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: timeout},
		Base:    strings.TrimRight(base, "/"),
		Breaker: br,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (partition.Entry, error) {
	target := rawURL
	if strings.HasPrefix(target, "/") {
		target = f.Base + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return partition.Entry{}, fmt.Errorf("%w: bad url %q: %v", ErrNetwork, rawURL, err)
	}

	host := u.Host
	if f.Breaker != nil && !f.Breaker.Allow(host) {
		metrics.BreakerRefused.Inc()
		return partition.Entry{}, fmt.Errorf("%w: breaker open for %s", ErrNetwork, host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return partition.Entry{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		// Timeouts land here too; they are ordinary network failures.
		if f.Breaker != nil && f.Breaker.Failure(host) {
			metrics.BreakerOpened.Inc()
		}
		metrics.NetworkFailures.Inc()
		return partition.Entry{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if f.Breaker != nil && f.Breaker.Failure(host) {
			metrics.BreakerOpened.Inc()
		}
		metrics.NetworkFailures.Inc()
		return partition.Entry{}, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	if f.Breaker != nil {
		f.Breaker.Success(host)
	}
	return partition.Entry{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
