// Package strategy implements the per-category retrieval strategies that run
// on every intercepted request: cache-first for documents, scripts/styles and
// images, network-first for everything else.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lzyats/offagent/internal/classify"
	"github.com/lzyats/offagent/internal/metrics"
	"github.com/lzyats/offagent/internal/partition"
)

// ErrNetwork marks a transport-level fetch failure (includes timeouts and an
// open breaker). HTTP responses with non-200 status are not ErrNetwork; they
// are responses.
var ErrNetwork = errors.New("strategy: network failure")

// Fetcher performs the actual upstream request for one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (partition.Entry, error)
}

const unavailableBody = `<!doctype html><html><body><h1>Offline</h1><p>This page is not available right now.</p></body></html>`

// Engine resolves intercepted requests against the static and runtime
// partitions plus the network, per category. Partitions are resolved through
// the registry by name so an activation sweep never leaves the engine holding
// a dropped partition.
type Engine struct {
	reg         *partition.Registry
	staticName  string
	runtimeName string
	fetch       Fetcher
	fallbackKey string // designated document shell, usually "/"
	log         *zap.Logger
}

func New(reg *partition.Registry, staticName, runtimeName string, fetch Fetcher, fallbackKey string, log *zap.Logger) *Engine {
	return &Engine{
		reg:         reg,
		staticName:  staticName,
		runtimeName: runtimeName,
		fetch:       fetch,
		fallbackKey: fallbackKey,
		log:         log,
	}
}

// Handle resolves one intercepted request. key is the cache key (request
// path+query); url is what the fetcher is asked for. A returned error means
// the category has no fallback left and the failure is terminal for this
// request; errors never cross into other in-flight requests.
func (e *Engine) Handle(ctx context.Context, cat classify.Category, key, url string) (partition.Entry, error) {
	switch cat {
	case classify.Document:
		return e.document(ctx, key, url)
	case classify.Asset:
		return e.cacheFirst(ctx, e.reg.Open(e.staticName), key, url)
	case classify.Image:
		return e.cacheFirst(ctx, e.reg.Open(e.runtimeName), key, url)
	case classify.Other:
		return e.networkFirst(ctx, key, url)
	}
	return partition.Entry{}, fmt.Errorf("strategy: unknown category %d", cat)
}

// document is cache-first with a fallback ladder on network failure:
// cached shell, then a synthesized unavailable response. It never errors.
func (e *Engine) document(ctx context.Context, key, url string) (partition.Entry, error) {
	static := e.reg.Open(e.staticName)
	if hit, ok := static.Get(key); ok {
		metrics.CacheHits.Inc()
		return hit, nil
	}
	metrics.CacheMisses.Inc()

	resp, err := e.fetch.Fetch(ctx, url)
	if err == nil {
		e.writeBack(static, key, resp)
		return resp, nil
	}

	if shell, ok := static.Get(e.fallbackKey); ok {
		metrics.FallbacksServed.Inc()
		return shell, nil
	}
	metrics.UnavailableServed.Inc()
	e.log.Warn("document unreachable, serving unavailable page",
		zap.String("key", key), zap.Error(err))
	return partition.Entry{
		Status:      503,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(unavailableBody),
	}, nil
}

// cacheFirst serves assets and images: cache hit wins, otherwise the network
// result is written back. A network failure propagates; no substitute is
// synthesized.
func (e *Engine) cacheFirst(ctx context.Context, part *partition.Partition, key, url string) (partition.Entry, error) {
	if hit, ok := part.Get(key); ok {
		metrics.CacheHits.Inc()
		return hit, nil
	}
	metrics.CacheMisses.Inc()

	resp, err := e.fetch.Fetch(ctx, url)
	if err != nil {
		return partition.Entry{}, err
	}
	e.writeBack(part, key, resp)
	return resp, nil
}

// networkFirst serves API-like requests. The network is tried first; a
// transport failure or a non-200 response falls back to the runtime
// partition. With no cached copy, a non-200 response is returned as-is and a
// transport failure propagates.
func (e *Engine) networkFirst(ctx context.Context, key, url string) (partition.Entry, error) {
	runtime := e.reg.Open(e.runtimeName)

	resp, err := e.fetch.Fetch(ctx, url)
	if err == nil && resp.Cacheable() {
		e.writeBack(runtime, key, resp)
		return resp, nil
	}

	if hit, ok := runtime.Get(key); ok {
		metrics.FallbacksServed.Inc()
		return hit, nil
	}
	if err != nil {
		return partition.Entry{}, err
	}
	return resp, nil
}

// writeBack stores a cacheable response. It is a best-effort side effect of
// the response path: a refused write is logged and the response is returned
// regardless.
func (e *Engine) writeBack(part *partition.Partition, key string, resp partition.Entry) {
	if !resp.Cacheable() {
		return
	}
	if err := part.Put(key, resp); err != nil {
		metrics.WritebackFailures.Inc()
		e.log.Warn("cache writeback refused",
			zap.String("partition", part.Name()), zap.String("key", key), zap.Error(err))
	}
}
