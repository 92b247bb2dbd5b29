// Package proxy intercepts outbound HTTP requests and applies a caching policy
// per request class: network-first for the rate API, cache-first for everything else.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
	"github.com/damon-houk/rate-sync-client/internal/domain/repository"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/metrics"
)

const (
	// Header reports how the proxy served a response
	Header = entity.CacheSourceHeader
	// StoredAtHeader carries the storage time of a cached response
	StoredAtHeader = entity.CacheStoredAtHeader

	resultHit      = entity.CacheSourceHit
	resultNetwork  = entity.CacheSourceNetwork
	resultFallback = entity.CacheSourceFallback
	resultMiss     = "miss"
	resultBypass   = "bypass"
)

// Config describes the proxy's partitions and request classification
type Config struct {
	// Version is appended to the partition names; bumping it retires the old partitions
	Version string
	// APIHosts are the hosts whose requests use the network-first policy
	APIHosts []string
	// StaticAssets are pre-populated into the static partition on Install
	StaticAssets []string
}

// CacheProxy is an http.RoundTripper applying the caching policies
type CacheProxy struct {
	next            http.RoundTripper
	store           repository.CacheRepository
	apiHosts        map[string]struct{}
	staticAssets    []string
	staticPartition string
	apiPartition    string
	active          atomic.Bool
	logger          logger.Logger
	now             func() time.Time
}

// NewCacheProxy creates a proxy in front of next. It passes requests through
// untouched until Activate has run.
func NewCacheProxy(next http.RoundTripper, store repository.CacheRepository, cfg Config, log logger.Logger) *CacheProxy {
	if next == nil {
		next = http.DefaultTransport
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	version := cfg.Version
	if version == "" {
		version = "v1"
	}

	hosts := make(map[string]struct{}, len(cfg.APIHosts))
	for _, h := range cfg.APIHosts {
		hosts[strings.ToLower(h)] = struct{}{}
	}

	return &CacheProxy{
		next:            next,
		store:           store,
		apiHosts:        hosts,
		staticAssets:    cfg.StaticAssets,
		staticPartition: "static-" + version,
		apiPartition:    "api-" + version,
		logger:          log.WithField("component", "cache_proxy"),
		now:             time.Now,
	}
}

// StaticPartition returns the name of the current static-asset partition
func (p *CacheProxy) StaticPartition() string { return p.staticPartition }

// APIPartition returns the name of the current API-response partition
func (p *CacheProxy) APIPartition() string { return p.apiPartition }

// Active reports whether the proxy intercepts requests
func (p *CacheProxy) Active() bool { return p.active.Load() }

// Install pre-populates the static partition with the configured assets.
// Any asset that cannot be fetched fails the install.
func (p *CacheProxy) Install(ctx context.Context) error {
	for _, asset := range p.staticAssets {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
		if err != nil {
			return fmt.Errorf("failed to create request for %s: %w", asset, err)
		}

		resp, err := p.next.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("failed to fetch static asset %s: %w", asset, err)
		}

		entry, err := p.capture(req, resp)
		if err != nil {
			return fmt.Errorf("failed to read static asset %s: %w", asset, err)
		}
		if !isSuccess(entry.StatusCode) {
			return fmt.Errorf("static asset %s returned status %d", asset, entry.StatusCode)
		}

		if err := p.store.Put(ctx, p.staticPartition, entry.Identity(), entry); err != nil {
			return fmt.Errorf("failed to cache static asset %s: %w", asset, err)
		}
	}

	p.logger.Info("Cache proxy installed", map[string]interface{}{
		"partition": p.staticPartition,
		"assets":    len(p.staticAssets),
	})
	return nil
}

// Activate deletes partitions left behind by other versions and starts intercepting
func (p *CacheProxy) Activate(ctx context.Context) error {
	names, err := p.store.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cache partitions: %w", err)
	}

	for _, name := range names {
		if name == p.staticPartition || name == p.apiPartition {
			continue
		}
		if err := p.store.DropPartition(ctx, name); err != nil {
			return fmt.Errorf("failed to delete stale partition %s: %w", name, err)
		}
		p.logger.Info("Deleted stale cache partition", map[string]interface{}{
			"partition": name,
		})
	}

	p.active.Store(true)
	return nil
}

// IsAPIRequest reports whether req targets one of the API hosts
func (p *CacheProxy) IsAPIRequest(req *http.Request) bool {
	_, ok := p.apiHosts[strings.ToLower(req.URL.Hostname())]
	if !ok {
		_, ok = p.apiHosts[strings.ToLower(req.URL.Host)]
	}
	return ok
}

// RoundTrip applies the caching policy for the request's class
func (p *CacheProxy) RoundTrip(req *http.Request) (*http.Response, error) {
	if !p.active.Load() || req.Method != http.MethodGet {
		metrics.ObserveProxy("none", resultBypass)
		return p.next.RoundTrip(req)
	}

	if p.IsAPIRequest(req) {
		return p.networkFirst(req)
	}
	return p.cacheFirst(req)
}

// networkFirst serves API requests live and falls back to the last stored response
func (p *CacheProxy) networkFirst(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := entity.RequestIdentity(req.Method, req.URL.String())

	resp, err := p.next.RoundTrip(req)
	if err == nil {
		if !isSuccess(resp.StatusCode) {
			metrics.ObserveProxy(p.apiPartition, resultNetwork)
			return resp, nil
		}

		entry, captureErr := p.capture(req, resp)
		if captureErr == nil {
			if putErr := p.store.Put(ctx, p.apiPartition, key, entry); putErr != nil {
				p.logger.Warn("Failed to cache API response", map[string]interface{}{
					"url":   req.URL.String(),
					"error": putErr.Error(),
				})
			}

			metrics.ObserveProxy(p.apiPartition, resultNetwork)
			return toResponse(entry, req, resultNetwork), nil
		}
		// A connection lost mid-body is a network failure like any other
		err = captureErr
	}

	// The caller abandoned the request; a cached answer would arrive too late
	if ctx.Err() != nil {
		return nil, err
	}

	return p.fallback(ctx, req, key, err)
}

// fallback answers a failed API request from the API partition, or returns cause
func (p *CacheProxy) fallback(ctx context.Context, req *http.Request, key string, cause error) (*http.Response, error) {
	entry, err := p.store.Get(ctx, p.apiPartition, key)
	if err != nil {
		p.logger.Error("Failed to read API cache", map[string]interface{}{
			"url":   req.URL.String(),
			"error": err.Error(),
		})
		return nil, cause
	}
	if entry == nil {
		metrics.ObserveProxy(p.apiPartition, resultMiss)
		return nil, cause
	}

	p.logger.Warn("Serving cached API response", map[string]interface{}{
		"url":       req.URL.String(),
		"stored_at": entry.StoredAt.Format(time.RFC3339),
		"error":     cause.Error(),
	})
	metrics.ObserveProxy(p.apiPartition, resultFallback)
	return toResponse(entry, req, resultFallback), nil
}

// cacheFirst serves static requests from the static partition when possible
func (p *CacheProxy) cacheFirst(req *http.Request) (*http.Response, error) {
	key := entity.RequestIdentity(req.Method, req.URL.String())

	entry, err := p.store.Get(req.Context(), p.staticPartition, key)
	if err != nil {
		p.logger.Warn("Failed to read static cache", map[string]interface{}{
			"url":   req.URL.String(),
			"error": err.Error(),
		})
	}
	if entry != nil {
		metrics.ObserveProxy(p.staticPartition, resultHit)
		return toResponse(entry, req, resultHit), nil
	}

	metrics.ObserveProxy(p.staticPartition, resultMiss)
	return p.next.RoundTrip(req)
}

// capture drains resp into a cache entry; the caller gets a response rebuilt from it
func (p *CacheProxy) capture(req *http.Request, resp *http.Response) (*entity.CacheEntry, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &entity.CacheEntry{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   p.now(),
	}, nil
}

// toResponse rebuilds an http.Response from a stored entry
func toResponse(e *entity.CacheEntry, req *http.Request, source string) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set(Header, source)
	header.Set(StoredAtHeader, e.StoredAt.UTC().Format(time.RFC3339))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode)),
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}
