package entity

import (
	"net/http"
	"time"
)

const (
	// CacheSourceHeader reports how the cache proxy served a response
	CacheSourceHeader = "X-Cache-Proxy"
	// CacheStoredAtHeader carries the RFC 3339 storage time of a cached response
	CacheStoredAtHeader = "X-Cache-Stored-At"

	CacheSourceHit      = "hit"
	CacheSourceNetwork  = "network"
	CacheSourceFallback = "fallback"
)

// CacheEntry is a stored response kept by the cache proxy
type CacheEntry struct {
	Method     string      `json:"method"`
	URL        string      `json:"url"`
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

// RequestIdentity returns the cache key for a request
func RequestIdentity(method, url string) string {
	return method + " " + url
}

// Identity returns the cache key of the entry
func (e *CacheEntry) Identity() string {
	return RequestIdentity(e.Method, e.URL)
}
