package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/db"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	apiURL   = "https://api.example.com/latest?from=EUR"
	assetURL = "https://cdn.example.com/flags/eu.svg"
)

var (
	errOffline = errors.New("dial tcp: connection refused")
	errReset   = errors.New("read tcp: connection reset by peer")
)

// resetReader yields part of a body and then fails like a dropped connection
type resetReader struct {
	partial io.Reader
}

func (r *resetReader) Read(b []byte) (int, error) {
	n, err := r.partial.Read(b)
	if err == io.EOF {
		return n, errReset
	}
	return n, err
}

// fakeUpstream answers requests from a function and counts calls
type fakeUpstream struct {
	calls   atomic.Int32
	offline atomic.Bool
	reset   atomic.Bool
	body    atomic.Value
	status  int
}

func newFakeUpstream(body string) *fakeUpstream {
	u := &fakeUpstream{status: http.StatusOK}
	u.body.Store(body)
	return u
}

func (u *fakeUpstream) RoundTrip(req *http.Request) (*http.Response, error) {
	u.calls.Add(1)
	if u.offline.Load() {
		return nil, errOffline
	}
	var body io.Reader = strings.NewReader(u.body.Load().(string))
	if u.reset.Load() {
		body = &resetReader{partial: strings.NewReader(`{"rates":{"US`)}
	}
	return &http.Response{
		StatusCode: u.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(body),
		Request:    req,
	}, nil
}

func newTestRepo(t *testing.T) *db.BadgerCacheRepository {
	t.Helper()

	badgerDB, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { badgerDB.Close() })

	return db.NewBadgerCacheRepository(badgerDB)
}

func newTestProxy(t *testing.T, upstream http.RoundTripper, repo *db.BadgerCacheRepository, assets ...string) *CacheProxy {
	t.Helper()

	p := NewCacheProxy(upstream, repo, Config{
		Version:      "v2",
		APIHosts:     []string{"api.example.com"},
		StaticAssets: assets,
	}, logger.NewJSONLogger(io.Discard, logger.ErrorLevel))
	require.NoError(t, p.Install(context.Background()))
	require.NoError(t, p.Activate(context.Background()))
	return p
}

func get(t *testing.T, rt http.RoundTripper, url string) (*http.Response, string, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body), nil
}

func TestClassification(t *testing.T) {
	p := NewCacheProxy(nil, newTestRepo(t), Config{APIHosts: []string{"API.example.com"}}, nil)

	apiReq, _ := http.NewRequest(http.MethodGet, "https://api.example.com:443/latest", nil)
	staticReq, _ := http.NewRequest(http.MethodGet, assetURL, nil)

	assert.True(t, p.IsAPIRequest(apiReq))
	assert.False(t, p.IsAPIRequest(staticReq))
	assert.Equal(t, "static-v1", p.StaticPartition())
	assert.Equal(t, "api-v1", p.APIPartition())
}

func TestAPINetworkFirst(t *testing.T) {
	upstream := newFakeUpstream(`{"rates":{"USD":1.08}}`)
	repo := newTestRepo(t)
	p := newTestProxy(t, upstream, repo)

	t.Run("Live response is returned and cached", func(t *testing.T) {
		resp, body, err := get(t, p, apiURL)

		require.NoError(t, err)
		assert.Equal(t, `{"rates":{"USD":1.08}}`, body)
		assert.Equal(t, "network", resp.Header.Get(Header))

		entry, err := repo.Get(context.Background(), "api-v2", entity.RequestIdentity(http.MethodGet, apiURL))
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, body, string(entry.Body))
	})

	t.Run("Newer live response replaces the cached one", func(t *testing.T) {
		upstream.body.Store(`{"rates":{"USD":1.10}}`)
		_, body, err := get(t, p, apiURL)

		require.NoError(t, err)
		assert.Equal(t, `{"rates":{"USD":1.10}}`, body)
	})

	t.Run("Network failure falls back to the last cached response", func(t *testing.T) {
		upstream.offline.Store(true)
		defer upstream.offline.Store(false)

		resp, body, err := get(t, p, apiURL)

		require.NoError(t, err)
		assert.Equal(t, `{"rates":{"USD":1.10}}`, body)
		assert.Equal(t, "fallback", resp.Header.Get(Header))
		assert.NotEmpty(t, resp.Header.Get(StoredAtHeader))
	})

	t.Run("Connection lost mid-body falls back to the cached response", func(t *testing.T) {
		upstream.reset.Store(true)
		defer upstream.reset.Store(false)

		resp, body, err := get(t, p, apiURL)

		require.NoError(t, err)
		assert.Equal(t, `{"rates":{"USD":1.10}}`, body)
		assert.Equal(t, "fallback", resp.Header.Get(Header))
	})

	t.Run("Connection lost mid-body without a cached response propagates", func(t *testing.T) {
		upstream.reset.Store(true)
		defer upstream.reset.Store(false)

		_, _, err := get(t, p, "https://api.example.com/latest?from=CHF")
		assert.ErrorIs(t, err, errReset)
	})

	t.Run("Network failure without a cached response propagates", func(t *testing.T) {
		upstream.offline.Store(true)
		defer upstream.offline.Store(false)

		_, _, err := get(t, p, "https://api.example.com/latest?from=USD")
		assert.ErrorIs(t, err, errOffline)
	})

	t.Run("Static partition does not answer API requests", func(t *testing.T) {
		upstream.offline.Store(true)
		defer upstream.offline.Store(false)

		otherURL := "https://api.example.com/latest?from=GBP"
		entry := &entity.CacheEntry{Method: http.MethodGet, URL: otherURL, StatusCode: 200, Body: []byte("x")}
		require.NoError(t, repo.Put(context.Background(), "static-v2", entry.Identity(), entry))

		_, _, err := get(t, p, otherURL)
		assert.Error(t, err)
	})
}

func TestAPIErrorStatusIsNotCached(t *testing.T) {
	upstream := newFakeUpstream(`{"error":"maintenance"}`)
	upstream.status = http.StatusServiceUnavailable
	repo := newTestRepo(t)
	p := newTestProxy(t, upstream, repo)

	resp, _, err := get(t, p, apiURL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	entry, err := repo.Get(context.Background(), "api-v2", entity.RequestIdentity(http.MethodGet, apiURL))
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestAbandonedAPIRequestDoesNotFallBack(t *testing.T) {
	upstream := newFakeUpstream(`{"rates":{"USD":1.08}}`)
	p := newTestProxy(t, upstream, newTestRepo(t))

	_, _, err := get(t, p, apiURL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	upstream.offline.Store(true)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	_, err = p.RoundTrip(req)
	assert.ErrorIs(t, err, errOffline)
}

func TestStaticCacheFirst(t *testing.T) {
	upstream := newFakeUpstream("<svg/>")
	p := newTestProxy(t, upstream, newTestRepo(t), assetURL)

	// Install fetched the asset once
	require.Equal(t, int32(1), upstream.calls.Load())

	t.Run("Cached asset never hits the network", func(t *testing.T) {
		upstream.body.Store("<svg>changed</svg>")

		for i := 0; i < 3; i++ {
			resp, body, err := get(t, p, assetURL)
			require.NoError(t, err)
			assert.Equal(t, "<svg/>", body)
			assert.Equal(t, "hit", resp.Header.Get(Header))
		}
		assert.Equal(t, int32(1), upstream.calls.Load())
	})

	t.Run("Uncached asset goes to the network and is not stored", func(t *testing.T) {
		other := "https://cdn.example.com/flags/us.svg"

		_, body, err := get(t, p, other)
		require.NoError(t, err)
		assert.Equal(t, "<svg>changed</svg>", body)

		_, _, err = get(t, p, other)
		require.NoError(t, err)
		assert.Equal(t, int32(3), upstream.calls.Load())
	})
}

func TestActivateDeletesStalePartitions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stale := &entity.CacheEntry{Method: http.MethodGet, URL: apiURL, StatusCode: 200, Body: []byte("old"), StoredAt: time.Now()}
	require.NoError(t, repo.Put(ctx, "api-v1", stale.Identity(), stale))
	require.NoError(t, repo.Put(ctx, "static-v1", stale.Identity(), stale))
	require.NoError(t, repo.Put(ctx, "api-v2", stale.Identity(), stale))

	p := NewCacheProxy(newFakeUpstream(""), repo, Config{Version: "v2"}, logger.NewJSONLogger(io.Discard, logger.ErrorLevel))
	assert.False(t, p.Active())

	require.NoError(t, p.Activate(ctx))
	assert.True(t, p.Active())

	names, err := repo.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api-v2"}, names)
}

func TestInactiveProxyPassesThrough(t *testing.T) {
	upstream := newFakeUpstream("live")
	repo := newTestRepo(t)
	p := NewCacheProxy(upstream, repo, Config{APIHosts: []string{"api.example.com"}}, logger.NewJSONLogger(io.Discard, logger.ErrorLevel))

	_, body, err := get(t, p, apiURL)
	require.NoError(t, err)
	assert.Equal(t, "live", body)

	names, err := repo.Partitions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestInstallFailsOnBrokenAsset(t *testing.T) {
	upstream := newFakeUpstream("")
	upstream.status = http.StatusNotFound

	p := NewCacheProxy(upstream, newTestRepo(t), Config{StaticAssets: []string{assetURL}}, logger.NewJSONLogger(io.Discard, logger.ErrorLevel))
	assert.Error(t, p.Install(context.Background()))
}
