package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
)

const (
	// DefaultBaseURL is the public rate endpoint used when none is configured
	DefaultBaseURL = "https://api.frankfurter.app"
	latestPath     = "/latest"

	maxBodyBytes = 1 << 20
)

// RateAPIClient fetches rate tables from the remote endpoint
type RateAPIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

// NewRateAPIClient creates a new rate endpoint client. The client applies no
// timeout of its own; callers bound each request through its context.
func NewRateAPIClient(baseURL string, httpClient *http.Client, log logger.Logger) *RateAPIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RateAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     log,
	}
}

// LatestURL returns the request URL for the latest rates relative to base
func (c *RateAPIClient) LatestURL(base string) string {
	return fmt.Sprintf("%s%s?from=%s", c.baseURL, latestPath, url.QueryEscape(base))
}

// FetchRates retrieves the latest rate table relative to base
func (c *RateAPIClient) FetchRates(ctx context.Context, base string) (*entity.RateSnapshot, error) {
	reqURL := c.LatestURL(base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Accept", "application/json")

	c.logger.Debug("Requesting latest rates", map[string]interface{}{
		"base": base,
		"url":  reqURL,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to execute request: %w", ctxErr)
		}
		return nil, entity.NewSyncError(entity.ErrNetworkUnreachable, base, 0,
			fmt.Errorf("failed to execute request: %w", err))
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Error closing response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to read response body: %w", ctxErr)
		}
		return nil, entity.NewSyncError(entity.ErrNetworkUnreachable, base, 0,
			fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Rate API returned error status", map[string]interface{}{
			"base":   base,
			"status": resp.StatusCode,
		})
		return nil, entity.NewSyncError(entity.ErrAPI, base, resp.StatusCode, nil)
	}

	rates, date, err := parseRates(bodyBytes)
	if err != nil {
		return nil, entity.NewSyncError(entity.ErrMalformedResponse, base, 0, err)
	}

	capturedAt := time.Now()
	fromCache := resp.Header.Get(entity.CacheSourceHeader) == entity.CacheSourceFallback
	if fromCache {
		// Cached data is as old as the moment it was stored
		if storedAt, err := time.Parse(time.RFC3339, resp.Header.Get(entity.CacheStoredAtHeader)); err == nil {
			capturedAt = storedAt
		}
		c.logger.Warn("Rates served from proxy fallback", map[string]interface{}{
			"base": base,
		})
	}

	return &entity.RateSnapshot{
		Base:       strings.ToUpper(base),
		Rates:      rates,
		Date:       date,
		CapturedAt: capturedAt,
		FromCache:  fromCache,
	}, nil
}

// parseRates validates the payload and extracts its rates table
func parseRates(body []byte) (entity.RateTable, string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, "", fmt.Errorf("failed to decode response: %w", err)
	}

	raw, ok := top["rates"]
	if !ok {
		return nil, "", errors.New("response has no rates field")
	}

	var table map[string]json.RawMessage
	if err := json.Unmarshal(raw, &table); err != nil || table == nil {
		return nil, "", fmt.Errorf("rates field is not a table: %s", truncate(string(raw), 64))
	}

	// The date is informational; a missing or odd value is not an error
	var date string
	if rawDate, ok := top["date"]; ok {
		_ = json.Unmarshal(rawDate, &date)
	}

	rates := make(entity.RateTable, len(table))
	for code, value := range table {
		var rate float64
		if err := json.Unmarshal(value, &rate); err != nil {
			return nil, "", fmt.Errorf("rate for %s is not a number: %s", code, truncate(string(value), 32))
		}
		if rate <= 0 {
			return nil, "", fmt.Errorf("invalid rate for %s: %f", code, rate)
		}
		rates[strings.ToUpper(code)] = rate
	}

	return rates, date, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
