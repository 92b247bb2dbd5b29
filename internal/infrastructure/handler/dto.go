package handler

import (
	"time"

	"github.com/damon-houk/rate-sync-client/internal/application/service"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// RatesResponse is the board view plus the client's live state
type RatesResponse struct {
	service.BoardView
	ActiveBase string          `json:"active_base"`
	Fetching   bool            `json:"fetching"`
	Online     bool            `json:"online"`
	Scheduler  string          `json:"scheduler"`
	Session    *SessionSummary `json:"session,omitempty"`
}

// SessionSummary describes the sync session in flight
type SessionSummary struct {
	Base      string    `json:"base"`
	StartedAt time.Time `json:"started_at"`
}

// SetBaseRequest represents the request body for switching the base currency
type SetBaseRequest struct {
	Base string `json:"base"`
}

// AcceptedResponse acknowledges a request that is handled asynchronously
type AcceptedResponse struct {
	Status string `json:"status"`
	Base   string `json:"base"`
}

// HealthResponse represents the response of the health endpoint
type HealthResponse struct {
	Status                string     `json:"status"`
	Online                bool       `json:"online"`
	ConnectivityChangedAt *time.Time `json:"online_changed_at,omitempty"`
	Scheduler             string     `json:"scheduler"`
	LastUpdated           *time.Time `json:"last_updated,omitempty"`
	CachedBases           int        `json:"cached_bases"`
}
