package service

import (
	"errors"

	"github.com/damon-houk/rate-sync-client/internal/domain/entity"
)

// ErrorCategory is the user-facing class of a sync failure
type ErrorCategory string

const (
	CategoryNone        ErrorCategory = ""
	CategoryTimeout     ErrorCategory = "timeout"
	CategoryOffline     ErrorCategory = "offline"
	CategoryServerError ErrorCategory = "server_error"
	CategoryInvalidData ErrorCategory = "invalid_data"
	CategoryInvalidBase ErrorCategory = "invalid_base"
)

// UserError is what the presentation layer shows for a failed sync
type UserError struct {
	Category   ErrorCategory `json:"category"`
	Message    string        `json:"message"`
	StatusCode int           `json:"status_code,omitempty"`
}

// CategorizeError translates a sync error into a user-facing message. Busy
// and nil errors produce nil: a sync is already on its way.
func CategorizeError(err error) *UserError {
	if err == nil || errors.Is(err, entity.ErrBusy) {
		return nil
	}

	var statusCode int
	var syncErr *entity.SyncError
	if errors.As(err, &syncErr) && syncErr.HasStatusCode() {
		statusCode = syncErr.StatusCode
	}

	switch {
	case errors.Is(err, entity.ErrTimeout):
		return &UserError{
			Category: CategoryTimeout,
			Message:  "The rate service took too long to respond. Showing the last known rates.",
		}
	case errors.Is(err, entity.ErrNetworkUnreachable):
		return &UserError{
			Category: CategoryOffline,
			Message:  "You appear to be offline. Rates will refresh when the connection returns.",
		}
	case errors.Is(err, entity.ErrMalformedResponse):
		return &UserError{
			Category: CategoryInvalidData,
			Message:  "The rate service returned data that could not be read.",
		}
	case errors.Is(err, entity.ErrInvalidBase):
		return &UserError{
			Category: CategoryInvalidBase,
			Message:  "Choose a valid base currency.",
		}
	default:
		return &UserError{
			Category:   CategoryServerError,
			Message:    "The rate service is unavailable. Please try again later.",
			StatusCode: statusCode,
		}
	}
}
