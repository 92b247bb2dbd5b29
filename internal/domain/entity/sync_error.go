package entity

import (
	"errors"
	"fmt"
)

// Sync error kinds. Match them with errors.Is.
var (
	ErrBusy               = errors.New("sync already in progress")
	ErrTimeout            = errors.New("rate request timed out")
	ErrAPI                = errors.New("rate api error")
	ErrMalformedResponse  = errors.New("malformed rate response")
	ErrNetworkUnreachable = errors.New("network unreachable")
)

// ErrInvalidBase is returned when a sync is requested without a usable base currency
var ErrInvalidBase = errors.New("invalid base currency")

// SyncError describes why a sync failed
type SyncError struct {
	Kind       error
	Base       string
	StatusCode int // 0 when the transport never reached the server
	Err        error
}

// NewSyncError builds a SyncError of the given kind
func NewSyncError(kind error, base string, statusCode int, cause error) *SyncError {
	return &SyncError{
		Kind:       kind,
		Base:       base,
		StatusCode: statusCode,
		Err:        cause,
	}
}

func (e *SyncError) Error() string {
	msg := e.Kind.Error()
	if e.Base != "" {
		msg = fmt.Sprintf("%s (base %s)", msg, e.Base)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is reports whether target is the kind of this error
func (e *SyncError) Is(target error) bool {
	return target == e.Kind
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// HasStatusCode reports whether the server answered before the failure
func (e *SyncError) HasStatusCode() bool {
	return e.StatusCode != 0
}
