package entity

import (
	"context"
	"errors"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrNetwork          = errors.New("network unavailable")
	ErrServer           = errors.New("server error")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTicketNotFound   = errors.New("ticket not found")
)

// KindOf maps a classified error to the taxonomy used in scan results and
// degraded-mode views.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindNetworkError
	default:
		return KindUnknownServer
	}
}
