// Package apperr defines the failure categories shared by the link directory
// and the contact queue. Adapters wrap their own errors with one of these
// sentinels so callers can branch with errors.Is.
package apperr

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrForbidden is returned for a mutation attempted without the admin role.
	// It is detected locally and never reaches the network.
	ErrForbidden = errors.New("admin access required")

	// ErrNotFound means the remote store has no record with the given id.
	ErrNotFound = errors.New("not found")

	// ErrTransient covers timeouts and connectivity failures.
	ErrTransient = errors.New("transient network failure")

	// ErrRemoteRejected means the remote side answered but refused a well-formed request.
	ErrRemoteRejected = errors.New("remote rejected request")

	// ErrInvalid is returned when input fails local validation.
	ErrInvalid = errors.New("invalid input")
)

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
