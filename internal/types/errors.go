// internal/types/errors.go
package types

import "errors"

// Sentinel errors classifying collaborator failures. Collaborator clients
// wrap these so callers can branch with errors.Is without depending on
// vendor error shapes.
var (
	// ErrNotFound: a thread, event, or message id the provider no longer knows.
	ErrNotFound = errors.New("not found")
	// ErrForbidden: authorization or permission failure; never retried.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable: no reachable calendar source at all, as opposed to
	// reachable sources returning zero events.
	ErrUnavailable = errors.New("unavailable")
	// ErrBusy: a turn arrived while another run is active for the same user.
	ErrBusy = errors.New("busy")
	// ErrThrottled: a turn arrived inside the per-user minimum interval.
	ErrThrottled = errors.New("throttled")
	// ErrTimeout: the bounded run poller gave up before a terminal status.
	ErrTimeout = errors.New("timed out")
)
