package fleet

import "errors"

var (
	// ErrAlreadyRunning is returned by Start on a running aggregator.
	ErrAlreadyRunning = errors.New("fleet: aggregator already running")
	// ErrNotRunning is returned by operations that need a running aggregator.
	ErrNotRunning = errors.New("fleet: aggregator not running")
	// ErrUnknownUser is returned by Resubscribe for users absent from the projection.
	ErrUnknownUser = errors.New("fleet: unknown user")
)

// ErrorEvent reports a live query that failed to open or terminated.
type ErrorEvent struct {
	// UserID is empty for the users query.
	UserID string
	// Collection is the collection path of the failed query.
	Collection string
	Err        error
}
