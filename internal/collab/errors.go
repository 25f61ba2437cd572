package collab

import (
	"errors"
	"fmt"
)

// Failure classes surfaced to clients. Every class maps to a distinguishable
// denial at the HTTP or channel boundary; nothing fails silently.
var (
	// ErrValidation marks malformed input, rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrPermissionDenied marks a requester who is not a collaborator,
	// presented an invalid or missing join token, or lacks the role required
	// for the requested mutation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrSessionEnded is terminal: the session was explicitly ended or its
	// TTL passed. Any further operation against the session id fails the
	// same way.
	ErrSessionEnded = errors.New("session ended")

	// ErrCapacityExceeded marks a join attempted when active participants
	// already equal the session's maximum.
	ErrCapacityExceeded = errors.New("session capacity exceeded")
)

// LockedError reports that another identity currently holds an edit lock.
// The response names the holder so clients can show "locked by X".
type LockedError struct {
	ResourceID string
	Holder     string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("resource %s locked by %s", e.ResourceID, e.Holder)
}

// Validationf wraps ErrValidation with a human-readable reason.
func Validationf(format string, v ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, v...)...)
}
