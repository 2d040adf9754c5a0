package intervention

import "errors"

// ErrNotFound is returned for an unknown request id.
var ErrNotFound = errors.New("intervention: request not found")

// ErrNotPending is returned when mutating a request that has already left
// the pending state.
var ErrNotPending = errors.New("intervention: request is not pending")
