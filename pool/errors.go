package pool

import "errors"

// ErrLimitTooLow is returned by SetLimit when asked to set maxConcurrent
// below 1.
var ErrLimitTooLow = errors.New("pool: limit must be >= 1")

// ErrQueueCleared is returned to every waiter still queued when
// ClearQueue is called. Callers should treat it as a cancellation.
var ErrQueueCleared = errors.New("pool: queue cleared")
