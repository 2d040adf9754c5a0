// Package intervention implements the core's Intervention Handler (C4): it
// classifies an agent's streamed output for whether it constitutes a
// request for human input, queues such requests with per-request
// timeouts, and delivers operator responses back to the caller.
//
// The request/status shape and timer-per-request discipline are grounded
// on concurrency/event_stream.go's subscription/timer bookkeeping style
// and concurrency/resource_manager.go's mutex-guarded table pattern; the
// four-class classifier itself is new functionality this spec requires
// (the pack has no direct analog), built with the teacher's own idiom of
// precompiled regexp pattern tables (agent/whiplash_protocol.go's
// regexp.MustCompile-driven dictionary matching) evaluated in fixed
// priority order.
package intervention

import "time"

// Type classifies what kind of human input a request is asking for.
type Type string

const (
	TypeChoice   Type = "choice"
	TypeApproval Type = "approval"
	TypeInput    Type = "input"
	TypeQuestion Type = "question"
)

// Status is a request's position in its state machine:
// pending -> answered | timeout | cancelled. The last three are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnswered  Status = "answered"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// Request is one detected need for human input.
type Request struct {
	ID      string
	AgentID string
	Type    Type

	// Prompt is the last non-option, non-empty line of the chunk that
	// triggered this request.
	Prompt string
	// Options is non-empty only when Type == TypeChoice.
	Options []string
	// Context is the text preceding Prompt, trimmed and truncated to
	// maxContextLen chars with a leading "…" when truncated.
	Context string

	Status   Status
	Response string

	CreatedAt  time.Time
	ResolvedAt time.Time

	// seq records enqueue order. Pending sorts by seq rather than
	// CreatedAt, so ordering stays deterministic when the clock's
	// resolution is coarser than the enqueue rate (notably in tests using
	// a fake Clock).
	seq uint64
}

func (r Status) terminal() bool {
	return r != StatusPending
}

// Stats summarizes the handler's request table.
type Stats struct {
	Total     int
	Pending   int
	Answered  int
	TimedOut  int
	Cancelled int
}
