package intervention

import (
	"sync"

	"github.com/ByteMirror/hivemind/config"
	"github.com/ByteMirror/hivemind/events"
	"github.com/ByteMirror/hivemind/ids"
	corelog "github.com/ByteMirror/hivemind/log"
)

// Handler owns the pending-request table and timer set for one core
// instance. The zero value is not usable; construct with New.
type Handler struct {
	mu      sync.Mutex
	cfg     config.InterventionConfig
	bus     *events.Bus
	clock   Clock
	byID    map[string]*Request
	timers  map[string]Timer
	pending map[string]int // agentID -> pending count, for back-pressure
	stats   Stats
	nextSeq uint64
}

// New constructs a Handler bound to cfg's timeout/back-pressure
// parameters. bus may be nil (events are skipped); clock defaults to
// RealClock if nil.
func New(cfg config.InterventionConfig, bus *events.Bus, clock Clock) *Handler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Handler{
		cfg:     cfg,
		bus:     bus,
		clock:   clock,
		byID:    make(map[string]*Request),
		timers:  make(map[string]Timer),
		pending: make(map[string]int),
	}
}

// Enqueue stores a freshly-classified request, arms its timeout timer
// (unless timeouts are disabled), and publishes intervention-requested.
// If agentID already has >= maxPendingPerAgent pending requests, the
// request is dropped with a warning and no event is emitted.
func (h *Handler) Enqueue(req *Request) {
	h.mu.Lock()
	if h.pending[req.AgentID] >= h.cfg.MaxPendingPerAgent {
		h.mu.Unlock()
		corelog.WarningLog.Printf("intervention: dropping request for agent %s, already at max pending (%d)",
			req.AgentID, h.cfg.MaxPendingPerAgent)
		return
	}

	req.ID = ids.New(ids.Handler)
	req.CreatedAt = h.clock.Now()
	h.nextSeq++
	req.seq = h.nextSeq
	h.byID[req.ID] = req
	h.pending[req.AgentID]++
	h.stats.Total++
	h.stats.Pending++

	if h.cfg.TimeoutsEnabled {
		id := req.ID
		h.timers[id] = h.clock.AfterFunc(h.cfg.DefaultTimeout, func() {
			h.Timeout(id)
		})
	}
	h.mu.Unlock()

	h.emit(events.KindInterventionRequested, req, "")
}

// Respond marks a pending request answered, disarms its timer, and
// publishes intervention-answered.
func (h *Handler) Respond(requestID, responseText string) (*Request, error) {
	h.mu.Lock()
	req, ok := h.byID[requestID]
	if !ok {
		h.mu.Unlock()
		return nil, ErrNotFound
	}
	if req.Status.terminal() {
		h.mu.Unlock()
		return nil, ErrNotPending
	}

	req.Status = StatusAnswered
	req.Response = responseText
	req.ResolvedAt = h.clock.Now()
	h.disarmLocked(requestID)
	h.pending[req.AgentID]--
	h.stats.Pending--
	h.stats.Answered++
	h.mu.Unlock()

	h.emit(events.KindInterventionAnswered, req, responseText)
	return req, nil
}

// Timeout marks requestID timed out and publishes intervention-timedout.
// It is idempotent: invoking it on an already-terminal request is a no-op.
func (h *Handler) Timeout(requestID string) {
	h.mu.Lock()
	req, ok := h.byID[requestID]
	if !ok || req.Status.terminal() {
		h.mu.Unlock()
		return
	}

	req.Status = StatusTimeout
	req.ResolvedAt = h.clock.Now()
	h.disarmLocked(requestID)
	h.pending[req.AgentID]--
	h.stats.Pending--
	h.stats.TimedOut++
	h.mu.Unlock()

	h.emit(events.KindInterventionTimedOut, req, "")
}

// Cancel removes a request without publishing an event (used on agent
// shutdown). It returns false if the request was unknown or already
// terminal.
func (h *Handler) Cancel(requestID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	req, ok := h.byID[requestID]
	if !ok || req.Status.terminal() {
		return false
	}
	req.Status = StatusCancelled
	req.ResolvedAt = h.clock.Now()
	h.disarmLocked(requestID)
	h.pending[req.AgentID]--
	h.stats.Pending--
	h.stats.Cancelled++
	return true
}

// CancelAllForAgent cancels every pending request for agentID, returning
// how many were cancelled.
func (h *Handler) CancelAllForAgent(agentID string) int {
	h.mu.Lock()
	var pendingIDs []string
	for id, req := range h.byID {
		if req.AgentID == agentID && !req.Status.terminal() {
			pendingIDs = append(pendingIDs, id)
		}
	}
	h.mu.Unlock()

	count := 0
	for _, id := range pendingIDs {
		if h.Cancel(id) {
			count++
		}
	}
	return count
}

// Pending returns pending requests oldest-first, optionally filtered to
// one agent (empty string means all agents).
func (h *Handler) Pending(agentID string) []*Request {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*Request
	for _, req := range h.byID {
		if req.Status.terminal() {
			continue
		}
		if agentID != "" && req.AgentID != agentID {
			continue
		}
		out = append(out, req)
	}
	sortByCreatedAt(out)
	return out
}

// HasPending reports whether agentID has at least one pending request.
func (h *Handler) HasPending(agentID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending[agentID] > 0
}

// Stats returns a snapshot of the request table's counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Shutdown disarms every outstanding timer. Timers must not outlive the
// handler.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.timers {
		h.disarmLocked(id)
	}
}

func (h *Handler) disarmLocked(requestID string) {
	if t, ok := h.timers[requestID]; ok {
		t.Stop()
		delete(h.timers, requestID)
	}
}

func (h *Handler) emit(kind events.Kind, req *Request, response string) {
	if h.bus == nil {
		return
	}
	h.bus.Emit(events.Event{
		Kind:      kind,
		AgentID:   req.AgentID,
		RequestID: req.ID,
		Response:  response,
	})
}

func sortByCreatedAt(reqs []*Request) {
	for i := 1; i < len(reqs); i++ {
		for j := i; j > 0 && reqs[j].seq < reqs[j-1].seq; j-- {
			reqs[j], reqs[j-1] = reqs[j-1], reqs[j]
		}
	}
}
