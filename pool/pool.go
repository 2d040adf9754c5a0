// Package pool implements the core's admission-control Process Pool (C3):
// a counted semaphore with an ordered waiter queue, supporting FIFO or
// priority dequeue discipline, dynamic capacity changes, and queue-wide
// cancellation.
//
// Grounded on two teacher sources fused together: orchestrator.AgentPool's
// buffered-channel slot semaphore for the admission-control shape, and
// concurrency.Semaphore/ResourcePool (concurrency/resource_manager.go) for
// the waiter-queue-with-direct-handoff semantics setLimit's "release up to
// N waiters by direct grant" rule needs. Sentinel errors follow
// resource_manager.go's errors.New-based taxonomy.
package pool

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"github.com/ByteMirror/hivemind/events"
	corelog "github.com/ByteMirror/hivemind/log"
)

// Handle is a capability token returned by Acquire and consumed by
// Release. It is opaque; copying it is safe but Release must be called
// exactly once per successful Acquire.
type Handle struct {
	id      uint64
	agentID string
}

// AcquireOptions parameterizes one Acquire call.
type AcquireOptions struct {
	// Priority is only consulted when the pool's queue strategy is
	// priority; it is ignored under FIFO.
	Priority int
	// AgentID, if set, is attached to the pool-slot-* events this
	// acquisition/release produces.
	AgentID string
}

// Stats is the snapshot returned by Stats.
type Stats struct {
	MaxConcurrent  int
	Running        int
	Queued         int
	Available      int
	UtilizationPct float64
}

// Pool is a counted semaphore plus an ordered waiter queue. The zero value
// is not usable; construct with New.
type Pool struct {
	mu            sync.Mutex
	maxConcurrent int
	running       int
	waiters       waiterHeap
	nextSeq       uint64
	nextHandle    uint64
	bus           *events.Bus
}

// New creates a Pool with the given initial capacity, queue strategy
// ("fifo" or "priority" — anything else defaults to fifo), and an
// optional event bus to publish pool-slot-acquired/released onto (nil is
// allowed; events are simply skipped).
func New(maxConcurrent int, queueStrategy string, bus *events.Bus) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	p := &Pool{
		maxConcurrent: maxConcurrent,
		waiters:       waiterHeap{fifo: queueStrategy != "priority"},
		bus:           bus,
	}
	heap.Init(&p.waiters)
	return p
}

// Acquire blocks until a slot is available or ctx is done. On success it
// returns a Handle that must be passed to Release exactly once. On
// cancellation, the waiter (if it had been queued) is removed and
// ctx.Err() is returned; running is unchanged either way.
func (p *Pool) Acquire(ctx context.Context, opts AcquireOptions) (Handle, error) {
	p.mu.Lock()
	if p.running < p.maxConcurrent {
		p.running++
		p.nextHandle++
		h := Handle{id: p.nextHandle, agentID: opts.AgentID}
		running, queued, available := p.statsLocked()
		p.mu.Unlock()
		p.emit(events.KindPoolSlotAcquired, opts.AgentID, running, queued, available)
		return h, nil
	}

	p.nextSeq++
	w := &waiter{priority: opts.Priority, seq: p.nextSeq, resultCh: make(chan error, 1)}
	heap.Push(&p.waiters, w)
	p.mu.Unlock()

	select {
	case err := <-w.resultCh:
		if err != nil {
			return Handle{}, err
		}
		p.mu.Lock()
		p.nextHandle++
		h := Handle{id: p.nextHandle, agentID: opts.AgentID}
		running, queued, available := p.statsLocked()
		p.mu.Unlock()
		p.emit(events.KindPoolSlotAcquired, opts.AgentID, running, queued, available)
		return h, nil
	case <-ctx.Done():
		p.mu.Lock()
		if w.index >= 0 && w.index < len(p.waiters.items) && p.waiters.items[w.index] == w {
			heap.Remove(&p.waiters, w.index)
			p.mu.Unlock()
			return Handle{}, ctx.Err()
		}
		p.mu.Unlock()

		// w was already granted (or is being granted) concurrently with
		// the cancellation; honor the grant rather than leaking the slot.
		if err := <-w.resultCh; err != nil {
			return Handle{}, err
		}
		p.mu.Lock()
		p.nextHandle++
		h := Handle{id: p.nextHandle, agentID: opts.AgentID}
		running, queued, available := p.statsLocked()
		p.mu.Unlock()
		p.emit(events.KindPoolSlotAcquired, opts.AgentID, running, queued, available)
		return h, nil
	}
}

// Release hands the slot h held to the next queued waiter (transfer of
// ownership, running unchanged) or, if the queue is empty, decrements
// running. Releasing beyond running=0 is a no-op, logged as a warning.
func (p *Pool) Release(h Handle) {
	p.mu.Lock()
	if p.waiters.Len() > 0 {
		w := heap.Pop(&p.waiters).(*waiter)
		running, queued, available := p.statsLocked()
		p.mu.Unlock()
		p.emit(events.KindPoolSlotReleased, h.agentID, running, queued, available)
		w.resultCh <- nil
		return
	}

	if p.running == 0 {
		p.mu.Unlock()
		corelog.WarningLog.Printf("pool: over-release ignored (running already 0)")
		return
	}
	p.running--
	running, queued, available := p.statsLocked()
	p.mu.Unlock()
	p.emit(events.KindPoolSlotReleased, h.agentID, running, queued, available)
}

// SetLimit changes maxConcurrent. Increasing it grants slots directly to
// up to (new - old) queued waiters. Decreasing it never preempts running
// work; the lower limit takes effect naturally as slots are released.
func (p *Pool) SetLimit(n int) error {
	if n < 1 {
		return ErrLimitTooLow
	}

	p.mu.Lock()
	old := p.maxConcurrent
	p.maxConcurrent = n
	grant := n - old
	var granted []*waiter
	for grant > 0 && p.waiters.Len() > 0 {
		w := heap.Pop(&p.waiters).(*waiter)
		p.running++
		granted = append(granted, w)
		grant--
	}
	p.mu.Unlock()

	for _, w := range granted {
		w.resultCh <- nil
	}
	return nil
}

// ClearQueue fails every currently-queued waiter with ErrQueueCleared.
// Running slots are untouched.
func (p *Pool) ClearQueue() {
	p.mu.Lock()
	pending := p.waiters.items
	p.waiters.items = nil
	p.mu.Unlock()

	for _, w := range pending {
		w.resultCh <- ErrQueueCleared
	}
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	running, queued, available := p.statsLocked()
	util := 0.0
	if p.maxConcurrent > 0 {
		util = 100 * float64(running) / float64(p.maxConcurrent)
	}
	return Stats{
		MaxConcurrent:  p.maxConcurrent,
		Running:        running,
		Queued:         queued,
		Available:      available,
		UtilizationPct: util,
	}
}

func (p *Pool) statsLocked() (running, queued, available int) {
	running = p.running
	queued = p.waiters.Len()
	available = p.maxConcurrent - p.running
	if available < 0 {
		available = 0
	}
	return
}

func (p *Pool) emit(kind events.Kind, agentID string, running, queued, available int) {
	if p.bus == nil {
		return
	}
	p.bus.Emit(events.Event{
		Kind:          kind,
		AgentID:       agentID,
		PoolRunning:   running,
		PoolQueued:    queued,
		PoolAvailable: available,
	})
}

func (p *Pool) String() string {
	s := p.Stats()
	return fmt.Sprintf("pool(running=%d queued=%d max=%d)", s.Running, s.Queued, s.MaxConcurrent)
}
