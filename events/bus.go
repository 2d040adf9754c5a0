package events

import (
	"sync"
	"time"

	corelog "github.com/ByteMirror/hivemind/log"
)

// DefaultHistorySize is the default bound on the Bus's retained event ring,
// matching the spec's default of 1000 and the teacher's
// DefaultEventBusConfig().HistorySize.
const DefaultHistorySize = 1000

// defaultSubscriberBuffer bounds how many not-yet-delivered events a single
// subscriber may have queued before new events are dropped for it alone.
// Grounded on concurrency.SubscribeOptions.BufferSize's default of 100.
const defaultSubscriberBuffer = 100

// Filter selects which event Kinds a subscriber receives: one specific kind,
// a set of kinds, or every kind ("all").
type Filter struct {
	all   bool
	kinds map[Kind]struct{}
}

// Any matches every event, regardless of kind.
func Any() Filter { return Filter{all: true} }

// One matches a single kind.
func One(k Kind) Filter { return Filter{kinds: map[Kind]struct{}{k: {}}} }

// OneOf matches any of the given kinds.
func OneOf(ks ...Kind) Filter {
	m := make(map[Kind]struct{}, len(ks))
	for _, k := range ks {
		m[k] = struct{}{}
	}
	return Filter{kinds: m}
}

func (f Filter) matches(k Kind) bool {
	if f.all {
		return true
	}
	_, ok := f.kinds[k]
	return ok
}

// Handle identifies a live subscription. It is opaque and comparable only
// for equality.
type Handle struct {
	id string
}

// Handler is invoked once per delivered event, in emit order, on the
// subscription's own delivery goroutine — never on the caller of Emit.
type Handler func(Event)

type subscription struct {
	id      string
	filter  Filter
	handler Handler
	ch      chan Event
	done    chan struct{}
}

// Bus is a process-wide multicaster of Events. It is safe for concurrent
// use. The zero value is not usable; construct with NewBus.
type Bus struct {
	mu         sync.Mutex
	subs       map[string]*subscription
	history    []Event
	historyCap int
	seq        uint64
	completed  bool
	nextSubID  uint64
}

// NewBus creates a Bus whose history retains at most historyCap events
// (DefaultHistorySize if historyCap <= 0).
func NewBus(historyCap int) *Bus {
	if historyCap <= 0 {
		historyCap = DefaultHistorySize
	}
	return &Bus{
		subs:       make(map[string]*subscription),
		historyCap: historyCap,
	}
}

// Emit appends event to the bounded history (evicting the oldest entry on
// overflow) and delivers it to every subscriber whose Filter matches. The
// order in which different subscribers are handed the event is not defined;
// each subscriber still receives events in emit order. Emit never blocks on
// a slow subscriber: delivery to
// each subscriber happens on that subscriber's own goroutine, and a
// subscriber whose buffer is full simply drops the event (logged as a
// warning) rather than stalling the emitter or other subscribers.
//
// Emit sets Timestamp and Sequence if the caller left them zero, and is a
// no-op once Complete has been called.
func (b *Bus) Emit(evt Event) {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		return
	}
	b.seq++
	evt.Sequence = b.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.history = append(b.history, evt)
	if len(b.history) > b.historyCap {
		b.history = b.history[len(b.history)-b.historyCap:]
	}

	// Snapshot subscribers while holding the lock so unsubscribe races
	// don't deliver to a torn view, then deliver without the lock held.
	targets := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter.matches(evt.Kind) {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- evt:
		default:
			corelog.WarningLog.Printf("events: subscriber %s buffer full, dropping %s", sub.id, evt.Kind)
		}
	}
}

// Subscribe registers handler to be invoked for every event matching filter
// emitted after this call returns, except events dropped because the
// subscription's buffer was full (see Emit). The returned Handle must be passed to
// Unsubscribe when the caller is done.
func (b *Bus) Subscribe(filter Filter, handler Handler) Handle {
	b.mu.Lock()
	b.nextSubID++
	id := subscriptionID(b.nextSubID)
	sub := &subscription{
		id:      id,
		filter:  filter,
		handler: handler,
		ch:      make(chan Event, defaultSubscriberBuffer),
		done:    make(chan struct{}),
	}
	b.subs[id] = sub
	b.mu.Unlock()

	go b.deliver(sub)

	return Handle{id: id}
}

func (b *Bus) deliver(sub *subscription) {
	for {
		select {
		case evt, ok := <-sub.ch:
			if !ok {
				return
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						corelog.ErrorLog.Printf("events: subscriber %s handler panicked: %v", sub.id, r)
					}
				}()
				sub.handler(evt)
			}()
		case <-sub.done:
			return
		}
	}
}

// Unsubscribe removes the subscription for handle. It is idempotent and
// O(1); unsubscribing an already-removed handle is a no-op.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	sub, ok := b.subs[h.id]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, h.id)
	b.mu.Unlock()

	close(sub.done)
}

// Recent returns up to the last n events from history, optionally filtered
// by kind, oldest first with the newest last — never more than the current
// history size.
func (b *Bus) Recent(n int, kind *Kind) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var source []Event
	if kind != nil {
		for _, e := range b.history {
			if e.Kind == *kind {
				source = append(source, e)
			}
		}
	} else {
		source = b.history
	}

	if n <= 0 || n >= len(source) {
		out := make([]Event, len(source))
		copy(out, source)
		return out
	}
	out := make([]Event, n)
	copy(out, source[len(source)-n:])
	return out
}

// Complete rejects all further Emit calls, signals every live subscription's
// delivery goroutine to stop, and clears history. Complete is idempotent.
func (b *Bus) Complete() {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		return
	}
	b.completed = true
	subs := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[string]*subscription)
	b.history = nil
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}
}

func subscriptionID(n uint64) string {
	const hex = "0123456789abcdef"
	if n == 0 {
		return "sub-0"
	}
	buf := make([]byte, 0, 20)
	for n > 0 {
		buf = append([]byte{hex[n%16]}, buf...)
		n /= 16
	}
	return "sub-" + string(buf)
}
