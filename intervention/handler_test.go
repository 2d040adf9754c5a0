package intervention

import (
	"sync"
	"testing"
	"time"

	"github.com/ByteMirror/hivemind/config"
	"github.com/stretchr/testify/require"
)

// fakeClock gives tests deterministic control over timer firing instead of
// sleeping in real time.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
}

type fakeTimer struct {
	fire time.Time
	f    func()
	live bool
}

func (t *fakeTimer) Stop() bool {
	was := t.live
	t.live = false
	return was
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fire: c.now.Add(d), f: f, live: true}
	c.pending = append(c.pending, t)
	return t
}

// advance moves the fake clock forward and synchronously fires any timers
// whose deadline has passed.
func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.pending {
		if t.live && !t.fire.After(c.now) {
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		if t.Stop() {
			t.f()
		}
	}
}

func defaultCfg() config.InterventionConfig {
	return config.InterventionConfig{
		DefaultTimeout:     time.Minute,
		MaxPendingPerAgent: 2,
		TimeoutsEnabled:    true,
	}
}

func TestEnqueueThenRespondMarksAnswered(t *testing.T) {
	h := New(defaultCfg(), nil, newFakeClock())
	req := Classify("agt_1", "Do you want me to continue?")
	require.NotNil(t, req)
	h.Enqueue(req)

	require.True(t, h.HasPending("agt_1"))
	updated, err := h.Respond(req.ID, "yes")
	require.NoError(t, err)
	require.Equal(t, StatusAnswered, updated.Status)
	require.Equal(t, "yes", updated.Response)
	require.False(t, h.HasPending("agt_1"))

	stats := h.Stats()
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.Answered)
	require.Equal(t, 0, stats.Pending)
}

func TestRespondUnknownRequestFails(t *testing.T) {
	h := New(defaultCfg(), nil, newFakeClock())
	_, err := h.Respond("nope", "x")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRespondTwiceFailsNotPending(t *testing.T) {
	h := New(defaultCfg(), nil, newFakeClock())
	req := Classify("agt_1", "Do you want me to continue?")
	h.Enqueue(req)
	_, err := h.Respond(req.ID, "yes")
	require.NoError(t, err)

	_, err = h.Respond(req.ID, "again")
	require.ErrorIs(t, err, ErrNotPending)
}

func TestTimeoutFiresAfterDefaultTimeout(t *testing.T) {
	clock := newFakeClock()
	h := New(defaultCfg(), nil, clock)
	req := Classify("agt_1", "Please approve this change")
	require.NotNil(t, req)
	h.Enqueue(req)

	clock.advance(59 * time.Second)
	require.True(t, h.HasPending("agt_1"))

	clock.advance(2 * time.Second)
	require.False(t, h.HasPending("agt_1"))

	stats := h.Stats()
	require.Equal(t, 1, stats.TimedOut)
}

func TestRespondAfterTimeoutFails(t *testing.T) {
	clock := newFakeClock()
	h := New(defaultCfg(), nil, clock)
	req := Classify("agt_1", "Please approve this change")
	h.Enqueue(req)
	clock.advance(time.Minute)

	_, err := h.Respond(req.ID, "late")
	require.ErrorIs(t, err, ErrNotPending)
}

func TestBackpressureDropsBeyondMaxPending(t *testing.T) {
	cfg := defaultCfg()
	cfg.MaxPendingPerAgent = 1
	h := New(cfg, nil, newFakeClock())

	req1 := Classify("agt_1", "Do you want me to continue?")
	h.Enqueue(req1)
	req2 := Classify("agt_1", "Is this ok?")
	h.Enqueue(req2)

	require.Empty(t, req2.ID, "dropped request should never be assigned an id")
	pending := h.Pending("agt_1")
	require.Len(t, pending, 1)
	require.Equal(t, req1.ID, pending[0].ID)
}

func TestCancelAllForAgent(t *testing.T) {
	h := New(defaultCfg(), nil, newFakeClock())
	r1 := Classify("agt_1", "Do you want me to continue?")
	r2 := Classify("agt_1", "Please enter a value")
	h.Enqueue(r1)
	h.Enqueue(r2)

	count := h.CancelAllForAgent("agt_1")
	require.Equal(t, 2, count)
	require.False(t, h.HasPending("agt_1"))
}

func TestCancelIsIdempotentFalseWhenAlreadyTerminal(t *testing.T) {
	h := New(defaultCfg(), nil, newFakeClock())
	req := Classify("agt_1", "Do you want me to continue?")
	h.Enqueue(req)
	require.True(t, h.Cancel(req.ID))
	require.False(t, h.Cancel(req.ID))
}

func TestPendingOrderedOldestFirst(t *testing.T) {
	clock := newFakeClock()
	h := New(defaultCfg(), nil, clock)

	r1 := Classify("agt_1", "Do you want me to continue?")
	h.Enqueue(r1)
	clock.advance(time.Second)
	r2 := Classify("agt_1", "Please enter a value")
	h.Enqueue(r2)

	pending := h.Pending("agt_1")
	require.Len(t, pending, 2)
	require.Equal(t, r1.ID, pending[0].ID)
	require.Equal(t, r2.ID, pending[1].ID)
}

func TestShutdownDisarmsTimersWithoutFiring(t *testing.T) {
	clock := newFakeClock()
	h := New(defaultCfg(), nil, clock)
	req := Classify("agt_1", "Do you want me to continue?")
	h.Enqueue(req)

	h.Shutdown()
	clock.advance(time.Hour)

	stats := h.Stats()
	require.Equal(t, 0, stats.TimedOut)
	require.Equal(t, 1, stats.Pending)
}
