package exam

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out tickers driven manually by the test.
type fakeClock struct {
	ticker *fakeTicker
}

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
}

func newFakeClock() *fakeClock {
	return &fakeClock{ticker: &fakeTicker{
		ch:      make(chan time.Time),
		stopped: make(chan struct{}),
	}}
}

func (c *fakeClock) NewTicker(time.Duration) Ticker { return c.ticker }

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	select {
	case <-t.stopped:
	default:
		close(t.stopped)
	}
}

// tick delivers one tick and waits until a subscriber observes the event,
// so assertions never race the keeper goroutine.
func (c *fakeClock) tick(t *testing.T, events <-chan TickEvent) TickEvent {
	t.Helper()
	select {
	case c.ticker.ch <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("keeper did not consume tick")
	}
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no tick event observed")
		return TickEvent{}
	}
}

func TestManagerKeeperDrivesCountdown(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, 30*time.Minute, nil, zerolog.Nop())

	m.Create("sid-1", fiveQuestions())
	events, cancel := m.Subscribe("sid-1")
	defer cancel()

	require.NoError(t, m.Start("sid-1"))

	ev := clock.tick(t, events)
	assert.Equal(t, 1799, ev.TimeLeft)
	assert.Equal(t, "in_progress", ev.State)

	ev = clock.tick(t, events)
	assert.Equal(t, 1798, ev.TimeLeft)
}

func TestManagerStartUnknownSession(t *testing.T) {
	m := NewManager(newFakeClock(), 30*time.Minute, nil, zerolog.Nop())
	assert.ErrorIs(t, m.Start("ghost"), ErrNotStarted)
}

func TestManagerSubmitStopsKeeper(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, 30*time.Minute, nil, zerolog.Nop())

	m.Create("sid-1", fiveQuestions())
	events, cancel := m.Subscribe("sid-1")
	defer cancel()
	require.NoError(t, m.Start("sid-1"))

	clock.tick(t, events)

	answers, err := m.Submit(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Len(t, answers, 5)

	// Submission broadcasts the terminal state.
	select {
	case ev := <-events:
		assert.Equal(t, "submitted", ev.State)
	case <-time.After(time.Second):
		t.Fatal("no terminal event observed")
	}

	// The keeper must release its ticker once the session leaves InProgress.
	select {
	case <-clock.ticker.stopped:
	case <-time.After(time.Second):
		t.Fatal("ticker not stopped after submit")
	}

	sess, ok := m.Get("sid-1")
	require.True(t, ok)
	assert.Equal(t, StateSubmitted, sess.State())
}

func TestManagerCreateReplacesSession(t *testing.T) {
	m := NewManager(newFakeClock(), 30*time.Minute, nil, zerolog.Nop())

	first := m.Create("sid-1", fiveQuestions())
	second := m.Create("sid-1", fiveQuestions()[:2])

	got, ok := m.Get("sid-1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.NotSame(t, first, got)
	assert.Equal(t, 2, got.Snapshot().Total)
}

func TestManagerRemove(t *testing.T) {
	m := NewManager(newFakeClock(), 30*time.Minute, nil, zerolog.Nop())
	m.Create("sid-1", fiveQuestions())
	m.Remove("sid-1")

	_, ok := m.Get("sid-1")
	assert.False(t, ok)
}

func TestKeeperReleasesEntryAtZero(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, 2*time.Second, nil, zerolog.Nop())

	m.Create("sid-1", fiveQuestions())
	events, cancel := m.Subscribe("sid-1")
	defer cancel()
	require.NoError(t, m.Start("sid-1"))

	ev := clock.tick(t, events)
	assert.Equal(t, 1, ev.TimeLeft)
	ev = clock.tick(t, events)
	assert.Equal(t, 0, ev.TimeLeft)

	// The keeper exits on its own at zero and must drop its map entry.
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		_, ok := m.keepers["sid-1"]
		return !ok
	}, time.Second, 10*time.Millisecond)

	// The session itself stays open for a late submit.
	sess, ok := m.Get("sid-1")
	require.True(t, ok)
	assert.Equal(t, StateInProgress, sess.State())
}

func TestSubscribeCancelRemovesListener(t *testing.T) {
	m := NewManager(newFakeClock(), 30*time.Minute, nil, zerolog.Nop())
	m.Create("sid-1", fiveQuestions())

	_, cancelA := m.Subscribe("sid-1")
	chB, cancelB := m.Subscribe("sid-1")
	defer cancelB()
	cancelA()

	m.mu.Lock()
	subs := m.subs["sid-1"]
	m.mu.Unlock()
	require.Len(t, subs, 1)
	assert.Equal(t, chB, (<-chan TickEvent)(subs[0]))
}
