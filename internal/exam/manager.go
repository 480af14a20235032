package exam

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickEvent is pushed to websocket subscribers once per countdown second.
type TickEvent struct {
	State    string `json:"state"`
	TimeLeft int    `json:"time_left"`
}

// keeper tracks one countdown goroutine so it can be cancelled and so the
// goroutine can tell whether it still owns its map slot when it exits.
type keeper struct {
	cancel context.CancelFunc
}

// Manager holds the active session per browser session id and owns the
// keeper goroutine that drives each countdown. Keepers stop the instant a
// session leaves InProgress so no ticker fires against stale state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	keepers  map[string]*keeper
	subs     map[string][]chan TickEvent

	clock    Clock
	duration time.Duration
	saver    AnswerSaver
	log      zerolog.Logger
}

// NewManager creates a Manager. duration is the countdown for new sessions.
func NewManager(clock Clock, duration time.Duration, saver AnswerSaver, log zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		keepers:  make(map[string]*keeper),
		subs:     make(map[string][]chan TickEvent),
		clock:    clock,
		duration: duration,
		saver:    saver,
		log:      log.With().Str("component", "exam_manager").Logger(),
	}
}

// Create registers a fresh NotStarted session for the browser session,
// replacing (and stopping) any previous one.
func (m *Manager) Create(sessionID string, questions []Question) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopKeeperLocked(sessionID)
	sess := NewSession(sessionID, questions, m.duration, m.saver, m.log)
	m.sessions[sessionID] = sess
	return sess
}

// Get returns the active session for a browser session, if any.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

// Start transitions the session to InProgress and launches its keeper.
func (m *Manager) Start(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotStarted
	}
	if err := sess.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	k := &keeper{cancel: cancel}
	m.keepers[sessionID] = k
	go m.keep(ctx, sessionID, sess, k)
	return nil
}

// Submit finalizes the session, stops its keeper and returns the full
// answer list for grading.
func (m *Manager) Submit(ctx context.Context, sessionID string) ([]Answer, error) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotStarted
	}

	answers, err := sess.Submit(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.stopKeeperLocked(sessionID)
	m.broadcastLocked(sessionID, TickEvent{State: sess.State().String(), TimeLeft: sess.Snapshot().TimeLeft})
	m.mu.Unlock()
	return answers, nil
}

// Remove drops the session and stops its keeper, e.g. when the student
// leaves the exam center.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopKeeperLocked(sessionID)
	delete(m.sessions, sessionID)
	delete(m.subs, sessionID)
}

// Subscribe registers a countdown listener for the session. The returned
// cancel func must be called when the subscriber disconnects.
func (m *Manager) Subscribe(sessionID string) (<-chan TickEvent, func()) {
	ch := make(chan TickEvent, 8)
	m.mu.Lock()
	m.subs[sessionID] = append(m.subs[sessionID], ch)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[sessionID]
		for i, c := range subs {
			if c == ch {
				m.subs[sessionID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// keep drives one session's countdown: a tick per second while InProgress,
// stopping at submission, removal or when the countdown hits zero. Reaching
// zero does not force a submission.
func (m *Manager) keep(ctx context.Context, sessionID string, sess *Session, k *keeper) {
	ticker := m.clock.NewTicker(time.Second)
	defer ticker.Stop()
	defer m.releaseKeeper(sessionID, k)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if sess.State() != StateInProgress {
				return
			}
			remaining := sess.Tick()

			m.mu.Lock()
			m.broadcastLocked(sessionID, TickEvent{State: sess.State().String(), TimeLeft: remaining})
			m.mu.Unlock()

			if remaining == 0 {
				m.log.Info().Str("session_id", sessionID).Msg("Countdown reached zero, session stays open")
				return
			}
		}
	}
}

// stopKeeperLocked must be called with the mutex held.
func (m *Manager) stopKeeperLocked(sessionID string) {
	if k, ok := m.keepers[sessionID]; ok {
		k.cancel()
		delete(m.keepers, sessionID)
	}
}

// releaseKeeper drops a keeper's map entry when its goroutine exits on its
// own (countdown at zero, state change). The identity check keeps an old
// keeper from evicting a replacement that already took the slot.
func (m *Manager) releaseKeeper(sessionID string, k *keeper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keepers[sessionID] == k {
		delete(m.keepers, sessionID)
	}
}

// broadcastLocked must be called with the mutex held. Slow subscribers are
// skipped rather than blocking the keeper.
func (m *Manager) broadcastLocked(sessionID string, ev TickEvent) {
	for _, ch := range m.subs[sessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
