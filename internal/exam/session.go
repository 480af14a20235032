package exam

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the session lifecycle phase.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateSubmitted
)

// String returns the wire representation of a state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Session lifecycle and navigation errors.
var (
	ErrAlreadyStarted = errors.New("exam: session already started")
	ErrNotStarted     = errors.New("exam: session not started")
	ErrSessionOver    = errors.New("exam: session already submitted")
	ErrNoQuestions    = errors.New("exam: session has no questions")
	ErrLastQuestion   = errors.New("exam: already at the last question")
)

// Session owns the state of one exam attempt: the fixed question list, the
// current index, the answer map and the countdown. All mutations go through
// its methods under a single mutex; HTTP handlers and the ticker keeper
// share one Session.
type Session struct {
	mu        sync.Mutex
	sessionID string
	questions []Question
	idx       int
	answers   map[int]string
	timeLeft  int
	state     State
	saver     AnswerSaver
	log       zerolog.Logger
}

// Snapshot is a consistent read-only view of a session for rendering.
type Snapshot struct {
	State    string   `json:"state"`
	Index    int      `json:"index"`
	Total    int      `json:"total"`
	Question Question `json:"question"`
	Answer   string   `json:"answer"`
	TimeLeft int      `json:"time_left"`
}

// NewSession creates a NotStarted session with the countdown primed to the
// full duration. The question list is taken as-is and never changes.
func NewSession(sessionID string, questions []Question, duration time.Duration, saver AnswerSaver, log zerolog.Logger) *Session {
	return &Session{
		sessionID: sessionID,
		questions: questions,
		answers:   make(map[int]string),
		timeLeft:  int(duration.Seconds()),
		state:     StateNotStarted,
		saver:     saver,
		log:       log.With().Str("component", "exam_session").Str("session_id", sessionID).Logger(),
	}
}

// Start transitions NotStarted → InProgress. The caller is responsible for
// beginning the countdown and asking the browser for fullscreen; neither is
// allowed to block the transition.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateInProgress:
		return ErrAlreadyStarted
	case StateSubmitted:
		return ErrSessionOver
	}
	if len(s.questions) == 0 {
		return ErrNoQuestions
	}

	s.state = StateInProgress
	s.log.Info().Int("questions", len(s.questions)).Int("time_left", s.timeLeft).Msg("Exam started")
	return nil
}

// RecordAnswer overwrites the answer for the current question. Local and
// synchronous; no network call happens per keystroke.
func (s *Session) RecordAnswer(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return err
	}
	s.answers[s.questions[s.idx].ID] = text
	return nil
}

// Next flushes the current answer to the saver and advances one question.
// At the last question it stays put and returns ErrLastQuestion, which the
// UI surfaces as a notice rather than an error.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return err
	}
	s.autosaveCurrent(ctx)
	if s.idx >= len(s.questions)-1 {
		return ErrLastQuestion
	}
	s.idx++
	return nil
}

// Prev flushes the current answer and moves back one question. At index 0
// it is a silent no-op.
func (s *Session) Prev(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return err
	}
	s.autosaveCurrent(ctx)
	if s.idx > 0 {
		s.idx--
	}
	return nil
}

// Tick consumes one second of the countdown and returns the remaining time.
// It clamps at zero and never submits: timer expiry keeps the session open
// (soft-deadline behavior); only the student's explicit submit closes it.
func (s *Session) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return s.timeLeft
	}
	if s.timeLeft > 0 {
		s.timeLeft--
	}
	return s.timeLeft
}

// Submit flushes the current answer, transitions to Submitted and returns
// every recorded answer in question order for grading. Unvisited questions
// are reported with empty text. All further mutations are rejected.
func (s *Session) Submit(ctx context.Context) ([]Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return nil, err
	}
	s.autosaveCurrent(ctx)
	s.state = StateSubmitted

	answers := make([]Answer, 0, len(s.questions))
	for _, q := range s.questions {
		answers = append(answers, Answer{QuestionID: q.ID, Text: s.answers[q.ID]})
	}
	s.log.Info().Int("answered", len(s.answers)).Int("time_left", s.timeLeft).Msg("Exam submitted")
	return answers, nil
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a consistent view for rendering. On an empty session the
// Question field is the zero value.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:    s.state.String(),
		Index:    s.idx,
		Total:    len(s.questions),
		TimeLeft: s.timeLeft,
	}
	if len(s.questions) > 0 {
		q := s.questions[s.idx]
		snap.Question = q
		snap.Answer = s.answers[q.ID]
	}
	return snap
}

// requireInProgress must be called with the mutex held.
func (s *Session) requireInProgress() error {
	switch s.state {
	case StateNotStarted:
		return ErrNotStarted
	case StateSubmitted:
		return ErrSessionOver
	}
	if len(s.questions) == 0 {
		return ErrNoQuestions
	}
	return nil
}

// autosaveCurrent hands the current answer to the saver. Must be called with
// the mutex held. Delivery is at-least-once downstream of the queue; an
// enqueue failure is logged and swallowed so navigation never blocks.
func (s *Session) autosaveCurrent(ctx context.Context) {
	q := s.questions[s.idx]
	answer := s.answers[q.ID]

	if s.saver == nil {
		s.log.Debug().Int("question_id", q.ID).Msg("No saver configured, skipping autosave")
		return
	}
	if err := s.saver.SaveAnswer(ctx, s.sessionID, q.ID, answer); err != nil {
		s.log.Warn().Err(err).Int("question_id", q.ID).Msg("Autosave enqueue failed")
	}
}
