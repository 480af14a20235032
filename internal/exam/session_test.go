package exam

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSaver collects autosave calls for assertions.
type recordingSaver struct {
	calls []Answer
	err   error
}

func (r *recordingSaver) SaveAnswer(_ context.Context, _ string, questionID int, answer string) error {
	r.calls = append(r.calls, Answer{QuestionID: questionID, Text: answer})
	return r.err
}

func fiveQuestions() []Question {
	return []Question{
		{ID: 1, Text: "Q1", Marks: 10},
		{ID: 2, Text: "Q2", Marks: 10},
		{ID: 3, Text: "Q3", Marks: 10},
		{ID: 4, Text: "Q4", Marks: 10},
		{ID: 5, Text: "Q5", Marks: 10},
	}
}

func newTestSession(questions []Question, saver AnswerSaver) *Session {
	return NewSession("sid-1", questions, 30*time.Minute, saver, zerolog.Nop())
}

func TestStartTransitions(t *testing.T) {
	s := newTestSession(fiveQuestions(), nil)
	assert.Equal(t, StateNotStarted, s.State())

	require.NoError(t, s.Start())
	assert.Equal(t, StateInProgress, s.State())

	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)
}

func TestStartEmptySession(t *testing.T) {
	s := newTestSession(nil, nil)
	assert.ErrorIs(t, s.Start(), ErrNoQuestions)
}

func TestMutationsRejectedBeforeStart(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(fiveQuestions(), nil)

	assert.ErrorIs(t, s.RecordAnswer("early"), ErrNotStarted)
	assert.ErrorIs(t, s.Next(ctx), ErrNotStarted)
	assert.ErrorIs(t, s.Prev(ctx), ErrNotStarted)
	_, err := s.Submit(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestNavigationStaysInBounds(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(fiveQuestions(), nil)
	require.NoError(t, s.Start())

	// Prev at index 0 is a silent no-op.
	require.NoError(t, s.Prev(ctx))
	assert.Equal(t, 0, s.Snapshot().Index)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Next(ctx))
	}
	assert.Equal(t, 4, s.Snapshot().Index)

	// Next at the last index stays put with a user-visible notice.
	assert.ErrorIs(t, s.Next(ctx), ErrLastQuestion)
	assert.Equal(t, 4, s.Snapshot().Index)
}

func TestRecordAnswerIdempotent(t *testing.T) {
	s := newTestSession(fiveQuestions(), nil)
	require.NoError(t, s.Start())

	require.NoError(t, s.RecordAnswer("the derivative is 2x"))
	first := s.Snapshot()
	require.NoError(t, s.RecordAnswer("the derivative is 2x"))
	assert.Equal(t, first.Answer, s.Snapshot().Answer)
}

func TestRecordAnswerOverwrites(t *testing.T) {
	s := newTestSession(fiveQuestions(), nil)
	require.NoError(t, s.Start())

	require.NoError(t, s.RecordAnswer("draft"))
	require.NoError(t, s.RecordAnswer("final"))
	assert.Equal(t, "final", s.Snapshot().Answer)
}

func TestNavigationAutosavesCurrentAnswer(t *testing.T) {
	ctx := context.Background()
	saver := &recordingSaver{}
	s := newTestSession(fiveQuestions(), saver)
	require.NoError(t, s.Start())

	require.NoError(t, s.RecordAnswer("answer one"))
	require.NoError(t, s.Next(ctx))
	require.NoError(t, s.Prev(ctx))

	require.Len(t, saver.calls, 2)
	assert.Equal(t, Answer{QuestionID: 1, Text: "answer one"}, saver.calls[0])
	// Question 2 was never answered; the flush carries empty text.
	assert.Equal(t, Answer{QuestionID: 2, Text: ""}, saver.calls[1])
}

func TestAutosaveFailureDoesNotBlockNavigation(t *testing.T) {
	ctx := context.Background()
	saver := &recordingSaver{err: assert.AnError}
	s := newTestSession(fiveQuestions(), saver)
	require.NoError(t, s.Start())

	require.NoError(t, s.Next(ctx))
	assert.Equal(t, 1, s.Snapshot().Index)
}

func TestCountdown(t *testing.T) {
	s := newTestSession(fiveQuestions(), nil)
	assert.Equal(t, 1800, s.Snapshot().TimeLeft)

	require.NoError(t, s.Start())
	for i := 0; i < 1800; i++ {
		s.Tick()
	}
	assert.Equal(t, 0, s.Snapshot().TimeLeft)

	// Clamped at zero, never negative, and the session stays open.
	assert.Equal(t, 0, s.Tick())
	assert.Equal(t, StateInProgress, s.State())
}

func TestTickBeforeStartIsInert(t *testing.T) {
	s := newTestSession(fiveQuestions(), nil)
	assert.Equal(t, 1800, s.Tick())
	assert.Equal(t, 1800, s.Snapshot().TimeLeft)
}

func TestSubmitLocksSession(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(fiveQuestions(), nil)
	require.NoError(t, s.Start())
	require.NoError(t, s.RecordAnswer("only the first"))

	answers, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, s.State())

	require.Len(t, answers, 5)
	assert.Equal(t, Answer{QuestionID: 1, Text: "only the first"}, answers[0])
	assert.Equal(t, Answer{QuestionID: 2, Text: ""}, answers[1])

	assert.ErrorIs(t, s.Next(ctx), ErrSessionOver)
	assert.ErrorIs(t, s.RecordAnswer("too late"), ErrSessionOver)
	_, err = s.Submit(ctx)
	assert.ErrorIs(t, err, ErrSessionOver)

	// Submitted sessions stop consuming time.
	before := s.Snapshot().TimeLeft
	s.Tick()
	assert.Equal(t, before, s.Snapshot().TimeLeft)
}

func TestSubmitFlushesCurrentAnswer(t *testing.T) {
	ctx := context.Background()
	saver := &recordingSaver{}
	s := newTestSession(fiveQuestions(), saver)
	require.NoError(t, s.Start())
	require.NoError(t, s.RecordAnswer("final words"))

	_, err := s.Submit(ctx)
	require.NoError(t, err)
	require.Len(t, saver.calls, 1)
	assert.Equal(t, Answer{QuestionID: 1, Text: "final words"}, saver.calls[0])
}

func TestSnapshotTracksCurrentQuestion(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(fiveQuestions(), nil)
	require.NoError(t, s.Start())
	require.NoError(t, s.Next(ctx))

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Index)
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, "Q2", snap.Question.Text)
	assert.Equal(t, "in_progress", snap.State)
}
