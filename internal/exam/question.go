// Package exam implements the exam-taking session: the ordered question
// list, the per-question answer map, the countdown and the
// NotStarted → InProgress → Submitted lifecycle.
package exam

import "context"

// Question is a single generated exam question. The full ordered list is
// fixed for the lifetime of a session.
type Question struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Marks int    `json:"marks,omitempty"`
}

// Answer pairs a question with the student's recorded answer text.
type Answer struct {
	QuestionID int    `json:"question_id"`
	Text       string `json:"answer"`
}

// AnswerSaver receives the current answer whenever the student navigates
// between questions or submits. Implementations enqueue for asynchronous
// delivery to the exam API; a failure here must never block navigation.
type AnswerSaver interface {
	SaveAnswer(ctx context.Context, sessionID string, questionID int, answer string) error
}
