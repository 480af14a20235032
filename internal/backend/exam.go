package backend

import (
	"context"
	"net/http"

	"github.com/fastexam/exam-portal/internal/exam"
)

// ExamRequest carries the exam-generation parameters. validator tags mirror
// the form's constraints; the API applies its own on top.
type ExamRequest struct {
	Subject        string `json:"subject" form:"subject" binding:"required"`
	Topic          string `json:"topic" form:"topic" binding:"required"`
	NumQuestions   int    `json:"num_questions" form:"num_questions" binding:"required,min=1"`
	MarksEach      int    `json:"marks_each" form:"marks_each" binding:"min=0"`
	ExamDuration   int    `json:"exam_duration" form:"exam_duration" binding:"min=0"`
	DeadlineChoice string `json:"deadline_choice" form:"deadline_choice" binding:"required,oneof=hard_deadline soft_deadline no_deadline"`
	Comments       string `json:"comments" form:"comments"`
}

// QuestionEvaluation is the grading result for one answer.
type QuestionEvaluation struct {
	QuestionNo    int    `json:"question_no"`
	MarksObtained int    `json:"marks_obtained"`
	Feedback      string `json:"feedback"`
}

// Evaluation is the graded outcome of a full submission.
type Evaluation struct {
	Evaluations   []QuestionEvaluation `json:"evaluations"`
	Penalty       float64              `json:"penalty"`
	Bonus         float64              `json:"bonus"`
	FinalFeedback string               `json:"final_feedback"`
}

// GenerateExam asks the exam API to generate a question list.
func (c *Client) GenerateExam(ctx context.Context, sid string, req ExamRequest) ([]exam.Question, error) {
	var questions []exam.Question
	if err := c.do(ctx, sid, http.MethodPost, "/exam/generate", req, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// SaveAnswer persists one answer. This is the delivery side of the autosave
// pipeline; it satisfies exam.AnswerSaver for direct (queue-less) wiring.
func (c *Client) SaveAnswer(ctx context.Context, sid string, questionID int, answer string) error {
	body := exam.Answer{QuestionID: questionID, Text: answer}
	return c.do(ctx, sid, http.MethodPost, "/exam/answers", body, nil)
}

// SubmitExam sends the full answer list for grading.
func (c *Client) SubmitExam(ctx context.Context, sid string, answers []exam.Answer) (*Evaluation, error) {
	body := map[string]interface{}{"submissions": answers}
	var ev Evaluation
	if err := c.do(ctx, sid, http.MethodPost, "/exam/submit", body, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
