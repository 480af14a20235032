package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fastexam/exam-portal/internal/backend"
	"github.com/fastexam/exam-portal/internal/exam"
	"github.com/fastexam/exam-portal/internal/middleware"
	"github.com/fastexam/exam-portal/internal/response"
	"github.com/fastexam/exam-portal/internal/validator"
)

// ExamHandler owns the exam-generation form and the session endpoints the
// exam center page drives.
type ExamHandler struct {
	api     *backend.Client
	manager *exam.Manager
	log     zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(api *backend.Client, manager *exam.Manager, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		api:     api,
		manager: manager,
		log:     log.With().Str("component", "exam_handler").Logger(),
	}
}

// PostCreate godoc
// POST /exam/create
// Validates the generation form, calls the exam API and redirects to the
// exam center with the question list JSON-encoded in the query string.
func (h *ExamHandler) PostCreate(c *gin.Context) {
	var req backend.ExamRequest
	if fields := validator.BindForm(c, &req); fields != nil {
		c.HTML(http.StatusBadRequest, "exam_select.html", gin.H{
			"Fields": fields,
			"Values": postedExamFormValues(c),
		})
		return
	}

	sid := middleware.GetSessionID(c)
	questions, err := h.api.GenerateExam(c.Request.Context(), sid, req)
	if err != nil {
		h.log.Error().Err(err).Str("subject", req.Subject).Msg("Exam generation failed")
		c.HTML(http.StatusBadGateway, "exam_select.html", gin.H{
			"Error":  "Error generating exam",
			"Values": postedExamFormValues(c),
		})
		return
	}

	payload, err := json.Marshal(questions)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "exam_select.html", gin.H{
			"Error":  "Error generating exam",
			"Values": postedExamFormValues(c),
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/exam/center?data="+url.QueryEscape(string(payload)))
}

// Center godoc
// GET /exam/center?data=<pct-escaped JSON question list>
// Decodes the handed-off question list and registers a fresh session. A
// missing or malformed payload degrades to zero questions rather than
// failing the page; a reload without the data param keeps the session.
func (h *ExamHandler) Center(c *gin.Context) {
	sid := middleware.GetSessionID(c)

	raw := c.Query("data")
	var questions []exam.Question
	switch {
	case raw != "":
		if err := json.Unmarshal([]byte(raw), &questions); err != nil {
			h.log.Warn().Err(err).Msg("Failed to decode or parse questions")
			questions = nil
		}
		h.manager.Create(sid, questions)
	default:
		if _, ok := h.manager.Get(sid); !ok {
			h.manager.Create(sid, nil)
		}
	}

	sess, _ := h.manager.Get(sid)
	c.HTML(http.StatusOK, "exam_center.html", gin.H{
		"Snapshot": sess.Snapshot(),
	})
}

// Start godoc
// POST /api/v1/session/start
// Begins the exam. The browser requests fullscreen on its own; a denial
// there never blocks this transition.
func (h *ExamHandler) Start(c *gin.Context) {
	sid := middleware.GetSessionID(c)
	if _, ok := h.manager.Get(sid); !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}
	if err := h.manager.Start(sid); err != nil {
		h.failSession(c, err)
		return
	}
	h.snapshot(c, sid, "")
}

type answerRequest struct {
	Text string `json:"text"`
}

// Answer godoc
// POST /api/v1/session/answer
// Records the answer for the current question. Local only; delivery to the
// exam API happens on navigation.
func (h *ExamHandler) Answer(c *gin.Context) {
	var req answerRequest
	if fields := validator.BindJSON(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, fields)
		return
	}

	sid := middleware.GetSessionID(c)
	sess, ok := h.manager.Get(sid)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}
	if err := sess.RecordAnswer(req.Text); err != nil {
		h.failSession(c, err)
		return
	}
	h.snapshot(c, sid, "")
}

// Next godoc
// POST /api/v1/session/next
// Autosaves and advances. At the last question the session stays put and
// the response carries a notice instead of an error.
func (h *ExamHandler) Next(c *gin.Context) {
	sid := middleware.GetSessionID(c)
	sess, ok := h.manager.Get(sid)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	err := sess.Next(c.Request.Context())
	if errors.Is(err, exam.ErrLastQuestion) {
		h.snapshot(c, sid, response.GetMessage(response.ErrLastQuestion))
		return
	}
	if err != nil {
		h.failSession(c, err)
		return
	}
	h.snapshot(c, sid, "")
}

// Prev godoc
// POST /api/v1/session/prev
// Autosaves and moves back; a silent no-op at the first question.
func (h *ExamHandler) Prev(c *gin.Context) {
	sid := middleware.GetSessionID(c)
	sess, ok := h.manager.Get(sid)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}
	if err := sess.Prev(c.Request.Context()); err != nil {
		h.failSession(c, err)
		return
	}
	h.snapshot(c, sid, "")
}

// Submit godoc
// POST /api/v1/session/submit
// Finalizes the session and sends every answer to the exam API for
// grading. The session locks even if grading fails; the student's attempt
// is over either way, and the grading error is surfaced.
func (h *ExamHandler) Submit(c *gin.Context) {
	sid := middleware.GetSessionID(c)
	if _, ok := h.manager.Get(sid); !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	answers, err := h.manager.Submit(c.Request.Context(), sid)
	if err != nil {
		h.failSession(c, err)
		return
	}

	evaluation, err := h.api.SubmitExam(c.Request.Context(), sid, answers)
	if err != nil {
		h.log.Error().Err(err).Msg("Grading submission failed")
		response.Fail(c, http.StatusBadGateway, response.ErrUpstream)
		return
	}

	sess, _ := h.manager.Get(sid)
	response.Success(c, http.StatusOK, gin.H{
		"snapshot":   sess.Snapshot(),
		"evaluation": evaluation,
	})
}

// snapshot writes the standard session response, with an optional notice.
func (h *ExamHandler) snapshot(c *gin.Context, sid, notice string) {
	sess, ok := h.manager.Get(sid)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}
	data := gin.H{"snapshot": sess.Snapshot()}
	if notice != "" {
		data["notice"] = notice
	}
	response.Success(c, http.StatusOK, data)
}

// failSession maps session errors onto the response envelope.
func (h *ExamHandler) failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, exam.ErrNotStarted):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotStarted)
	case errors.Is(err, exam.ErrAlreadyStarted):
		response.Fail(c, http.StatusConflict, response.ErrSessionAlreadyStarted)
	case errors.Is(err, exam.ErrSessionOver):
		response.Fail(c, http.StatusConflict, response.ErrSessionOver)
	case errors.Is(err, exam.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	default:
		h.log.Error().Err(err).Msg("Session operation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func postedExamFormValues(c *gin.Context) map[string]string {
	values := defaultExamFormValues()
	for key := range values {
		if v := c.PostForm(key); v != "" {
			values[key] = v
		}
	}
	return values
}
