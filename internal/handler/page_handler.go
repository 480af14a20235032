package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fastexam/exam-portal/internal/credstore"
	"github.com/fastexam/exam-portal/internal/middleware"
)

// PageHandler renders the static-ish pages: dashboard, login, signup and
// the exam request form.
type PageHandler struct {
	store credstore.Store
	log   zerolog.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(store credstore.Store, log zerolog.Logger) *PageHandler {
	return &PageHandler{
		store: store,
		log:   log.With().Str("component", "page_handler").Logger(),
	}
}

// Home godoc
// GET /
// Renders the dashboard with links to log in or create an exam.
func (h *PageHandler) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "home.html", gin.H{
		"LoggedIn": h.loggedIn(c),
	})
}

// Login godoc
// GET /login
func (h *PageHandler) Login(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

// Signup godoc
// GET /signup
func (h *PageHandler) Signup(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", gin.H{})
}

// ExamCreate godoc
// GET /exam/create
// Renders the exam-generation form with its defaults.
func (h *PageHandler) ExamCreate(c *gin.Context) {
	c.HTML(http.StatusOK, "exam_select.html", gin.H{
		"Values": defaultExamFormValues(),
	})
}

// loggedIn reports whether the browser session holds an access token. Only
// used to tune navigation links; the exam API is the real gatekeeper.
func (h *PageHandler) loggedIn(c *gin.Context) bool {
	sid := middleware.GetSessionID(c)
	creds, err := h.store.Load(c.Request.Context(), sid)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotFound) {
			h.log.Warn().Err(err).Msg("Credential lookup failed")
		}
		return false
	}
	return creds.AccessToken != ""
}

func defaultExamFormValues() map[string]string {
	return map[string]string{
		"subject":         "",
		"topic":           "",
		"num_questions":   "5",
		"marks_each":      "10",
		"exam_duration":   "30",
		"deadline_choice": "soft_deadline",
		"comments":        "",
	}
}
