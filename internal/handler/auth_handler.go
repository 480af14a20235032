package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fastexam/exam-portal/internal/backend"
	"github.com/fastexam/exam-portal/internal/middleware"
	"github.com/fastexam/exam-portal/internal/validator"
)

// AuthHandler handles the login, signup and logout form posts. Each flow is
// one round trip to the exam API; failures render inline on the form.
type AuthHandler struct {
	api *backend.Client
	log zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(api *backend.Client, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		api: api,
		log: log.With().Str("component", "auth_handler").Logger(),
	}
}

type loginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

type signupForm struct {
	Username string `form:"username" binding:"required"`
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

// PostLogin godoc
// POST /login
// Authenticates against the exam API and redirects home on success.
func (h *AuthHandler) PostLogin(c *gin.Context) {
	var form loginForm
	if fields := validator.BindForm(c, &form); fields != nil {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{
			"Fields": fields,
			"Email":  c.PostForm("email"),
		})
		return
	}

	sid := middleware.GetSessionID(c)
	if _, err := h.api.Login(c.Request.Context(), sid, form.Email, form.Password); err != nil {
		h.log.Warn().Err(err).Str("email", form.Email).Msg("Login failed")
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"Error": "Authentication failed: " + err.Error(),
			"Email": form.Email,
		})
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

// PostSignup godoc
// POST /signup
// Registers an account with the exam API and redirects home on success.
func (h *AuthHandler) PostSignup(c *gin.Context) {
	var form signupForm
	if fields := validator.BindForm(c, &form); fields != nil {
		c.HTML(http.StatusBadRequest, "signup.html", gin.H{
			"Fields":   fields,
			"Username": c.PostForm("username"),
			"Email":    c.PostForm("email"),
		})
		return
	}

	sid := middleware.GetSessionID(c)
	if _, err := h.api.Register(c.Request.Context(), sid, form.Username, form.Email, form.Password); err != nil {
		h.log.Warn().Err(err).Str("email", form.Email).Msg("Signup failed")
		c.HTML(http.StatusUnauthorized, "signup.html", gin.H{
			"Error":    "Authentication failed: " + err.Error(),
			"Username": form.Username,
			"Email":    form.Email,
		})
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

// PostLogout godoc
// POST /logout
// Ends the session. Local credentials are cleared even when the API call
// fails, so a failure here is only worth a warning.
func (h *AuthHandler) PostLogout(c *gin.Context) {
	sid := middleware.GetSessionID(c)
	if err := h.api.Logout(c.Request.Context(), sid); err != nil {
		h.log.Warn().Err(err).Msg("Logout call failed, local session cleared anyway")
	}
	c.Redirect(http.StatusSeeOther, "/login")
}
