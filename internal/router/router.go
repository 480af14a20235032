package router

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fastexam/exam-portal/internal/config"
	"github.com/fastexam/exam-portal/internal/handler"
	"github.com/fastexam/exam-portal/internal/middleware"
	"github.com/fastexam/exam-portal/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Pages *handler.PageHandler
	Auth  *handler.AuthHandler
	Exam  *handler.ExamHandler
	WS    *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Every response carries a request ID, the restrictive security header
	// set and a browser session id cookie.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BrowserSession())

	// ─── Templates & Static Assets ─────────────────────────────────────
	router.SetFuncMap(template.FuncMap{
		"add": func(a, b int) int { return a + b },
	})
	router.LoadHTMLGlob("web/templates/*.html")
	staticGroup := router.Group("/static")
	staticGroup.Use(middleware.CacheControl(86400))
	{
		staticGroup.Static("/", "./web/static")
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ─── Pages ─────────────────────────────────────────────────────────
	router.GET("/", handlers.Pages.Home)
	router.GET("/login", handlers.Pages.Login)
	router.GET("/signup", handlers.Pages.Signup)
	router.GET("/exam/create", handlers.Pages.ExamCreate)
	router.GET("/exam/center", handlers.Exam.Center)

	// ─── Form Posts ────────────────────────────────────────────────────
	router.POST("/login", handlers.Auth.PostLogin)
	router.POST("/signup", handlers.Auth.PostSignup)
	router.POST("/logout", handlers.Auth.PostLogout)
	router.POST("/exam/create", handlers.Exam.PostCreate)

	// ─── Session API (driven by the exam center page) ──────────────────
	session := router.Group("/api/v1/session")
	{
		session.POST("/start", handlers.Exam.Start)
		session.POST("/answer", handlers.Exam.Answer)
		session.POST("/next", handlers.Exam.Next)
		session.POST("/prev", handlers.Exam.Prev)
		session.POST("/submit", handlers.Exam.Submit)
	}

	// ─── WebSocket ─────────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/session/stream", handlers.WS.SessionStream)
	}

	return router
}
