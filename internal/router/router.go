package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sinovhub/sinov-backend/internal/config"
	"github.com/sinovhub/sinov-backend/internal/handler"
	"github.com/sinovhub/sinov-backend/internal/middleware"
	"github.com/sinovhub/sinov-backend/internal/response"
	"github.com/sinovhub/sinov-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Catalog *handler.CatalogHandler
	Session *handler.SessionHandler
	Proctor *handler.ProctorHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/teacher/login", handlers.Auth.TeacherLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/teacher/me", middleware.RequireTeacherJWT(authService), handlers.Auth.GetTeacherProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceLogin(authService),
	)
	{
		// Catalog
		studentAPI.GET("/tests", handlers.Catalog.ListTests)
		studentAPI.GET("/tests/:test_id", handlers.Catalog.GetTest)
		studentAPI.GET("/tests/:test_id/questions", handlers.Catalog.GetQuestions)
		studentAPI.GET("/tests/:test_id/session", handlers.Session.GetActiveSession)

		// Session lifecycle
		studentAPI.POST("/sessions", handlers.Session.StartSession)
		studentAPI.GET("/sessions/:session_id", handlers.Session.GetSession)
		studentAPI.PUT("/sessions/:session_id/answers", handlers.Session.UpdateAnswers)
		studentAPI.POST("/sessions/:session_id/submit", handlers.Session.SubmitSession)
		studentAPI.POST("/sessions/:session_id/warnings", handlers.Session.RecordWarning)
		studentAPI.POST("/sessions/:session_id/unban", handlers.Session.Unban)

		// History
		studentAPI.GET("/attempts", handlers.Session.ListAttempts)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		teacherAPI.POST("/sessions/:session_id/unban-code", handlers.Proctor.IssueUnbanCode)
		teacherAPI.GET("/tests/:test_id/results", handlers.Proctor.ListResults)
		teacherAPI.POST("/students/:student_id/reset-login", handlers.Proctor.ResetStudentLogin)
	}

	return router
}
