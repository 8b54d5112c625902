package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/examvault/internal/config"
	"github.com/stemsi/examvault/internal/handler"
	"github.com/stemsi/examvault/internal/middleware"
	"github.com/stemsi/examvault/internal/response"
	"github.com/stemsi/examvault/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Package    *handler.PackageHandler
	Submission *handler.SubmissionHandler
	Monitor    *handler.MonitorHandler
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
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	// ─── Public (No Auth) ──────────────────────────────────────────────
	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	public := api.Group("")
	{
		public.POST("/auth/login", loginLimiter.Middleware(), handlers.Auth.StudentLogin)
		public.POST("/auth/admin/login", loginLimiter.Middleware(), handlers.Auth.AdminLogin)
	}

	// ─── Student (JWT) ─────────────────────────────────────────────────
	student := api.Group("")
	student.Use(middleware.RequireStudentJWT(authService))
	{
		student.GET("/exams/:exam_id/package", handlers.Package.DownloadPackage)
		student.POST("/submissions", handlers.Submission.Upload)
	}

	// ─── Admin (JWT) ───────────────────────────────────────────────────
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdminJWT(authService))
	{
		admin.GET("/submissions/:session_id", handlers.Submission.GetAnalyzed)
		admin.POST("/students/:student_id/session/reset", handlers.Auth.ResetStudentSession)
	}

	// WebSocket auth rides the query string.
	api.GET("/admin/monitor/ws", middleware.RequireAdminWSAuth(authService), handlers.Monitor.Stream)

	return router
}
