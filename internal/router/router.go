package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gradeloop/session-engine/internal/config"
	"github.com/gradeloop/session-engine/internal/handler"
	"github.com/gradeloop/session-engine/internal/middleware"
	"github.com/gradeloop/session-engine/internal/response"
	"github.com/gradeloop/session-engine/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Grading *handler.GradingHandler
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

	// Rate limiter for student routes (120 requests per minute per IP;
	// autosave over HTTP can be chatty).
	studentLimiter := middleware.NewRateLimiter(120, time.Minute)

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		studentLimiter.Middleware(),
	)
	{
		studentAPI.POST("/assessments/:assessment_id/sessions", handlers.Session.StartSession)
		studentAPI.GET("/sessions/:session_id/state", handlers.Session.GetState)
		studentAPI.PUT("/sessions/:session_id/answers/:question_number", handlers.Session.SaveAnswer)
		studentAPI.POST("/sessions/:session_id/submit", handlers.Session.Submit)
		studentAPI.DELETE("/sessions/:session_id", handlers.Session.CloseSession)
		studentAPI.GET("/submissions/:submission_id/result", handlers.Session.GetResult)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	// ─── 3. Lecturer Group (JWT) ───────────────────────────────────────
	lecturerAPI := router.Group("/api/v1/lecturer")
	lecturerAPI.Use(middleware.RequireLecturerJWT(authService))
	{
		lecturerAPI.POST("/submissions/:submission_id/review", handlers.Grading.OpenReview)
		lecturerAPI.GET("/submissions/:submission_id/review", handlers.Grading.GetReview)
		lecturerAPI.PUT("/submissions/:submission_id/questions/:question_number/override", handlers.Grading.SetOverride)
		lecturerAPI.DELETE("/submissions/:submission_id/questions/:question_number/override", handlers.Grading.RemoveOverride)
		lecturerAPI.POST("/submissions/:submission_id/finalize", handlers.Grading.Finalize)
	}

	return router
}
