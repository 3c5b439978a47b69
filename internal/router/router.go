package router

import (
	"time"

	"github.com/campushire/skillcheck/internal/config"
	"github.com/campushire/skillcheck/internal/handler"
	"github.com/campushire/skillcheck/internal/metrics"
	"github.com/campushire/skillcheck/internal/middleware"
	"github.com/campushire/skillcheck/internal/response"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Profile *handler.ProfileHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

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

	// Request ID first so every log line and error body carries it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(metrics.Middleware())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. Exam Group (Bearer, Rate Limited, Uncached) ────────────────
	examMiddlewares := []gin.HandlerFunc{
		limiter.Middleware(),
		middleware.RequireBearer(auth),
		middleware.PrivateNoStore(),
	}

	exam := router.Group("/exam", examMiddlewares...)
	{
		exam.POST("/start", handlers.Exam.StartExam)
		exam.POST("/submit", handlers.Exam.SubmitExam)
		exam.GET("/attempts", handlers.Exam.ListAttempts)
	}

	// Paths used by the existing web client.
	skills := router.Group("/api/skills", examMiddlewares...)
	{
		skills.POST("/verify", handlers.Exam.StartExam)
		skills.POST("/submit-exam", handlers.Exam.SubmitExam)
	}

	// ─── 2. Profile Group (Bearer, Uncached) ───────────────────────────
	profile := router.Group("/profile", middleware.RequireBearer(auth), middleware.PrivateNoStore())
	{
		profile.GET("/skills", handlers.Profile.ListSkills)
	}

	// ─── 3. WebSocket Group (Query Token Auth) ─────────────────────────
	ws := router.Group("/ws")
	ws.Use(middleware.RequireWSAuth(auth))
	{
		ws.GET("/exam/:exam_id/proctor", handlers.WS.ProctorStream)
	}

	return router
}
