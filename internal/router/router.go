package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/handler"
	"github.com/stemsi/exstem-session/internal/logger"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	ExamSession *handler.ExamSessionHandler
	Submission  *handler.SubmissionHandler
	Health      *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the access log can carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(logger.GinMiddleware(log))

	router.GET("/health", handlers.Health.Health)

	// ─── 1. Student Group (JWT, optional single device) ────────────────
	studentMW := []gin.HandlerFunc{middleware.RequireStudentJWT(authService)}
	if cfg.SingleDeviceSession {
		studentMW = append(studentMW, middleware.CheckSingleDeviceSession(authService))
	}
	studentMW = append(studentMW, middleware.NoStore(), middleware.Brotli())

	// Autosave fires often; 120 writes per minute per student is generous.
	answerLimiter := middleware.NewRateLimiter(120, time.Minute)

	session := router.Group("/api/v1/exam-session")
	session.Use(studentMW...)
	{
		session.POST("/start", handlers.ExamSession.Start)
		session.GET("/active", handlers.ExamSession.Active)
		session.POST("/:id/answers", answerLimiter.Middleware(), handlers.ExamSession.SaveAnswer)
		session.POST("/:id/answers/batch", answerLimiter.Middleware(), handlers.ExamSession.SaveAnswers)
		session.POST("/:id/submit", handlers.ExamSession.Submit)
		session.DELETE("/:id", handlers.ExamSession.Cancel)
		session.GET("/:id/status", handlers.ExamSession.Status)
		session.GET("/:id/result", handlers.ExamSession.Result)
	}

	// ─── 2. Admin Group (JWT + RBAC) ───────────────────────────────────
	submission := router.Group("/api/v1/submission")
	submission.Use(middleware.RequireAdminJWT(authService), middleware.NoStore())
	{
		submission.POST("/auto-check",
			middleware.RequirePermission(model.PermissionSubmissionsSweep),
			handlers.Submission.AutoCheck,
		)
		submission.GET("/exams/:exam_id/ranking",
			middleware.RequirePermission(model.PermissionExamsRead, model.PermissionResultsManage),
			handlers.Submission.ExamRanking,
		)
		submission.POST("/exams/:exam_id/recompute-ranks",
			middleware.RequirePermission(model.PermissionResultsManage),
			handlers.Submission.RecomputeRanks,
		)
	}

	return router
}
