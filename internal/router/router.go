package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/invigilo/proctor-backend/internal/config"
	"github.com/invigilo/proctor-backend/internal/handler"
	"github.com/invigilo/proctor-backend/internal/middleware"
	"github.com/invigilo/proctor-backend/internal/response"
	"github.com/invigilo/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	Exam    *handler.ExamHandler
	Report  *handler.ReportHandler
	Monitor *handler.MonitorHandler
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
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.HeaderDeviceFingerprint}
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

	// Rate limiter for auth routes (30 requests per minute per IP); login
	// and registration are the only unauthenticated write endpoints.
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/register", handlers.Auth.RegisterStudent)
		auth.POST("/student/login", handlers.Auth.LoginStudent)
		auth.POST("/admin/login", handlers.Auth.LoginAdmin)

		// Authenticated profile routes
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Student Group (JWT + Device Binding) ───────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.VerifyStudentDevice(authService),
	)
	{
		studentAPI.GET("/exams", handlers.Session.GetLobby)
		studentAPI.POST("/exams/:exam_id/start", handlers.Session.StartExam)
		studentAPI.POST("/sessions/:session_id/answers", handlers.Session.SubmitAnswer)
		studentAPI.POST("/sessions/:session_id/events", handlers.Session.RecordFraudEvent)
		studentAPI.POST("/sessions/:session_id/submit", handlers.Session.SubmitExam)
	}

	// ─── 3. WebSocket Group (Admin WS Auth) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAdminJWT(authService))
	{
		ws.GET("/admin/exams/:exam_id/monitor", handlers.Monitor.ExamMonitorStream)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Exam management
		adminAPI.GET("/exams", handlers.Exam.ListExams)
		adminAPI.POST("/exams", handlers.Exam.CreateExam)
		adminAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		adminAPI.PUT("/exams/:exam_id", handlers.Exam.UpdateExam)
		adminAPI.DELETE("/exams/:exam_id", handlers.Exam.DeleteExam)

		// Question bank
		adminAPI.GET("/exams/:exam_id/questions", handlers.Exam.ListQuestions)
		adminAPI.POST("/exams/:exam_id/questions", handlers.Exam.AddQuestion)
		adminAPI.DELETE("/questions/:question_id", handlers.Exam.DeleteQuestion)

		// Oversight and reporting
		adminAPI.GET("/exams/:exam_id/results", handlers.Report.GetExamResults)
		adminAPI.GET("/exams/:exam_id/attendance", handlers.Report.GetExamAttendance)
		adminAPI.GET("/exams/:exam_id/fraud-logs", handlers.Report.GetExamFraudLog)
		adminAPI.GET("/sessions/:session_id/report", handlers.Report.GetSessionReport)
		adminAPI.GET("/fraud-alerts", handlers.Report.GetFraudAlerts)
		adminAPI.GET("/dashboard-stats", handlers.Report.GetDashboardStats)

		// Students
		adminAPI.GET("/students", handlers.Report.ListStudents)
		adminAPI.GET("/students/:student_id", handlers.Report.GetStudentDetail)
	}

	return router
}
