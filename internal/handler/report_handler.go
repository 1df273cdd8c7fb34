package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/invigilo/proctor-backend/internal/response"
	"github.com/invigilo/proctor-backend/internal/service"
)

// ReportHandler handles the admin oversight surface: per-session reports,
// exam exports, fraud alerts and the dashboard.
type ReportHandler struct {
	reportGenerator *service.ReportGenerator
	examService     *service.ExamService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportGenerator *service.ReportGenerator, examService *service.ExamService) *ReportHandler {
	return &ReportHandler{reportGenerator: reportGenerator, examService: examService}
}

// GetSessionReport godoc
// GET /api/v1/admin/sessions/:session_id/report
// Aggregates one session into an immutable review snapshot.
func (h *ReportHandler) GetSessionReport(c *gin.Context) {
	sessionID, ok := pathID(c, "session_id")
	if !ok {
		return
	}

	report, err := h.reportGenerator.Generate(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// GetExamResults godoc
// GET /api/v1/admin/exams/:exam_id/results
func (h *ReportHandler) GetExamResults(c *gin.Context) {
	examID, ok := pathID(c, "exam_id")
	if !ok {
		return
	}
	results, err := h.examService.ListResults(c.Request.Context(), examID)
	if err != nil {
		h.failReport(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// GetExamAttendance godoc
// GET /api/v1/admin/exams/:exam_id/attendance
func (h *ReportHandler) GetExamAttendance(c *gin.Context) {
	examID, ok := pathID(c, "exam_id")
	if !ok {
		return
	}
	rows, err := h.examService.AttendanceReport(c.Request.Context(), examID)
	if err != nil {
		h.failReport(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attendance": rows})
}

// GetExamFraudLog godoc
// GET /api/v1/admin/exams/:exam_id/fraud-logs
func (h *ReportHandler) GetExamFraudLog(c *gin.Context) {
	examID, ok := pathID(c, "exam_id")
	if !ok {
		return
	}
	logs, err := h.examService.ListFraudLog(c.Request.Context(), examID)
	if err != nil {
		h.failReport(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"fraud_logs": logs})
}

// GetFraudAlerts godoc
// GET /api/v1/admin/fraud-alerts
// Lists the highest-risk sessions across all exams, most recent first.
func (h *ReportHandler) GetFraudAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	alerts, err := h.examService.ListFraudAlerts(c.Request.Context(), limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"alerts": alerts})
}

// GetDashboardStats godoc
// GET /api/v1/admin/dashboard-stats
func (h *ReportHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.examService.DashboardStats(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// ListStudents godoc
// GET /api/v1/admin/students
func (h *ReportHandler) ListStudents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	var department *string
	if d := c.Query("department"); d != "" {
		department = &d
	}

	students, total, err := h.examService.ListStudents(c.Request.Context(), department, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": students}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

// GetStudentDetail godoc
// GET /api/v1/admin/students/:student_id
// Returns a student with their session history and security audit trail.
func (h *ReportHandler) GetStudentDetail(c *gin.Context) {
	studentID, ok := pathID(c, "student_id")
	if !ok {
		return
	}
	detail, err := h.examService.GetStudentDetail(c.Request.Context(), studentID)
	if err != nil {
		h.failReport(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

func (h *ReportHandler) failReport(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound), errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
