package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/middleware"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/invigilo/proctor-backend/internal/response"
	"github.com/invigilo/proctor-backend/internal/service"
	"github.com/invigilo/proctor-backend/internal/validator"
)

// SessionHandler handles the student exam portal: lobby, start, answers,
// fraud events and submission.
type SessionHandler struct {
	sessionService *service.SessionService
	authService    *service.AuthService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, authService *service.AuthService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, authService: authService}
}

// GetLobby godoc
// GET /api/v1/student/exams
// Lists the exams available to the student's cohort.
func (h *SessionHandler) GetLobby(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}

	lobby, err := h.sessionService.GetLobby(c.Request.Context(), student)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": lobby})
}

// StartExam godoc
// POST /api/v1/student/exams/:exam_id/start
// Begins or resumes the student's session for an exam.
func (h *SessionHandler) StartExam(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.sessionService.Start(c.Request.Context(), student, examID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// SubmitAnswer godoc
// POST /api/v1/student/sessions/:session_id/answers
// Records one answer; a repeat answer to the same question overwrites the
// previous one. If the deadline has passed, the session is timed out instead
// and the frozen result is returned.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	studentID, sessionID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, result, err := h.sessionService.SubmitAnswer(c.Request.Context(), studentID, sessionID, &req)
	if err != nil {
		h.failSession(c, err)
		return
	}
	if answer == nil {
		// Deadline already passed; the session was timeout-submitted.
		response.Success(c, http.StatusOK, gin.H{"result": result})
		return
	}

	payload := gin.H{"answer": answer}
	if result != nil {
		// The answer itself ended the session via a fraud trigger.
		payload["result"] = result
	}
	response.Success(c, http.StatusOK, payload)
}

// RecordFraudEvent godoc
// POST /api/v1/student/sessions/:session_id/events
// Appends a fraud signal to the session's log and returns the running risk
// score along with the session status, which may have just gone terminal.
func (h *SessionHandler) RecordFraudEvent(c *gin.Context) {
	studentID, sessionID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	var req model.RecordFraudEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.RecordFraudEvent(c.Request.Context(), studentID, sessionID, &req)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// SubmitExam godoc
// POST /api/v1/student/sessions/:session_id/submit
// Finishes the session manually. Idempotent: repeat submits return the same
// frozen result.
func (h *SessionHandler) SubmitExam(c *gin.Context) {
	studentID, sessionID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	result, err := h.sessionService.SubmitOwned(c.Request.Context(), studentID, sessionID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

func (h *SessionHandler) currentStudent(c *gin.Context) (*model.Student, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	student, err := h.authService.GetStudent(c.Request.Context(), claims)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return nil, false
	}
	return student, true
}

func (h *SessionHandler) sessionScope(c *gin.Context) (studentID, sessionID uuid.UUID, ok bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, uuid.Nil, false
	}
	studentID, err := uuid.Parse(claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return uuid.Nil, uuid.Nil, false
	}
	sessionID, err = uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, uuid.Nil, false
	}
	return studentID, sessionID, true
}

func (h *SessionHandler) failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusForbidden, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyCompleted)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotSessionOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrSessionNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, service.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	case errors.Is(err, service.ErrUnknownEventType):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownEventType)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
