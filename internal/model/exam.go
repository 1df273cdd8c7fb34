package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam represents a published examination definition. Once students can see
// it, the question bank and marks are treated as immutable.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Department      string    `json:"department"`
	Semester        int       `json:"semester"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalMarks      int       `json:"total_marks"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	IsActive        bool      `json:"is_active"`
	QuestionCount   int       `json:"question_count,omitempty"`
	CreatedBy       uuid.UUID `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Duration returns the exam duration as a time.Duration.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// InWindow reports whether the exam can be started at the given instant.
func (e *Exam) InWindow(now time.Time) bool {
	return e.IsActive && !now.Before(e.WindowStart) && !now.After(e.WindowEnd)
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string    `json:"title" binding:"required,min=3,max=255"`
	Description     string    `json:"description" binding:"max=2000"`
	Department      string    `json:"department" binding:"required,min=2,max=100"`
	Semester        int       `json:"semester" binding:"required,min=1,max=12"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1,max=480"`
	TotalMarks      int       `json:"total_marks" binding:"required,min=1"`
	WindowStart     time.Time `json:"window_start" binding:"required"`
	WindowEnd       time.Time `json:"window_end" binding:"required,gtfield=WindowStart"`
	IsActive        *bool     `json:"is_active" binding:"omitempty"`
}

// LobbyExam is an exam as shown to a student, overlaid with the student's
// own session status if one exists.
type LobbyExam struct {
	Exam
	Attempted     bool           `json:"attempted"`
	SessionStatus *SessionStatus `json:"session_status,omitempty"`
}
