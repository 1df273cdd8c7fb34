package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. Transitions are forward-only:
// NOT_STARTED → IN_PROGRESS → {COMPLETED, AUTO_SUBMITTED}.
type SessionStatus string

const (
	SessionStatusNotStarted    SessionStatus = "NOT_STARTED"
	SessionStatusInProgress    SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted     SessionStatus = "COMPLETED"
	SessionStatusAutoSubmitted SessionStatus = "AUTO_SUBMITTED"
)

// Terminal reports whether the status is frozen.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAutoSubmitted
}

// SubmitTrigger identifies what caused a terminal transition. Only a manual
// trigger yields COMPLETED; all others yield AUTO_SUBMITTED.
type SubmitTrigger string

const (
	TriggerManual        SubmitTrigger = "manual"
	TriggerTimeout       SubmitTrigger = "timeout"
	TriggerRiskThreshold SubmitTrigger = "risk_threshold"
	TriggerMultiEvent    SubmitTrigger = "multi_event"
)

// TargetStatus returns the terminal status a trigger produces.
func (t SubmitTrigger) TargetStatus() SessionStatus {
	if t == TriggerManual {
		return SessionStatusCompleted
	}
	return SessionStatusAutoSubmitted
}

// ExamSession represents one student's attempt at one exam. There is at most
// one session per (exam_id, student_id); once terminal it is frozen.
type ExamSession struct {
	ID              uuid.UUID      `json:"id"`
	ExamID          uuid.UUID      `json:"exam_id"`
	StudentID       uuid.UUID      `json:"student_id"`
	Status          SessionStatus  `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	Deadline        time.Time      `json:"deadline"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	SubmitTrigger   *SubmitTrigger `json:"submit_trigger,omitempty"`
	QuestionOrder   []uuid.UUID    `json:"question_order"`
	RiskScore       int            `json:"risk_score"`
	FraudEventCount int            `json:"fraud_event_count"`
	MajorEventCount int            `json:"major_event_count"`
	MarksObtained   int            `json:"marks_obtained"`
}

// AnswerRecord is one answer within a session. Later writes for the same
// question overwrite earlier ones.
type AnswerRecord struct {
	SessionID        uuid.UUID `json:"session_id"`
	QuestionID       uuid.UUID `json:"question_id"`
	Value            string    `json:"value"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// SubmitAnswerRequest is the payload for answering a single question.
type SubmitAnswerRequest struct {
	QuestionID       uuid.UUID `json:"question_id" binding:"required"`
	Value            string    `json:"value" binding:"required,max=4000"`
	TimeTakenSeconds int       `json:"time_taken_seconds" binding:"min=0"`
}

// StartSessionResponse is returned by start(); answer keys are stripped and
// the question list is in the student's permuted order.
type StartSessionResponse struct {
	SessionID        uuid.UUID            `json:"session_id"`
	Exam             Exam                 `json:"exam"`
	Questions        []QuestionForStudent `json:"questions"`
	RemainingSeconds int                  `json:"remaining_seconds"`
	ExistingAnswers  []AnswerRecord       `json:"existing_answers"`
}

// SubmitResult is the frozen outcome of a terminal session.
type SubmitResult struct {
	SessionID     uuid.UUID     `json:"session_id"`
	Status        SessionStatus `json:"status"`
	MarksObtained int           `json:"marks_obtained"`
	TotalMarks    int           `json:"total_marks"`
	RiskScore     int           `json:"risk_score"`
}
