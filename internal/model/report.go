package model

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel buckets a final risk score for staff review.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelModerate RiskLevel = "MODERATE"
	RiskLevelHigh     RiskLevel = "HIGH"
)

// BucketRiskScore maps a risk score to its review bucket.
func BucketRiskScore(score int) RiskLevel {
	switch {
	case score < 40:
		return RiskLevelLow
	case score < 70:
		return RiskLevelModerate
	default:
		return RiskLevelHigh
	}
}

// SessionReport is an immutable post-hoc snapshot of one session, aggregated
// from the fraud log, answer timestamps, and security audit records.
type SessionReport struct {
	SessionID            uuid.UUID     `json:"session_id"`
	ExamID               uuid.UUID     `json:"exam_id"`
	StudentID            uuid.UUID     `json:"student_id"`
	Status               SessionStatus `json:"status"`
	RiskScore            int           `json:"risk_score"`
	RiskLevel            RiskLevel     `json:"risk_level"`
	FocusLossCount       int           `json:"focus_loss_count"`
	BackNavigationCount  int           `json:"back_navigation_count"`
	FastAnswerCount      int           `json:"fast_answer_count"`
	CameraFailureCount   int           `json:"camera_failure_count"`
	DeviceChangeAttempts int           `json:"device_change_attempts"`
	LateEventCount       int           `json:"late_event_count"`
	AnsweredCount        int           `json:"answered_count"`
	DurationSeconds      int           `json:"duration_seconds"`
	MarksObtained        int           `json:"marks_obtained"`
	TotalMarks           int           `json:"total_marks"`
	GeneratedAt          time.Time     `json:"generated_at"`
	Events               []FraudEvent  `json:"events"`
}
