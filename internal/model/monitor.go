package model

import (
	"time"

	"github.com/google/uuid"
)

// Monitor event types published on the per-exam channel.
const (
	MonitorEventFraud   = "fraud_event"
	MonitorEventSession = "session_update"
)

// MonitorEvent is one live-proctoring update pushed to admin dashboards
// watching an exam.
type MonitorEvent struct {
	Type      string        `json:"type"`
	ExamID    uuid.UUID     `json:"exam_id"`
	SessionID uuid.UUID     `json:"session_id"`
	StudentID uuid.UUID     `json:"student_id"`
	EventType string        `json:"event_type,omitempty"`
	RiskDelta int           `json:"risk_delta,omitempty"`
	RiskScore int           `json:"risk_score"`
	Status    SessionStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}
