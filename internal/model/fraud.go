package model

import (
	"time"

	"github.com/google/uuid"
)

// FraudEventType enumerates the closed set of fraud signals the client may
// report. Anything outside this set is rejected.
type FraudEventType string

const (
	FraudAppBackgrounded    FraudEventType = "app_backgrounded"
	FraudBackNavigation     FraudEventType = "back_navigation_attempt"
	FraudFastAnswer         FraudEventType = "fast_answer"
	FraudCameraCheckFailure FraudEventType = "camera_check_failure"
)

// Valid reports whether the event type belongs to the closed set.
func (t FraudEventType) Valid() bool {
	switch t {
	case FraudAppBackgrounded, FraudBackNavigation, FraudFastAnswer, FraudCameraCheckFailure:
		return true
	}
	return false
}

// FraudEvent is one append-only entry of a session's fraud log. Applied is
// false for events that arrived after the session went terminal; their delta
// is recorded but never added to the risk score.
type FraudEvent struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	EventType FraudEventType `json:"event_type"`
	RiskDelta int            `json:"risk_delta"`
	Details   string         `json:"details"`
	Applied   bool           `json:"applied"`
	CreatedAt time.Time      `json:"created_at"`
}

// RecordFraudEventRequest is the payload for reporting a fraud signal. The
// risk_delta is advisory: the server re-derives it from the policy table and
// only camera_check_failure may carry a variable (clamped) delta.
type RecordFraudEventRequest struct {
	EventType string `json:"event_type" binding:"required,max=64"`
	RiskDelta int    `json:"risk_delta" binding:"min=0"`
	Details   string `json:"details" binding:"max=1000"`
}

// RecordFraudEventResponse returns the running score after an event.
type RecordFraudEventResponse struct {
	RiskScore int           `json:"risk_score"`
	Status    SessionStatus `json:"status"`
}

// SecurityLog is an audit record of an authentication security incident,
// currently device-binding violations.
type SecurityLog struct {
	ID                  uuid.UUID `json:"id"`
	StudentID           uuid.UUID `json:"student_id"`
	RollNumber          string    `json:"roll_number"`
	EventType           string    `json:"event_type"`
	ExpectedFingerprint string    `json:"expected_fingerprint"`
	ActualFingerprint   string    `json:"actual_fingerprint"`
	Details             string    `json:"details"`
	CreatedAt           time.Time `json:"created_at"`
}

// SecurityEventDeviceMismatch is the event type logged when a login presents
// a fingerprint different from the one frozen at registration.
const SecurityEventDeviceMismatch = "unauthorized_device_login"

// SecurityLogJob is the queue payload pushed on the hot path and persisted
// by the background worker.
type SecurityLogJob struct {
	StudentID           string `json:"student_id"`
	RollNumber          string `json:"roll_number"`
	EventType           string `json:"event_type"`
	ExpectedFingerprint string `json:"expected_fingerprint"`
	ActualFingerprint   string `json:"actual_fingerprint"`
	Details             string `json:"details"`
	Timestamp           int64  `json:"timestamp"`
}
