package websocket

import "github.com/invigilo/proctor-backend/internal/model"

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSnapshot Event = "snapshot"
	EventMonitor  Event = "monitor"
	EventError    Event = "error"
	EventPong     Event = "pong"
)

// SnapshotResponse carries the sessions already running when an admin
// attaches to an exam's monitor stream.
type SnapshotResponse struct {
	Event    Event               `json:"event"`
	Sessions []model.ExamSession `json:"sessions"`
}

// MonitorResponse wraps one live proctoring update.
type MonitorResponse struct {
	Event   Event               `json:"event"`
	Payload *model.MonitorEvent `json:"payload"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// ─── Actions (Client → Server) ──────────────────────────────────────

// The monitor stream is one-way; the only client message is a keepalive.
type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}
