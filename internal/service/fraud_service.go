package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/config"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/invigilo/proctor-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ErrUnknownEventType rejects event types outside the closed policy set.
var ErrUnknownEventType = errors.New("unknown fraud event type")

// FraudService is the risk accumulator: it owns the policy table mapping
// event types to deltas, appends events to the immutable log, and evaluates
// the auto-submit triggers. It never transitions sessions itself; the
// lifecycle service invokes submit when a trigger fires, under the same
// per-session lock.
type FraudService struct {
	cfg    *config.Config
	events FraudLogStore
	log    zerolog.Logger
}

func NewFraudService(cfg *config.Config, events FraudLogStore, log zerolog.Logger) *FraudService {
	return &FraudService{
		cfg:    cfg,
		events: events,
		log:    log.With().Str("component", "fraud_service").Logger(),
	}
}

// delta resolves the server-authoritative risk delta for an event. The
// client-proposed delta is honored only for camera check failures, clamped
// to [1, FraudCameraMaxDelta].
func (s *FraudService) delta(eventType model.FraudEventType, proposed int) int {
	switch eventType {
	case model.FraudAppBackgrounded:
		return s.cfg.FraudAppBackground
	case model.FraudBackNavigation:
		return s.cfg.FraudBackNavigation
	case model.FraudFastAnswer:
		return s.cfg.FraudFastAnswer
	case model.FraudCameraCheckFailure:
		if proposed < 1 {
			return 1
		}
		if proposed > s.cfg.FraudCameraMaxDelta {
			return s.cfg.FraudCameraMaxDelta
		}
		return proposed
	}
	return 0
}

// Record appends one fraud event to a session's log, folding its delta into
// the risk score atomically with the append. Events against a terminal
// session are recorded with applied=false and leave the score frozen.
func (s *FraudService) Record(ctx context.Context, sessionID uuid.UUID, eventType model.FraudEventType, proposedDelta int, details string) (*repository.AppendOutcome, error) {
	if !eventType.Valid() {
		return nil, ErrUnknownEventType
	}

	ev := &model.FraudEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		EventType: eventType,
		RiskDelta: s.delta(eventType, proposedDelta),
		Details:   details,
		CreatedAt: time.Now(),
	}
	outcome, err := s.events.Append(ctx, ev, eventType == model.FraudAppBackgrounded)
	if err != nil {
		return nil, err
	}

	logEv := s.log.Info()
	if !outcome.Applied {
		logEv = s.log.Debug()
	}
	logEv.
		Str("session_id", sessionID.String()).
		Str("event_type", string(eventType)).
		Int("risk_delta", ev.RiskDelta).
		Int("risk_score", outcome.RiskScore).
		Bool("applied", outcome.Applied).
		Msg("fraud event recorded")

	return outcome, nil
}

// EvaluateTrigger maps an applied event's running counters to the
// auto-submit trigger they crossed, if any. Risk threshold wins over the
// repeated-major rule when both are crossed by the same event.
func (s *FraudService) EvaluateTrigger(outcome *repository.AppendOutcome) (model.SubmitTrigger, bool) {
	if !outcome.Applied {
		return "", false
	}
	if outcome.RiskScore >= s.cfg.FraudRiskThreshold {
		return model.TriggerRiskThreshold, true
	}
	if outcome.MajorEventCount >= s.cfg.FraudMajorEventLimit {
		return model.TriggerMultiEvent, true
	}
	return "", false
}

// ListBySession returns a session's full fraud log, oldest first.
func (s *FraudService) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.FraudEvent, error) {
	return s.events.ListBySession(ctx, sessionID)
}
