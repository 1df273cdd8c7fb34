package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/invigilo/proctor-backend/internal/repository"
	"github.com/rs/zerolog"
)

func newFraudService(store *memStore) *FraudService {
	return NewFraudService(testConfig(), memFraudStore{store}, zerolog.Nop())
}

func seedLiveSession(store *memStore) uuid.UUID {
	sess := &model.ExamSession{ID: uuid.New(), ExamID: uuid.New(), StudentID: uuid.New(), Status: model.SessionStatusInProgress}
	store.sessions[sess.ID] = sess
	return sess.ID
}

func TestRecordUsesPolicyDeltas(t *testing.T) {
	cases := []struct {
		eventType model.FraudEventType
		proposed  int
		want      int
	}{
		{model.FraudAppBackgrounded, 0, 25},
		{model.FraudAppBackgrounded, 99, 25}, // fixed delta, client value ignored
		{model.FraudBackNavigation, 99, 10},
		{model.FraudFastAnswer, 99, 5},
		{model.FraudCameraCheckFailure, 12, 12},
		{model.FraudCameraCheckFailure, 0, 1},   // clamp floor
		{model.FraudCameraCheckFailure, 500, 40}, // clamp ceiling
	}

	for _, tc := range cases {
		store := newMemStore()
		sessID := seedLiveSession(store)
		svc := newFraudService(store)

		outcome, err := svc.Record(context.Background(), sessID, tc.eventType, tc.proposed, "")
		if err != nil {
			t.Fatalf("Record(%s, %d): %v", tc.eventType, tc.proposed, err)
		}
		if outcome.RiskScore != tc.want {
			t.Errorf("Record(%s, %d) risk = %d, want %d", tc.eventType, tc.proposed, outcome.RiskScore, tc.want)
		}
	}
}

func TestRecordRejectsUnknownEventType(t *testing.T) {
	store := newMemStore()
	sessID := seedLiveSession(store)
	svc := newFraudService(store)

	_, err := svc.Record(context.Background(), sessID, "telepathy", 10, "")
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("err = %v, want ErrUnknownEventType", err)
	}
	events, _ := svc.ListBySession(context.Background(), sessID)
	if len(events) != 0 {
		t.Fatalf("rejected event was appended: %+v", events)
	}
}

func TestRecordAgainstTerminalSessionIsInert(t *testing.T) {
	store := newMemStore()
	sessID := seedLiveSession(store)
	store.sessions[sessID].Status = model.SessionStatusCompleted
	store.sessions[sessID].RiskScore = 35
	svc := newFraudService(store)

	outcome, err := svc.Record(context.Background(), sessID, model.FraudAppBackgrounded, 0, "")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if outcome.Applied {
		t.Fatal("event against a terminal session was applied")
	}
	if outcome.RiskScore != 35 {
		t.Fatalf("risk = %d, want frozen 35", outcome.RiskScore)
	}

	// The log still grows; the accumulator doesn't.
	events, _ := svc.ListBySession(context.Background(), sessID)
	if len(events) != 1 || events[0].Applied {
		t.Fatalf("events = %+v, want one inert entry", events)
	}
}

func TestEvaluateTrigger(t *testing.T) {
	svc := newFraudService(newMemStore())

	cases := []struct {
		name    string
		outcome repository.AppendOutcome
		want    model.SubmitTrigger
		fired   bool
	}{
		{"below both", repository.AppendOutcome{Applied: true, RiskScore: 79, MajorEventCount: 2}, "", false},
		{"risk threshold", repository.AppendOutcome{Applied: true, RiskScore: 80, MajorEventCount: 0}, model.TriggerRiskThreshold, true},
		{"repeated major", repository.AppendOutcome{Applied: true, RiskScore: 75, MajorEventCount: 3}, model.TriggerMultiEvent, true},
		{"risk wins over major", repository.AppendOutcome{Applied: true, RiskScore: 100, MajorEventCount: 4}, model.TriggerRiskThreshold, true},
		{"inert event never fires", repository.AppendOutcome{Applied: false, RiskScore: 100, MajorEventCount: 4}, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trigger, fired := svc.EvaluateTrigger(&tc.outcome)
			if trigger != tc.want || fired != tc.fired {
				t.Fatalf("EvaluateTrigger = (%s, %v), want (%s, %v)", trigger, fired, tc.want, tc.fired)
			}
		})
	}
}
