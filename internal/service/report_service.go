package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ReportGenerator builds post-exam review snapshots. It only reads: the
// session row, its exam, its fraud log, its answers and the student's audit
// records. Generating a report never mutates session state.
type ReportGenerator struct {
	sessions SessionStore
	exams    ExamStore
	answers  AnswerStore
	events   FraudLogStore
	audits   SecurityLogStore
	log      zerolog.Logger
}

func NewReportGenerator(sessions SessionStore, exams ExamStore, answers AnswerStore, events FraudLogStore, audits SecurityLogStore, log zerolog.Logger) *ReportGenerator {
	return &ReportGenerator{
		sessions: sessions,
		exams:    exams,
		answers:  answers,
		events:   events,
		audits:   audits,
		log:      log.With().Str("component", "report_generator").Logger(),
	}
}

// Generate aggregates one session into an immutable report snapshot. It
// works for active sessions too, reporting state as of now; for terminal
// sessions everything it reads is frozen.
func (g *ReportGenerator) Generate(ctx context.Context, sessionID uuid.UUID) (*model.SessionReport, error) {
	sess, err := g.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	events, err := g.events.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load fraud log: %w", err)
	}
	given, err := g.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	exam, err := g.exams.GetByID(ctx, sess.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load exam: %w", err)
	}
	deviceAttempts, err := g.audits.CountByStudent(ctx, sess.StudentID, model.SecurityEventDeviceMismatch)
	if err != nil {
		return nil, fmt.Errorf("count audit records: %w", err)
	}

	report := &model.SessionReport{
		SessionID:            sess.ID,
		ExamID:               sess.ExamID,
		StudentID:            sess.StudentID,
		Status:               sess.Status,
		RiskScore:            sess.RiskScore,
		RiskLevel:            model.BucketRiskScore(sess.RiskScore),
		DeviceChangeAttempts: deviceAttempts,
		AnsweredCount:        len(given),
		DurationSeconds:      durationSeconds(sess),
		MarksObtained:        sess.MarksObtained,
		TotalMarks:           exam.TotalMarks,
		GeneratedAt:          time.Now(),
		Events:               events,
	}

	for _, ev := range events {
		if !ev.Applied {
			report.LateEventCount++
			continue
		}
		switch ev.EventType {
		case model.FraudAppBackgrounded:
			report.FocusLossCount++
		case model.FraudBackNavigation:
			report.BackNavigationCount++
		case model.FraudFastAnswer:
			report.FastAnswerCount++
		case model.FraudCameraCheckFailure:
			report.CameraFailureCount++
		}
	}

	return report, nil
}

// durationSeconds is the wall time the session ran, up to now for sessions
// still in progress.
func durationSeconds(sess *model.ExamSession) int {
	end := time.Now()
	if sess.FinishedAt != nil {
		end = *sess.FinishedAt
	}
	d := int(end.Sub(sess.StartedAt).Seconds())
	if d < 0 {
		return 0
	}
	return d
}
