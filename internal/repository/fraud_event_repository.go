package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/invigilo/proctor-backend/internal/model"
)

// AppendOutcome is the session state observed by an Append call after the
// event was written.
type AppendOutcome struct {
	// Applied is false when the session was already terminal; the event is
	// still persisted for the audit trail but its delta is not added.
	Applied         bool
	RiskScore       int
	FraudEventCount int
	MajorEventCount int
}

// FraudEventRepository owns the append-only fraud log. Appending an applied
// event and incrementing the session's risk score happen in one transaction,
// so the score always equals the exact sum of applied deltas.
type FraudEventRepository struct {
	pool *pgxpool.Pool
}

// NewFraudEventRepository creates a new FraudEventRepository.
func NewFraudEventRepository(pool *pgxpool.Pool) *FraudEventRepository {
	return &FraudEventRepository{pool: pool}
}

// Append writes a fraud event. If the session is still IN_PROGRESS the
// event's delta is atomically added to the risk score and the event counters
// advance; otherwise the event lands with applied = FALSE and the session
// row is untouched.
func (r *FraudEventRepository) Append(ctx context.Context, ev *model.FraudEvent, major bool) (*AppendOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	majorInc := 0
	if major {
		majorInc = 1
	}

	out := &AppendOutcome{Applied: true}
	err = tx.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET risk_score = risk_score + $2,
		     fraud_event_count = fraud_event_count + 1,
		     major_event_count = major_event_count + $3,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1 AND status = $4
		 RETURNING risk_score, fraud_event_count, major_event_count`,
		ev.SessionID, ev.RiskDelta, majorInc, model.SessionStatusInProgress,
	).Scan(&out.RiskScore, &out.FraudEventCount, &out.MajorEventCount)

	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("apply delta: %w", err)
		}
		// No IN_PROGRESS row: the session is terminal. Record the event as
		// inert and report the frozen counters.
		out.Applied = false
		frozenErr := tx.QueryRow(ctx,
			`SELECT risk_score, fraud_event_count, major_event_count
			 FROM exam_sessions WHERE id = $1`, ev.SessionID,
		).Scan(&out.RiskScore, &out.FraudEventCount, &out.MajorEventCount)
		if frozenErr != nil {
			return nil, frozenErr
		}
	}

	ev.Applied = out.Applied
	if err := tx.QueryRow(ctx,
		`INSERT INTO fraud_events (session_id, event_type, risk_delta, details, applied)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		ev.SessionID, ev.EventType, ev.RiskDelta, ev.Details, ev.Applied,
	).Scan(&ev.ID, &ev.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert fraud event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// ListBySession retrieves a session's fraud log in arrival order.
func (r *FraudEventRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.FraudEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, event_type, risk_delta, details, applied, created_at
		 FROM fraud_events
		 WHERE session_id = $1
		 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.FraudEvent
	for rows.Next() {
		var ev model.FraudEvent
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.RiskDelta, &ev.Details, &ev.Applied, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListByExam retrieves all fraud events of an exam joined with student
// identity, for the fraud-log export.
func (r *FraudEventRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]ExamFraudLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT fe.id, fe.session_id, fe.event_type, fe.risk_delta, fe.details, fe.applied, fe.created_at,
		        s.roll_number, s.full_name, es.risk_score
		 FROM fraud_events fe
		 JOIN exam_sessions es ON fe.session_id = es.id
		 JOIN students s ON es.student_id = s.id
		 WHERE es.exam_id = $1
		 ORDER BY fe.created_at`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ExamFraudLog
	for rows.Next() {
		var l ExamFraudLog
		if err := rows.Scan(&l.Event.ID, &l.Event.SessionID, &l.Event.EventType, &l.Event.RiskDelta,
			&l.Event.Details, &l.Event.Applied, &l.Event.CreatedAt,
			&l.RollNumber, &l.FullName, &l.SessionRiskScore); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ExamFraudLog is one fraud event joined with the student it belongs to.
type ExamFraudLog struct {
	Event            model.FraudEvent `json:"event"`
	RollNumber       string           `json:"roll_number"`
	FullName         string           `json:"full_name"`
	SessionRiskScore int              `json:"session_risk_score"`
}
