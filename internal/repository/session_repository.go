package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/invigilo/proctor-backend/internal/model"
)

// SessionResult combines student identity with session outcome for staff
// review listings.
type SessionResult struct {
	SessionID     uuid.UUID           `json:"session_id"`
	StudentID     uuid.UUID           `json:"student_id"`
	RollNumber    string              `json:"roll_number"`
	FullName      string              `json:"full_name"`
	Department    string              `json:"department"`
	Status        model.SessionStatus `json:"status"`
	RiskScore     int                 `json:"risk_score"`
	MarksObtained int                 `json:"marks_obtained"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty"`
}

// DashboardStats aggregates platform-wide counters for the admin dashboard.
type DashboardStats struct {
	TotalStudents    int64 `json:"total_students"`
	TotalExams       int64 `json:"total_exams"`
	ActiveExams      int64 `json:"active_exams"`
	TotalSessions    int64 `json:"total_sessions"`
	ActiveSessions   int64 `json:"active_sessions"`
	HighRiskSessions int64 `json:"high_risk_sessions"`
}

// SessionRepository handles exam session data access. Status transitions use
// conditional updates so the first writer wins and terminal rows stay frozen.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, exam_id, student_id, status, started_at, deadline, finished_at,
	submit_trigger, question_order, risk_score, fraud_event_count, major_event_count, marks_obtained`

func scanSession(row interface{ Scan(...any) error }) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	var order []byte
	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.Status, &s.StartedAt, &s.Deadline,
		&s.FinishedAt, &s.SubmitTrigger, &order, &s.RiskScore, &s.FraudEventCount,
		&s.MajorEventCount, &s.MarksObtained)
	if err != nil {
		return nil, err
	}
	if len(order) > 0 {
		if err := json.Unmarshal(order, &s.QuestionOrder); err != nil {
			return nil, fmt.Errorf("unmarshal question order: %w", err)
		}
	}
	return s, nil
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// GetByExamAndStudent retrieves the single session for an exam-student pair.
func (r *SessionRepository) GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID))
}

// Create inserts a new IN_PROGRESS session with its permuted question order.
// The unique (exam_id, student_id) constraint plus ON CONFLICT DO NOTHING
// make concurrent starts collapse to a single row; a conflicting insert
// returns pgx.ErrNoRows and the caller re-reads the winner.
func (r *SessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	order, err := json.Marshal(s.QuestionOrder)
	if err != nil {
		return fmt.Errorf("marshal question order: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, status, started_at, deadline, question_order)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id`,
		s.ExamID, s.StudentID, model.SessionStatusInProgress, s.StartedAt, s.Deadline, order,
	).Scan(&s.ID)
}

// Finish attempts the terminal transition. It succeeds only if the session
// is still IN_PROGRESS; the returned bool reports whether this caller won.
// Terminal rows are never modified again.
func (r *SessionRepository) Finish(ctx context.Context, id uuid.UUID, status model.SessionStatus, trigger model.SubmitTrigger, marks int, finishedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $2, submit_trigger = $3, marks_obtained = $4, finished_at = $5, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1 AND status = $6`,
		id, status, trigger, marks, finishedAt, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListExpired retrieves IN_PROGRESS sessions whose persisted deadline has
// passed. Used by the watchdog sweep.
func (r *SessionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE status = $1 AND deadline < $2
		 ORDER BY deadline
		 LIMIT $3`, model.SessionStatusInProgress, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListActiveByExam retrieves IN_PROGRESS sessions of one exam for live monitoring.
func (r *SessionRepository) ListActiveByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND status = $2
		 ORDER BY started_at`, examID, model.SessionStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListByStudent retrieves all sessions of a student, newest first.
func (r *SessionRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]model.ExamSession, error) {
	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListResultsByExam retrieves per-student outcomes for one exam, joined with
// student identity, ordered by roll number.
func (r *SessionRepository) ListResultsByExam(ctx context.Context, examID uuid.UUID) ([]SessionResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT es.id, s.id, s.roll_number, s.full_name, s.department,
		        es.status, es.risk_score, es.marks_obtained, es.started_at, es.finished_at
		 FROM exam_sessions es
		 JOIN students s ON es.student_id = s.id
		 WHERE es.exam_id = $1
		 ORDER BY s.roll_number`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var res SessionResult
		if err := rows.Scan(&res.SessionID, &res.StudentID, &res.RollNumber, &res.FullName,
			&res.Department, &res.Status, &res.RiskScore, &res.MarksObtained,
			&res.StartedAt, &res.FinishedAt); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ListHighRisk retrieves sessions at or above the given risk floor, joined
// with student identity, highest risk first.
func (r *SessionRepository) ListHighRisk(ctx context.Context, floor, limit int) ([]SessionResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT es.id, s.id, s.roll_number, s.full_name, s.department,
		        es.status, es.risk_score, es.marks_obtained, es.started_at, es.finished_at
		 FROM exam_sessions es
		 JOIN students s ON es.student_id = s.id
		 WHERE es.risk_score >= $1
		 ORDER BY es.risk_score DESC, es.started_at DESC
		 LIMIT $2`, floor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var res SessionResult
		if err := rows.Scan(&res.SessionID, &res.StudentID, &res.RollNumber, &res.FullName,
			&res.Department, &res.Status, &res.RiskScore, &res.MarksObtained,
			&res.StartedAt, &res.FinishedAt); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// GetDashboardStats aggregates platform-wide counters in one round trip.
func (r *SessionRepository) GetDashboardStats(ctx context.Context, highRiskFloor int) (*DashboardStats, error) {
	st := &DashboardStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM students),
			(SELECT COUNT(*) FROM exams),
			(SELECT COUNT(*) FROM exams WHERE is_active = TRUE),
			(SELECT COUNT(*) FROM exam_sessions),
			(SELECT COUNT(*) FROM exam_sessions WHERE status = $1),
			(SELECT COUNT(*) FROM exam_sessions WHERE risk_score >= $2)`,
		model.SessionStatusInProgress, highRiskFloor,
	).Scan(&st.TotalStudents, &st.TotalExams, &st.ActiveExams,
		&st.TotalSessions, &st.ActiveSessions, &st.HighRiskSessions)
	if err != nil {
		return nil, err
	}
	return st, nil
}
