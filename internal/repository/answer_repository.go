package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionTerminal is returned when an answer write races a session that has
// already been finished.
var ErrSessionTerminal = errors.New("session is no longer in progress")

// AnswerRepository handles answer data access. One row exists per
// (session_id, question_id); later writes overwrite.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert writes an answer, overwriting any previous value for the question.
// The write is guarded on the session still being IN_PROGRESS, so an answer
// cannot land after another process finished the session; the race loser gets
// ErrSessionTerminal.
func (r *AnswerRepository) Upsert(ctx context.Context, a *model.AnswerRecord) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO answers (session_id, question_id, value, time_taken_seconds, submitted_at)
		 SELECT $1, $2, $3, $4, CURRENT_TIMESTAMP
		 WHERE EXISTS (SELECT 1 FROM exam_sessions WHERE id = $1 AND status = $5)
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET value = EXCLUDED.value,
		               time_taken_seconds = EXCLUDED.time_taken_seconds,
		               submitted_at = EXCLUDED.submitted_at
		 RETURNING submitted_at`,
		a.SessionID, a.QuestionID, a.Value, a.TimeTakenSeconds, model.SessionStatusInProgress,
	).Scan(&a.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionTerminal
	}
	return err
}

// ListBySession retrieves all answers of a session.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.AnswerRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id, value, time_taken_seconds, submitted_at
		 FROM answers
		 WHERE session_id = $1
		 ORDER BY submitted_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AnswerRecord
	for rows.Next() {
		var a model.AnswerRecord
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.Value, &a.TimeTakenSeconds, &a.SubmittedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
