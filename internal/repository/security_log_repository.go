package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/invigilo/proctor-backend/internal/model"
)

// SecurityLogRepository handles the security audit trail. Bulk writes from
// the queue worker go through CopyFrom in the worker itself; this repository
// serves reads and the occasional direct insert.
type SecurityLogRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityLogRepository creates a new SecurityLogRepository.
func NewSecurityLogRepository(pool *pgxpool.Pool) *SecurityLogRepository {
	return &SecurityLogRepository{pool: pool}
}

// Insert writes a single audit record.
func (r *SecurityLogRepository) Insert(ctx context.Context, l *model.SecurityLog) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO security_logs (student_id, roll_number, event_type, expected_fingerprint, actual_fingerprint, details)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		l.StudentID, l.RollNumber, l.EventType, l.ExpectedFingerprint, l.ActualFingerprint, l.Details,
	).Scan(&l.ID, &l.CreatedAt)
}

// CountByStudent returns the number of audit records of one event type for a
// student. The report generator uses this for device-change attempts.
func (r *SecurityLogRepository) CountByStudent(ctx context.Context, studentID uuid.UUID, eventType string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM security_logs WHERE student_id = $1 AND event_type = $2`,
		studentID, eventType,
	).Scan(&n)
	return n, err
}

// ListByStudent retrieves a student's audit records, newest first.
func (r *SecurityLogRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, limit int) ([]model.SecurityLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, roll_number, event_type, expected_fingerprint, actual_fingerprint, details, created_at
		 FROM security_logs
		 WHERE student_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.SecurityLog
	for rows.Next() {
		var l model.SecurityLog
		if err := rows.Scan(&l.ID, &l.StudentID, &l.RollNumber, &l.EventType,
			&l.ExpectedFingerprint, &l.ActualFingerprint, &l.Details, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
