package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/invigilo/proctor-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, description, department, semester, duration_minutes, total_marks,
	window_start, window_end, is_active, created_by, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Department, &e.Semester,
		&e.DurationMinutes, &e.TotalMarks, &e.WindowStart, &e.WindowEnd,
		&e.IsActive, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by ID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, department, semester, duration_minutes, total_marks,
		                    window_start, window_end, is_active, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Description, e.Department, e.Semester, e.DurationMinutes, e.TotalMarks,
		e.WindowStart, e.WindowEnd, e.IsActive, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update modifies an existing exam definition.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET title = $1, description = $2, department = $3, semester = $4,
		     duration_minutes = $5, total_marks = $6, window_start = $7, window_end = $8,
		     is_active = $9, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $10`,
		e.Title, e.Description, e.Department, e.Semester, e.DurationMinutes, e.TotalMarks,
		e.WindowStart, e.WindowEnd, e.IsActive, e.ID)
	return err
}

// Delete removes an exam; questions cascade via FK.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// List retrieves all exams with their question counts, newest first.
func (r *ExamRepository) List(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`, (SELECT COUNT(*) FROM questions q WHERE q.exam_id = exams.id)
		 FROM exams ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Department, &e.Semester,
			&e.DurationMinutes, &e.TotalMarks, &e.WindowStart, &e.WindowEnd,
			&e.IsActive, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.QuestionCount); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// ListForCohort retrieves active exams visible to a student's department and
// semester whose scheduling window contains the given instant.
func (r *ExamRepository) ListForCohort(ctx context.Context, department string, semester int, now time.Time) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`
		 FROM exams
		 WHERE department = $1 AND semester = $2 AND is_active = TRUE
		   AND window_start <= $3 AND window_end >= $3
		 ORDER BY window_start`, department, semester, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}
