package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/invigilo/proctor-backend/internal/model"
)

var ErrDuplicateRollNumber = errors.New("student with this roll number already exists")

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, roll_number, full_name, department, semester, password_hash, device_fingerprint, created_at, updated_at
		 FROM students WHERE id = $1`, id,
	).Scan(&s.ID, &s.RollNumber, &s.FullName, &s.Department, &s.Semester, &s.PasswordHash, &s.DeviceFingerprint, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByRollNumber retrieves a student by their unique roll number.
func (r *StudentRepository) GetByRollNumber(ctx context.Context, rollNumber string) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, roll_number, full_name, department, semester, password_hash, device_fingerprint, created_at, updated_at
		 FROM students WHERE roll_number = $1`, rollNumber,
	).Scan(&s.ID, &s.RollNumber, &s.FullName, &s.Department, &s.Semester, &s.PasswordHash, &s.DeviceFingerprint, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new student. The device fingerprint is written exactly
// once here; no update path exists for it.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (roll_number, full_name, department, semester, password_hash, device_fingerprint)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		s.RollNumber, s.FullName, s.Department, s.Semester, s.PasswordHash, s.DeviceFingerprint,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateRollNumber
		}
		return err
	}
	return nil
}

// ListPaginated retrieves students with pagination and an optional department filter.
func (r *StudentRepository) ListPaginated(ctx context.Context, department *string, limit, offset int) ([]model.Student, int, error) {
	countQuery := `SELECT COUNT(*) FROM students`
	var countArgs []interface{}
	if department != nil {
		countQuery += ` WHERE department = $1`
		countArgs = append(countArgs, *department)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, roll_number, full_name, department, semester, password_hash, device_fingerprint, created_at, updated_at FROM students`
	var args []interface{}
	argIdx := 1

	if department != nil {
		query += ` WHERE department = $1`
		args = append(args, *department)
		argIdx++
	}

	query += ` ORDER BY roll_number LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var s model.Student
		if err := rows.Scan(&s.ID, &s.RollNumber, &s.FullName, &s.Department, &s.Semester, &s.PasswordHash, &s.DeviceFingerprint, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		students = append(students, s)
	}
	return students, total, rows.Err()
}
