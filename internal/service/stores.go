package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/invigilo/proctor-backend/internal/repository"
)

// The services consume narrow store interfaces rather than concrete
// repositories; internal/repository satisfies all of them, and tests
// substitute in-memory fakes.

// SessionStore is the persistence contract of the session state machine:
// conditional writes with single-writer-wins semantics keyed by session ID.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.ExamSession, error)
	Create(ctx context.Context, s *model.ExamSession) error
	Finish(ctx context.Context, id uuid.UUID, status model.SessionStatus, trigger model.SubmitTrigger, marks int, finishedAt time.Time) (bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error)
}

// ExamStore serves exam definitions.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListForCohort(ctx context.Context, department string, semester int, now time.Time) ([]model.Exam, error)
}

// QuestionStore serves question banks, answer keys included.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// AnswerStore persists answer records with overwrite-on-conflict semantics.
type AnswerStore interface {
	Upsert(ctx context.Context, a *model.AnswerRecord) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.AnswerRecord, error)
}

// FraudLogStore appends to the immutable fraud log, atomically folding the
// delta into the session's risk score when the session is still active.
type FraudLogStore interface {
	Append(ctx context.Context, ev *model.FraudEvent, major bool) (*repository.AppendOutcome, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.FraudEvent, error)
}

// StudentStore serves student accounts for authentication.
type StudentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error)
	GetByRollNumber(ctx context.Context, rollNumber string) (*model.Student, error)
	Create(ctx context.Context, s *model.Student) error
}

// AdminStore serves admin accounts for authentication.
type AdminStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Admin, error)
	GetByEmail(ctx context.Context, email string) (*model.Admin, error)
}

// SecurityLogStore counts audit records for report aggregation.
type SecurityLogStore interface {
	CountByStudent(ctx context.Context, studentID uuid.UUID, eventType string) (int, error)
}
