package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/config"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/invigilo/proctor-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Exam administration errors.
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidQuestion  = errors.New("question shape does not match its type")
)

// ExamService covers the admin surface: exam and question management plus
// the oversight queries backing the dashboard.
type ExamService struct {
	cfg       *config.Config
	exams     *repository.ExamRepository
	questions *repository.QuestionRepository
	sessions  *repository.SessionRepository
	events    *repository.FraudEventRepository
	students  *repository.StudentRepository
	audits    *repository.SecurityLogRepository
	log       zerolog.Logger
}

func NewExamService(
	cfg *config.Config,
	exams *repository.ExamRepository,
	questions *repository.QuestionRepository,
	sessions *repository.SessionRepository,
	events *repository.FraudEventRepository,
	students *repository.StudentRepository,
	audits *repository.SecurityLogRepository,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		cfg:       cfg,
		exams:     exams,
		questions: questions,
		sessions:  sessions,
		events:    events,
		students:  students,
		audits:    audits,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// CreateExam creates a new exam owned by the given admin.
func (s *ExamService) CreateExam(ctx context.Context, adminID uuid.UUID, req *model.CreateExamRequest) (*model.Exam, error) {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           req.Title,
		Description:     req.Description,
		Department:      req.Department,
		Semester:        req.Semester,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		WindowStart:     req.WindowStart,
		WindowEnd:       req.WindowEnd,
		IsActive:        active,
		CreatedBy:       adminID,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	s.log.Info().Str("exam_id", exam.ID.String()).Str("title", exam.Title).Msg("exam created")
	return exam, nil
}

// UpdateExam overwrites an exam's definition.
func (s *ExamService) UpdateExam(ctx context.Context, id uuid.UUID, req *model.CreateExamRequest) (*model.Exam, error) {
	exam, err := s.GetExam(ctx, id)
	if err != nil {
		return nil, err
	}
	exam.Title = req.Title
	exam.Description = req.Description
	exam.Department = req.Department
	exam.Semester = req.Semester
	exam.DurationMinutes = req.DurationMinutes
	exam.TotalMarks = req.TotalMarks
	exam.WindowStart = req.WindowStart
	exam.WindowEnd = req.WindowEnd
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}
	if err := s.exams.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return exam, nil
}

// DeleteExam removes an exam and, via cascading constraints, its questions,
// sessions and logs.
func (s *ExamService) DeleteExam(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.exams.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	if !deleted {
		return ErrExamNotFound
	}
	s.log.Info().Str("exam_id", id.String()).Msg("exam deleted")
	return nil
}

// GetExam loads one exam.
func (s *ExamService) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	return exam, nil
}

// ListExams returns all exams with their question counts.
func (s *ExamService) ListExams(ctx context.Context) ([]model.Exam, error) {
	return s.exams.List(ctx)
}

// AddQuestion appends a question to an exam's bank. Single-choice questions
// must carry at least two options and a correct key that names one of them;
// short-answer questions carry no options.
func (s *ExamService) AddQuestion(ctx context.Context, examID uuid.UUID, req *model.AddQuestionRequest) (*model.Question, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return nil, err
	}

	qType := model.QuestionType(req.QuestionType)
	switch qType {
	case model.QuestionTypeSingleChoice:
		if len(req.Options) < 2 || !optionExists(req.Options, req.CorrectKey) {
			return nil, ErrInvalidQuestion
		}
	case model.QuestionTypeShortAnswer:
		if len(req.Options) != 0 {
			return nil, ErrInvalidQuestion
		}
	default:
		return nil, ErrInvalidQuestion
	}

	question := &model.Question{
		ID:           uuid.New(),
		ExamID:       examID,
		QuestionText: req.QuestionText,
		QuestionType: qType,
		Options:      req.Options,
		CorrectKey:   req.CorrectKey,
		Marks:        req.Marks,
		Position:     req.Position,
	}
	if err := s.questions.Add(ctx, question); err != nil {
		return nil, fmt.Errorf("add question: %w", err)
	}
	return question, nil
}

// ListQuestions returns an exam's full bank, answer keys included. Admin
// only; students get their stripped, permuted view through the session
// service.
func (s *ExamService) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	return s.questions.ListByExam(ctx, examID)
}

// DeleteQuestion removes one question from an exam's bank.
func (s *ExamService) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.questions.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if !deleted {
		return ErrQuestionNotFound
	}
	return nil
}

// ListResults returns per-student outcomes for one exam.
func (s *ExamService) ListResults(ctx context.Context, examID uuid.UUID) ([]repository.SessionResult, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	return s.sessions.ListResultsByExam(ctx, examID)
}

// ListFraudLog returns the full fraud log for one exam, joined with student
// identities for review.
func (s *ExamService) ListFraudLog(ctx context.Context, examID uuid.UUID) ([]repository.ExamFraudLog, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	return s.events.ListByExam(ctx, examID)
}

// ListActiveSessions returns the sessions currently running for one exam,
// for the live monitoring view's initial snapshot.
func (s *ExamService) ListActiveSessions(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	return s.sessions.ListActiveByExam(ctx, examID)
}

// ListFraudAlerts returns the sessions at or above the auto-submit risk
// bucket, most recent first.
func (s *ExamService) ListFraudAlerts(ctx context.Context, limit int) ([]repository.SessionResult, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.sessions.ListHighRisk(ctx, highRiskFloor, limit)
}

// DashboardStats returns the platform-wide counters.
func (s *ExamService) DashboardStats(ctx context.Context) (*repository.DashboardStats, error) {
	return s.sessions.GetDashboardStats(ctx, highRiskFloor)
}

// ListStudents returns a page of registered students, optionally filtered
// by department.
func (s *ExamService) ListStudents(ctx context.Context, department *string, page, perPage int) ([]model.Student, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.students.ListPaginated(ctx, department, perPage, (page-1)*perPage)
}

// StudentDetail bundles a student with their session history and security
// audit records.
type StudentDetail struct {
	Student      model.Student       `json:"student"`
	Sessions     []model.ExamSession `json:"sessions"`
	SecurityLogs []model.SecurityLog `json:"security_logs"`
}

// GetStudentDetail loads one student's full proctoring history.
func (s *ExamService) GetStudentDetail(ctx context.Context, studentID uuid.UUID) (*StudentDetail, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	sessions, err := s.sessions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	logs, err := s.audits.ListByStudent(ctx, studentID, 100)
	if err != nil {
		return nil, fmt.Errorf("load security logs: %w", err)
	}
	return &StudentDetail{Student: *student, Sessions: sessions, SecurityLogs: logs}, nil
}

// AttendanceRow is one line of an exam's attendance export.
type AttendanceRow struct {
	RollNumber string              `json:"roll_number"`
	FullName   string              `json:"full_name"`
	Status     model.SessionStatus `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Present    bool                `json:"present"`
}

// AttendanceReport lists, per cohort student, whether they sat the exam.
func (s *ExamService) AttendanceReport(ctx context.Context, examID uuid.UUID) ([]AttendanceRow, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	results, err := s.sessions.ListResultsByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	attended := make(map[string]repository.SessionResult, len(results))
	for _, r := range results {
		attended[r.RollNumber] = r
	}

	cohort, _, err := s.students.ListPaginated(ctx, &exam.Department, 10000, 0)
	if err != nil {
		return nil, fmt.Errorf("load cohort: %w", err)
	}

	rows := make([]AttendanceRow, 0, len(cohort))
	for _, st := range cohort {
		if st.Semester != exam.Semester {
			continue
		}
		row := AttendanceRow{RollNumber: st.RollNumber, FullName: st.FullName}
		if r, ok := attended[st.RollNumber]; ok {
			row.Status = r.Status
			row.StartedAt = r.StartedAt
			row.FinishedAt = r.FinishedAt
			row.Present = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// highRiskFloor is the risk score at which a session counts as high risk in
// oversight views. It matches the top report bucket, not the auto-submit
// threshold.
const highRiskFloor = 70

func optionExists(options []model.Option, key string) bool {
	for _, o := range options {
		if o.ID == key {
			return true
		}
	}
	return false
}
