package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/invigilo/proctor-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

// memStore is an in-memory stand-in for the repository layer. It mirrors the
// store contracts, including pgx.ErrNoRows for missing rows, the
// create-once-per-exam-and-student rule, and conditional terminal updates.
type memStore struct {
	mu sync.Mutex

	students  map[uuid.UUID]*model.Student
	admins    map[uuid.UUID]*model.Admin
	exams     map[uuid.UUID]*model.Exam
	questions map[uuid.UUID][]model.Question
	sessions  map[uuid.UUID]*model.ExamSession
	answers   map[uuid.UUID]map[uuid.UUID]model.AnswerRecord
	events    []model.FraudEvent
	audits    map[uuid.UUID]map[string]int

	finishCalls int
}

func newMemStore() *memStore {
	return &memStore{
		students:  make(map[uuid.UUID]*model.Student),
		admins:    make(map[uuid.UUID]*model.Admin),
		exams:     make(map[uuid.UUID]*model.Exam),
		questions: make(map[uuid.UUID][]model.Question),
		sessions:  make(map[uuid.UUID]*model.ExamSession),
		answers:   make(map[uuid.UUID]map[uuid.UUID]model.AnswerRecord),
		audits:    make(map[uuid.UUID]map[string]int),
	}
}

// ─── SessionStore ────────────────────────────────────────────────────

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ExamID == examID && s.StudentID == studentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) Create(ctx context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.ExamID == s.ExamID && existing.StudentID == s.StudentID {
			return pgx.ErrNoRows
		}
	}
	cp := *s
	cp.Status = model.SessionStatusInProgress
	m.sessions[cp.ID] = &cp
	return nil
}

func (m *memStore) Finish(ctx context.Context, id uuid.UUID, status model.SessionStatus, trigger model.SubmitTrigger, marks int, finishedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishCalls++
	s, ok := m.sessions[id]
	if !ok || s.Status != model.SessionStatusInProgress {
		return false, nil
	}
	s.Status = status
	s.SubmitTrigger = &trigger
	s.MarksObtained = marks
	s.FinishedAt = &finishedAt
	return true, nil
}

func (m *memStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusInProgress && s.Deadline.Before(now) {
			out = append(out, *s)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ─── ExamStore / QuestionStore ───────────────────────────────────────

func (m *memStore) GetExamByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ListForCohort(ctx context.Context, department string, semester int, now time.Time) ([]model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Exam
	for _, e := range m.exams {
		if e.Department == department && e.Semester == semester && e.IsActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	qs := make([]model.Question, len(m.questions[examID]))
	copy(qs, m.questions[examID])
	return qs, nil
}

// ─── AnswerStore ─────────────────────────────────────────────────────

func (m *memStore) Upsert(ctx context.Context, a *model.AnswerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Mirrors the guarded insert: no answer row lands on a terminal session.
	if sess, ok := m.sessions[a.SessionID]; !ok || sess.Status != model.SessionStatusInProgress {
		return repository.ErrSessionTerminal
	}
	if m.answers[a.SessionID] == nil {
		m.answers[a.SessionID] = make(map[uuid.UUID]model.AnswerRecord)
	}
	m.answers[a.SessionID][a.QuestionID] = *a
	return nil
}

func (m *memStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.AnswerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AnswerRecord
	for _, a := range m.answers[sessionID] {
		out = append(out, a)
	}
	return out, nil
}

// ─── FraudLogStore ───────────────────────────────────────────────────

func (m *memStore) Append(ctx context.Context, ev *model.FraudEvent, major bool) (*repository.AppendOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ev.SessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	out := &repository.AppendOutcome{}
	if s.Status == model.SessionStatusInProgress {
		s.RiskScore += ev.RiskDelta
		s.FraudEventCount++
		if major {
			s.MajorEventCount++
		}
		out.Applied = true
	}
	out.RiskScore = s.RiskScore
	out.FraudEventCount = s.FraudEventCount
	out.MajorEventCount = s.MajorEventCount

	cp := *ev
	cp.Applied = out.Applied
	m.events = append(m.events, cp)
	return out, nil
}

func (m *memStore) ListEventsBySession(ctx context.Context, sessionID uuid.UUID) ([]model.FraudEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.FraudEvent
	for _, ev := range m.events {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ─── StudentStore / AdminStore ───────────────────────────────────────

func (m *memStore) GetStudentByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) GetByRollNumber(ctx context.Context, rollNumber string) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.RollNumber == rollNumber {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) CreateStudent(ctx context.Context, s *model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if existing.RollNumber == s.RollNumber {
			return repository.ErrDuplicateRollNumber
		}
	}
	cp := *s
	m.students[cp.ID] = &cp
	return nil
}

func (m *memStore) GetAdminByID(ctx context.Context, id uuid.UUID) (*model.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// ─── SecurityLogStore ────────────────────────────────────────────────

func (m *memStore) CountByStudent(ctx context.Context, studentID uuid.UUID, eventType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audits[studentID][eventType], nil
}

// Interface adapters: memStore methods collide across stores, so each store
// view gets its own thin wrapper.

type memExamStore struct{ *memStore }

func (m memExamStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return m.GetExamByID(ctx, id)
}

type memFraudStore struct{ *memStore }

func (m memFraudStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.FraudEvent, error) {
	return m.ListEventsBySession(ctx, sessionID)
}

type memStudentStore struct{ *memStore }

func (m memStudentStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	return m.GetStudentByID(ctx, id)
}

func (m memStudentStore) Create(ctx context.Context, s *model.Student) error {
	return m.CreateStudent(ctx, s)
}

type memAdminStore struct{ *memStore }

func (m memAdminStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Admin, error) {
	return m.GetAdminByID(ctx, id)
}
