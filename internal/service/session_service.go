package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/config"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/invigilo/proctor-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Session lifecycle errors.
var (
	ErrExamNotAvailable = errors.New("exam is not available for this student right now")
	ErrAlreadyCompleted = errors.New("exam has already been completed")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotSessionOwner  = errors.New("session belongs to another student")
	ErrSessionNotActive = errors.New("session is no longer active")
	ErrUnknownQuestion  = errors.New("question does not belong to this exam")
)

// SessionService is the exam session state machine. All per-session writes
// funnel through a per-session mutex, and terminal transitions additionally
// go through the store's conditional update, so exactly one trigger wins and
// scoring runs exactly once per session.
type SessionService struct {
	cfg        *config.Config
	sessions   SessionStore
	exams      ExamStore
	questions  QuestionStore
	answers    AnswerStore
	fraud      *FraudService
	randomizer *QuestionRandomizer
	scoring    *ScoringEngine
	rdb        *redis.Client
	locks      lockArena
	log        zerolog.Logger
}

func NewSessionService(
	cfg *config.Config,
	sessions SessionStore,
	exams ExamStore,
	questions QuestionStore,
	answers AnswerStore,
	fraud *FraudService,
	randomizer *QuestionRandomizer,
	scoring *ScoringEngine,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:        cfg,
		sessions:   sessions,
		exams:      exams,
		questions:  questions,
		answers:    answers,
		fraud:      fraud,
		randomizer: randomizer,
		scoring:    scoring,
		rdb:        rdb,
		log:        log.With().Str("component", "session_service").Logger(),
	}
}

// GetLobby lists the exams visible to a student's cohort, each overlaid with
// the student's own session state.
func (s *SessionService) GetLobby(ctx context.Context, student *model.Student) ([]model.LobbyExam, error) {
	exams, err := s.exams.ListForCohort(ctx, student.Department, student.Semester, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	lobby := make([]model.LobbyExam, 0, len(exams))
	for _, exam := range exams {
		entry := model.LobbyExam{Exam: exam}
		sess, err := s.sessions.GetByExamAndStudent(ctx, exam.ID, student.ID)
		switch {
		case err == nil:
			status := sess.Status
			entry.Attempted = true
			entry.SessionStatus = &status
		case errors.Is(err, pgx.ErrNoRows):
			// Not attempted yet.
		default:
			return nil, fmt.Errorf("load session: %w", err)
		}
		lobby = append(lobby, entry)
	}
	return lobby, nil
}

// Start begins or resumes a student's session for an exam. Starting is
// idempotent: a second call while IN_PROGRESS returns the same session, the
// same question order and the answers given so far. A terminal session
// returns ErrAlreadyCompleted; a resumed session whose deadline has passed
// is timeout-submitted first and then treated the same way.
func (s *SessionService) Start(ctx context.Context, student *model.Student, examID uuid.UUID) (*model.StartSessionResponse, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotAvailable
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	if exam.Department != student.Department || exam.Semester != student.Semester {
		return nil, ErrExamNotAvailable
	}

	now := time.Now()
	sess, err := s.sessions.GetByExamAndStudent(ctx, examID, student.ID)
	switch {
	case err == nil:
		return s.resume(ctx, student, exam, sess, now)
	case errors.Is(err, pgx.ErrNoRows):
		// First start, fall through.
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}

	if !exam.InWindow(now) {
		return nil, ErrExamNotAvailable
	}

	bank, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	shuffled := s.randomizer.Shuffle(student.ID, examID, bank)

	order := make([]uuid.UUID, len(shuffled))
	for i, q := range shuffled {
		order[i] = q.ID
	}

	sess = &model.ExamSession{
		ID:            uuid.New(),
		ExamID:        examID,
		StudentID:     student.ID,
		Status:        model.SessionStatusInProgress,
		StartedAt:     now,
		Deadline:      now.Add(exam.Duration()),
		QuestionOrder: order,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a concurrent start race; the winner's session is the
			// session. Re-read and resume it.
			winner, rerr := s.sessions.GetByExamAndStudent(ctx, examID, student.ID)
			if rerr != nil {
				return nil, fmt.Errorf("reload session after start race: %w", rerr)
			}
			return s.resume(ctx, student, exam, winner, now)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("exam_id", examID.String()).
		Str("roll_number", student.RollNumber).
		Msg("session started")

	stripped := strip(shuffled)
	s.cacheQuestions(ctx, sess, stripped)

	return &model.StartSessionResponse{
		SessionID:        sess.ID,
		Exam:             *exam,
		Questions:        stripped,
		RemainingSeconds: remainingSeconds(sess.Deadline, now),
		ExistingAnswers:  []model.AnswerRecord{},
	}, nil
}

func (s *SessionService) resume(ctx context.Context, student *model.Student, exam *model.Exam, sess *model.ExamSession, now time.Time) (*model.StartSessionResponse, error) {
	if sess.Status.Terminal() {
		return nil, ErrAlreadyCompleted
	}
	if now.After(sess.Deadline) {
		if _, err := s.Submit(ctx, sess.ID, model.TriggerTimeout); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyCompleted
	}

	stripped, err := s.studentQuestions(ctx, sess, student.ID)
	if err != nil {
		return nil, err
	}
	given, err := s.answers.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	if given == nil {
		given = []model.AnswerRecord{}
	}

	return &model.StartSessionResponse{
		SessionID:        sess.ID,
		Exam:             *exam,
		Questions:        stripped,
		RemainingSeconds: remainingSeconds(sess.Deadline, now),
		ExistingAnswers:  given,
	}, nil
}

// studentQuestions rebuilds the student's permuted, key-stripped question
// list, preferring the Redis copy cached at start. The persisted order is
// authoritative: questions added to the bank after the session started are
// not shown to a session already underway.
func (s *SessionService) studentQuestions(ctx context.Context, sess *model.ExamSession, studentID uuid.UUID) ([]model.QuestionForStudent, error) {
	cacheKey := config.CacheKey.QuestionOrderKey(sess.ExamID.String(), studentID.String())
	if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
		var qs []model.QuestionForStudent
		if err := json.Unmarshal([]byte(cached), &qs); err == nil {
			return qs, nil
		}
	}

	bank, err := s.questions.ListByExam(ctx, sess.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	shuffled := s.randomizer.Shuffle(studentID, sess.ExamID, bank)
	byID := make(map[uuid.UUID]model.Question, len(shuffled))
	for _, q := range shuffled {
		byID[q.ID] = q
	}

	ordered := make([]model.Question, 0, len(sess.QuestionOrder))
	for _, id := range sess.QuestionOrder {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}

	stripped := strip(ordered)
	s.cacheQuestions(ctx, sess, stripped)
	return stripped, nil
}

func (s *SessionService) cacheQuestions(ctx context.Context, sess *model.ExamSession, qs []model.QuestionForStudent) {
	ttl := time.Until(sess.Deadline)
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(qs)
	if err != nil {
		return
	}
	key := config.CacheKey.QuestionOrderKey(sess.ExamID.String(), sess.StudentID.String())
	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("cache question order")
	}
}

// SubmitAnswer records one answer. Answers overwrite earlier answers to the
// same question. If the deadline has already passed, no answer is recorded:
// the session is timeout-submitted and the frozen result is returned in
// place of the answer. An answer faster than the configured floor also feeds
// the fraud accumulator and may itself end the session.
func (s *SessionService) SubmitAnswer(ctx context.Context, studentID, sessionID uuid.UUID, req *model.SubmitAnswerRequest) (*model.AnswerRecord, *model.SubmitResult, error) {
	mu := s.locks.lock(sessionID)
	defer mu.Unlock()

	sess, err := s.ownedSession(ctx, studentID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status.Terminal() {
		return nil, nil, ErrSessionNotActive
	}

	now := time.Now()
	if now.After(sess.Deadline) {
		result, err := s.submitLocked(ctx, sess, model.TriggerTimeout, now)
		if err != nil {
			return nil, nil, err
		}
		return nil, result, nil
	}

	if !inOrder(sess.QuestionOrder, req.QuestionID) {
		return nil, nil, ErrUnknownQuestion
	}

	answer := &model.AnswerRecord{
		SessionID:        sessionID,
		QuestionID:       req.QuestionID,
		Value:            req.Value,
		TimeTakenSeconds: req.TimeTakenSeconds,
		SubmittedAt:      now,
	}
	if err := s.answers.Upsert(ctx, answer); err != nil {
		if errors.Is(err, repository.ErrSessionTerminal) {
			// Another process finished the session between our status read
			// and the write; the guarded insert refused the row.
			return nil, nil, ErrSessionNotActive
		}
		return nil, nil, fmt.Errorf("save answer: %w", err)
	}

	if time.Duration(req.TimeTakenSeconds)*time.Second < s.cfg.FastAnswerFloor {
		details := fmt.Sprintf("question %s answered in %ds", req.QuestionID, req.TimeTakenSeconds)
		outcome, err := s.fraud.Record(ctx, sessionID, model.FraudFastAnswer, 0, details)
		if err != nil {
			return nil, nil, err
		}
		s.publishFraud(ctx, sess, string(model.FraudFastAnswer), outcome.RiskScore, outcome.RiskScore-sess.RiskScore)
		sess.RiskScore = outcome.RiskScore
		sess.FraudEventCount = outcome.FraudEventCount
		sess.MajorEventCount = outcome.MajorEventCount
		if trigger, fired := s.fraud.EvaluateTrigger(outcome); fired {
			result, err := s.submitLocked(ctx, sess, trigger, now)
			if err != nil {
				return nil, nil, err
			}
			return answer, result, nil
		}
	}

	return answer, nil, nil
}

// RecordFraudEvent appends a client-reported fraud signal to the session's
// log and evaluates the auto-submit triggers. Events against a session that
// already went terminal are recorded as inert and return the frozen score.
func (s *SessionService) RecordFraudEvent(ctx context.Context, studentID, sessionID uuid.UUID, req *model.RecordFraudEventRequest) (*model.RecordFraudEventResponse, error) {
	mu := s.locks.lock(sessionID)
	defer mu.Unlock()

	sess, err := s.ownedSession(ctx, studentID, sessionID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.fraud.Record(ctx, sessionID, model.FraudEventType(req.EventType), req.RiskDelta, req.Details)
	if err != nil {
		return nil, err
	}

	status := sess.Status
	if outcome.Applied {
		s.publishFraud(ctx, sess, req.EventType, outcome.RiskScore, outcome.RiskScore-sess.RiskScore)
		sess.RiskScore = outcome.RiskScore
		sess.FraudEventCount = outcome.FraudEventCount
		sess.MajorEventCount = outcome.MajorEventCount
		if trigger, fired := s.fraud.EvaluateTrigger(outcome); fired {
			result, err := s.submitLocked(ctx, sess, trigger, time.Now())
			if err != nil {
				return nil, err
			}
			status = result.Status
		}
	} else if !status.Terminal() {
		// The session went terminal outside this process; report the
		// frozen state.
		current, err := s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("reload session: %w", err)
		}
		status = current.Status
	}

	return &model.RecordFraudEventResponse{RiskScore: outcome.RiskScore, Status: status}, nil
}

// SubmitOwned is the manual submit entry point: it verifies ownership before
// running the terminal transition.
func (s *SessionService) SubmitOwned(ctx context.Context, studentID, sessionID uuid.UUID) (*model.SubmitResult, error) {
	if _, err := s.ownedSession(ctx, studentID, sessionID); err != nil {
		return nil, err
	}
	return s.Submit(ctx, sessionID, model.TriggerManual)
}

// Submit drives a session to its terminal state. It is idempotent: a session
// already terminal returns its frozen result unchanged regardless of the
// trigger, so the watchdog, the risk triggers and a manual submit can race
// freely.
func (s *SessionService) Submit(ctx context.Context, sessionID uuid.UUID, trigger model.SubmitTrigger) (*model.SubmitResult, error) {
	mu := s.locks.lock(sessionID)
	defer mu.Unlock()

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Status.Terminal() {
		return s.frozenResult(ctx, sess)
	}
	return s.submitLocked(ctx, sess, trigger, time.Now())
}

// submitLocked scores the session and attempts the single terminal
// transition. Callers must hold the session lock. Losing the store's
// conditional update to a writer in another process is not an error; the
// winner's frozen result is returned.
func (s *SessionService) submitLocked(ctx context.Context, sess *model.ExamSession, trigger model.SubmitTrigger, now time.Time) (*model.SubmitResult, error) {
	exam, err := s.exams.GetByID(ctx, sess.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load exam: %w", err)
	}
	bank, err := s.questions.ListByExam(ctx, sess.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	given, err := s.answers.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	marks := s.scoring.Score(bank, given)

	status := trigger.TargetStatus()
	won, err := s.sessions.Finish(ctx, sess.ID, status, trigger, marks, now)
	if err != nil {
		return nil, fmt.Errorf("finish session: %w", err)
	}
	if !won {
		current, err := s.sessions.GetByID(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("reload session: %w", err)
		}
		return s.frozenResult(ctx, current)
	}

	sess.Status = status
	sess.SubmitTrigger = &trigger
	sess.FinishedAt = &now
	sess.MarksObtained = marks
	s.locks.release(sess.ID)

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("trigger", string(trigger)).
		Int("marks", marks).
		Int("risk_score", sess.RiskScore).
		Msg("session submitted")

	s.publish(ctx, sess.ExamID, &model.MonitorEvent{
		Type:      model.MonitorEventSession,
		ExamID:    sess.ExamID,
		SessionID: sess.ID,
		StudentID: sess.StudentID,
		RiskScore: sess.RiskScore,
		Status:    status,
		Timestamp: now,
	})

	return &model.SubmitResult{
		SessionID:     sess.ID,
		Status:        status,
		MarksObtained: marks,
		TotalMarks:    exam.TotalMarks,
		RiskScore:     sess.RiskScore,
	}, nil
}

// frozenResult rebuilds the result of an already-terminal session. The
// denominator is the exam definition's total, not the bank sum, so results
// stay stable even if the bank is edited afterwards.
func (s *SessionService) frozenResult(ctx context.Context, sess *model.ExamSession) (*model.SubmitResult, error) {
	exam, err := s.exams.GetByID(ctx, sess.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load exam: %w", err)
	}
	return &model.SubmitResult{
		SessionID:     sess.ID,
		Status:        sess.Status,
		MarksObtained: sess.MarksObtained,
		TotalMarks:    exam.TotalMarks,
		RiskScore:     sess.RiskScore,
	}, nil
}

func (s *SessionService) ownedSession(ctx context.Context, studentID, sessionID uuid.UUID) (*model.ExamSession, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.StudentID != studentID {
		return nil, ErrNotSessionOwner
	}
	return sess, nil
}

func (s *SessionService) publishFraud(ctx context.Context, sess *model.ExamSession, eventType string, riskScore, riskDelta int) {
	s.publish(ctx, sess.ExamID, &model.MonitorEvent{
		Type:      model.MonitorEventFraud,
		ExamID:    sess.ExamID,
		SessionID: sess.ID,
		StudentID: sess.StudentID,
		EventType: eventType,
		RiskDelta: riskDelta,
		RiskScore: riskScore,
		Status:    model.SessionStatusInProgress,
		Timestamp: time.Now(),
	})
}

// publish pushes a monitor event to the exam's channel. Monitoring is
// best-effort; a publish failure never fails the request that caused it.
func (s *SessionService) publish(ctx context.Context, examID uuid.UUID, ev *model.MonitorEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	channel := config.CacheKey.SessionMonitorChannel(examID.String())
	if err := s.rdb.Publish(ctx, channel, data).Err(); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("publish monitor event")
	}
}

func strip(qs []model.Question) []model.QuestionForStudent {
	out := make([]model.QuestionForStudent, len(qs))
	for i, q := range qs {
		out[i] = model.QuestionForStudent{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      q.Options,
			Marks:        q.Marks,
		}
	}
	return out
}

func inOrder(order []uuid.UUID, id uuid.UUID) bool {
	for _, o := range order {
		if o == id {
			return true
		}
	}
	return false
}

func remainingSeconds(deadline, now time.Time) int {
	remaining := int(deadline.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
