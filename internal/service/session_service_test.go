package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/config"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func testConfig() *config.Config {
	return &config.Config{
		ShuffleSecret:        "test-shuffle-secret",
		FraudRiskThreshold:   80,
		FraudMajorEventLimit: 3,
		FraudAppBackground:   25,
		FraudBackNavigation:  10,
		FraudFastAnswer:      5,
		FraudCameraMaxDelta:  40,
		FastAnswerFloor:      2 * time.Second,
	}
}

type harness struct {
	svc     *SessionService
	store   *memStore
	student *model.Student
	exam    *model.Exam
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := newMemStore()
	cfg := testConfig()
	log := zerolog.Nop()

	fraud := NewFraudService(cfg, memFraudStore{store}, log)
	svc := NewSessionService(
		cfg,
		store,
		memExamStore{store},
		store,
		store,
		fraud,
		NewQuestionRandomizer(cfg.ShuffleSecret),
		NewScoringEngine(),
		rdb,
		log,
	)

	student := &model.Student{
		ID:         uuid.New(),
		RollNumber: "CS-2024-001",
		FullName:   "Asha Verma",
		Department: "CS",
		Semester:   4,
	}
	store.students[student.ID] = student

	now := time.Now()
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           "Data Structures Midterm",
		Department:      "CS",
		Semester:        4,
		DurationMinutes: 30,
		TotalMarks:      15,
		WindowStart:     now.Add(-time.Hour),
		WindowEnd:       now.Add(time.Hour),
		IsActive:        true,
	}
	store.exams[exam.ID] = exam

	q1 := model.Question{
		ID: uuid.New(), ExamID: exam.ID,
		QuestionText: "Worst-case lookup in a balanced BST?",
		QuestionType: model.QuestionTypeSingleChoice,
		Options: []model.Option{
			{ID: "a", Text: "O(1)"}, {ID: "b", Text: "O(log n)"},
			{ID: "c", Text: "O(n)"}, {ID: "d", Text: "O(n log n)"},
		},
		CorrectKey: "b", Marks: 5, Position: 1,
	}
	q2 := model.Question{
		ID: uuid.New(), ExamID: exam.ID,
		QuestionText: "Which structure backs BFS?",
		QuestionType: model.QuestionTypeSingleChoice,
		Options: []model.Option{
			{ID: "a", Text: "Stack"}, {ID: "b", Text: "Queue"}, {ID: "c", Text: "Heap"},
		},
		CorrectKey: "b", Marks: 5, Position: 2,
	}
	q3 := model.Question{
		ID: uuid.New(), ExamID: exam.ID,
		QuestionText: "Name the technique of storing computed results.",
		QuestionType: model.QuestionTypeShortAnswer,
		CorrectKey:   "memoization", Marks: 5, Position: 3,
	}
	store.questions[exam.ID] = []model.Question{q1, q2, q3}

	return &harness{svc: svc, store: store, student: student, exam: exam}
}

func (h *harness) start(t *testing.T) *model.StartSessionResponse {
	t.Helper()
	resp, err := h.svc.Start(context.Background(), h.student, h.exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return resp
}

// questionByText finds a bank question by its text so tests can answer it
// regardless of the permuted order.
func (h *harness) questionByText(t *testing.T, text string) model.Question {
	t.Helper()
	for _, q := range h.store.questions[h.exam.ID] {
		if q.QuestionText == text {
			return q
		}
	}
	t.Fatalf("question %q not in bank", text)
	return model.Question{}
}

func TestStartCreatesSession(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)

	if resp.RemainingSeconds <= 0 || resp.RemainingSeconds > 30*60 {
		t.Fatalf("remaining = %d, want (0, 1800]", resp.RemainingSeconds)
	}
	if len(resp.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(resp.Questions))
	}
	if len(resp.ExistingAnswers) != 0 {
		t.Fatalf("fresh session carries %d answers", len(resp.ExistingAnswers))
	}

	sess := h.store.sessions[resp.SessionID]
	if sess == nil || sess.Status != model.SessionStatusInProgress {
		t.Fatalf("session not persisted as IN_PROGRESS: %+v", sess)
	}

	// The permuted list must be exactly the bank, reordered.
	seen := make(map[uuid.UUID]bool)
	for _, q := range resp.Questions {
		seen[q.ID] = true
	}
	for _, q := range h.store.questions[h.exam.ID] {
		if !seen[q.ID] {
			t.Fatalf("question %s missing from permutation", q.ID)
		}
	}
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t)
	first := h.start(t)

	q := h.questionByText(t, "Which structure backs BFS?")
	_, _, err := h.svc.SubmitAnswer(context.Background(), h.student.ID, first.SessionID,
		&model.SubmitAnswerRequest{QuestionID: q.ID, Value: "b", TimeTakenSeconds: 20})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	second := h.start(t)
	if second.SessionID != first.SessionID {
		t.Fatalf("resume returned a different session: %s vs %s", second.SessionID, first.SessionID)
	}
	if len(second.ExistingAnswers) != 1 {
		t.Fatalf("resume carries %d answers, want 1", len(second.ExistingAnswers))
	}
	for i := range first.Questions {
		if first.Questions[i].ID != second.Questions[i].ID {
			t.Fatalf("question order changed between starts at index %d", i)
		}
	}
}

func TestStartRaceReturnsOneSession(t *testing.T) {
	h := newHarness(t)

	const n = 8
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := h.svc.Start(context.Background(), h.student, h.exam.ID)
			if err != nil {
				t.Errorf("Start: %v", err)
				return
			}
			ids[i] = resp.SessionID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent starts produced different sessions: %s vs %s", ids[i], ids[0])
		}
	}
}

func TestStartAfterTerminal(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)

	if _, err := h.svc.SubmitOwned(context.Background(), h.student.ID, resp.SessionID); err != nil {
		t.Fatalf("SubmitOwned: %v", err)
	}
	if _, err := h.svc.Start(context.Background(), h.student, h.exam.ID); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrAlreadyCompleted", err)
	}
}

func TestStartOutsideWindowOrCohort(t *testing.T) {
	h := newHarness(t)

	h.store.exams[h.exam.ID].WindowEnd = time.Now().Add(-time.Minute)
	if _, err := h.svc.Start(context.Background(), h.student, h.exam.ID); !errors.Is(err, ErrExamNotAvailable) {
		t.Fatalf("expired window: err = %v, want ErrExamNotAvailable", err)
	}

	h.store.exams[h.exam.ID].WindowEnd = time.Now().Add(time.Hour)
	other := &model.Student{ID: uuid.New(), Department: "EE", Semester: 4}
	if _, err := h.svc.Start(context.Background(), other, h.exam.ID); !errors.Is(err, ErrExamNotAvailable) {
		t.Fatalf("wrong cohort: err = %v, want ErrExamNotAvailable", err)
	}
}

func TestManualSubmitIsIdempotent(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	bfs := h.questionByText(t, "Which structure backs BFS?")
	short := h.questionByText(t, "Name the technique of storing computed results.")
	for _, ans := range []model.SubmitAnswerRequest{
		{QuestionID: bfs.ID, Value: "b", TimeTakenSeconds: 15},
		{QuestionID: short.ID, Value: "  Memoization ", TimeTakenSeconds: 30},
	} {
		if _, _, err := h.svc.SubmitAnswer(ctx, h.student.ID, resp.SessionID, &ans); err != nil {
			t.Fatalf("SubmitAnswer: %v", err)
		}
	}

	first, err := h.svc.SubmitOwned(ctx, h.student.ID, resp.SessionID)
	if err != nil {
		t.Fatalf("SubmitOwned: %v", err)
	}
	if first.Status != model.SessionStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", first.Status)
	}
	if first.MarksObtained != 10 || first.TotalMarks != 15 {
		t.Fatalf("marks = %d/%d, want 10/15", first.MarksObtained, first.TotalMarks)
	}

	// Repeat submits, manual or not, return the frozen result unchanged.
	again, err := h.svc.Submit(ctx, resp.SessionID, model.TriggerTimeout)
	if err != nil {
		t.Fatalf("repeat Submit: %v", err)
	}
	if again.Status != first.Status || again.MarksObtained != first.MarksObtained {
		t.Fatalf("repeat submit changed the result: %+v vs %+v", again, first)
	}
	if trig := *h.store.sessions[resp.SessionID].SubmitTrigger; trig != model.TriggerManual {
		t.Fatalf("trigger rewritten to %s", trig)
	}
}

func TestSubmitQuotesExamTotal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// The exam declares a total the bank does not add up to yet. Results
	// quote the declared total, never the bank sum.
	h.exam.TotalMarks = 100
	resp := h.start(t)

	bfs := h.questionByText(t, "Which structure backs BFS?")
	if _, _, err := h.svc.SubmitAnswer(ctx, h.student.ID, resp.SessionID,
		&model.SubmitAnswerRequest{QuestionID: bfs.ID, Value: "b", TimeTakenSeconds: 15}); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	result, err := h.svc.SubmitOwned(ctx, h.student.ID, resp.SessionID)
	if err != nil {
		t.Fatalf("SubmitOwned: %v", err)
	}
	if result.MarksObtained != 5 || result.TotalMarks != 100 {
		t.Fatalf("marks = %d/%d, want 5/100", result.MarksObtained, result.TotalMarks)
	}

	// The frozen result carries the same denominator.
	again, err := h.svc.Submit(ctx, resp.SessionID, model.TriggerManual)
	if err != nil {
		t.Fatalf("repeat Submit: %v", err)
	}
	if again.TotalMarks != 100 {
		t.Fatalf("frozen total = %d, want 100", again.TotalMarks)
	}
}

func TestAnswerAfterSubmitFails(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	if _, err := h.svc.SubmitOwned(ctx, h.student.ID, resp.SessionID); err != nil {
		t.Fatalf("SubmitOwned: %v", err)
	}

	q := h.questionByText(t, "Which structure backs BFS?")
	_, _, err := h.svc.SubmitAnswer(ctx, h.student.ID, resp.SessionID,
		&model.SubmitAnswerRequest{QuestionID: q.ID, Value: "b", TimeTakenSeconds: 10})
	if !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("err = %v, want ErrSessionNotActive", err)
	}
}

// staleSessionView serves a session snapshot taken before another process
// finished it, like a second server instance holding an outdated read.
type staleSessionView struct {
	*memStore
	snapshot model.ExamSession
}

func (v staleSessionView) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	if id == v.snapshot.ID {
		cp := v.snapshot
		return &cp, nil
	}
	return v.memStore.GetByID(ctx, id)
}

func TestAnswerRefusedWhenFinishRacesAhead(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	// Snapshot the live session, then finish it as another process would.
	live := *h.store.sessions[resp.SessionID]
	if _, err := h.svc.SubmitOwned(ctx, h.student.ID, resp.SessionID); err != nil {
		t.Fatalf("SubmitOwned: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := testConfig()
	stale := NewSessionService(
		cfg,
		staleSessionView{memStore: h.store, snapshot: live},
		memExamStore{h.store},
		h.store,
		h.store,
		NewFraudService(cfg, memFraudStore{h.store}, zerolog.Nop()),
		NewQuestionRandomizer(cfg.ShuffleSecret),
		NewScoringEngine(),
		rdb,
		zerolog.Nop(),
	)

	// The stale instance still sees IN_PROGRESS; the store's guarded write
	// must refuse the row instead of landing it on the finished session.
	q := h.questionByText(t, "Which structure backs BFS?")
	_, _, err := stale.SubmitAnswer(ctx, h.student.ID, resp.SessionID,
		&model.SubmitAnswerRequest{QuestionID: q.ID, Value: "b", TimeTakenSeconds: 15})
	if !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("err = %v, want ErrSessionNotActive", err)
	}
	if _, ok := h.store.answers[resp.SessionID][q.ID]; ok {
		t.Fatal("answer persisted against a finished session")
	}
}

func TestRiskThresholdAutoSubmit(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	// Two maxed camera failures cross the threshold exactly: 40 + 40 >= 80.
	first, err := h.svc.RecordFraudEvent(ctx, h.student.ID, resp.SessionID,
		&model.RecordFraudEventRequest{EventType: string(model.FraudCameraCheckFailure), RiskDelta: 40})
	if err != nil {
		t.Fatalf("RecordFraudEvent: %v", err)
	}
	if first.RiskScore != 40 || first.Status != model.SessionStatusInProgress {
		t.Fatalf("after first event: %+v", first)
	}

	second, err := h.svc.RecordFraudEvent(ctx, h.student.ID, resp.SessionID,
		&model.RecordFraudEventRequest{EventType: string(model.FraudCameraCheckFailure), RiskDelta: 40})
	if err != nil {
		t.Fatalf("RecordFraudEvent: %v", err)
	}
	if second.RiskScore != 80 || second.Status != model.SessionStatusAutoSubmitted {
		t.Fatalf("after second event: %+v", second)
	}

	sess := h.store.sessions[resp.SessionID]
	if *sess.SubmitTrigger != model.TriggerRiskThreshold {
		t.Fatalf("trigger = %s, want risk_threshold", *sess.SubmitTrigger)
	}
}

func TestRepeatedMajorEventAutoSubmit(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	var last *model.RecordFraudEventResponse
	var err error
	for i := 0; i < 3; i++ {
		last, err = h.svc.RecordFraudEvent(ctx, h.student.ID, resp.SessionID,
			&model.RecordFraudEventRequest{EventType: string(model.FraudAppBackgrounded)})
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
	}

	// 75 risk is under the threshold; the third major event fires the
	// repeated-violation rule instead.
	if last.RiskScore != 75 {
		t.Fatalf("risk = %d, want 75", last.RiskScore)
	}
	if last.Status != model.SessionStatusAutoSubmitted {
		t.Fatalf("status = %s, want AUTO_SUBMITTED", last.Status)
	}
	if trig := *h.store.sessions[resp.SessionID].SubmitTrigger; trig != model.TriggerMultiEvent {
		t.Fatalf("trigger = %s, want multi_event", trig)
	}
}

func TestCameraDeltaClamped(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	over, err := h.svc.RecordFraudEvent(ctx, h.student.ID, resp.SessionID,
		&model.RecordFraudEventRequest{EventType: string(model.FraudCameraCheckFailure), RiskDelta: 500})
	if err != nil {
		t.Fatalf("RecordFraudEvent: %v", err)
	}
	if over.RiskScore != 40 {
		t.Fatalf("risk = %d, want clamp to 40", over.RiskScore)
	}

	under, err := h.svc.RecordFraudEvent(ctx, h.student.ID, resp.SessionID,
		&model.RecordFraudEventRequest{EventType: string(model.FraudCameraCheckFailure), RiskDelta: 0})
	if err != nil {
		t.Fatalf("RecordFraudEvent: %v", err)
	}
	if under.RiskScore != 41 {
		t.Fatalf("risk = %d, want 41 (floor of 1 applied)", under.RiskScore)
	}
}

func TestLateFraudEventIsInert(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	if _, err := h.svc.SubmitOwned(ctx, h.student.ID, resp.SessionID); err != nil {
		t.Fatalf("SubmitOwned: %v", err)
	}

	late, err := h.svc.RecordFraudEvent(ctx, h.student.ID, resp.SessionID,
		&model.RecordFraudEventRequest{EventType: string(model.FraudAppBackgrounded)})
	if err != nil {
		t.Fatalf("late event: %v", err)
	}
	if late.RiskScore != 0 {
		t.Fatalf("late event moved the frozen score to %d", late.RiskScore)
	}
	if late.Status != model.SessionStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", late.Status)
	}

	events, _ := h.store.ListEventsBySession(ctx, resp.SessionID)
	if len(events) != 1 || events[0].Applied {
		t.Fatalf("late event not recorded as inert: %+v", events)
	}
}

func TestUnknownEventTypeRejected(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)

	_, err := h.svc.RecordFraudEvent(context.Background(), h.student.ID, resp.SessionID,
		&model.RecordFraudEventRequest{EventType: "telepathy"})
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("err = %v, want ErrUnknownEventType", err)
	}
}

func TestAnswerAfterDeadlineTimesOut(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	h.store.mu.Lock()
	h.store.sessions[resp.SessionID].Deadline = time.Now().Add(-time.Second)
	h.store.mu.Unlock()

	q := h.questionByText(t, "Which structure backs BFS?")
	answer, result, err := h.svc.SubmitAnswer(ctx, h.student.ID, resp.SessionID,
		&model.SubmitAnswerRequest{QuestionID: q.ID, Value: "b", TimeTakenSeconds: 10})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if answer != nil {
		t.Fatal("late answer was recorded")
	}
	if result == nil || result.Status != model.SessionStatusAutoSubmitted {
		t.Fatalf("result = %+v, want AUTO_SUBMITTED", result)
	}
	if trig := *h.store.sessions[resp.SessionID].SubmitTrigger; trig != model.TriggerTimeout {
		t.Fatalf("trigger = %s, want timeout", trig)
	}
}

func TestFastAnswerFeedsAccumulator(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)

	q := h.questionByText(t, "Which structure backs BFS?")
	answer, result, err := h.svc.SubmitAnswer(context.Background(), h.student.ID, resp.SessionID,
		&model.SubmitAnswerRequest{QuestionID: q.ID, Value: "b", TimeTakenSeconds: 1})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if answer == nil || result != nil {
		t.Fatalf("answer=%v result=%v, want recorded answer and no terminal result", answer, result)
	}
	if risk := h.store.sessions[resp.SessionID].RiskScore; risk != 5 {
		t.Fatalf("risk = %d, want 5", risk)
	}
}

func TestAnswerToForeignQuestionRejected(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)

	_, _, err := h.svc.SubmitAnswer(context.Background(), h.student.ID, resp.SessionID,
		&model.SubmitAnswerRequest{QuestionID: uuid.New(), Value: "b", TimeTakenSeconds: 10})
	if !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("err = %v, want ErrUnknownQuestion", err)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)

	if _, err := h.svc.SubmitOwned(context.Background(), uuid.New(), resp.SessionID); !errors.Is(err, ErrNotSessionOwner) {
		t.Fatalf("err = %v, want ErrNotSessionOwner", err)
	}
}

func TestConcurrentFraudEventsSumExactly(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.RecordFraudEvent(ctx, h.student.ID, resp.SessionID,
				&model.RecordFraudEventRequest{EventType: string(model.FraudBackNavigation)})
			if err != nil {
				t.Errorf("RecordFraudEvent: %v", err)
			}
		}()
	}
	wg.Wait()

	// 25 events at delta 10 cross the threshold partway through; events
	// arriving after the terminal transition must be inert. The invariant
	// is exactness: the frozen score equals the sum of applied deltas, no
	// increment lost or double counted.
	events, _ := h.store.ListEventsBySession(ctx, resp.SessionID)
	if len(events) != n {
		t.Fatalf("%d events recorded, want %d", len(events), n)
	}
	appliedSum := 0
	for _, ev := range events {
		if ev.Applied {
			appliedSum += ev.RiskDelta
		}
	}
	sess := h.store.sessions[resp.SessionID]
	if sess.RiskScore != appliedSum {
		t.Fatalf("risk = %d, applied deltas sum to %d", sess.RiskScore, appliedSum)
	}
	if sess.Status != model.SessionStatusAutoSubmitted || sess.RiskScore < 80 {
		t.Fatalf("session not auto-submitted past threshold: %+v", sess)
	}
}

func TestConcurrentSubmitsAgreeOnResult(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	const n = 10
	results := make([]*model.SubmitResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trigger := model.TriggerManual
			if i%2 == 0 {
				trigger = model.TriggerTimeout
			}
			r, err := h.svc.Submit(ctx, resp.SessionID, trigger)
			if err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i].Status != results[0].Status || results[i].MarksObtained != results[0].MarksObtained {
			t.Fatalf("racing submits disagree: %+v vs %+v", results[i], results[0])
		}
	}
	if !h.store.sessions[resp.SessionID].Status.Terminal() {
		t.Fatal("session not terminal after racing submits")
	}
}

func TestGetLobbyOverlaysSessionState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	lobby, err := h.svc.GetLobby(ctx, h.student)
	if err != nil {
		t.Fatalf("GetLobby: %v", err)
	}
	if len(lobby) != 1 || lobby[0].Attempted {
		t.Fatalf("fresh lobby = %+v", lobby)
	}

	resp := h.start(t)
	if _, err := h.svc.SubmitOwned(ctx, h.student.ID, resp.SessionID); err != nil {
		t.Fatalf("SubmitOwned: %v", err)
	}

	lobby, err = h.svc.GetLobby(ctx, h.student)
	if err != nil {
		t.Fatalf("GetLobby: %v", err)
	}
	if !lobby[0].Attempted || *lobby[0].SessionStatus != model.SessionStatusCompleted {
		t.Fatalf("lobby after submit = %+v", lobby[0])
	}
}
