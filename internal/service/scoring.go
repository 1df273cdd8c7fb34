package service

import (
	"strings"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/model"
)

// ScoringEngine grades a session's answers against an exam's question bank.
// It is pure: the same questions and answers always produce the same marks.
type ScoringEngine struct{}

func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{}
}

// Score awards each question's full marks on a correct answer and zero
// otherwise. Unanswered questions score zero. Answers for question IDs not
// in the bank are ignored.
func (e *ScoringEngine) Score(questions []model.Question, answers []model.AnswerRecord) int {
	byQuestion := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.Value
	}

	total := 0
	for _, q := range questions {
		given, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		if e.correct(q, given) {
			total += q.Marks
		}
	}
	return total
}

func (e *ScoringEngine) correct(q model.Question, given string) bool {
	switch q.QuestionType {
	case model.QuestionTypeSingleChoice:
		// Exact option ID match, no normalization.
		return given == q.CorrectKey
	case model.QuestionTypeShortAnswer:
		return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(q.CorrectKey))
	default:
		return false
	}
}
