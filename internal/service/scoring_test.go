package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/model"
)

func TestScoreSingleChoice(t *testing.T) {
	e := NewScoringEngine()
	q := model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeSingleChoice,
		Options:      []model.Option{{ID: "a"}, {ID: "b"}},
		CorrectKey:   "b",
		Marks:        5,
	}

	tests := []struct {
		name  string
		given string
		want  int
	}{
		{"correct option", "b", 5},
		{"wrong option", "a", 0},
		{"option id is not normalized", "B", 0},
		{"option text instead of id", "Queue", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Score([]model.Question{q}, []model.AnswerRecord{{QuestionID: q.ID, Value: tt.given}})
			if got != tt.want {
				t.Fatalf("Score(%q) = %d, want %d", tt.given, got, tt.want)
			}
		})
	}
}

func TestScoreShortAnswerNormalization(t *testing.T) {
	e := NewScoringEngine()
	q := model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeShortAnswer,
		CorrectKey:   "Memoization",
		Marks:        3,
	}

	tests := []struct {
		name  string
		given string
		want  int
	}{
		{"exact", "Memoization", 3},
		{"case insensitive", "mEmOiZaTiOn", 3},
		{"surrounding whitespace", "  memoization\t", 3},
		{"wrong answer", "caching", 0},
		{"embedded whitespace differs", "memo ization", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Score([]model.Question{q}, []model.AnswerRecord{{QuestionID: q.ID, Value: tt.given}})
			if got != tt.want {
				t.Fatalf("Score(%q) = %d, want %d", tt.given, got, tt.want)
			}
		})
	}
}

func TestScoreAggregation(t *testing.T) {
	e := NewScoringEngine()
	q1 := model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeSingleChoice,
		Options: []model.Option{{ID: "a"}, {ID: "b"}}, CorrectKey: "a", Marks: 5}
	q2 := model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeSingleChoice,
		Options: []model.Option{{ID: "a"}, {ID: "b"}}, CorrectKey: "b", Marks: 4}
	q3 := model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeShortAnswer,
		CorrectKey: "stack", Marks: 3}
	questions := []model.Question{q1, q2, q3}

	answers := []model.AnswerRecord{
		{QuestionID: q1.ID, Value: "a"},          // correct, 5
		{QuestionID: q2.ID, Value: "a"},          // wrong, 0
		{QuestionID: uuid.New(), Value: "stack"}, // unknown question, ignored
		// q3 unanswered, 0
	}

	if got := e.Score(questions, answers); got != 5 {
		t.Fatalf("Score = %d, want 5", got)
	}

	if got := e.Score(questions, nil); got != 0 {
		t.Fatalf("Score with no answers = %d, want 0", got)
	}
}

func TestScoreIsPure(t *testing.T) {
	e := NewScoringEngine()
	q := model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeShortAnswer, CorrectKey: "stack", Marks: 3}
	answers := []model.AnswerRecord{{QuestionID: q.ID, Value: "stack"}}

	first := e.Score([]model.Question{q}, answers)
	for i := 0; i < 5; i++ {
		if got := e.Score([]model.Question{q}, answers); got != first {
			t.Fatalf("Score changed between identical calls: %d vs %d", got, first)
		}
	}
}
