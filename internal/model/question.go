package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates supported question variants.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "SINGLE_CHOICE"
	QuestionTypeShortAnswer  QuestionType = "SHORT_ANSWER"
)

// Option is a single answer choice of a SINGLE_CHOICE question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question represents a single exam question, including its correct key.
// Only the admin surface ever sees CorrectKey.
type Question struct {
	ID           uuid.UUID    `json:"id"`
	ExamID       uuid.UUID    `json:"exam_id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []Option     `json:"options,omitempty"`
	CorrectKey   string       `json:"correct_key,omitempty"`
	Marks        int          `json:"marks"`
	Position     int          `json:"position"`
}

// QuestionForStudent is a question with the answer key stripped, in the
// option order derived for one specific student.
type QuestionForStudent struct {
	ID           uuid.UUID    `json:"id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []Option     `json:"options,omitempty"`
	Marks        int          `json:"marks"`
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	QuestionText string   `json:"question_text" binding:"required,min=1,max=2000"`
	QuestionType string   `json:"question_type" binding:"required,oneof=SINGLE_CHOICE SHORT_ANSWER"`
	Options      []Option `json:"options" binding:"omitempty,dive"`
	CorrectKey   string   `json:"correct_key" binding:"required,max=255"`
	Marks        int      `json:"marks" binding:"required,min=1"`
	Position     int      `json:"position" binding:"min=0"`
}
