package service

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"

	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/model"
)

// QuestionRandomizer produces a per-student permutation of an exam's
// questions and of each question's options. The permutation is derived from
// a keyed hash of the student and exam IDs, so re-entry after a crash or
// reconnect always reproduces the same paper without any stored state.
type QuestionRandomizer struct {
	secret []byte
}

func NewQuestionRandomizer(secret string) *QuestionRandomizer {
	return &QuestionRandomizer{secret: []byte(secret)}
}

// Shuffle returns a new slice with the questions and their options permuted
// for the given student. The input slice is not modified.
func (r *QuestionRandomizer) Shuffle(studentID, examID uuid.UUID, questions []model.Question) []model.Question {
	rng := rand.New(rand.NewSource(r.seed(studentID, examID)))

	shuffled := make([]model.Question, len(questions))
	copy(shuffled, questions)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	// Option order draws from the same stream, after the question
	// permutation, so it is as deterministic as the question order.
	for i := range shuffled {
		if len(shuffled[i].Options) == 0 {
			continue
		}
		opts := make([]model.Option, len(shuffled[i].Options))
		copy(opts, shuffled[i].Options)
		rng.Shuffle(len(opts), func(a, b int) {
			opts[a], opts[b] = opts[b], opts[a]
		})
		shuffled[i].Options = opts
	}
	return shuffled
}

func (r *QuestionRandomizer) seed(studentID, examID uuid.UUID) int64 {
	h := sha256.New()
	h.Write(r.secret)
	h.Write(studentID[:])
	h.Write(examID[:])
	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
