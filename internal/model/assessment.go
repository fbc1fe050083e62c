package model

import (
	"github.com/google/uuid"
)

// Question is one free-text question of an assessment.
type Question struct {
	Number   int     `json:"number"`
	Text     string  `json:"text"`
	MaxScore float64 `json:"max_score"`
}

// Assessment is the read-only paper a session runs against. The platform is
// the source of truth; the engine never mutates it.
type Assessment struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	Questions       []Question `json:"questions"`
}

// MaxTotal returns the sum of max scores over all questions.
func (a *Assessment) MaxTotal() float64 {
	var total float64
	for _, q := range a.Questions {
		total += q.MaxScore
	}
	return total
}

// QuestionByNumber returns the question with the given number, or nil.
func (a *Assessment) QuestionByNumber(number int) *Question {
	for i := range a.Questions {
		if a.Questions[i].Number == number {
			return &a.Questions[i]
		}
	}
	return nil
}
