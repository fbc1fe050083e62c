package model

import (
	"github.com/google/uuid"
)

// QuestionScore is the server-produced score for one question of a
// submission.
type QuestionScore struct {
	QuestionNumber int     `json:"question_number"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"max_score"`
	Feedback       string  `json:"feedback,omitempty"`
}

// SubmissionResult is created exactly once, by the server, in response to a
// submission request. Per-question scores may arrive later (grading is
// asynchronous on the platform side).
type SubmissionResult struct {
	SubmissionID     uuid.UUID       `json:"submission_id"`
	PerQuestionScore []QuestionScore `json:"per_question_score,omitempty"`
	TotalScore       float64         `json:"total_score"`
	MaxScore         float64         `json:"max_score"`
	Percentage       float64         `json:"percentage"`
}
