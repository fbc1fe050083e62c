package model

import (
	"github.com/google/uuid"
)

// ReviewStatus is the per-submission grading review state machine.
// Finalized is terminal; the engine exposes no way back.
type ReviewStatus string

const (
	ReviewStatusAIGraded    ReviewStatus = "AI_GRADED"
	ReviewStatusUnderReview ReviewStatus = "UNDER_REVIEW"
	ReviewStatusFinalized   ReviewStatus = "FINALIZED"
)

// ScoreSource tags where a resolved score came from.
type ScoreSource string

const (
	ScoreSourceMachine  ScoreSource = "machine"
	ScoreSourceOverride ScoreSource = "override"
)

// AIGrade is the machine-produced grade for one question, as fetched from the
// grading source. Immutable once loaded.
type AIGrade struct {
	QuestionNumber int     `json:"question_number"`
	AIScore        float64 `json:"ai_score"`
	AIFeedback     string  `json:"ai_feedback"`
	MaxScore       float64 `json:"max_score"`
}

// FinalScore is one question's resolved score as sent to the finalize sink.
type FinalScore struct {
	QuestionNumber int     `json:"question_number"`
	Score          float64 `json:"score"`
	Feedback       string  `json:"feedback"`
}

// FinalizeReceipt is the server's acknowledgement of an atomic finalize,
// carrying the authoritative totals.
type FinalizeReceipt struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	TotalScore   float64   `json:"total_score"`
	MaxScore     float64   `json:"max_score"`
	Percentage   float64   `json:"percentage"`
}

// OverrideRequest is the payload for setting a lecturer override.
type OverrideRequest struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}
