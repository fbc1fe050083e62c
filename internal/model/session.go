package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates assessment session states. A single guarded setter
// in the session package owns every transition; there are no independent
// boolean flags that could contradict each other.
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "ACTIVE"
	SessionStatusExpired    SessionStatus = "EXPIRED"
	SessionStatusSubmitting SessionStatus = "SUBMITTING"
	SessionStatusSubmitted  SessionStatus = "SUBMITTED"
)

// SubmitTrigger identifies which of the two independent triggers fired the
// submission gate.
type SubmitTrigger string

const (
	TriggerManual SubmitTrigger = "manual"
	TriggerExpiry SubmitTrigger = "expiry"
)

// AnswerRecord is one question's current answer text. Mutable only while the
// session is ACTIVE.
type AnswerRecord struct {
	QuestionNumber int       `json:"question_number"`
	Text           string    `json:"text"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// Answer is the wire shape of one answer in a submission payload.
type Answer struct {
	QuestionNumber int    `json:"question_number"`
	Text           string `json:"text"`
}

// SessionState is the reload-recovery view of a running session: what the
// frontend needs to rebuild the page after a refresh.
type SessionState struct {
	SessionID        uuid.UUID      `json:"session_id"`
	AssessmentID     uuid.UUID      `json:"assessment_id"`
	Status           SessionStatus  `json:"status"`
	RemainingSeconds float64        `json:"remaining_seconds"`
	AttemptedCount   int            `json:"attempted_count"`
	QuestionCount    int            `json:"question_count"`
	Answers          []AnswerRecord `json:"answers"`
	SubmissionID     *uuid.UUID     `json:"submission_id,omitempty"`
}

// SaveAnswerRequest is the payload for saving a single answer.
type SaveAnswerRequest struct {
	Text string `json:"text"`
}

// SubmitRequest is the payload for a manual submission. ConfirmEmpty must be
// set when the student submits with zero attempted answers.
type SubmitRequest struct {
	ConfirmEmpty bool `json:"confirm_empty"`
}
