// Package gateway defines the three collaborator contracts the session engine
// consumes — the assessment source, the submission sink, and the grading
// source/sink — plus their HTTP implementation against the platform API.
// The engine is agnostic to anything behind these interfaces.
package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/model"
)

// AssessmentSource provides the read-only paper for a session's lifetime.
type AssessmentSource interface {
	GetAssessment(ctx context.Context, assessmentID uuid.UUID) (*model.Assessment, error)
}

// SubmissionSink accepts a full answer snapshot and returns the submission
// result. The sink does NOT guarantee idempotency — exactly-once delivery is
// the submission gate's responsibility, not the transport's.
type SubmissionSink interface {
	Submit(ctx context.Context, assessmentID uuid.UUID, answers []model.Answer) (*model.SubmissionResult, error)
}

// GradingGateway reads machine grades and commits finalized scores. Finalize
// must succeed or fail as one atomic unit on the platform side.
type GradingGateway interface {
	GetGrades(ctx context.Context, submissionID uuid.UUID) ([]model.AIGrade, error)
	Finalize(ctx context.Context, submissionID uuid.UUID, scores []model.FinalScore) (*model.FinalizeReceipt, error)
	GetResult(ctx context.Context, submissionID uuid.UUID) (*model.SubmissionResult, error)
}
