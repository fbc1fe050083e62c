package grading

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/gateway"
	"github.com/gradeloop/session-engine/internal/model"
	"github.com/rs/zerolog"
)

// FinalizeOutcome carries the server's authoritative totals after a
// successful finalize, alongside the client-side totals that were displayed.
// When the two disagree the outcome is flagged as an integrity violation —
// logged and surfaced, never reconciled by trusting the client value.
type FinalizeOutcome struct {
	SubmissionID       uuid.UUID `json:"submission_id"`
	TotalScore         float64   `json:"total_score"`
	MaxScore           float64   `json:"max_score"`
	Percentage         float64   `json:"percentage"`
	ClientTotalScore   float64   `json:"client_total_score"`
	IntegrityViolation bool      `json:"integrity_violation"`
}

// Service manages open grading records and drives the finalize operation
// through the grading gateway.
type Service struct {
	gw  gateway.GradingGateway
	log zerolog.Logger

	mu      sync.RWMutex
	records map[uuid.UUID]*Record
}

// NewService creates a grading service.
func NewService(gw gateway.GradingGateway, log zerolog.Logger) *Service {
	return &Service{
		gw:      gw,
		log:     log.With().Str("component", "grading_service").Logger(),
		records: make(map[uuid.UUID]*Record),
	}
}

// OpenReview fetches the machine grades for a submission and moves the record
// to UNDER_REVIEW. Reopening an already-open record returns it unchanged;
// leaving without saving has no side effect anywhere.
func (s *Service) OpenReview(ctx context.Context, submissionID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	record, ok := s.records[submissionID]
	s.mu.RUnlock()

	if !ok {
		aiGrades, err := s.gw.GetGrades(ctx, submissionID)
		if err != nil {
			return nil, fmt.Errorf("get grades: %w", err)
		}
		if len(aiGrades) == 0 {
			return nil, ErrRecordNotFound
		}

		record = NewRecord(submissionID, aiGrades)

		s.mu.Lock()
		if existing, ok := s.records[submissionID]; ok {
			record = existing // concurrent open, keep the first
		} else {
			s.records[submissionID] = record
		}
		s.mu.Unlock()
	}

	if err := record.markUnderReview(); err != nil {
		return nil, err
	}
	return record, nil
}

// Get returns an open record.
func (s *Service) Get(submissionID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[submissionID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

// SetOverride stores a lecturer override on an open record.
func (s *Service) SetOverride(submissionID uuid.UUID, questionNumber int, score float64, feedback string) error {
	record, err := s.Get(submissionID)
	if err != nil {
		return err
	}
	return record.SetOverride(questionNumber, score, feedback)
}

// RemoveOverride reverts a question to its machine value.
func (s *Service) RemoveOverride(submissionID uuid.UUID, questionNumber int) error {
	record, err := s.Get(submissionID)
	if err != nil {
		return err
	}
	return record.RemoveOverride(questionNumber)
}

// Finalize submits every question's resolved score in one atomic request.
// With zero overrides it simply ratifies the AI scores. The record's finalize
// gate admits one request at a time: a concurrent second finalize is rejected
// rather than repeated. A failed request releases the gate and leaves every
// finalized flag untouched.
func (s *Service) Finalize(ctx context.Context, submissionID uuid.UUID) (*FinalizeOutcome, error) {
	record, err := s.Get(submissionID)
	if err != nil {
		return nil, err
	}

	resolved, clientTotals, err := record.beginFinalize()
	if err != nil {
		return nil, err
	}

	scores := make([]model.FinalScore, 0, len(resolved))
	for _, r := range resolved {
		scores = append(scores, model.FinalScore{
			QuestionNumber: r.QuestionNumber,
			Score:          r.Score,
			Feedback:       r.Feedback,
		})
	}

	receipt, err := s.gw.Finalize(ctx, submissionID, scores)
	if err != nil {
		record.failFinalize()
		return nil, fmt.Errorf("finalize submission: %w", err)
	}

	record.markFinalized()

	outcome := &FinalizeOutcome{
		SubmissionID:     submissionID,
		TotalScore:       receipt.TotalScore,
		MaxScore:         receipt.MaxScore,
		Percentage:       receipt.Percentage,
		ClientTotalScore: clientTotals.TotalScore,
	}

	if math.Abs(receipt.TotalScore-clientTotals.TotalScore) > 1e-9 {
		outcome.IntegrityViolation = true
		s.log.Error().
			Str("submission_id", submissionID.String()).
			Float64("client_total", clientTotals.TotalScore).
			Float64("server_total", receipt.TotalScore).
			Msg("Client and server totals disagree after finalize")
	}

	s.log.Info().
		Str("submission_id", submissionID.String()).
		Float64("total", receipt.TotalScore).
		Bool("integrity_violation", outcome.IntegrityViolation).
		Msg("Grading finalized")

	return outcome, nil
}
