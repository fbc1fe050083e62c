// Package grading implements score reconciliation: merging machine-produced
// per-question scores with optional lecturer overrides into one authoritative,
// finalizable result.
package grading

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/model"
)

var (
	ErrRecordNotFound     = errors.New("grading record not found")
	ErrAlreadyFinalized   = errors.New("grading record is already finalized")
	ErrFinalizeInFlight   = errors.New("a finalize is already in flight")
	ErrUnknownQuestion    = errors.New("question is not part of this submission")
	ErrOverrideOutOfRange = errors.New("override score is out of range")
)

// OutOfRangeError reports a rejected override score together with the bounds
// it violated. The score is never silently clamped.
type OutOfRangeError struct {
	QuestionNumber int
	Score          float64
	MaxScore       float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("question %d: score %.2f outside [0, %.2f]", e.QuestionNumber, e.Score, e.MaxScore)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOverrideOutOfRange }

// Override is a lecturer's correction, stored beside the machine value, never
// over it. Removing the override reverts to the AI score.
type Override struct {
	Score    float64   `json:"score"`
	Feedback string    `json:"feedback"`
	SetAt    time.Time `json:"set_at"`
}

// QuestionGrade is one question's reconciliation state: the immutable machine
// value plus an optional override layered on top.
type QuestionGrade struct {
	QuestionNumber int       `json:"question_number"`
	MaxScore       float64   `json:"max_score"`
	AIScore        float64   `json:"ai_score"`
	AIFeedback     string    `json:"ai_feedback"`
	Override       *Override `json:"override,omitempty"`
	Finalized      bool      `json:"finalized"`
}

// ResolvedScore is the authoritative score/feedback pair for a question,
// tagged with its source.
type ResolvedScore struct {
	QuestionNumber int               `json:"question_number"`
	Score          float64           `json:"score"`
	Feedback       string            `json:"feedback"`
	Source         model.ScoreSource `json:"source"`
}

// Totals is the client-side aggregate of resolved scores. Shown for
// responsiveness before finalize; after a successful finalize the server's
// returned totals are authoritative instead.
type Totals struct {
	TotalScore float64 `json:"total_score"`
	MaxScore   float64 `json:"max_score"`
	Percentage float64 `json:"percentage"`
}

// Record is the per-submission reconciliation state machine:
// AI_GRADED → UNDER_REVIEW → FINALIZED (terminal).
type Record struct {
	SubmissionID uuid.UUID

	mu         sync.Mutex
	status     model.ReviewStatus
	finalizing bool // finalize request in flight; gate against a second one
	grades     map[int]*QuestionGrade
	numbers    []int
}

// NewRecord builds a record from the machine grades fetched for a submission.
func NewRecord(submissionID uuid.UUID, aiGrades []model.AIGrade) *Record {
	grades := make(map[int]*QuestionGrade, len(aiGrades))
	numbers := make([]int, 0, len(aiGrades))
	for _, g := range aiGrades {
		grades[g.QuestionNumber] = &QuestionGrade{
			QuestionNumber: g.QuestionNumber,
			MaxScore:       g.MaxScore,
			AIScore:        g.AIScore,
			AIFeedback:     g.AIFeedback,
		}
		numbers = append(numbers, g.QuestionNumber)
	}
	sort.Ints(numbers)

	return &Record{
		SubmissionID: submissionID,
		status:       model.ReviewStatusAIGraded,
		grades:       grades,
		numbers:      numbers,
	}
}

// Status returns the record's review status.
func (r *Record) Status() model.ReviewStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// markUnderReview moves AI_GRADED to UNDER_REVIEW. Reopening an already-open
// record is a no-op; a finalized record stays finalized.
func (r *Record) markUnderReview() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.ReviewStatusFinalized {
		return ErrAlreadyFinalized
	}
	r.status = model.ReviewStatusUnderReview
	return nil
}

// SetOverride stores a lecturer override for one question. Scores outside
// [0, maxScore] are rejected with the bounds attached.
func (r *Record) SetOverride(questionNumber int, score float64, feedback string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == model.ReviewStatusFinalized {
		return ErrAlreadyFinalized
	}
	grade, ok := r.grades[questionNumber]
	if !ok {
		return ErrUnknownQuestion
	}
	if score < 0 || score > grade.MaxScore {
		return &OutOfRangeError{QuestionNumber: questionNumber, Score: score, MaxScore: grade.MaxScore}
	}

	grade.Override = &Override{Score: score, Feedback: feedback, SetAt: time.Now()}
	return nil
}

// RemoveOverride reverts a question to its machine value.
func (r *Record) RemoveOverride(questionNumber int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == model.ReviewStatusFinalized {
		return ErrAlreadyFinalized
	}
	grade, ok := r.grades[questionNumber]
	if !ok {
		return ErrUnknownQuestion
	}
	grade.Override = nil
	return nil
}

// Resolved returns the authoritative value for one question: the override if
// present, else the machine value. Pure; every display and total goes
// through here.
func (r *Record) Resolved(questionNumber int) (ResolvedScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	grade, ok := r.grades[questionNumber]
	if !ok {
		return ResolvedScore{}, ErrUnknownQuestion
	}
	return resolve(grade), nil
}

func resolve(grade *QuestionGrade) ResolvedScore {
	if grade.Override != nil {
		return ResolvedScore{
			QuestionNumber: grade.QuestionNumber,
			Score:          grade.Override.Score,
			Feedback:       grade.Override.Feedback,
			Source:         model.ScoreSourceOverride,
		}
	}
	return ResolvedScore{
		QuestionNumber: grade.QuestionNumber,
		Score:          grade.AIScore,
		Feedback:       grade.AIFeedback,
		Source:         model.ScoreSourceMachine,
	}
}

// ResolvedAll returns every question's resolved value in question order.
func (r *Record) ResolvedAll() []ResolvedScore {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolvedAllLocked()
}

func (r *Record) resolvedAllLocked() []ResolvedScore {
	out := make([]ResolvedScore, 0, len(r.numbers))
	for _, n := range r.numbers {
		out = append(out, resolve(r.grades[n]))
	}
	return out
}

// Totals computes the client-side aggregate from resolved values.
func (r *Record) Totals() Totals {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalsLocked()
}

func (r *Record) totalsLocked() Totals {
	var total, max float64
	for _, n := range r.numbers {
		grade := r.grades[n]
		total += resolve(grade).Score
		max += grade.MaxScore
	}

	t := Totals{TotalScore: total, MaxScore: max}
	if max > 0 {
		t.Percentage = total / max * 100
	}
	return t
}

// Grades returns the per-question reconciliation state in question order.
func (r *Record) Grades() []QuestionGrade {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]QuestionGrade, 0, len(r.numbers))
	for _, n := range r.numbers {
		out = append(out, *r.grades[n])
	}
	return out
}

// beginFinalize is the finalize gate's check-and-set. It claims the gate and
// snapshots the resolved scores and totals in the same critical section, so
// two concurrent finalize requests cannot both reach the gateway and a
// concurrent override cannot skew the totals the integrity check compares
// against.
func (r *Record) beginFinalize() ([]ResolvedScore, Totals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == model.ReviewStatusFinalized {
		return nil, Totals{}, ErrAlreadyFinalized
	}
	if r.finalizing {
		return nil, Totals{}, ErrFinalizeInFlight
	}

	r.finalizing = true
	return r.resolvedAllLocked(), r.totalsLocked(), nil
}

// failFinalize releases the gate after a failed request; the record stays
// open and a later finalize may try again.
func (r *Record) failFinalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizing = false
}

// markFinalized flips every question's finalized flag and seals the record.
// Called only after the atomic finalize request succeeded; a failed request
// changes nothing.
func (r *Record) markFinalized() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, grade := range r.grades {
		grade.Finalized = true
	}
	r.finalizing = false
	r.status = model.ReviewStatusFinalized
}
