package grading

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/model"
)

func testGrades() []model.AIGrade {
	return []model.AIGrade{
		{QuestionNumber: 1, AIScore: 9, AIFeedback: "Thorough.", MaxScore: 10},
		{QuestionNumber: 2, AIScore: 7, AIFeedback: "Missed the edge case.", MaxScore: 10},
	}
}

func openRecord(t *testing.T) *Record {
	t.Helper()
	r := NewRecord(uuid.New(), testGrades())
	if err := r.markUnderReview(); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolvedPrefersOverride(t *testing.T) {
	r := openRecord(t)

	got, err := r.Resolved(1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 9 || got.Source != model.ScoreSourceMachine {
		t.Fatalf("before override: %+v", got)
	}

	if err := r.SetOverride(1, 10, "Actually complete."); err != nil {
		t.Fatal(err)
	}

	got, err = r.Resolved(1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 10 || got.Source != model.ScoreSourceOverride {
		t.Fatalf("after override: %+v", got)
	}
	if got.Feedback != "Actually complete." {
		t.Fatalf("override feedback = %q", got.Feedback)
	}
}

func TestRemoveOverrideRevertsToMachineValue(t *testing.T) {
	r := openRecord(t)

	if err := r.SetOverride(2, 9, ""); err != nil {
		t.Fatal(err)
	}
	if err := r.RemoveOverride(2); err != nil {
		t.Fatal(err)
	}

	got, err := r.Resolved(2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 7 || got.Source != model.ScoreSourceMachine {
		t.Fatalf("after removal: %+v", got)
	}
	if got.Feedback != "Missed the edge case." {
		t.Fatalf("machine feedback not restored: %q", got.Feedback)
	}
}

func TestOverrideOutOfRangeIsRejectedNotClamped(t *testing.T) {
	r := openRecord(t)

	err := r.SetOverride(1, 11, "")
	if !errors.Is(err, ErrOverrideOutOfRange) {
		t.Fatalf("SetOverride(11) = %v, want ErrOverrideOutOfRange", err)
	}

	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("error %v should carry the violated bounds", err)
	}
	if oor.MaxScore != 10 || oor.Score != 11 {
		t.Fatalf("bounds = %+v", oor)
	}

	if err := r.SetOverride(1, -0.5, ""); !errors.Is(err, ErrOverrideOutOfRange) {
		t.Fatalf("SetOverride(-0.5) = %v, want ErrOverrideOutOfRange", err)
	}

	// The machine value is untouched by the rejection.
	got, _ := r.Resolved(1)
	if got.Score != 9 || got.Source != model.ScoreSourceMachine {
		t.Fatalf("resolved after rejection: %+v", got)
	}
}

func TestOverrideUnknownQuestion(t *testing.T) {
	r := openRecord(t)
	if err := r.SetOverride(5, 3, ""); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("SetOverride(5) = %v, want ErrUnknownQuestion", err)
	}
}

func TestTotalsAggregateResolvedValues(t *testing.T) {
	r := openRecord(t)

	totals := r.Totals()
	if totals.TotalScore != 16 || totals.MaxScore != 20 || totals.Percentage != 80 {
		t.Fatalf("machine totals = %+v", totals)
	}

	if err := r.SetOverride(2, 10, ""); err != nil {
		t.Fatal(err)
	}
	totals = r.Totals()
	if totals.TotalScore != 19 || totals.Percentage != 95 {
		t.Fatalf("totals with override = %+v", totals)
	}
}

func TestTotalsWithAndWithoutOverride(t *testing.T) {
	grades := []model.AIGrade{
		{QuestionNumber: 1, AIScore: 4, MaxScore: 5},
		{QuestionNumber: 2, AIScore: 3, MaxScore: 5},
	}
	r := NewRecord(uuid.New(), grades)
	r.markUnderReview()

	if totals := r.Totals(); totals.TotalScore != 7 || totals.MaxScore != 10 {
		t.Fatalf("bare totals = %+v, want 7/10", totals)
	}

	if err := r.SetOverride(1, 5, ""); err != nil {
		t.Fatal(err)
	}
	if totals := r.Totals(); totals.TotalScore != 9 || totals.MaxScore != 10 {
		t.Fatalf("totals with override = %+v, want 9/10", totals)
	}
}

func TestReviewStateMachine(t *testing.T) {
	r := NewRecord(uuid.New(), testGrades())
	if r.Status() != model.ReviewStatusAIGraded {
		t.Fatalf("initial status = %s", r.Status())
	}

	if err := r.markUnderReview(); err != nil {
		t.Fatal(err)
	}
	if r.Status() != model.ReviewStatusUnderReview {
		t.Fatalf("status = %s, want UNDER_REVIEW", r.Status())
	}

	// Reopening an open record is a no-op.
	if err := r.markUnderReview(); err != nil {
		t.Fatalf("reopen = %v, want nil", err)
	}

	r.markFinalized()
	if r.Status() != model.ReviewStatusFinalized {
		t.Fatalf("status = %s, want FINALIZED", r.Status())
	}

	// Finalized is terminal.
	if err := r.markUnderReview(); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("reopen after finalize = %v, want ErrAlreadyFinalized", err)
	}
	if err := r.SetOverride(1, 5, ""); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("override after finalize = %v, want ErrAlreadyFinalized", err)
	}
	if err := r.RemoveOverride(1); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("remove after finalize = %v, want ErrAlreadyFinalized", err)
	}
}

func TestMarkFinalizedFlagsEveryQuestion(t *testing.T) {
	r := openRecord(t)
	r.markFinalized()

	for _, g := range r.Grades() {
		if !g.Finalized {
			t.Fatalf("question %d not flagged finalized", g.QuestionNumber)
		}
	}
}

func TestResolvedAllInQuestionOrder(t *testing.T) {
	grades := []model.AIGrade{
		{QuestionNumber: 3, AIScore: 1, MaxScore: 5},
		{QuestionNumber: 1, AIScore: 2, MaxScore: 5},
		{QuestionNumber: 2, AIScore: 3, MaxScore: 5},
	}
	r := NewRecord(uuid.New(), grades)

	resolved := r.ResolvedAll()
	for i, want := range []int{1, 2, 3} {
		if resolved[i].QuestionNumber != want {
			t.Fatalf("resolved[%d].QuestionNumber = %d, want %d", i, resolved[i].QuestionNumber, want)
		}
	}
}
