package session

import (
	"errors"
	"testing"

	"github.com/gradeloop/session-engine/internal/model"
)

func threeQuestions() []model.Question {
	return []model.Question{
		{Number: 1, Text: "Explain polymorphism.", MaxScore: 10},
		{Number: 2, Text: "Describe a deadlock.", MaxScore: 10},
		{Number: 3, Text: "What is a race condition?", MaxScore: 10},
	}
}

func TestLedgerRejectsUnknownQuestion(t *testing.T) {
	ledger := NewAnswerLedger(threeQuestions())

	if err := ledger.Set(99, "answer"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("Set(99) error = %v, want ErrUnknownQuestion", err)
	}
}

func TestLedgerLastWriteWins(t *testing.T) {
	ledger := NewAnswerLedger(threeQuestions())

	if err := ledger.Set(2, "first draft"); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Set(2, "final answer"); err != nil {
		t.Fatal(err)
	}

	snapshot := ledger.Snapshot()
	if snapshot[1].Text != "final answer" {
		t.Fatalf("question 2 text = %q, want %q", snapshot[1].Text, "final answer")
	}
}

func TestLedgerAttemptedCountIgnoresWhitespace(t *testing.T) {
	ledger := NewAnswerLedger(threeQuestions())

	ledger.Set(1, "real answer")
	ledger.Set(2, "   \t\n")
	ledger.Set(3, "")

	if got := ledger.AttemptedCount(); got != 1 {
		t.Fatalf("AttemptedCount() = %d, want 1", got)
	}
}

func TestLedgerClearingAnswerDecreasesCount(t *testing.T) {
	ledger := NewAnswerLedger(threeQuestions())

	ledger.Set(1, "something")
	if got := ledger.AttemptedCount(); got != 1 {
		t.Fatalf("AttemptedCount() = %d, want 1", got)
	}

	ledger.Set(1, "")
	if got := ledger.AttemptedCount(); got != 0 {
		t.Fatalf("AttemptedCount() after clear = %d, want 0", got)
	}
}

func TestLedgerSnapshotCoversEveryQuestion(t *testing.T) {
	ledger := NewAnswerLedger(threeQuestions())
	ledger.Set(2, "only this one")

	snapshot := ledger.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(snapshot))
	}
	for i, want := range []int{1, 2, 3} {
		if snapshot[i].QuestionNumber != want {
			t.Fatalf("snapshot[%d].QuestionNumber = %d, want %d", i, snapshot[i].QuestionNumber, want)
		}
	}
	if snapshot[0].Text != "" || snapshot[2].Text != "" {
		t.Fatal("untouched questions must appear with empty text")
	}
	if snapshot[1].Text != "only this one" {
		t.Fatalf("snapshot[1].Text = %q", snapshot[1].Text)
	}
}

func TestLedgerRecordsOnlyWrittenAnswers(t *testing.T) {
	ledger := NewAnswerLedger(threeQuestions())
	ledger.Set(3, "late answer")
	ledger.Set(1, "early answer")

	records := ledger.Records()
	if len(records) != 2 {
		t.Fatalf("Records() length = %d, want 2", len(records))
	}
	if records[0].QuestionNumber != 1 || records[1].QuestionNumber != 3 {
		t.Fatalf("records out of question order: %v", records)
	}
	if records[0].LastModifiedAt.IsZero() {
		t.Fatal("LastModifiedAt should be set on write")
	}
}
