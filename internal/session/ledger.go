package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gradeloop/session-engine/internal/model"
)

// AnswerLedger holds a student's per-question answer text for one session.
// Last write wins; there are no append semantics. The ledger is purely
// in-memory — no network or storage side effects. Whether writes are allowed
// at all (session still ACTIVE) is the session's decision, not the ledger's.
type AnswerLedger struct {
	mu      sync.RWMutex
	numbers []int
	answers map[int]model.AnswerRecord
}

// NewAnswerLedger creates a ledger covering exactly the given questions.
func NewAnswerLedger(questions []model.Question) *AnswerLedger {
	numbers := make([]int, 0, len(questions))
	for _, q := range questions {
		numbers = append(numbers, q.Number)
	}
	sort.Ints(numbers)

	return &AnswerLedger{
		numbers: numbers,
		answers: make(map[int]model.AnswerRecord, len(numbers)),
	}
}

// Set stores the answer text for a question, replacing any previous value.
func (l *AnswerLedger) Set(questionNumber int, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.knows(questionNumber) {
		return ErrUnknownQuestion
	}
	l.answers[questionNumber] = model.AnswerRecord{
		QuestionNumber: questionNumber,
		Text:           text,
		LastModifiedAt: time.Now(),
	}
	return nil
}

// AttemptedCount returns the number of questions whose trimmed text is
// non-empty. Recomputed on demand, so clearing an answer decreases it.
func (l *AnswerLedger) AttemptedCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, rec := range l.answers {
		if strings.TrimSpace(rec.Text) != "" {
			count++
		}
	}
	return count
}

// Snapshot returns every question's current text in question order, with an
// empty string for any question never touched. The snapshot, not the live
// ledger, is what gets submitted.
func (l *AnswerLedger) Snapshot() []model.Answer {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.Answer, 0, len(l.numbers))
	for _, n := range l.numbers {
		text := ""
		if rec, ok := l.answers[n]; ok {
			text = rec.Text
		}
		out = append(out, model.Answer{QuestionNumber: n, Text: text})
	}
	return out
}

// Records returns the answer records that have been written, in question
// order. Used for reload recovery, not for submission.
func (l *AnswerLedger) Records() []model.AnswerRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.AnswerRecord, 0, len(l.answers))
	for _, n := range l.numbers {
		if rec, ok := l.answers[n]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// QuestionCount returns the number of questions the ledger covers.
func (l *AnswerLedger) QuestionCount() int {
	return len(l.numbers)
}

func (l *AnswerLedger) knows(questionNumber int) bool {
	i := sort.SearchInts(l.numbers, questionNumber)
	return i < len(l.numbers) && l.numbers[i] == questionNumber
}
