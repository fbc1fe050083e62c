// Package session implements the timed assessment session core: the
// deadline-derived clock, the in-memory answer ledger, the exactly-once
// submission gate, and the manager that owns every live session.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/model"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotSessionOwner    = errors.New("session belongs to another student")
	ErrSessionNotActive   = errors.New("session is no longer active")
	ErrUnknownQuestion    = errors.New("question is not part of this assessment")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrAlreadySubmitted   = errors.New("session has already been submitted")
	ErrSubmissionRejected = errors.New("submission was rejected by the server; reload required")
	ErrEmptySubmission    = errors.New("no answers attempted; confirmation required")
)

// Session is one student's timed attempt at a single assessment. All state
// transitions go through one mutex-guarded setter; the two independent
// submission triggers (manual action and clock expiry) can interleave freely
// and at most one of them ever reaches the submission sink.
type Session struct {
	ID         uuid.UUID
	StudentID  int
	Assessment *model.Assessment
	StartedAt  time.Time
	DeadlineAt time.Time

	ledger *AnswerLedger
	clock  *SessionClock

	mu       sync.Mutex
	status   model.SessionStatus
	prior    model.SessionStatus // status to restore on a retryable failure
	terminal bool                // gate closed without success (4xx)
	closed   bool                // view navigated away
	result   *model.SubmissionResult
}

func newSession(studentID int, assessment *model.Assessment, deadline time.Time) *Session {
	return &Session{
		ID:         uuid.New(),
		StudentID:  studentID,
		Assessment: assessment,
		StartedAt:  time.Now(),
		DeadlineAt: deadline,
		ledger:     NewAnswerLedger(assessment.Questions),
		status:     model.SessionStatusActive,
	}
}

// Status returns the current session status.
func (s *Session) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Remaining returns the time left until the deadline, floored at zero.
func (s *Session) Remaining() time.Duration {
	if s.clock != nil {
		return s.clock.Remaining()
	}
	remaining := time.Until(s.DeadlineAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Result returns the submission result, or nil before a successful submit.
func (s *Session) Result() *model.SubmissionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// SetAnswer writes one answer. Allowed only while the session is ACTIVE. The
// write happens under the same lock the expiry and gate transitions take, so
// no write can land once the status has left ACTIVE.
func (s *Session) SetAnswer(questionNumber int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusActive {
		return ErrSessionNotActive
	}
	return s.ledger.Set(questionNumber, text)
}

// AttemptedCount proxies the ledger's non-empty answer count.
func (s *Session) AttemptedCount() int { return s.ledger.AttemptedCount() }

// expire moves ACTIVE to EXPIRED. Returns true only on the first transition;
// any other state means a submission already owns the session.
func (s *Session) expire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusActive {
		return false
	}
	s.status = model.SessionStatusExpired
	return true
}

// beginSubmit is the gate's check-and-set. It runs as one critical section
// with no suspension point between testing and claiming the gate, so two
// triggers arriving in the same instant cannot both pass. The answer snapshot
// is taken inside the same critical section — it is the exact state the gate
// opened on.
func (s *Session) beginSubmit() ([]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.status == model.SessionStatusSubmitted:
		return nil, ErrAlreadySubmitted
	case s.status == model.SessionStatusSubmitting:
		return nil, ErrSubmissionInFlight
	case s.terminal:
		return nil, ErrSubmissionRejected
	}

	s.prior = s.status
	s.status = model.SessionStatusSubmitting
	return s.ledger.Snapshot(), nil
}

// failSubmit releases or closes the gate after a failed delivery. A retryable
// failure (transport, 5xx) restores the pre-submit status so exactly one
// further attempt may engage the gate. A non-retryable failure (4xx) closes
// the gate for good — resending the same payload cannot succeed and risks
// duplicate side effects on the server.
func (s *Session) failSubmit(retryable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = s.prior
	if !retryable {
		s.terminal = true
	}
}

// completeSubmit records the one-and-only submission result and closes the
// gate permanently.
func (s *Session) completeSubmit(result *model.SubmissionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = model.SessionStatusSubmitted
	s.result = result
}

// close detaches the session from its view: the clock stops immediately (no
// further ticks or expiry), but an in-flight submission request is left to
// complete so the server-side attempt is never abandoned mid-write.
func (s *Session) close() {
	if s.clock != nil {
		s.clock.Stop()
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// State builds the reload-recovery view of the session.
func (s *Session) State() *model.SessionState {
	s.mu.Lock()
	status := s.status
	result := s.result
	s.mu.Unlock()

	state := &model.SessionState{
		SessionID:        s.ID,
		AssessmentID:     s.Assessment.ID,
		Status:           status,
		RemainingSeconds: s.Remaining().Seconds(),
		AttemptedCount:   s.ledger.AttemptedCount(),
		QuestionCount:    s.ledger.QuestionCount(),
		Answers:          s.ledger.Records(),
	}
	if result != nil {
		id := result.SubmissionID
		state.SubmissionID = &id
	}
	return state
}
