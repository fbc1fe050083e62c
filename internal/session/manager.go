package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/config"
	"github.com/gradeloop/session-engine/internal/gateway"
	"github.com/gradeloop/session-engine/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Manager owns every live session in the engine. It creates sessions from the
// assessment source, runs one clock per session, and funnels both submission
// triggers through the gate. The Redis client is optional; when present,
// answer writes and submission receipts are queued for the persistence
// workers.
type Manager struct {
	source gateway.AssessmentSource
	sink   gateway.SubmissionSink
	rdb    *redis.Client
	log    zerolog.Logger

	// tickInterval controls clock granularity. One second in production;
	// tests shrink it.
	tickInterval time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a session manager. rdb may be nil (queues disabled).
func NewManager(source gateway.AssessmentSource, sink gateway.SubmissionSink, rdb *redis.Client, log zerolog.Logger) *Manager {
	return &Manager{
		source:       source,
		sink:         sink,
		rdb:          rdb,
		log:          log.With().Str("component", "session_manager").Logger(),
		tickInterval: time.Second,
		sessions:     make(map[uuid.UUID]*Session),
	}
}

// SetTickInterval overrides the clock granularity. Call before Start.
func (m *Manager) SetTickInterval(d time.Duration) { m.tickInterval = d }

// Start fetches the assessment and opens a timed session for the student.
// The deadline is fixed at creation: now plus the assessment duration.
func (m *Manager) Start(ctx context.Context, assessmentID uuid.UUID, studentID int) (*Session, error) {
	assessment, err := m.source.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if len(assessment.Questions) == 0 {
		return nil, errors.New("assessment has no questions")
	}

	deadline := time.Now().Add(time.Duration(assessment.DurationSeconds) * time.Second)
	sess := newSession(studentID, assessment, deadline)

	sess.clock = NewSessionClock(deadline, m.tickInterval, func() bool {
		return m.onExpiry(sess)
	})

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	sess.clock.Start()

	m.log.Info().
		Str("session_id", sess.ID.String()).
		Str("assessment_id", assessmentID.String()).
		Int("student_id", studentID).
		Time("deadline", deadline).
		Msg("Session started")

	return sess, nil
}

// Get returns the session if it exists and belongs to the student.
func (m *Manager) Get(sessionID uuid.UUID, studentID int) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.StudentID != studentID {
		return nil, ErrNotSessionOwner
	}
	return sess, nil
}

// SaveAnswer writes one answer to the ledger and queues a snapshot mirror for
// the persistence worker. The ledger stays purely in-memory; the mirror is a
// side channel consumed elsewhere.
func (m *Manager) SaveAnswer(ctx context.Context, sessionID uuid.UUID, studentID, questionNumber int, text string) error {
	sess, err := m.Get(sessionID, studentID)
	if err != nil {
		return err
	}
	if err := sess.SetAnswer(questionNumber, text); err != nil {
		return err
	}

	m.queueAnswerMirror(ctx, sess, questionNumber, text)
	return nil
}

// Submit is the manual trigger. A submit with zero attempted answers is
// rejected before the gate opens unless the student confirmed; the expiry
// trigger never runs this check — an expired session must be recorded even
// if entirely empty.
func (m *Manager) Submit(ctx context.Context, sessionID uuid.UUID, studentID int, confirmEmpty bool) (*model.SubmissionResult, error) {
	sess, err := m.Get(sessionID, studentID)
	if err != nil {
		return nil, err
	}

	if sess.AttemptedCount() == 0 && !confirmEmpty {
		return nil, ErrEmptySubmission
	}

	snapshot, err := sess.beginSubmit()
	if err != nil {
		return nil, err
	}

	// Detached from the request context: navigating away or dropping the
	// connection must not abort the attempt mid-write.
	return m.deliver(context.WithoutCancel(ctx), sess, snapshot, model.TriggerManual)
}

// State returns the reload-recovery view of a session.
func (m *Manager) State(sessionID uuid.UUID, studentID int) (*model.SessionState, error) {
	sess, err := m.Get(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	return sess.State(), nil
}

// Close detaches a session on navigation away: the clock stops immediately,
// an in-flight submission is left to complete, and the session leaves the
// registry so its result, if any, is discarded.
func (m *Manager) Close(sessionID uuid.UUID, studentID int) error {
	sess, err := m.Get(sessionID, studentID)
	if err != nil {
		return err
	}
	sess.close()

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	m.log.Info().Str("session_id", sessionID.String()).Msg("Session closed")
	return nil
}

// onExpiry is the clock trigger. It moves the session to EXPIRED and fires
// the gate. Returning false tells the clock an in-flight submission swallowed
// the trigger: the clock keeps ticking and re-fires, so a deadline that
// passes while a manual attempt is in flight is still enforced if that
// attempt fails retryably.
func (m *Manager) onExpiry(sess *Session) bool {
	sess.expire()

	snapshot, err := sess.beginSubmit()
	if err != nil {
		if errors.Is(err, ErrSubmissionInFlight) {
			m.log.Debug().Str("session_id", sess.ID.String()).Msg("Deadline passed with a submission in flight")
			return false
		}
		// Submitted or terminally rejected; nothing left for the clock to do.
		return true
	}

	m.log.Info().Str("session_id", sess.ID.String()).Msg("Session expired, auto-submitting")

	if _, err := m.deliver(context.Background(), sess, snapshot, model.TriggerExpiry); err != nil {
		m.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Expiry submission failed")
	}
	return true
}

// deliver performs the one network submission attempt the open gate permits,
// then settles the gate according to the failure taxonomy.
func (m *Manager) deliver(ctx context.Context, sess *Session, snapshot []model.Answer, trigger model.SubmitTrigger) (*model.SubmissionResult, error) {
	result, err := m.sink.Submit(ctx, sess.Assessment.ID, snapshot)
	if err != nil {
		retryable := gateway.IsRetryable(err)
		sess.failSubmit(retryable)
		m.log.Warn().
			Err(err).
			Str("session_id", sess.ID.String()).
			Str("trigger", string(trigger)).
			Bool("retryable", retryable).
			Msg("Submission delivery failed")
		if retryable {
			return nil, fmt.Errorf("submit session: %w", err)
		}
		return nil, errors.Join(ErrSubmissionRejected, err)
	}

	sess.clock.Stop()
	sess.completeSubmit(result)
	m.queueReceipt(ctx, sess, result, trigger)

	if sess.isClosed() {
		// The view is gone; the result is recorded but nobody is watching.
		m.log.Info().
			Str("session_id", sess.ID.String()).
			Str("submission_id", result.SubmissionID.String()).
			Msg("Submission completed after session view closed; result discarded")
	} else {
		m.log.Info().
			Str("session_id", sess.ID.String()).
			Str("submission_id", result.SubmissionID.String()).
			Str("trigger", string(trigger)).
			Msg("Submission delivered")
	}
	return result, nil
}

func (m *Manager) queueAnswerMirror(ctx context.Context, sess *Session, questionNumber int, text string) {
	if m.rdb == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"session_id":      sess.ID.String(),
		"student_id":      sess.StudentID,
		"question_number": questionNumber,
		"answer":          text,
	})
	if err := m.rdb.RPush(ctx, config.WorkerKey.AnswerSnapshotsQueue, payload).Err(); err != nil {
		m.log.Warn().Err(err).Msg("Answer mirror enqueue failed")
	}
}

func (m *Manager) queueReceipt(ctx context.Context, sess *Session, result *model.SubmissionResult, trigger model.SubmitTrigger) {
	if m.rdb == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"session_id":    sess.ID.String(),
		"submission_id": result.SubmissionID.String(),
		"assessment_id": sess.Assessment.ID.String(),
		"student_id":    sess.StudentID,
		"trigger":       string(trigger),
	})
	if err := m.rdb.RPush(ctx, config.WorkerKey.SubmissionReceiptsQueue, payload).Err(); err != nil {
		m.log.Warn().Err(err).Msg("Receipt enqueue failed")
	}
}
