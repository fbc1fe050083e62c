// Package handler exposes the engine's HTTP and WebSocket surfaces: student
// session endpoints, the lecturer review endpoints, and the live session
// stream.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/gateway"
	"github.com/gradeloop/session-engine/internal/middleware"
	"github.com/gradeloop/session-engine/internal/model"
	"github.com/gradeloop/session-engine/internal/response"
	"github.com/gradeloop/session-engine/internal/session"
	"github.com/gradeloop/session-engine/internal/validator"
	"github.com/rs/zerolog"
)

// SessionHandler handles student-facing session endpoints.
type SessionHandler struct {
	manager *session.Manager
	grades  gateway.GradingGateway
	log     zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(manager *session.Manager, grades gateway.GradingGateway, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		grades:  grades,
		log:     log.With().Str("component", "session_handler").Logger(),
	}
}

// sessionErrCode maps session-layer errors to an HTTP status and error code.
func sessionErrCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, session.ErrNotSessionOwner):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, session.ErrSessionNotActive):
		return http.StatusConflict, response.ErrSessionNotActive
	case errors.Is(err, session.ErrUnknownQuestion):
		return http.StatusNotFound, response.ErrUnknownQuestion
	case errors.Is(err, session.ErrSubmissionInFlight):
		return http.StatusConflict, response.ErrSubmissionInFlight
	case errors.Is(err, session.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, session.ErrEmptySubmission):
		return http.StatusConflict, response.ErrEmptySubmission
	case errors.Is(err, session.ErrSubmissionRejected):
		return http.StatusConflict, response.ErrSubmissionRejected
	case gateway.IsRetryable(err):
		return http.StatusBadGateway, response.ErrUpstreamUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// StartSession godoc
// POST /api/v1/student/assessments/:assessment_id/sessions
// Fetches the assessment and opens a timed session for the student.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.manager.Start(c.Request.Context(), assessmentID, claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Str("assessment_id", assessmentID.String()).Msg("Start session failed")
		status, code := sessionErrCode(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session":    sess.State(),
		"assessment": sess.Assessment,
	})
}

// GetState godoc
// GET /api/v1/student/sessions/:session_id/state
// Returns the reload-recovery view: status, remaining time, saved answers.
func (h *SessionHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.manager.State(sessionID, claims.UserID)
	if err != nil {
		status, code := sessionErrCode(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SaveAnswer godoc
// PUT /api/v1/student/sessions/:session_id/answers/:question_number
// Writes one answer to the session ledger. Empty text clears the answer.
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questionNumber, err := strconv.Atoi(c.Param("question_number"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.manager.SaveAnswer(c.Request.Context(), sessionID, claims.UserID, questionNumber, req.Text); err != nil {
		status, code := sessionErrCode(err)
		response.Fail(c, status, code)
		return
	}

	sess, err := h.manager.Get(sessionID, claims.UserID)
	if err != nil {
		status, code := sessionErrCode(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"question_number": questionNumber,
		"attempted_count": sess.AttemptedCount(),
	})
}

// Submit godoc
// POST /api/v1/student/sessions/:session_id/submit
// The manual submission trigger. Submitting with zero attempted answers
// requires confirm_empty in the payload.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.manager.Submit(c.Request.Context(), sessionID, claims.UserID, req.ConfirmEmpty)
	if err != nil {
		status, code := sessionErrCode(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// CloseSession godoc
// DELETE /api/v1/student/sessions/:session_id
// Detaches the session on navigation away. An in-flight submission keeps
// running to completion; only the view is gone.
func (h *SessionHandler) CloseSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.manager.Close(sessionID, claims.UserID); err != nil {
		status, code := sessionErrCode(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

// GetResult godoc
// GET /api/v1/student/submissions/:submission_id/result
// Fetches the submission result from the platform. The percentage and grade
// label are derived from the server's totals only, never recomputed from
// per-question scores on this side.
func (h *SessionHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.grades.GetResult(c.Request.Context(), submissionID)
	if err != nil {
		if gateway.IsRetryable(err) {
			response.Fail(c, http.StatusBadGateway, response.ErrUpstreamUnavailable)
			return
		}
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"result":      result,
		"grade_label": gradeLabel(result.Percentage),
	})
}

// gradeLabel maps a percentage to its display label.
func gradeLabel(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Excellent"
	case percentage >= 80:
		return "Very Good"
	case percentage >= 70:
		return "Good"
	case percentage >= 60:
		return "Satisfactory"
	default:
		return "Needs Improvement"
	}
}
