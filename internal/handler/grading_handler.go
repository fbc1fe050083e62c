package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/gateway"
	"github.com/gradeloop/session-engine/internal/grading"
	"github.com/gradeloop/session-engine/internal/model"
	"github.com/gradeloop/session-engine/internal/response"
	"github.com/gradeloop/session-engine/internal/validator"
	"github.com/rs/zerolog"
)

// GradingHandler handles the lecturer review endpoints.
type GradingHandler struct {
	svc *grading.Service
	log zerolog.Logger
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(svc *grading.Service, log zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		svc: svc,
		log: log.With().Str("component", "grading_handler").Logger(),
	}
}

// reviewView builds the API shape of a grading record: the per-question
// reconciliation state, the resolved values, and the client-side totals.
func reviewView(record *grading.Record) gin.H {
	return gin.H{
		"submission_id": record.SubmissionID,
		"status":        record.Status(),
		"grades":        record.Grades(),
		"resolved":      record.ResolvedAll(),
		"totals":        record.Totals(),
	}
}

func gradingErrCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, grading.ErrRecordNotFound):
		return http.StatusNotFound, response.ErrReviewNotFound
	case errors.Is(err, grading.ErrAlreadyFinalized):
		return http.StatusConflict, response.ErrAlreadyFinalized
	case errors.Is(err, grading.ErrFinalizeInFlight):
		return http.StatusConflict, response.ErrFinalizeInFlight
	case errors.Is(err, grading.ErrUnknownQuestion):
		return http.StatusNotFound, response.ErrUnknownQuestion
	case errors.Is(err, grading.ErrOverrideOutOfRange):
		return http.StatusUnprocessableEntity, response.ErrScoreOutOfRange
	case gateway.IsRetryable(err):
		return http.StatusBadGateway, response.ErrUpstreamUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// OpenReview godoc
// POST /api/v1/lecturer/submissions/:submission_id/review
// Fetches the machine grades and opens the record for review. Reopening an
// already-open review returns it unchanged.
func (h *GradingHandler) OpenReview(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	record, err := h.svc.OpenReview(c.Request.Context(), submissionID)
	if err != nil {
		h.log.Error().Err(err).Str("submission_id", submissionID.String()).Msg("Open review failed")
		status, code := gradingErrCode(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, reviewView(record))
}

// GetReview godoc
// GET /api/v1/lecturer/submissions/:submission_id/review
func (h *GradingHandler) GetReview(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	record, err := h.svc.Get(submissionID)
	if err != nil {
		status, code := gradingErrCode(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, reviewView(record))
}

// SetOverride godoc
// PUT /api/v1/lecturer/submissions/:submission_id/questions/:question_number/override
// Stores a lecturer override beside the machine value. Out-of-range scores
// are rejected with the violated bounds, never clamped.
func (h *GradingHandler) SetOverride(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questionNumber, err := strconv.Atoi(c.Param("question_number"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.OverrideRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.svc.SetOverride(submissionID, questionNumber, req.Score, req.Feedback); err != nil {
		var oor *grading.OutOfRangeError
		if errors.As(err, &oor) {
			response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrScoreOutOfRange,
				map[string]string{"score": oor.Error()})
			return
		}
		status, code := gradingErrCode(err)
		response.Fail(c, status, code)
		return
	}

	record, err := h.svc.Get(submissionID)
	if err != nil {
		status, code := gradingErrCode(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, reviewView(record))
}

// RemoveOverride godoc
// DELETE /api/v1/lecturer/submissions/:submission_id/questions/:question_number/override
// Reverts a question to its machine value.
func (h *GradingHandler) RemoveOverride(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questionNumber, err := strconv.Atoi(c.Param("question_number"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.svc.RemoveOverride(submissionID, questionNumber); err != nil {
		status, code := gradingErrCode(err)
		response.Fail(c, status, code)
		return
	}

	record, err := h.svc.Get(submissionID)
	if err != nil {
		status, code := gradingErrCode(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, reviewView(record))
}

// Finalize godoc
// POST /api/v1/lecturer/submissions/:submission_id/finalize
// Commits every resolved score in one atomic request. The response carries
// the server's authoritative totals; when they disagree with the totals the
// lecturer was shown, the outcome is flagged and the server value stands.
func (h *GradingHandler) Finalize(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	outcome, err := h.svc.Finalize(c.Request.Context(), submissionID)
	if err != nil {
		h.log.Error().Err(err).Str("submission_id", submissionID.String()).Msg("Finalize failed")
		status, code := gradingErrCode(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, outcome)
}
