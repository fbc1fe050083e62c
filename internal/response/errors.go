package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication / Authorization ────────────────────────────────
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly  ErrCode = "STUDENT_ACCESS_ONLY"
	ErrLecturerAccessOnly ErrCode = "LECTURER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Session / submission ──────────────────────────────────────────
	ErrSessionNotFound     ErrCode = "SESSION_NOT_FOUND"
	ErrSessionNotActive    ErrCode = "SESSION_NOT_ACTIVE"
	ErrUnknownQuestion     ErrCode = "UNKNOWN_QUESTION"
	ErrSubmissionInFlight  ErrCode = "SUBMISSION_IN_FLIGHT"
	ErrAlreadySubmitted    ErrCode = "ALREADY_SUBMITTED"
	ErrEmptySubmission     ErrCode = "EMPTY_SUBMISSION_CONFIRM_REQUIRED"
	ErrSubmissionRejected  ErrCode = "SUBMISSION_REJECTED"
	ErrUpstreamUnavailable ErrCode = "UPSTREAM_UNAVAILABLE"

	// ─── Grading review ────────────────────────────────────────────────
	ErrReviewNotFound    ErrCode = "REVIEW_NOT_FOUND"
	ErrAlreadyFinalized  ErrCode = "ALREADY_FINALIZED"
	ErrFinalizeInFlight  ErrCode = "FINALIZE_IN_FLIGHT"
	ErrScoreOutOfRange   ErrCode = "SCORE_OUT_OF_RANGE"
	ErrIntegrityMismatch ErrCode = "INTEGRITY_MISMATCH"

	// ─── Server ────────────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrInternal          ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication / Authorization ────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrLecturerAccessOnly:
		return "This resource is restricted to lecturers."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is not valid."
	case ErrInvalidPayload:
		return "The request payload is not valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."

	// ─── Session / submission ──────────────────────────────────────────
	case ErrSessionNotFound:
		return "No session with that ID is running."
	case ErrSessionNotActive:
		return "The session is no longer accepting answers."
	case ErrUnknownQuestion:
		return "That question is not part of this assessment."
	case ErrSubmissionInFlight:
		return "A submission is already in progress for this session."
	case ErrAlreadySubmitted:
		return "This session has already been submitted."
	case ErrEmptySubmission:
		return "No answers have been attempted. Confirm to submit anyway."
	case ErrSubmissionRejected:
		return "The server rejected this submission. Please reload the page."
	case ErrUpstreamUnavailable:
		return "The assessment platform is unreachable. Please try again."

	// ─── Grading review ────────────────────────────────────────────────
	case ErrReviewNotFound:
		return "No grading review is open for that submission."
	case ErrAlreadyFinalized:
		return "This grading record has already been finalized."
	case ErrFinalizeInFlight:
		return "A finalize request is already in progress for this record."
	case ErrScoreOutOfRange:
		return "The override score is outside the allowed range."
	case ErrIntegrityMismatch:
		return "Computed and server totals disagree. The server value stands."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
