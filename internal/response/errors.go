package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrActionForbidden ErrCode = "ACTION_FORBIDDEN"

	// ─── Review workflow ───────────────────────────────────────────────
	ErrQuestionNotFound   ErrCode = "QUESTION_NOT_FOUND"
	ErrTransitionRejected ErrCode = "TRANSITION_REJECTED"
	ErrInvalidOptions     ErrCode = "INVALID_OPTIONS"

	// ─── Attempt-specific ──────────────────────────────────────────────
	ErrQuizNotFound     ErrCode = "QUIZ_NOT_FOUND"
	ErrQuizEmpty        ErrCode = "QUIZ_EMPTY"
	ErrAttemptNotFound  ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptClosed    ErrCode = "ATTEMPT_CLOSED"
	ErrAttemptExpired   ErrCode = "ATTEMPT_EXPIRED"
	ErrAttemptOpen      ErrCode = "ATTEMPT_IN_PROGRESS"
	ErrIndexOutOfRange  ErrCode = "INDEX_OUT_OF_RANGE"
	ErrOptionMismatch   ErrCode = "OPTION_MISMATCH"
	ErrAttemptCorrupted ErrCode = "ATTEMPT_CORRUPTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrPermissionDenied:
		return "Permission denied."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Review workflow ───────────────────────────────────────────────
	case ErrQuestionNotFound:
		return "Question not found."
	case ErrTransitionRejected:
		return "The question is not in a state that allows this change."
	case ErrInvalidOptions:
		return "A question needs 1 to 5 options with exactly one correct answer."

	// ─── Attempt-specific ──────────────────────────────────────────────
	case ErrQuizNotFound:
		return "Quiz not found."
	case ErrQuizEmpty:
		return "This quiz has no questions."
	case ErrAttemptNotFound:
		return "Attempt not found."
	case ErrAttemptClosed:
		return "This attempt is already finished."
	case ErrAttemptExpired:
		return "Time is up. The attempt has been submitted."
	case ErrAttemptOpen:
		return "The attempt must be finished before it can be reviewed."
	case ErrIndexOutOfRange:
		return "Question index is out of range."
	case ErrOptionMismatch:
		return "The selected option does not belong to this question."
	case ErrAttemptCorrupted:
		return "The attempt no longer matches its quiz."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
