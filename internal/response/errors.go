package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrSessionNotFound       ErrCode = "SESSION_NOT_FOUND"
	ErrSessionNotStarted     ErrCode = "SESSION_NOT_STARTED"
	ErrSessionAlreadyStarted ErrCode = "SESSION_ALREADY_STARTED"
	ErrSessionOver           ErrCode = "SESSION_SUBMITTED"
	ErrNoQuestions           ErrCode = "NO_QUESTIONS"
	ErrLastQuestion          ErrCode = "LAST_QUESTION"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstream     ErrCode = "EXAM_API_ERROR"
	ErrUnauthorized ErrCode = "UNAUTHORIZED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrSessionNotFound:
		return "No exam session found. Generate an exam first."
	case ErrSessionNotStarted:
		return "The exam has not been started yet."
	case ErrSessionAlreadyStarted:
		return "The exam is already in progress."
	case ErrSessionOver:
		return "The exam has already been submitted."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrLastQuestion:
		return "You have reached the last question."
	case ErrUpstream:
		return "The exam service could not complete the request."
	case ErrUnauthorized:
		return "Please log in to continue."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
