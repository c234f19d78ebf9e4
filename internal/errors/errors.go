// Package errors defines the user-visible failures of the application and
// maps them onto HTTP responses.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind groups errors by how the workflow recovers from them.
type Kind string

const (
	// KindInput is a bad request from the user: recovered locally with a message.
	KindInput Kind = "input"
	// KindService is a classifier or store failure caught at the workflow boundary.
	KindService Kind = "service"
	// KindNotFound is a missing row or file.
	KindNotFound Kind = "not-found"
	// KindConflict is a uniqueness violation or an action rejected by the current state.
	KindConflict Kind = "conflict"
	// KindUnauthorized means the session is anonymous or credentials did not verify.
	KindUnauthorized Kind = "unauthorized"
)

// Error is an error carrying a stable code and a message safe to show to users.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if stderrors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Wrap returns a copy of e that carries cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidCredentials = newError(KindUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
	ErrLoginRequired      = newError(KindUnauthorized, "LOGIN_REQUIRED", "Please login to continue")
	ErrTooManyAttempts    = newError(KindInput, "TOO_MANY_ATTEMPTS", "Too many login attempts, please wait a moment")
	ErrDuplicateEmail     = newError(KindConflict, "EMAIL_EXISTS", "Email already exists")
	ErrMissingField       = newError(KindInput, "MISSING_FIELD", "Please fill in all required fields")
	ErrPasswordMismatch   = newError(KindInput, "PASSWORD_MISMATCH", "New passwords do not match!")
	ErrWeakPassword       = newError(KindInput, "WEAK_PASSWORD", "Password must be at least 6 characters")
	ErrWrongPassword      = newError(KindInput, "WRONG_PASSWORD", "Incorrect current password!")
	ErrSamePhone          = newError(KindInput, "SAME_PHONE", "This is already your current number!")
	ErrCodeExpired        = newError(KindInput, "CODE_EXPIRED", "OTP has expired. Please request a new one.")
	ErrInvalidCode        = newError(KindInput, "INVALID_CODE", "Invalid OTP. Please try again.")
	ErrNoPendingCode      = newError(KindInput, "NO_PENDING_CODE", "Request a verification code first")
	ErrInvalidRating      = newError(KindInput, "INVALID_RATING", "Rating must be between 1 and 5")

	ErrMissingUpload    = newError(KindInput, "MISSING_UPLOAD", "Please upload a plant image first")
	ErrUnsupportedImage = newError(KindInput, "UNSUPPORTED_IMAGE", "Only jpg, jpeg and png images are supported")
	ErrImageTooLarge    = newError(KindInput, "IMAGE_TOO_LARGE", "The image is too large")
	ErrInvalidImage     = newError(KindInput, "INVALID_IMAGE", "Error processing image: the file could not be decoded")
	ErrAnalysisInFlight = newError(KindConflict, "ANALYSIS_IN_PROGRESS", "Analyzing image... Please wait.")
	ErrClassifier       = newError(KindService, "CLASSIFIER_FAILED", "Error processing image: analysis failed")
	ErrStore            = newError(KindService, "STORE_FAILED", "Error saving results, please try again")
	ErrSMSFailed        = newError(KindService, "SMS_FAILED", "Could not send the verification code, please try again")

	ErrUnknownPage    = newError(KindNotFound, "UNKNOWN_PAGE", "Page not found")
	ErrNotFound       = newError(KindNotFound, "NOT_FOUND", "Not found")
	ErrInvalidRequest = newError(KindInput, "INVALID_REQUEST", "Invalid request")
	ErrInvalidDate    = newError(KindInput, "INVALID_DATE", "Invalid date, expected YYYY-MM-DD")
	ErrWrongStep      = newError(KindConflict, "WRONG_STEP", "That action is not available right now")
)

// Is reports whether err matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// New returns a plain error.
func New(text string) error { return stderrors.New(text) }

// UserMessage returns the message to show for err, or a generic one for
// errors that did not originate here.
func UserMessage(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong, please try again"
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Code: e.Code}
}

// MapToHTTP maps domain errors to HTTP errors.
func MapToHTTP(err error) *HTTPError {
	var e *Error
	if !stderrors.As(err, &e) {
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "internal server error", Code: "INTERNAL_ERROR"}
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case KindInput:
		status = http.StatusBadRequest
		if e.Code == ErrTooManyAttempts.Code {
			status = http.StatusTooManyRequests
		}
		if e.Code == ErrImageTooLarge.Code {
			status = http.StatusRequestEntityTooLarge
		}
	case KindNotFound:
		status = http.StatusNotFound
	case KindConflict:
		status = http.StatusConflict
	case KindUnauthorized:
		status = http.StatusUnauthorized
	case KindService:
		status = http.StatusBadGateway
		if e.Code == ErrStore.Code {
			status = http.StatusServiceUnavailable
		}
	}
	return &HTTPError{StatusCode: status, Message: e.Message, Code: e.Code}
}
