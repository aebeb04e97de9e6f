package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// Predefined error responses for common scenarios
var (
	ErrInvalidRequest = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrNotFoundAPI    = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// statusForType maps an application error type to an HTTP status code.
func statusForType(t ErrorType) int {
	switch t {
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeTransport:
		return http.StatusBadGateway
	case ErrTypeStorage, ErrTypeConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ToAPIError converts any error into an APIError suitable for rendering.
// AppError types map onto matching HTTP status codes; everything else
// becomes a 500.
func ToAPIError(err error) *APIError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &APIError{
			StatusCode: statusForType(appErr.Type),
			ErrorCode:  string(appErr.Type),
			Message:    appErr.Message,
			Details:    appErr.Context,
		}
	}
	return New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error())
}
