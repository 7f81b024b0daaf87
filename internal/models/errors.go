package models

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"solana-gif-portal/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Sentinel errors shared by the wallet, gateway and reconciler layers.
var (
	ErrCapabilityUnavailable = errors.New("wallet capability unavailable")
	ErrUserRejected          = errors.New("user rejected the request")
	ErrAccountNotFound       = errors.New("list account not found")
	ErrNetwork               = errors.New("network error")
	ErrSubmissionFailed      = errors.New("submission failed")
	ErrInvalidInput          = errors.New("invalid input")
	ErrSessionRequired       = errors.New("no active session")
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Session errors
	ErrorCodeCapabilityUnavailable ErrorCode = "CAPABILITY_UNAVAILABLE"
	ErrorCodeUserRejected          ErrorCode = "USER_REJECTED"
	ErrorCodeSessionRequired       ErrorCode = "SESSION_REQUIRED"

	// Ledger errors
	ErrorCodeAccountNotFound  ErrorCode = "ACCOUNT_NOT_FOUND"
	ErrorCodeNetworkError     ErrorCode = "NETWORK_ERROR"
	ErrorCodeSubmissionFailed ErrorCode = "SUBMISSION_FAILED"

	// Validation errors
	ErrorCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorCodeMalformedJSON ErrorCode = "MALFORMED_JSON"

	// Rate limiting errors
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatusCode returns the appropriate HTTP status code for each error type
func (e ErrorCode) HTTPStatusCode() int {
	switch e {
	case ErrorCodeCapabilityUnavailable:
		return http.StatusServiceUnavailable
	case ErrorCodeUserRejected:
		return http.StatusForbidden
	case ErrorCodeSessionRequired:
		return http.StatusUnauthorized
	case ErrorCodeAccountNotFound:
		return http.StatusNotFound
	case ErrorCodeNetworkError, ErrorCodeSubmissionFailed:
		return http.StatusBadGateway
	case ErrorCodeInvalidInput, ErrorCodeMalformedJSON:
		return http.StatusBadRequest
	case ErrorCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// ErrorResponse represents the standardized error response format
type ErrorResponse struct {
	Error         ErrorDetail `json:"error"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// AppError represents an application error with context
type AppError struct {
	Code       ErrorCode
	Message    string
	Details    string
	Cause      error
	Context    map[string]interface{}
	StatusCode int
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: code.HTTPStatusCode(),
		Context:    make(map[string]interface{}),
	}
}

// NewAppErrorWithCause creates a new application error with underlying cause
func NewAppErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	e := NewAppError(code, message)
	e.Cause = cause
	return e
}

// NewAppErrorWithDetails creates a new application error with details
func NewAppErrorWithDetails(code ErrorCode, message, details string) *AppError {
	e := NewAppError(code, message)
	e.Details = details
	return e
}

// Wrap tags err with one of the sentinel kinds so callers can match it
// with errors.Is while keeping the original cause in the chain.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// CodeFor maps an error chain onto the error code surfaced to clients.
func CodeFor(err error) ErrorCode {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr.Code
	case errors.Is(err, ErrSubmissionFailed):
		return ErrorCodeSubmissionFailed
	case errors.Is(err, ErrCapabilityUnavailable):
		return ErrorCodeCapabilityUnavailable
	case errors.Is(err, ErrUserRejected):
		return ErrorCodeUserRejected
	case errors.Is(err, ErrSessionRequired):
		return ErrorCodeSessionRequired
	case errors.Is(err, ErrInvalidInput):
		return ErrorCodeInvalidInput
	case errors.Is(err, ErrAccountNotFound):
		return ErrorCodeAccountNotFound
	case errors.Is(err, ErrNetwork):
		return ErrorCodeNetworkError
	default:
		return ErrorCodeInternalError
	}
}

// HandleError converts err into a JSON error response and logs it
func HandleError(c *gin.Context, err error, log *logger.Logger) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		code := CodeFor(err)
		appErr = NewAppErrorWithCause(code, messageFor(code), err)
	}

	appErr.WithContext("method", c.Request.Method).
		WithContext("path", c.Request.URL.Path)

	logFields := []zap.Field{
		zap.String("error_code", string(appErr.Code)),
		zap.String("error_message", appErr.Message),
		zap.Any("error_context", appErr.Context),
	}
	if appErr.Cause != nil {
		logFields = append(logFields, zap.Error(appErr.Cause))
	}

	if log != nil {
		if appErr.StatusCode >= 500 {
			log.Error("Application error", logFields...)
		} else {
			log.Warn("Client error", logFields...)
		}
	}

	details := appErr.Details
	if details == "" && appErr.Cause != nil {
		details = appErr.Cause.Error()
	}

	c.JSON(appErr.StatusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
		Timestamp:     time.Now().UTC(),
		CorrelationID: c.GetString(string(logger.CorrelationIDKey)),
	})
}

func messageFor(code ErrorCode) string {
	switch code {
	case ErrorCodeCapabilityUnavailable:
		return "No wallet found, install a wallet to continue"
	case ErrorCodeUserRejected:
		return "Wallet connection was declined"
	case ErrorCodeSessionRequired:
		return "Connect a wallet first"
	case ErrorCodeInvalidInput:
		return "Invalid input"
	case ErrorCodeSubmissionFailed:
		return "Transaction was rejected"
	case ErrorCodeAccountNotFound:
		return "GIF list has not been initialized"
	case ErrorCodeNetworkError:
		return "Ledger is unreachable"
	default:
		return "Internal server error"
	}
}

// NewValidationError creates a validation error
func NewValidationError(message, details string) *AppError {
	return NewAppErrorWithDetails(ErrorCodeInvalidInput, message, details)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError() *AppError {
	return NewAppError(ErrorCodeRateLimitExceeded, "Rate limit exceeded")
}
