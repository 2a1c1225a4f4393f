package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a standardized error code
type ErrorCode string

// Standard error codes organized by category
const (
	// Item source errors
	ErrCodeSourceNotFound       ErrorCode = "SOURCE_NOT_FOUND"
	ErrCodeSourceConnection     ErrorCode = "SOURCE_CONNECTION"
	ErrCodeSourceQuery          ErrorCode = "SOURCE_QUERY"
	ErrCodeSourceTransaction    ErrorCode = "SOURCE_TRANSACTION"
	ErrCodeSourceInitialization ErrorCode = "SOURCE_INITIALIZATION"
	ErrCodeSourceClosed         ErrorCode = "SOURCE_CLOSED"

	// Validation errors
	ErrCodeValidationRequired ErrorCode = "VALIDATION_REQUIRED"
	ErrCodeValidationInvalid  ErrorCode = "VALIDATION_INVALID"
	ErrCodeValidationType     ErrorCode = "VALIDATION_TYPE"
	ErrCodeValidationRange    ErrorCode = "VALIDATION_RANGE"

	// Codec errors: a value or item outside the closed set of variants
	ErrCodeInvalidValue ErrorCode = "CODEC_INVALID_VALUE"
	ErrCodeInvalidItem  ErrorCode = "CODEC_INVALID_ITEM"

	// Stream errors
	ErrCodeHandlerFailed ErrorCode = "STREAM_HANDLER_FAILED"

	// Transport errors
	ErrCodeTransportSend        ErrorCode = "TRANSPORT_SEND"
	ErrCodeTransportMarshal     ErrorCode = "TRANSPORT_MARSHAL"
	ErrCodeTransportUnmarshal   ErrorCode = "TRANSPORT_UNMARSHAL"
	ErrCodeTransportUnavailable ErrorCode = "TRANSPORT_UNAVAILABLE"

	// System errors
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotImplemented  ErrorCode = "NOT_IMPLEMENTED"
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	ErrCodeContextTimeout  ErrorCode = "CONTEXT_TIMEOUT"
	ErrCodePanic           ErrorCode = "PANIC_RECOVERED"
	ErrCodeConfiguration   ErrorCode = "CONFIGURATION_ERROR"
)

// AppError represents a standardized application error
type AppError struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Details  any       `json:"details,omitempty"`
	Internal error     `json:"-"` // Internal error not exposed to clients
}

// Error implements the error interface
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// ToJSON returns a JSON representation safe for clients
func (e *AppError) ToJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
		Details any       `json:"details,omitempty"`
	}{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with formatted message
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	return &AppError{
		Code:     code,
		Message:  message,
		Internal: err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}

	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// As returns the outermost AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is checks if the outermost AppError in err's chain has a specific error code
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// IsAny checks if an error matches any of the provided codes
func IsAny(err error, codes ...ErrorCode) bool {
	for _, code := range codes {
		if Is(err, code) {
			return true
		}
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	appErr, ok := As(err)
	if !ok {
		return ErrCodeInternal
	}

	return appErr.Code
}

// GetMessage returns a safe message for the client
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	appErr, ok := As(err)
	if !ok {
		return "An internal error occurred"
	}

	return appErr.Message
}

// GetInternal returns the internal error for logging
func GetInternal(err error) error {
	if err == nil {
		return nil
	}

	appErr, ok := As(err)
	if !ok {
		return err
	}

	if appErr.Internal != nil {
		return appErr.Internal
	}

	return appErr
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return Newf(ErrCodeSourceNotFound, "%s not found", resource)
}

// ValidationRequired creates a validation required error
func ValidationRequired(field string) *AppError {
	return Newf(ErrCodeValidationRequired, "%s is required", field)
}

// ValidationInvalid creates a validation invalid error
func ValidationInvalid(field, reason string) *AppError {
	return Newf(ErrCodeValidationInvalid, "%s is invalid: %s", field, reason)
}

// Internal creates an internal error with a safe message
func Internal(internalErr error) *AppError {
	return Wrap(internalErr, ErrCodeInternal, "An internal error occurred")
}
