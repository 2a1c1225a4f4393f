package errors

import (
	"net/http"
	"strings"
)

// HTTPStatusCode returns the appropriate HTTP status code for an error
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	return HTTPStatusFromCode(GetCode(err))
}

// HTTPStatusFromCode returns the HTTP status for an error code
func HTTPStatusFromCode(code ErrorCode) int {
	switch code {
	// 400 Bad Request - Client sent invalid data
	case ErrCodeValidationRequired,
		ErrCodeValidationInvalid,
		ErrCodeValidationType,
		ErrCodeValidationRange,
		ErrCodeTransportUnmarshal:
		return http.StatusBadRequest

	// 404 Not Found - Resource doesn't exist
	case ErrCodeSourceNotFound:
		return http.StatusNotFound

	// 408 Request Timeout
	case ErrCodeContextTimeout:
		return http.StatusRequestTimeout

	// 422 Unprocessable Entity - Produced data outside the protocol
	case ErrCodeInvalidValue,
		ErrCodeInvalidItem,
		ErrCodeTransportMarshal:
		return http.StatusUnprocessableEntity

	// 500 Internal Server Error
	case ErrCodeInternal,
		ErrCodePanic,
		ErrCodeHandlerFailed,
		ErrCodeSourceConnection,
		ErrCodeSourceQuery,
		ErrCodeSourceTransaction,
		ErrCodeSourceInitialization,
		ErrCodeConfiguration:
		return http.StatusInternalServerError

	// 501 Not Implemented
	case ErrCodeNotImplemented:
		return http.StatusNotImplemented

	// 503 Service Unavailable
	case ErrCodeTransportUnavailable,
		ErrCodeSourceClosed:
		return http.StatusServiceUnavailable

	// 499 Client Closed Request (non-standard but commonly used)
	case ErrCodeContextCanceled,
		ErrCodeTransportSend:
		return 499

	default:
		// Try to infer from prefix
		codeStr := string(code)
		switch {
		case strings.HasPrefix(codeStr, "VALIDATION_"):
			return http.StatusBadRequest
		case strings.HasPrefix(codeStr, "CODEC_"):
			return http.StatusUnprocessableEntity
		default:
			return http.StatusInternalServerError
		}
	}
}

// HTTPError represents an HTTP-specific error response
type HTTPError struct {
	Status  int       `json:"status"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// ToHTTPError converts an error to an HTTP error response
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{
			Status:  http.StatusOK,
			Message: "OK",
		}
	}

	appErr, ok := As(err)
	if !ok {
		appErr = Internal(err)
	}

	return HTTPError{
		Status:  HTTPStatusFromCode(appErr.Code),
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
}

// IsClientError returns true if the error is a client error (4xx)
func IsClientError(err error) bool {
	status := HTTPStatusCode(err)
	return status >= 400 && status < 500
}

// IsServerError returns true if the error is a server error (5xx)
func IsServerError(err error) bool {
	status := HTTPStatusCode(err)
	return status >= 500 && status < 600
}
