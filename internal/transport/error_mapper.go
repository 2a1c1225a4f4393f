package transport

import (
	stderrors "errors"
	"strings"

	"connectrpc.com/connect"

	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
)

// ErrorCodeHeader carries the application error code in the error metadata
const ErrorCodeHeader = "Gateway-Error-Code"

// ConnectCode maps an application error code to a connect status code
func ConnectCode(code errors.ErrorCode) connect.Code {
	switch code {
	case errors.ErrCodeValidationRequired,
		errors.ErrCodeValidationInvalid,
		errors.ErrCodeValidationType,
		errors.ErrCodeValidationRange,
		errors.ErrCodeTransportUnmarshal:
		return connect.CodeInvalidArgument

	case errors.ErrCodeSourceNotFound:
		return connect.CodeNotFound

	case errors.ErrCodeContextCanceled, errors.ErrCodeTransportSend:
		return connect.CodeCanceled

	case errors.ErrCodeContextTimeout:
		return connect.CodeDeadlineExceeded

	case errors.ErrCodeNotImplemented:
		return connect.CodeUnimplemented

	case errors.ErrCodeTransportUnavailable,
		errors.ErrCodeSourceConnection,
		errors.ErrCodeSourceClosed:
		return connect.CodeUnavailable

	case errors.ErrCodeInvalidValue,
		errors.ErrCodeInvalidItem,
		errors.ErrCodeTransportMarshal,
		errors.ErrCodeInternal,
		errors.ErrCodePanic,
		errors.ErrCodeSourceQuery,
		errors.ErrCodeSourceTransaction,
		errors.ErrCodeSourceInitialization,
		errors.ErrCodeConfiguration:
		return connect.CodeInternal

	// Failures raised by gateway code are opaque to this layer
	case errors.ErrCodeHandlerFailed:
		return connect.CodeUnknown

	default:
		if strings.HasPrefix(string(code), "VALIDATION_") {
			return connect.CodeInvalidArgument
		}
		return connect.CodeUnknown
	}
}

// ToConnectError converts err into the terminal error of a stream. The
// connect error message is the original failure's message.
func ToConnectError(err error) error {
	if err == nil {
		return nil
	}

	var connectErr *connect.Error
	if stderrors.As(err, &connectErr) {
		return connectErr
	}

	appErr, ok := errors.As(err)
	if !ok {
		return connect.NewError(connect.CodeUnknown, err)
	}

	connectErr = connect.NewError(ConnectCode(appErr.Code), stderrors.New(appErr.Message))
	connectErr.Meta().Set(ErrorCodeHeader, string(appErr.Code))
	return connectErr
}

// FromConnectError recovers the application error carried by a connect
// error received by a client
func FromConnectError(err error) error {
	var connectErr *connect.Error
	if !stderrors.As(err, &connectErr) {
		return err
	}

	code := errors.ErrorCode(connectErr.Meta().Get(ErrorCodeHeader))
	if code == "" {
		switch connectErr.Code() {
		case connect.CodeCanceled:
			code = errors.ErrCodeContextCanceled
		case connect.CodeDeadlineExceeded:
			code = errors.ErrCodeContextTimeout
		case connect.CodeUnavailable:
			code = errors.ErrCodeTransportUnavailable
		default:
			code = errors.ErrCodeHandlerFailed
		}
	}
	return errors.Wrap(err, code, connectErr.Message())
}
