package errors

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
)

// Logger provides centralized error logging
type Logger struct {
	logger    *slog.Logger
	metrics   *logging.MetricsCollector
	component string
}

// NewLogger creates a new error logger using the global logging factory
func NewLogger(component string) *Logger {
	return &Logger{
		logger:    logging.GetGlobalLogger(component),
		metrics:   logging.GetGlobalMetricsCollector(),
		component: component,
	}
}

// NewLoggerWith creates an error logger with an explicit logger and metrics
// collector; either may be nil
func NewLoggerWith(logger *slog.Logger, metrics *logging.MetricsCollector, component string) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		logger:    logger,
		metrics:   metrics,
		component: component,
	}
}

// LogError logs an error with full context and records it by code. The
// returned error is err itself when it is an AppError, otherwise err wrapped
// as an internal error.
func (l *Logger) LogError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	appErr, ok := As(err)
	if !ok {
		appErr = Internal(err)
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("error_code", string(appErr.Code)),
		slog.String("error_message", appErr.Message),
	}
	requestAttrs := logging.ExtractRequestContext(ctx).Attrs()
	for i := 0; i+1 < len(requestAttrs); i += 2 {
		attrs = append(attrs, slog.Any(requestAttrs[i].(string), requestAttrs[i+1]))
	}
	if appErr.Internal != nil {
		attrs = append(attrs,
			slog.String("internal_error", appErr.Internal.Error()),
			slog.String("internal_type", fmt.Sprintf("%T", appErr.Internal)),
		)
	}
	if appErr.Details != nil {
		attrs = append(attrs, slog.Any("error_details", appErr.Details))
	}

	l.metrics.RecordError(string(appErr.Code), l.component)
	l.logger.LogAttrs(ctx, levelFor(appErr.Code), "Application error occurred", attrs...)

	if ok {
		return err
	}
	return appErr
}

// LogPanic logs a recovered panic value and returns a safe error
func (l *Logger) LogPanic(ctx context.Context, recovered any, operation string) error {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("error_code", string(ErrCodePanic)),
		slog.Any("panic_value", recovered),
		slog.Any("stack_trace", captureStack(3)),
	}
	if requestID := logging.GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if streamID := logging.GetStreamID(ctx); streamID != "" {
		attrs = append(attrs, slog.String("stream_id", streamID))
	}

	l.metrics.RecordError(string(ErrCodePanic), l.component)
	l.logger.LogAttrs(ctx, slog.LevelError, "Panic recovered", attrs...)

	return Newf(ErrCodePanic, "panic: %v", recovered)
}

// captureStack captures the current stack trace
func captureStack(skip int) []string {
	const maxStackSize = 10
	stack := make([]string, 0, maxStackSize)

	for i := skip; i < skip+maxStackSize; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		if idx := strings.LastIndex(file, "/custom-gateway-core/"); idx >= 0 {
			file = file[idx+len("/custom-gateway-core/"):]
		}

		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
	}

	return stack
}

// levelFor determines the appropriate log level for an error code
func levelFor(code ErrorCode) slog.Level {
	switch {
	case code == ErrCodeContextCanceled || code == ErrCodeTransportSend:
		return slog.LevelInfo
	case strings.HasPrefix(string(code), "VALIDATION_"):
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
