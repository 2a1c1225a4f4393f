package logging

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"
)

// RequestIDHeader carries the request ID in and out of HTTP calls
const RequestIDHeader = "X-Request-Id"

// RequestInterceptor provides request lifecycle logging capabilities
type RequestInterceptor struct {
	logger  *slog.Logger
	metrics *MetricsCollector
}

// NewRequestInterceptor creates a new request interceptor with the specified logger
func NewRequestInterceptor(logger *slog.Logger, metrics *MetricsCollector) *RequestInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestInterceptor{
		logger:  logger,
		metrics: metrics,
	}
}

// HTTPMiddleware returns an HTTP middleware that logs request lifecycle. The
// wrapped writer keeps http.Flusher working so streaming responses are not
// buffered.
func (r *RequestInterceptor) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		startTime := time.Now()

		ctx := req.Context()
		if requestID := req.Header.Get(RequestIDHeader); requestID != "" {
			ctx = WithRequestID(ctx, requestID)
		}
		ctx = NewRequestContext(ctx, fmt.Sprintf("%s %s", req.Method, req.URL.Path))
		req = req.WithContext(ctx)

		requestID := GetRequestID(ctx)
		w.Header().Set(RequestIDHeader, requestID)

		r.logger.DebugContext(ctx, "HTTP request started",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("remote_addr", req.RemoteAddr),
			slog.String("user_agent", req.UserAgent()),
			slog.String("protocol", req.Proto),
			slog.String("request_id", requestID),
		)

		wrappedWriter := newResponseWriter(w)

		defer func() {
			if recovered := recover(); recovered != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)

				r.logger.ErrorContext(ctx, "HTTP request panicked",
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
					slog.String("request_id", requestID),
					slog.Duration("duration", time.Since(startTime)),
					slog.Any("panic", recovered),
					slog.String("stack_trace", string(buf[:n])),
				)
				r.metrics.RecordError("PANIC_RECOVERED", "http")

				if !wrappedWriter.headerWritten {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}
		}()

		next.ServeHTTP(wrappedWriter, req)

		duration := time.Since(startTime)
		statusCode := wrappedWriter.statusCode
		r.metrics.RecordRequest(req.Method, req.URL.Path, statusCode, duration)

		if statusCode >= 400 {
			r.logger.WarnContext(ctx, "HTTP request completed with error",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("request_id", requestID),
				slog.Int("status_code", statusCode),
				slog.Duration("duration", duration),
			)
			return
		}
		r.logger.InfoContext(ctx, "HTTP request completed successfully",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("request_id", requestID),
			slog.Int("status_code", statusCode),
			slog.Int64("bytes_written", wrappedWriter.bytesWritten),
			slog.Duration("duration", duration),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	bytesWritten  int64
	headerWritten bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.headerWritten {
		rw.statusCode = statusCode
		rw.headerWritten = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.headerWritten = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	rw.headerWritten = true
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
