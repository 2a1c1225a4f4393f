package logging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys for logging metadata
type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyStreamID  contextKey = "stream_id"
	contextKeyOperation contextKey = "operation"
	contextKeyComponent contextKey = "component"
	contextKeyStartTime contextKey = "start_time"
)

// RequestContext holds request-scoped metadata
type RequestContext struct {
	RequestID string
	TraceID   string
	StreamID  string
	Operation string
	Component string
	StartTime time.Time
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, contextKeyRequestID)
}

// WithStreamID adds the identifier of an import stream to the context
func WithStreamID(ctx context.Context, streamID string) context.Context {
	return context.WithValue(ctx, contextKeyStreamID, streamID)
}

// GetStreamID retrieves the stream ID from context
func GetStreamID(ctx context.Context) string {
	return stringValue(ctx, contextKeyStreamID)
}

// WithOperation adds an operation name to the context
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, contextKeyOperation, operation)
}

// GetOperation retrieves the operation from context
func GetOperation(ctx context.Context) string {
	return stringValue(ctx, contextKeyOperation)
}

// WithComponent adds a component name to the context
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, contextKeyComponent, component)
}

// GetComponent retrieves the component from context
func GetComponent(ctx context.Context) string {
	return stringValue(ctx, contextKeyComponent)
}

// WithStartTime adds the start time to the context
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, contextKeyStartTime, startTime)
}

// GetStartTime retrieves the start time from context
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyStartTime).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// GetDuration calculates the duration since start time
func GetDuration(ctx context.Context) time.Duration {
	startTime := GetStartTime(ctx)
	if startTime.IsZero() {
		return 0
	}
	return time.Since(startTime)
}

// NewRequestContext creates a new request context with a generated request ID
// (unless one is present), the operation and the current time
func NewRequestContext(ctx context.Context, operation string) context.Context {
	if GetRequestID(ctx) == "" {
		ctx = WithRequestID(ctx, GenerateID())
	}
	if operation != "" {
		ctx = WithOperation(ctx, operation)
	}
	return WithStartTime(ctx, time.Now())
}

// ExtractRequestContext extracts all request context into a struct
func ExtractRequestContext(ctx context.Context) *RequestContext {
	return &RequestContext{
		RequestID: GetRequestID(ctx),
		TraceID:   GetTraceID(ctx),
		StreamID:  GetStreamID(ctx),
		Operation: GetOperation(ctx),
		Component: GetComponent(ctx),
		StartTime: GetStartTime(ctx),
	}
}

// Attrs returns the non-empty identifiers as log attributes
func (rc *RequestContext) Attrs() []any {
	attrs := make([]any, 0, 8)
	if rc.RequestID != "" {
		attrs = append(attrs, "request_id", rc.RequestID)
	}
	if rc.TraceID != "" {
		attrs = append(attrs, "trace_id", rc.TraceID)
	}
	if rc.StreamID != "" {
		attrs = append(attrs, "stream_id", rc.StreamID)
	}
	if rc.Operation != "" {
		attrs = append(attrs, "operation", rc.Operation)
	}
	return attrs
}

// GenerateID generates a random identifier for requests and streams
func GenerateID() string {
	return uuid.NewString()
}

func stringValue(ctx context.Context, key contextKey) string {
	if str, ok := ctx.Value(key).(string); ok {
		return str
	}
	return ""
}
