package stream

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel/attribute"

	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

// Operation names the PerformImport call in logs, spans and errors
const Operation = "PerformImport"

// State is the lifecycle state of one import stream
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sender accepts the response messages of one stream. connect's
// ServerStream satisfies it.
type Sender interface {
	Send(*wire.PerformImportResponse) error
}

// Adapter serves import calls with a single handler. It holds no per-call
// state and is safe for concurrent use.
type Adapter struct {
	handler insights.Handler
	logger  *slog.Logger
	metrics *logging.MetricsCollector
	masker  *logging.Masker
	errLog  *errors.Logger
}

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the logger used for stream lifecycle records
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the collector receiving stream metrics
func WithMetrics(metrics *logging.MetricsCollector) Option {
	return func(a *Adapter) {
		a.metrics = metrics
	}
}

// WithMasker sets the masker applied to request fields before logging
func WithMasker(masker *logging.Masker) Option {
	return func(a *Adapter) {
		a.masker = masker
	}
}

// NewAdapter creates an adapter for handler. Without options it logs through
// the global logging factory.
func NewAdapter(handler insights.Handler, opts ...Option) *Adapter {
	a := &Adapter{
		handler: handler,
		logger:  logging.GetGlobalLogger("stream"),
		metrics: logging.GetGlobalMetricsCollector(),
		masker:  logging.GetGlobalMasker(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.errLog = errors.NewLoggerWith(a.logger, a.metrics, "stream")
	return a
}

// Serve runs one import: the handler is invoked with fields and every item it
// produces is sent, in order, as one message. It returns nil once the
// sequence is exhausted and the terminal error when production or encoding
// fails. A consumer that goes away (failed Send or canceled context) ends
// the stream early without an error. Context-coded handler errors count as
// abandonment only once ctx itself is done.
func (a *Adapter) Serve(ctx context.Context, fields map[string]any, sender Sender) error {
	streamID := logging.GenerateID()
	ctx = logging.WithStreamID(ctx, streamID)
	ctx = logging.WithOperation(ctx, Operation)
	ctx, span := logging.StartSpan(ctx, Operation,
		attribute.String("stream.id", streamID),
		attribute.Int("request.fields", len(fields)),
	)

	s := &run{
		logger: a.logger.With(logging.ExtractRequestContext(ctx).Attrs()...),
		start:  time.Now(),
	}
	a.metrics.StreamStarted()
	s.logger.InfoContext(ctx, "Import stream started",
		slog.Any("fields", a.masker.MaskFields(fields)),
	)
	s.transition(ctx, StateStreaming)

	var failure error
	outcome := logging.OutcomeCompleted
	for resp, err := range responses(ctx, fields, a.handler, func(recovered any) error {
		return a.errLog.LogPanic(ctx, recovered, Operation)
	}) {
		if err != nil {
			if ctx.Err() != nil && errors.IsAny(err, errors.ErrCodeContextCanceled, errors.ErrCodeContextTimeout) {
				outcome = logging.OutcomeCanceled
				s.logger.InfoContext(ctx, "Import stream abandoned by consumer",
					slog.String("reason", errors.GetMessage(err)),
				)
				break
			}
			failure = err
			break
		}

		if sendErr := sender.Send(resp); sendErr != nil {
			if failure = sendError(ctx, sendErr); failure != nil {
				break
			}
			outcome = logging.OutcomeCanceled
			s.logger.InfoContext(ctx, "Import stream abandoned by consumer",
				slog.String("reason", sendErr.Error()),
				slog.Int("items_sent", s.items),
			)
			break
		}
		s.items++
		a.metrics.RecordItem(resp.Case())
	}

	if failure != nil {
		outcome = logging.OutcomeFailed
		failure = a.errLog.LogError(ctx, failure, Operation)
		s.transition(ctx, StateFailed)
	} else {
		s.transition(ctx, StateCompleted)
	}

	duration := time.Since(s.start)
	a.metrics.StreamFinished(outcome, duration)
	span.SetAttributes(attribute.Int("stream.items", s.items))
	logging.EndSpan(span, failure)

	s.logger.InfoContext(ctx, "Import stream finished",
		slog.String("outcome", outcome),
		slog.Int("items", s.items),
		slog.Duration("duration", duration),
	)
	return failure
}

// sendError classifies a failed Send. A message the transport could not
// marshal fails the stream; any other Send failure means the consumer is gone
// and yields nil.
func sendError(ctx context.Context, err error) error {
	if ctx.Err() != nil || connect.CodeOf(err) != connect.CodeInternal {
		return nil
	}
	return errors.Wrap(err, errors.ErrCodeTransportMarshal, err.Error())
}

// run tracks the lifecycle of one Serve call
type run struct {
	logger *slog.Logger
	state  State
	items  int
	start  time.Time
}

func (r *run) transition(ctx context.Context, to State) {
	r.logger.DebugContext(ctx, "Import stream state changed",
		slog.String("from", r.state.String()),
		slog.String("to", to.String()),
	)
	r.state = to
}
