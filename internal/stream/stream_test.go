package stream

import (
	"context"
	stderrors "errors"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

// recordingSender collects sent messages and fails from the failAt-th send on,
// with err or a broken pipe. onFail runs before a failing Send returns.
type recordingSender struct {
	mu     sync.Mutex
	sent   []*wire.PerformImportResponse
	failAt int
	err    error
	onFail func()
}

func (s *recordingSender) Send(resp *wire.PerformImportResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.sent)+1 >= s.failAt {
		if s.onFail != nil {
			s.onFail()
		}
		if s.err != nil {
			return s.err
		}
		return stderrors.New("broken pipe")
	}
	s.sent = append(s.sent, resp)
	return nil
}

func (s *recordingSender) cases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cases := make([]string, len(s.sent))
	for i, resp := range s.sent {
		cases[i] = resp.Case()
	}
	return cases
}

// countingHandler yields n entities and records how many were pulled and
// whether its cleanup ran
type countingHandler struct {
	n       int
	failAt  int
	pulled  int
	cleaned bool
}

func (h *countingHandler) Handle(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
	return func(yield func(insights.Item, error) bool) {
		defer func() { h.cleaned = true }()
		for i := 1; i <= h.n; i++ {
			h.pulled++
			if i == h.failAt {
				yield(nil, fmt.Errorf("source unavailable at item %d", i))
				return
			}
			if !yield(insights.Entity{ID: fmt.Sprintf("e%d", i), Type: "person"}, nil) {
				return
			}
		}
	}
}

func collect(t *testing.T, seq iter.Seq2[*wire.PerformImportResponse, error]) ([]*wire.PerformImportResponse, []error) {
	t.Helper()
	var (
		responses []*wire.PerformImportResponse
		errs      []error
	)
	for resp, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		responses = append(responses, resp)
	}
	return responses, errs
}

func newTestAdapter(handler insights.Handler) (*Adapter, *logging.TestLogger, *logging.MetricsCollector) {
	testLogger := logging.NewTestLogger()
	config := logging.DefaultMetricsConfig()
	config.EnableRuntime = false
	metrics := logging.NewMetricsCollector(config)
	adapter := NewAdapter(handler,
		WithLogger(testLogger.GetLogger()),
		WithMetrics(metrics),
		WithMasker(logging.NewMasker(logging.MaskingConfig{Enabled: true})),
	)
	return adapter, testLogger, metrics
}

func metricValue(t *testing.T, registry *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					if metric.GetCounter() != nil {
						return metric.GetCounter().GetValue()
					}
					return float64(metric.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	return 0
}

func TestResponses_Order(t *testing.T) {
	handler := &countingHandler{n: 5}

	responses, errs := collect(t, Responses(context.Background(), nil, handler.Handle))

	assert.Empty(t, errs)
	require.Len(t, responses, 5)
	for i, resp := range responses {
		assert.Equal(t, fmt.Sprintf("e%d", i+1), resp.Value.(*wire.Entity).ID)
	}
	assert.True(t, handler.cleaned)
}

func TestResponses_FailureAtK(t *testing.T) {
	for k := 1; k <= 4; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			handler := &countingHandler{n: 4, failAt: k}

			responses, errs := collect(t, Responses(context.Background(), nil, handler.Handle))

			assert.Len(t, responses, k-1)
			require.Len(t, errs, 1)
			assert.True(t, errors.Is(errs[0], errors.ErrCodeHandlerFailed))
			assert.Equal(t, fmt.Sprintf("source unavailable at item %d", k), errs[0].Error())
			assert.True(t, handler.cleaned)
		})
	}
}

func TestResponses_ConcreteScenario(t *testing.T) {
	handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
		return insights.Items(
			insights.Entity{ID: "e1", Type: "person", Name: "Alice", Assignments: insights.Assignments{}},
			insights.Info("import started"),
			insights.Relationship{
				FromEntityID:   "e1",
				FromEntityType: "person",
				ToEntityID:     "e2",
				ToEntityType:   "person",
				Assignments:    insights.Assignments{"since": insights.NewDate(2020, time.January, 1)},
			},
		)
	}

	responses, errs := collect(t, Responses(context.Background(), map[string]any{}, handler))
	require.Empty(t, errs)
	require.Len(t, responses, 3)

	entity := responses[0].Value.(*wire.Entity)
	assert.Equal(t, "e1", entity.ID)
	assert.Equal(t, "Alice", entity.Name)
	assert.Empty(t, entity.Assignments)

	log := responses[1].Value.(*wire.Log)
	assert.Equal(t, wire.CaseInfo, log.Level.Case())
	assert.Equal(t, "import started", log.Message)

	rel := responses[2].Value.(*wire.Relationship)
	require.Len(t, rel.Assignments, 1)
	since := rel.Assignments[0].Value.(*wire.DateValue)
	assert.True(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC).Equal(since.Value.AsTime()))
}

func TestResponses_FailureAfterOneEntity(t *testing.T) {
	handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
		return insights.Fail(stderrors.New("credentials rejected"), insights.Entity{ID: "e1", Type: "person"})
	}

	responses, errs := collect(t, Responses(context.Background(), nil, handler))

	assert.Len(t, responses, 1)
	require.Len(t, errs, 1)
	assert.Equal(t, "credentials rejected", errs[0].Error())
}

func TestResponses_CodedHandlerErrorKept(t *testing.T) {
	handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
		return insights.Fail(errors.ValidationRequired("url"))
	}

	_, errs := collect(t, Responses(context.Background(), nil, handler))

	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], errors.ErrCodeValidationRequired))
}

func TestResponses_WrappedCodedErrorKeepsMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode errors.ErrorCode
		wantMsg  string
	}{
		{
			name:     "fmt wrapped",
			err:      fmt.Errorf("loading users from ldap: %w", errors.New(errors.ErrCodeSourceQuery, "query failed")),
			wantCode: errors.ErrCodeSourceQuery,
			wantMsg:  "loading users from ldap: query failed",
		},
		{
			name:     "top level coded",
			err:      errors.Wrap(stderrors.New("dial tcp: refused"), errors.ErrCodeSourceConnection, "directory unreachable"),
			wantCode: errors.ErrCodeSourceConnection,
			wantMsg:  "directory unreachable",
		},
		{
			name:     "plain",
			err:      stderrors.New("no such host"),
			wantCode: errors.ErrCodeHandlerFailed,
			wantMsg:  "no such host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
				return insights.Fail(tt.err)
			}

			_, errs := collect(t, Responses(context.Background(), nil, handler))

			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantMsg, errs[0].Error())
			assert.Equal(t, tt.wantMsg, errors.GetMessage(errs[0]))
			assert.Equal(t, tt.wantCode, errors.GetCode(errs[0]))
		})
	}
}

func TestResponses_OutOfRangeDate(t *testing.T) {
	handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
		return insights.Items(
			insights.Entity{ID: "e1", Type: "person"},
			insights.Entity{ID: "e2", Type: "person", Assignments: insights.Assignments{"born": insights.Date{}}},
			insights.Entity{ID: "e3", Type: "person"},
		)
	}

	responses, errs := collect(t, Responses(context.Background(), nil, handler))

	assert.Len(t, responses, 1)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], errors.ErrCodeInvalidItem))
}

func TestResponses_EncodingViolation(t *testing.T) {
	handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
		return insights.Items(
			insights.Info("first"),
			insights.Entity{ID: "bad", Assignments: insights.Assignments{"x": nil}},
			insights.Info("never sent"),
		)
	}

	responses, errs := collect(t, Responses(context.Background(), nil, handler))

	assert.Len(t, responses, 1)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], errors.ErrCodeInvalidItem))
}

func TestResponses_EarlyStopRunsCleanup(t *testing.T) {
	handler := &countingHandler{n: 10}

	seen := 0
	for _, err := range Responses(context.Background(), nil, handler.Handle) {
		require.NoError(t, err)
		seen++
		if seen == 3 {
			break
		}
	}

	assert.Equal(t, 3, handler.pulled)
	assert.True(t, handler.cleaned)
}

func TestResponses_Panic(t *testing.T) {
	handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
		return func(yield func(insights.Item, error) bool) {
			if !yield(insights.Info("before"), nil) {
				return
			}
			var m map[string]int
			m["boom"]++
		}
	}

	responses, errs := collect(t, Responses(context.Background(), nil, handler))

	assert.Len(t, responses, 1)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], errors.ErrCodePanic))
}

func TestResponses_PanicInConsumerPropagates(t *testing.T) {
	handler := &countingHandler{n: 3}

	assert.PanicsWithValue(t, "consumer", func() {
		for range Responses(context.Background(), nil, handler.Handle) {
			panic("consumer")
		}
	})
	assert.True(t, handler.cleaned)
}

func TestResponses_NilHandlerAndSequence(t *testing.T) {
	_, errs := collect(t, Responses(context.Background(), nil, nil))
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], errors.ErrCodeHandlerFailed))

	empty := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] { return nil }
	responses, errs := collect(t, Responses(context.Background(), nil, empty))
	assert.Empty(t, responses)
	assert.Empty(t, errs)
}

func TestResponses_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
		return func(yield func(insights.Item, error) bool) {
			for i := 0; ; i++ {
				if i == 2 {
					cancel()
				}
				if !yield(insights.Info(fmt.Sprintf("tick %d", i)), nil) {
					return
				}
			}
		}
	}

	responses, errs := collect(t, Responses(ctx, nil, handler))

	assert.Len(t, responses, 2)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], errors.ErrCodeContextCanceled))
}

func TestResponses_FieldsPassedThrough(t *testing.T) {
	var got map[string]any
	calls := 0
	handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
		calls++
		got = fields
		return insights.Items()
	}

	fields := map[string]any{"url": "https://example.com", "limit": float64(3)}
	collect(t, Responses(context.Background(), fields, handler))

	assert.Equal(t, 1, calls)
	assert.Equal(t, fields, got)
}

func TestAdapter_Serve(t *testing.T) {
	handler := &countingHandler{n: 3}
	adapter, testLogger, metrics := newTestAdapter(handler.Handle)
	sender := &recordingSender{}

	err := adapter.Serve(context.Background(), map[string]any{"password": "hunter2"}, sender)

	require.NoError(t, err)
	assert.Equal(t, []string{wire.CaseEntity, wire.CaseEntity, wire.CaseEntity}, sender.cases())

	started := testLogger.GetEntriesWithMessage("Import stream started")
	require.Len(t, started, 1)
	assert.NotEmpty(t, started[0].StreamID)
	assert.NotContains(t, fmt.Sprint(started[0].Attrs["fields"]), "hunter2")

	finished := testLogger.GetEntriesWithMessage("Import stream finished")
	require.Len(t, finished, 1)
	assert.Equal(t, logging.OutcomeCompleted, finished[0].Attrs["outcome"])
	assert.Equal(t, float64(3), finished[0].Attrs["items"])

	var transitions []string
	for _, entry := range testLogger.GetEntriesWithMessage("Import stream state changed") {
		transitions = append(transitions, fmt.Sprintf("%v->%v", entry.Attrs["from"], entry.Attrs["to"]))
	}
	assert.Equal(t, []string{"idle->streaming", "streaming->completed"}, transitions)

	registry := metrics.Registry()
	assert.Equal(t, float64(3), metricValue(t, registry, "custom_gateway_core_import_items_emitted_total", "case", wire.CaseEntity))
	assert.Equal(t, float64(1), metricValue(t, registry, "custom_gateway_core_import_streams_finished_total", "outcome", logging.OutcomeCompleted))
}

func TestAdapter_ServeHandlerFailure(t *testing.T) {
	handler := &countingHandler{n: 5, failAt: 3}
	adapter, testLogger, metrics := newTestAdapter(handler.Handle)
	sender := &recordingSender{}

	err := adapter.Serve(context.Background(), nil, sender)

	require.Error(t, err)
	assert.Equal(t, "source unavailable at item 3", err.Error())
	assert.True(t, errors.Is(err, errors.ErrCodeHandlerFailed))
	assert.Len(t, sender.cases(), 2)
	assert.True(t, handler.cleaned)

	testLogger.AssertLogged(t, "ERROR", "Application error occurred")
	assert.Equal(t, float64(1), metricValue(t, metrics.Registry(), "custom_gateway_core_errors_total", "code", string(errors.ErrCodeHandlerFailed)))
	assert.Equal(t, float64(1), metricValue(t, metrics.Registry(), "custom_gateway_core_import_streams_finished_total", "outcome", logging.OutcomeFailed))
}

func TestAdapter_ServeSendFailureStopsPulling(t *testing.T) {
	handler := &countingHandler{n: 100}
	adapter, testLogger, metrics := newTestAdapter(handler.Handle)
	sender := &recordingSender{failAt: 3}

	err := adapter.Serve(context.Background(), nil, sender)

	require.NoError(t, err)
	assert.Len(t, sender.cases(), 2)
	assert.Equal(t, 3, handler.pulled)
	assert.True(t, handler.cleaned)
	testLogger.AssertLogged(t, "INFO", "Import stream abandoned by consumer")
	assert.Equal(t, float64(1), metricValue(t, metrics.Registry(), "custom_gateway_core_import_streams_finished_total", "outcome", logging.OutcomeCanceled))
}

func TestAdapter_ServeContextCodedFailureOnLiveCall(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"canceled", errors.Wrap(context.Canceled, errors.ErrCodeContextCanceled, "upstream canceled"), errors.ErrCodeContextCanceled},
		{"timeout", errors.Wrap(context.DeadlineExceeded, errors.ErrCodeContextTimeout, "upstream timed out"), errors.ErrCodeContextTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
				return insights.Fail(tt.err, insights.Info("x"))
			}
			adapter, testLogger, metrics := newTestAdapter(handler)
			sender := &recordingSender{}

			err := adapter.Serve(context.Background(), nil, sender)

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code))
			assert.Equal(t, []string{wire.CaseLog}, sender.cases())
			assert.Empty(t, testLogger.GetEntriesWithMessage("Import stream abandoned by consumer"))
			assert.Equal(t, float64(1), metricValue(t, metrics.Registry(), "custom_gateway_core_import_streams_finished_total", "outcome", logging.OutcomeFailed))
		})
	}
}

func TestAdapter_ServeSendErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		cancel      bool
		wantFailure bool
	}{
		{"marshal failure", connect.NewError(connect.CodeInternal, stderrors.New("marshal message: invalid timestamp")), false, true},
		{"write failure", connect.NewError(connect.CodeUnknown, stderrors.New("write envelope: broken pipe")), false, false},
		{"plain error", stderrors.New("broken pipe"), false, false},
		{"internal after cancel", connect.NewError(connect.CodeInternal, stderrors.New("marshal message")), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			handler := &countingHandler{n: 10}
			adapter, _, metrics := newTestAdapter(handler.Handle)
			sender := &recordingSender{failAt: 2, err: tt.err}
			if tt.cancel {
				sender.onFail = cancel
			}

			err := adapter.Serve(ctx, nil, sender)

			assert.Len(t, sender.cases(), 1)
			assert.True(t, handler.cleaned)
			if tt.wantFailure {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrCodeTransportMarshal))
				assert.Equal(t, float64(1), metricValue(t, metrics.Registry(), "custom_gateway_core_import_streams_finished_total", "outcome", logging.OutcomeFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, float64(1), metricValue(t, metrics.Registry(), "custom_gateway_core_import_streams_finished_total", "outcome", logging.OutcomeCanceled))
		})
	}
}

func TestAdapter_ServeCanceledContext(t *testing.T) {
	handler := &countingHandler{n: 10}
	adapter, _, _ := newTestAdapter(handler.Handle)
	sender := &recordingSender{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := adapter.Serve(ctx, nil, sender)

	require.NoError(t, err)
	assert.Empty(t, sender.cases())
	assert.Equal(t, 1, handler.pulled)
	assert.True(t, handler.cleaned)
}

func TestAdapter_ServePanic(t *testing.T) {
	handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
		panic("handler exploded")
	}
	adapter, testLogger, _ := newTestAdapter(handler)

	err := adapter.Serve(context.Background(), nil, &recordingSender{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePanic))
	assert.Contains(t, err.Error(), "handler exploded")
	testLogger.AssertLogged(t, "ERROR", "Panic recovered")
}

func TestAdapter_ConcurrentCallsAreIndependent(t *testing.T) {
	handler := func(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
		prefix := fields["prefix"].(string)
		return func(yield func(insights.Item, error) bool) {
			for i := 0; i < 50; i++ {
				if !yield(insights.Entity{ID: fmt.Sprintf("%s-%d", prefix, i), Type: prefix}, nil) {
					return
				}
			}
		}
	}
	adapter, _, _ := newTestAdapter(handler)

	const calls = 8
	senders := make([]*recordingSender, calls)
	var wg sync.WaitGroup
	for i := range calls {
		senders[i] = &recordingSender{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := adapter.Serve(context.Background(), map[string]any{"prefix": fmt.Sprintf("call%d", i)}, senders[i])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i, sender := range senders {
		prefix := fmt.Sprintf("call%d", i)
		require.Len(t, sender.sent, 50)
		for j, resp := range sender.sent {
			assert.Equal(t, fmt.Sprintf("%s-%d", prefix, j), resp.Value.(*wire.Entity).ID)
		}
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
