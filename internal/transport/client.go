package transport

import (
	"context"
	"iter"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

// Client calls PerformImport on a gateway
type Client struct {
	performImport *connect.Client[wire.PerformImportRequest, wire.PerformImportResponse]
}

// NewClient creates a client for the gateway at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		performImport: connect.NewClient[wire.PerformImportRequest, wire.PerformImportResponse](
			httpClient,
			strings.TrimRight(baseURL, "/")+PerformImportProcedure,
			append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)...,
		),
	}
}

// PerformImport starts an import with fields and returns the received
// messages. A stream error is yielded once, last, as an *errors.AppError.
func (c *Client) PerformImport(ctx context.Context, fields map[string]any) iter.Seq2[*wire.PerformImportResponse, error] {
	return func(yield func(*wire.PerformImportResponse, error) bool) {
		msg, err := wire.NewPerformImportRequest(fields)
		if err != nil {
			yield(nil, errors.Wrap(err, errors.ErrCodeValidationType, err.Error()))
			return
		}

		req := connect.NewRequest(msg)
		logging.InjectTraceContext(ctx, req.Header())
		if requestID := logging.GetRequestID(ctx); requestID != "" {
			req.Header().Set(logging.RequestIDHeader, requestID)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		st, err := c.performImport.CallServerStream(ctx, req)
		if err != nil {
			yield(nil, FromConnectError(err))
			return
		}
		defer func() {
			// Close drains unread messages unless the call is canceled
			cancel()
			_ = st.Close()
		}()

		for st.Receive() {
			if !yield(st.Msg(), nil) {
				return
			}
		}
		if err := st.Err(); err != nil {
			yield(nil, FromConnectError(err))
		}
	}
}
