package transport

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/JamesPrial/custom-gateway-core/internal/codec"
	"github.com/JamesPrial/custom-gateway-core/internal/stream"
	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

const (
	// ServiceName is the fully-qualified name of the custom gateway service
	ServiceName = "elimity.insights.customgateway.v1alpha1.Service"

	// PerformImportProcedure is the path of the PerformImport call
	PerformImportProcedure = "/" + ServiceName + "/PerformImport"
)

type service struct {
	adapter *stream.Adapter
}

func (s *service) performImport(
	ctx context.Context,
	req *connect.Request[wire.PerformImportRequest],
	st *connect.ServerStream[wire.PerformImportResponse],
) error {
	fields := codec.DecodeFields(req.Msg.Fields)
	return ToConnectError(s.adapter.Serve(ctx, fields, st))
}

// NewServiceHandler builds the HTTP handler serving PerformImport through
// adapter. It returns the path to mount the handler on. Requests using the
// binary protobuf codec are answered with an unimplemented error.
func NewServiceHandler(adapter *stream.Adapter, opts ...connect.HandlerOption) (string, http.Handler) {
	svc := &service{adapter: adapter}
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	performImport := connect.NewServerStreamHandler(PerformImportProcedure, svc.performImport, opts...)
	errorWriter := connect.NewErrorWriter(opts...)

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path != PerformImportProcedure:
			http.NotFound(w, r)
		case isBinaryProto(r.Header.Get("Content-Type")):
			_ = errorWriter.Write(w, r, connect.NewError(connect.CodeUnimplemented,
				stderrors.New("binary protobuf is not supported; use the JSON codec")))
		default:
			performImport.ServeHTTP(w, r)
		}
	})
}

// isBinaryProto reports whether contentType selects the protobuf codec in
// any of the Connect, gRPC and gRPC-Web protocols
func isBinaryProto(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/proto", "application/connect+proto",
		"application/grpc", "application/grpc+proto",
		"application/grpc-web", "application/grpc-web+proto":
		return true
	default:
		return false
	}
}
