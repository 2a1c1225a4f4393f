// Package gateway serves an insights.Handler as a custom gateway
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/JamesPrial/custom-gateway-core/internal/stream"
	"github.com/JamesPrial/custom-gateway-core/internal/transport"
	"github.com/JamesPrial/custom-gateway-core/pkg/config"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
)

// DefaultAddress is where Serve listens without WithAddress
const DefaultAddress = ":80"

// Option configures Serve
type Option func(*options)

type options struct {
	address  string
	listener net.Listener
	logger   *slog.Logger
	metrics  *logging.MetricsCollector
}

// WithAddress sets the host:port to listen on
func WithAddress(address string) Option {
	return func(o *options) {
		o.address = address
	}
}

// WithListener serves on an existing listener instead of opening one
func WithListener(ln net.Listener) Option {
	return func(o *options) {
		o.listener = ln
	}
}

// WithLogger sets the logger for stream and transport records
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the collector receiving stream and request metrics
func WithMetrics(metrics *logging.MetricsCollector) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// Serve answers PerformImport calls with handler until ctx is canceled, then
// waits for open streams to finish and returns nil. It returns early if the
// listener cannot be opened or fails.
func Serve(ctx context.Context, handler insights.Handler, opts ...Option) error {
	o := &options{address: DefaultAddress}
	for _, opt := range opts {
		opt(o)
	}

	settings := config.Default().Server
	if o.listener == nil {
		host, port, err := splitAddress(o.address)
		if err != nil {
			return err
		}
		settings.Host = host
		settings.Port = port
	}

	var (
		adapterOpts []stream.Option
		serverOpts  []transport.ServerOption
	)
	if o.logger != nil {
		adapterOpts = append(adapterOpts, stream.WithLogger(o.logger))
		serverOpts = append(serverOpts, transport.WithServerLogger(o.logger))
	}
	if o.metrics != nil {
		adapterOpts = append(adapterOpts, stream.WithMetrics(o.metrics))
		serverOpts = append(serverOpts, transport.WithServerMetrics(o.metrics))
	}

	server := transport.NewServer(settings, stream.NewAdapter(handler, adapterOpts...), serverOpts...)
	if o.listener != nil {
		return server.Serve(ctx, o.listener)
	}
	return server.Start(ctx)
}

func splitAddress(address string) (string, int, error) {
	host, portText, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in address %q", address)
	}
	return host, port, nil
}
