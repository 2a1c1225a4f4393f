package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/JamesPrial/custom-gateway-core/internal/stream"
	"github.com/JamesPrial/custom-gateway-core/pkg/config"
	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
)

// Server exposes PerformImport over HTTP
type Server struct {
	config      config.ServerSettings
	router      chi.Router
	server      *http.Server
	logger      *slog.Logger
	interceptor *logging.RequestInterceptor
	mu          sync.Mutex
}

// ServerOption configures a Server
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger         *slog.Logger
	metrics        *logging.MetricsCollector
	handlerOptions []connect.HandlerOption
}

// WithServerLogger sets the logger for transport records
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithServerMetrics sets the collector receiving HTTP request metrics
func WithServerMetrics(metrics *logging.MetricsCollector) ServerOption {
	return func(o *serverOptions) {
		o.metrics = metrics
	}
}

// WithHandlerOptions passes options to the connect handler
func WithHandlerOptions(opts ...connect.HandlerOption) ServerOption {
	return func(o *serverOptions) {
		o.handlerOptions = append(o.handlerOptions, opts...)
	}
}

// NewServer creates a server for adapter
func NewServer(cfg config.ServerSettings, adapter *stream.Adapter, opts ...ServerOption) *Server {
	options := &serverOptions{
		logger:  logging.GetGlobalLogger("transport.http"),
		metrics: logging.GetGlobalMetricsCollector(),
	}
	for _, opt := range opts {
		opt(options)
	}

	s := &Server{
		config:      cfg,
		logger:      options.logger,
		interceptor: logging.NewRequestInterceptor(options.logger, options.metrics),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logging.TraceContextMiddleware)
	r.Use(s.interceptor.HTTPMiddleware)

	r.Get("/healthz", s.handleHealth)

	path, handler := NewServiceHandler(adapter, options.handlerOptions...)
	r.Mount(path, handler)

	s.router = r
	return s
}

// Handler returns the root HTTP handler, wrapped for HTTP/2 cleartext when
// enabled
func (s *Server) Handler() http.Handler {
	if !s.config.H2C {
		return s.router
	}
	return h2c.NewHandler(s.router, &http2.Server{})
}

// Start listens on the configured address and serves until ctx is canceled
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	server := s.server
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Gateway server starting",
		slog.String("address", ln.Addr().String()),
		slog.Bool("h2c", s.config.H2C),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.ErrorContext(ctx, "Gateway server error",
				slog.String("error", err.Error()),
			)
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "Gateway server context cancelled")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		return s.Stop(shutdownCtx)
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Stop gracefully shuts down the server, waiting for open streams until ctx
// expires
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	s.logger.InfoContext(ctx, "Gateway server stopping")
	if err := server.Shutdown(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Error during gateway server shutdown",
			slog.String("error", err.Error()),
		)
		// Open streams outlived the grace period
		_ = server.Close()
		return err
	}
	s.logger.InfoContext(ctx, "Gateway server stopped successfully")
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.config.ShutdownTimeout) * time.Second
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}
