// Package admin serves runtime administration endpoints
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JamesPrial/custom-gateway-core/pkg/config"
	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
)

// StatisticsProvider reports item counts of the configured source
type StatisticsProvider interface {
	Statistics(ctx context.Context) (map[string]int, error)
}

// Server provides administrative endpoints for runtime configuration
type Server struct {
	config  config.AdminSettings
	factory *logging.Factory
	stats   StatisticsProvider
	logger  *slog.Logger
	router  chi.Router
}

// NewServer creates a new admin server. A nil factory falls back to the
// global logging factory; a nil stats provider disables /statistics.
func NewServer(cfg config.AdminSettings, factory *logging.Factory, stats StatisticsProvider) *Server {
	a := &Server{
		config:  cfg,
		factory: factory,
		stats:   stats,
		logger:  logging.GetGlobalLogger("admin"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", a.handleHealth)
	r.Get("/log-level", a.getLogLevel)
	r.Post("/log-level", a.setLogLevel)
	r.Get("/log-levels", a.handleLogLevels)
	r.Get("/metrics", a.handleMetrics)
	r.Get("/statistics", a.handleStatistics)
	a.router = r
	return a
}

// ServeHTTP implements http.Handler
func (a *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// LogLevelRequest represents a log level change request
type LogLevelRequest struct {
	Component string `json:"component"`
	Level     string `json:"level"`
}

// LogLevelResponse represents a log level response
type LogLevelResponse struct {
	Component string `json:"component"`
	Level     string `json:"level"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
}

func (a *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"server": "custom-gateway-core",
	})
}

// getLogLevel returns the effective level of one component
func (a *Server) getLogLevel(w http.ResponseWriter, r *http.Request) {
	component := r.URL.Query().Get("component")
	if component == "" {
		component = logging.DefaultComponent
	}

	levels := a.levels()
	level, ok := levels[component]
	if !ok {
		level = levels[logging.DefaultComponent]
	}

	writeJSON(w, http.StatusOK, LogLevelResponse{
		Component: component,
		Level:     string(level),
		Success:   true,
	})
}

// setLogLevel updates log level for a component
func (a *Server) setLogLevel(w http.ResponseWriter, r *http.Request) {
	var req LogLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, LogLevelResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid JSON: %v", err),
		})
		return
	}

	level := logging.LogLevel(strings.ToLower(req.Level))
	if !level.IsValid() {
		writeJSON(w, http.StatusBadRequest, LogLevelResponse{
			Component: req.Component,
			Success:   false,
			Message:   fmt.Sprintf("Invalid log level '%s'. Must be one of: debug, info, warn, error", req.Level),
		})
		return
	}

	component := req.Component
	if component == "" {
		component = logging.DefaultComponent
	}

	if err := a.updateLevel(component, level); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, LogLevelResponse{
			Component: component,
			Success:   false,
			Message:   err.Error(),
		})
		return
	}

	a.logger.InfoContext(r.Context(), "Log level updated",
		slog.String("component", component),
		slog.String("level", string(level)))

	writeJSON(w, http.StatusOK, LogLevelResponse{
		Component: component,
		Level:     string(level),
		Success:   true,
		Message:   fmt.Sprintf("Log level for component '%s' updated to '%s'", component, level),
	})
}

func (a *Server) handleLogLevels(w http.ResponseWriter, r *http.Request) {
	levels := make(map[string]string)
	for component, level := range a.levels() {
		levels[component] = string(level)
	}
	writeJSON(w, http.StatusOK, map[string]any{"levels": levels})
}

func (a *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := a.metrics()
	if metrics == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "metrics not enabled"})
		return
	}
	metrics.GetHTTPHandler().ServeHTTP(w, r)
}

func (a *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if a.stats == nil {
		writeError(w, errors.NotFound("item source"))
		return
	}

	stats, err := a.stats.Statistics(r.Context())
	if err != nil {
		level := slog.LevelWarn
		if errors.IsServerError(err) {
			level = slog.LevelError
		}
		a.logger.Log(r.Context(), level, "Failed to read source statistics",
			slog.String("error", err.Error()),
			slog.String("cause", errors.GetInternal(err).Error()),
		)
		writeError(w, err)
		return
	}

	types := make([]string, 0)
	for key := range stats {
		if name, ok := strings.CutPrefix(key, "type_"); ok {
			types = append(types, name)
		}
	}
	sort.Strings(types)

	writeJSON(w, http.StatusOK, map[string]any{
		"statistics":  stats,
		"entityTypes": types,
	})
}

func (a *Server) levels() map[string]logging.LogLevel {
	if a.factory != nil {
		return a.factory.Levels()
	}
	return logging.GetGlobalLevels()
}

func (a *Server) updateLevel(component string, level logging.LogLevel) error {
	if a.factory != nil {
		return a.factory.UpdateLevel(component, level)
	}
	return logging.UpdateGlobalLevel(component, level)
}

func (a *Server) metrics() *logging.MetricsCollector {
	if a.factory != nil {
		return a.factory.GetMetricsCollector()
	}
	return logging.GetGlobalMetricsCollector()
}

// Start serves the admin endpoints until ctx is canceled
func (a *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Address())
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Starting admin server", slog.String("address", ln.Addr().String()))

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

func writeError(w http.ResponseWriter, err error) {
	httpErr := errors.ToHTTPError(err)
	writeJSON(w, httpErr.Status, map[string]any{"error": httpErr})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
