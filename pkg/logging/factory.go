package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// DefaultComponent names the level that applies to components without an
// override
const DefaultComponent = "default"

// Factory creates and manages loggers for different components
type Factory struct {
	config  *Config
	loggers map[string]*slog.Logger
	mu      sync.RWMutex

	handler          *LevelHandler
	closer           io.Closer
	masker           *Masker
	metricsCollector *MetricsCollector
}

// NewFactory creates a new logger factory writing to the configured output
func NewFactory(config *Config) (*Factory, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	writer, closer, err := openOutput(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handler: %w", err)
	}

	f := newFactory(config, writer)
	f.closer = closer
	return f, nil
}

// NewFactoryWithWriter creates a factory that writes every record to w,
// ignoring the configured output
func NewFactoryWithWriter(config *Config, w io.Writer) (*Factory, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	return newFactory(config, w), nil
}

func newFactory(config *Config, writer io.Writer) *Factory {
	f := &Factory{
		config:  config,
		loggers: make(map[string]*slog.Logger),
	}

	// Masker must exist before the handler, which uses it in ReplaceAttr
	if config.Masking.Enabled {
		f.masker = NewMasker(config.Masking)
	}

	// The base handler accepts everything; LevelHandler does the filtering
	// so that levels can change at runtime.
	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: config.EnableCaller,
	}
	if f.masker != nil {
		opts.ReplaceAttr = f.masker.MaskAttr
	}

	var base slog.Handler
	switch config.Format {
	case LogFormatText:
		base = slog.NewTextHandler(writer, opts)
	default:
		base = slog.NewJSONHandler(writer, opts)
	}

	f.handler = NewLevelHandler(base, config.Level.SlogLevel())
	for component, level := range config.ComponentLevels {
		f.handler.SetComponentLevel(component, level.SlogLevel())
	}

	if config.Metrics.Enabled {
		f.metricsCollector = NewMetricsCollector(config.Metrics)
	}

	return f
}

func openOutput(config *Config) (io.Writer, io.Closer, error) {
	switch config.Output {
	case LogOutputStderr:
		return os.Stderr, nil, nil
	case LogOutputFile:
		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return file, file, nil
	default:
		return os.Stdout, nil, nil
	}
}

// GetLogger returns a logger for a specific component
func (f *Factory) GetLogger(component string) *slog.Logger {
	f.mu.RLock()
	if logger, exists := f.loggers[component]; exists {
		f.mu.RUnlock()
		return logger
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if logger, exists := f.loggers[component]; exists {
		return logger
	}

	logger := slog.New(f.handler).With(slog.String("component", component))
	f.loggers[component] = logger
	return logger
}

// GetMetricsCollector returns the metrics collector
func (f *Factory) GetMetricsCollector() *MetricsCollector {
	return f.metricsCollector
}

// GetMasker returns the data masker
func (f *Factory) GetMasker() *Masker {
	return f.masker
}

// WithContext returns logger enriched with the request metadata carried by ctx
func (f *Factory) WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = f.GetLogger(DefaultComponent)
	}
	if !f.config.EnableRequestID {
		return logger
	}

	attrs := ExtractRequestContext(ctx).Attrs()
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}

// UpdateLevel dynamically updates the log level for a component. The
// DefaultComponent name (or an empty name) updates the default level.
func (f *Factory) UpdateLevel(component string, level LogLevel) error {
	if !level.IsValid() {
		return fmt.Errorf("invalid log level: %s", level)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if component == "" || component == DefaultComponent {
		f.config.Level = level
		f.handler.SetDefaultLevel(level.SlogLevel())
		return nil
	}

	if f.config.ComponentLevels == nil {
		f.config.ComponentLevels = make(map[string]LogLevel)
	}
	f.config.ComponentLevels[component] = level
	f.handler.SetComponentLevel(component, level.SlogLevel())
	return nil
}

// Levels returns the default level under DefaultComponent together with
// every component override
func (f *Factory) Levels() map[string]LogLevel {
	f.mu.RLock()
	defer f.mu.RUnlock()

	levels := make(map[string]LogLevel, len(f.config.ComponentLevels)+1)
	for component, level := range f.config.ComponentLevels {
		levels[component] = level
	}
	levels[DefaultComponent] = f.config.Level
	return levels
}

// Close closes all resources
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error

	if err := f.metricsCollector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close metrics collector: %w", err))
	}

	if f.closer != nil {
		if err := f.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close log output: %w", err))
		}
		f.closer = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing logger factory: %v", errs)
	}

	return nil
}

// Global factory instance
var (
	globalFactory *Factory
	globalMu      sync.RWMutex
)

// Initialize sets up the global logger factory
func Initialize(config *Config) error {
	factory, err := NewFactory(config)
	if err != nil {
		return err
	}
	return SetGlobalFactory(factory)
}

// SetGlobalFactory replaces the global factory, closing the previous one
func SetGlobalFactory(factory *Factory) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalFactory != nil {
		if err := globalFactory.Close(); err != nil {
			return fmt.Errorf("failed to close existing factory: %w", err)
		}
	}

	globalFactory = factory
	return nil
}

// GetGlobalFactory returns the global factory, or nil before Initialize
func GetGlobalFactory() *Factory {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalFactory
}

// GetGlobalLogger returns a logger from the global factory
func GetGlobalLogger(component string) *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalFactory == nil {
		// Return default logger if not initialized
		return slog.Default().With(slog.String("component", component))
	}

	return globalFactory.GetLogger(component)
}

// GetGlobalMetricsCollector returns the global metrics collector
func GetGlobalMetricsCollector() *MetricsCollector {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalFactory == nil {
		return nil
	}

	return globalFactory.GetMetricsCollector()
}

// GetGlobalMasker returns the global data masker
func GetGlobalMasker() *Masker {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalFactory == nil {
		return nil
	}

	return globalFactory.GetMasker()
}

// UpdateGlobalLevel dynamically updates the log level for a component
func UpdateGlobalLevel(component string, level LogLevel) error {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalFactory == nil {
		return fmt.Errorf("logging not initialized")
	}

	return globalFactory.UpdateLevel(component, level)
}

// GetGlobalLevels returns the levels of the global factory
func GetGlobalLevels() map[string]LogLevel {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalFactory == nil {
		return map[string]LogLevel{DefaultComponent: LogLevelInfo}
	}

	return globalFactory.Levels()
}

// Shutdown gracefully shuts down the global logging factory
func Shutdown() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalFactory == nil {
		return nil
	}

	err := globalFactory.Close()
	globalFactory = nil
	return err
}
