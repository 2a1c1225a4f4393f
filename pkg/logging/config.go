package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// LogOutput represents the destination for logs
type LogOutput string

const (
	LogOutputStdout LogOutput = "stdout"
	LogOutputStderr LogOutput = "stderr"
	LogOutputFile   LogOutput = "file"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether the level is one of the known levels
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// SlogLevel converts the level to its slog equivalent. Unknown levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config represents the complete logging configuration
type Config struct {
	Level  LogLevel  `yaml:"level" json:"level" toml:"level"`
	Format LogFormat `yaml:"format" json:"format" toml:"format"`
	Output LogOutput `yaml:"output" json:"output" toml:"output"`

	FilePath string `yaml:"filePath,omitempty" json:"filePath,omitempty" toml:"filePath"`

	// Component-specific log levels, keyed by component name. A trailing
	// "*" matches every component with that prefix.
	ComponentLevels map[string]LogLevel `yaml:"componentLevels,omitempty" json:"componentLevels,omitempty" toml:"componentLevels"`

	Masking MaskingConfig `yaml:"masking,omitempty" json:"masking,omitempty" toml:"masking"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics"`

	EnableRequestID bool `yaml:"enableRequestId" json:"enableRequestId" toml:"enableRequestId"`
	EnableCaller    bool `yaml:"enableCaller" json:"enableCaller" toml:"enableCaller"`
}

// MaskingConfig defines sensitive data masking rules
type MaskingConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	Fields   []string `yaml:"fields" json:"fields" toml:"fields"`       // Field names to mask
	Patterns []string `yaml:"patterns" json:"patterns" toml:"patterns"` // Regex patterns for value masking

	MaskEmails  bool `yaml:"maskEmails" json:"maskEmails" toml:"maskEmails"`
	MaskAPIKeys bool `yaml:"maskApiKeys" json:"maskApiKeys" toml:"maskApiKeys"`
}

// DefaultConfig returns a default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LogLevelInfo,
		Format: LogFormatJSON,
		Output: LogOutputStdout,

		Masking: MaskingConfig{
			Enabled:     true,
			MaskEmails:  true,
			MaskAPIKeys: true,
		},

		Metrics: DefaultMetricsConfig(),

		EnableRequestID: true,
		EnableCaller:    false,
	}
}

// DevelopmentConfig returns a configuration suitable for development
func DevelopmentConfig() *Config {
	config := DefaultConfig()
	config.Level = LogLevelDebug
	config.Format = LogFormatText
	config.EnableCaller = true
	config.Masking.Enabled = false
	return config
}

// ProductionConfig returns a configuration suitable for production
func ProductionConfig() *Config {
	config := DefaultConfig()
	config.Level = LogLevelInfo
	config.Format = LogFormatJSON
	return config
}

// Validate validates the logging configuration
func (c *Config) Validate() error {
	if !c.Level.IsValid() {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}

	for component, level := range c.ComponentLevels {
		if !level.IsValid() {
			return fmt.Errorf("invalid log level for component %s: %s", component, level)
		}
	}

	switch c.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}

	switch c.Output {
	case LogOutputStdout, LogOutputStderr, LogOutputFile:
	default:
		return fmt.Errorf("invalid log output: %s", c.Output)
	}

	if c.Output == LogOutputFile && strings.TrimSpace(c.FilePath) == "" {
		return fmt.Errorf("filePath required when output is 'file'")
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Namespace) == "" {
		return fmt.Errorf("metrics namespace required when metrics are enabled")
	}

	return nil
}

// GetLevelForComponent returns the log level for a specific component
func (c *Config) GetLevelForComponent(component string) LogLevel {
	if level, ok := c.ComponentLevels[component]; ok {
		return level
	}
	for pattern, level := range c.ComponentLevels {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasPrefix(component, prefix) {
			return level
		}
	}
	return c.Level
}
