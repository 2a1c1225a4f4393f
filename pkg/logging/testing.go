package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// TestLogger captures JSON log records for testing and verification
type TestLogger struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

// TestLogEntry represents a captured log entry
type TestLogEntry struct {
	Level     string
	Message   string
	Component string
	RequestID string
	StreamID  string
	Attrs     map[string]any
}

// NewTestLogger creates a new test logger that captures log output
func NewTestLogger() *TestLogger {
	return &TestLogger{}
}

// Write implements io.Writer
func (tl *TestLogger) Write(p []byte) (int, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buffer.Write(p)
}

// GetLogger returns a debug-level slog.Logger that writes to this test logger
func (tl *TestLogger) GetLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(tl, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// NewTestFactory creates a factory whose loggers write to a TestLogger
func NewTestFactory(config *Config) (*Factory, *TestLogger, error) {
	if config == nil {
		config = DevelopmentConfig()
		config.Format = LogFormatJSON
		config.Metrics.Enabled = false
	}
	testLogger := NewTestLogger()
	factory, err := NewFactoryWithWriter(config, testLogger)
	if err != nil {
		return nil, nil, err
	}
	return factory, testLogger, nil
}

// GetEntries returns all captured log entries
func (tl *TestLogger) GetEntries() []TestLogEntry {
	tl.mu.Lock()
	content := tl.buffer.String()
	tl.mu.Unlock()

	var entries []TestLogEntry
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if line == "" {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}

		entry := TestLogEntry{Attrs: make(map[string]any)}
		for key, value := range raw {
			str, _ := value.(string)
			switch key {
			case slog.LevelKey:
				entry.Level = str
			case slog.MessageKey:
				entry.Message = str
			case "component":
				entry.Component = str
			case "request_id":
				entry.RequestID = str
			case "stream_id":
				entry.StreamID = str
			case slog.TimeKey:
			default:
				entry.Attrs[key] = value
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// GetEntriesWithLevel returns log entries matching the specified level
func (tl *TestLogger) GetEntriesWithLevel(level string) []TestLogEntry {
	var filtered []TestLogEntry
	for _, entry := range tl.GetEntries() {
		if strings.EqualFold(entry.Level, level) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// GetEntriesWithMessage returns log entries containing the specified message
func (tl *TestLogger) GetEntriesWithMessage(message string) []TestLogEntry {
	var filtered []TestLogEntry
	for _, entry := range tl.GetEntries() {
		if strings.Contains(entry.Message, message) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// Clear discards every captured entry
func (tl *TestLogger) Clear() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.buffer.Reset()
}

// Count returns the number of captured entries
func (tl *TestLogger) Count() int {
	return len(tl.GetEntries())
}

// AssertLogged fails the test unless an entry with the level and message was captured
func (tl *TestLogger) AssertLogged(t *testing.T, level, message string) {
	t.Helper()
	for _, entry := range tl.GetEntriesWithMessage(message) {
		if strings.EqualFold(entry.Level, level) {
			return
		}
	}
	t.Errorf("expected %s log containing %q, got %d entries", level, message, tl.Count())
}

// AssertNotLogged fails the test if an entry with the level and message was captured
func (tl *TestLogger) AssertNotLogged(t *testing.T, level, message string) {
	t.Helper()
	for _, entry := range tl.GetEntriesWithMessage(message) {
		if strings.EqualFold(entry.Level, level) {
			t.Errorf("unexpected %s log containing %q", level, message)
			return
		}
	}
}
