package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		expectErr bool
	}{
		{name: "nil config uses default", config: nil},
		{name: "valid default config", config: DefaultConfig()},
		{name: "valid development config", config: DevelopmentConfig()},
		{name: "invalid config", config: &Config{Level: "nope"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := NewFactory(tt.config)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer factory.Close()

			if factory.GetLogger("test") == nil {
				t.Error("expected logger")
			}
		})
	}
}

func TestNewFactory_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")

	config := DefaultConfig()
	config.Output = LogOutputFile
	config.FilePath = path
	config.Metrics.Enabled = false

	factory, err := NewFactory(config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	factory.GetLogger("file").Info("written to file")
	if err := factory.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(content), "written to file") {
		t.Errorf("log file missing record: %s", content)
	}
}

func TestFactory_GetLogger_Cached(t *testing.T) {
	factory, _, err := NewTestFactory(nil)
	if err != nil {
		t.Fatal(err)
	}

	if factory.GetLogger("stream") != factory.GetLogger("stream") {
		t.Error("expected the same logger for the same component")
	}
}

func TestFactory_ComponentAttribute(t *testing.T) {
	factory, testLogger, err := NewTestFactory(nil)
	if err != nil {
		t.Fatal(err)
	}

	factory.GetLogger("replay").Info("hello")

	entries := testLogger.GetEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Component != "replay" {
		t.Errorf("expected component replay, got %q", entries[0].Component)
	}
}

func TestFactory_UpdateLevel(t *testing.T) {
	config := DefaultConfig()
	config.Metrics.Enabled = false
	factory, testLogger, err := NewTestFactory(config)
	if err != nil {
		t.Fatal(err)
	}

	logger := factory.GetLogger("stream")
	logger.Debug("hidden")
	testLogger.AssertNotLogged(t, "DEBUG", "hidden")

	if err := factory.UpdateLevel("stream", LogLevelDebug); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	logger.Debug("visible")
	testLogger.AssertLogged(t, "DEBUG", "visible")

	factory.GetLogger("other").Debug("still hidden")
	testLogger.AssertNotLogged(t, "DEBUG", "still hidden")

	if err := factory.UpdateLevel(DefaultComponent, LogLevelError); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	factory.GetLogger("other").Warn("suppressed")
	testLogger.AssertNotLogged(t, "WARN", "suppressed")

	levels := factory.Levels()
	if levels["stream"] != LogLevelDebug || levels[DefaultComponent] != LogLevelError {
		t.Errorf("unexpected levels %v", levels)
	}

	if err := factory.UpdateLevel("stream", "chatty"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestFactory_Masking(t *testing.T) {
	config := DefaultConfig()
	config.Metrics.Enabled = false
	factory, testLogger, err := NewTestFactory(config)
	if err != nil {
		t.Fatal(err)
	}

	factory.GetLogger("transport").Info("fields received",
		slog.String("api_token", "abc"),
		slog.String("contact", "alice@example.com"),
	)

	entries := testLogger.GetEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Attrs["api_token"] != maskedValue {
		t.Errorf("expected token masked, got %v", entries[0].Attrs["api_token"])
	}
	if strings.Contains(entries[0].Attrs["contact"].(string), "alice@example.com") {
		t.Error("expected email masked")
	}
}

func TestFactory_WithContext(t *testing.T) {
	factory, testLogger, err := NewTestFactory(nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = WithStreamID(ctx, "stream-7")
	factory.WithContext(ctx, nil).Info("with context")

	entries := testLogger.GetEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].RequestID != "req-42" || entries[0].StreamID != "stream-7" {
		t.Errorf("unexpected ids %+v", entries[0])
	}
	if entries[0].Component != DefaultComponent {
		t.Errorf("expected default component, got %q", entries[0].Component)
	}
}

func TestGlobalFactory(t *testing.T) {
	t.Cleanup(func() { _ = Shutdown() })

	if err := UpdateGlobalLevel("x", LogLevelDebug); err == nil {
		t.Error("expected error before initialization")
	}
	if GetGlobalLogger("early") == nil {
		t.Error("expected fallback logger before initialization")
	}

	factory, testLogger, err := NewTestFactory(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := SetGlobalFactory(factory); err != nil {
		t.Fatal(err)
	}

	GetGlobalLogger("global").Info("through global")
	testLogger.AssertLogged(t, "INFO", "through global")

	if err := UpdateGlobalLevel("global", LogLevelWarn); err != nil {
		t.Fatal(err)
	}
	if GetGlobalLevels()["global"] != LogLevelWarn {
		t.Error("expected global level to be recorded")
	}
	if GetGlobalFactory() != factory {
		t.Error("expected installed factory")
	}

	if err := Shutdown(); err != nil {
		t.Fatal(err)
	}
	if GetGlobalFactory() != nil {
		t.Error("expected no factory after shutdown")
	}
	if GetGlobalLevels()[DefaultComponent] != LogLevelInfo {
		t.Error("expected default levels after shutdown")
	}
}
