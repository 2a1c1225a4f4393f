package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// componentLevels is the mutable level table shared by a LevelHandler and
// every handler derived from it through WithAttrs or WithGroup
type componentLevels struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	levels       map[string]slog.Level
}

func (cl *componentLevels) get(component string) slog.Level {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	if level, ok := cl.levels[component]; ok {
		return level
	}

	// Wildcard patterns (simple prefix matching)
	for pattern, level := range cl.levels {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasPrefix(component, prefix) {
			return level
		}
	}

	return cl.defaultLevel
}

// LevelHandler provides per-component log level filtering. Levels can be
// changed at runtime and take effect on loggers already handed out.
type LevelHandler struct {
	handler   slog.Handler
	component string
	levels    *componentLevels
}

// NewLevelHandler creates a new level handler with per-component filtering
func NewLevelHandler(handler slog.Handler, defaultLevel slog.Level) *LevelHandler {
	return &LevelHandler{
		handler: handler,
		levels: &componentLevels{
			defaultLevel: defaultLevel,
			levels:       make(map[string]slog.Level),
		},
	}
}

// Enabled implements slog.Handler
func (lh *LevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < lh.levels.get(lh.componentFor(ctx)) {
		return false
	}
	return lh.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (lh *LevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < lh.levels.get(lh.componentFor(ctx)) {
		return nil
	}
	return lh.handler.Handle(ctx, record)
}

// WithAttrs implements slog.Handler. A "component" attribute binds the
// derived handler to that component's level.
func (lh *LevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := lh.component
	for _, attr := range attrs {
		if attr.Key == "component" {
			component = attr.Value.String()
		}
	}
	return &LevelHandler{
		handler:   lh.handler.WithAttrs(attrs),
		component: component,
		levels:    lh.levels,
	}
}

// WithGroup implements slog.Handler
func (lh *LevelHandler) WithGroup(name string) slog.Handler {
	return &LevelHandler{
		handler:   lh.handler.WithGroup(name),
		component: lh.component,
		levels:    lh.levels,
	}
}

func (lh *LevelHandler) componentFor(ctx context.Context) string {
	if lh.component != "" {
		return lh.component
	}
	if component := GetComponent(ctx); component != "" {
		return component
	}
	return "default"
}

// SetComponentLevel sets the log level for a specific component
func (lh *LevelHandler) SetComponentLevel(component string, level slog.Level) {
	lh.levels.mu.Lock()
	defer lh.levels.mu.Unlock()
	lh.levels.levels[component] = level
}

// RemoveComponentLevel removes the specific level for a component, reverting to default
func (lh *LevelHandler) RemoveComponentLevel(component string) {
	lh.levels.mu.Lock()
	defer lh.levels.mu.Unlock()
	delete(lh.levels.levels, component)
}

// GetComponentLevel returns the log level for a specific component
func (lh *LevelHandler) GetComponentLevel(component string) slog.Level {
	return lh.levels.get(component)
}

// GetAllComponentLevels returns all component-specific levels
func (lh *LevelHandler) GetAllComponentLevels() map[string]slog.Level {
	lh.levels.mu.RLock()
	defer lh.levels.mu.RUnlock()

	levels := make(map[string]slog.Level, len(lh.levels.levels))
	for component, level := range lh.levels.levels {
		levels[component] = level
	}
	return levels
}

// SetDefaultLevel sets the default log level
func (lh *LevelHandler) SetDefaultLevel(level slog.Level) {
	lh.levels.mu.Lock()
	defer lh.levels.mu.Unlock()
	lh.levels.defaultLevel = level
}

// GetDefaultLevel returns the default log level
func (lh *LevelHandler) GetDefaultLevel() slog.Level {
	lh.levels.mu.RLock()
	defer lh.levels.mu.RUnlock()
	return lh.levels.defaultLevel
}
