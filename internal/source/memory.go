package source

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
)

// MemoryBackend keeps items in process memory
type MemoryBackend struct {
	mu            sync.RWMutex
	entities      map[entityKey]insights.Entity
	relationships map[relationshipKey]insights.Relationship
	closed        bool
	logger        *slog.Logger
	metrics       *logging.MetricsCollector
}

// NewMemoryBackend creates a new memory-based item backend
func NewMemoryBackend() *MemoryBackend {
	logger := logging.GetGlobalLogger("source.memory")

	logger.Info("Creating memory backend")

	return &MemoryBackend{
		entities:      make(map[entityKey]insights.Entity),
		relationships: make(map[relationshipKey]insights.Relationship),
		logger:        logger,
		metrics:       logging.GetGlobalMetricsCollector(),
	}
}

// PutItems stores entities and relationships in memory. Nothing is stored
// when any item is invalid.
func (m *MemoryBackend) PutItems(ctx context.Context, items []insights.Item) error {
	if len(items) == 0 {
		m.logger.DebugContext(ctx, "No items to store")
		return nil
	}

	// Check context cancellation early
	if err := ctx.Err(); err != nil {
		m.logger.WarnContext(ctx, "Put items operation canceled")
		return errors.Wrap(err, errors.ErrCodeContextCanceled, "put items canceled")
	}

	entities, relationships, err := split(items)
	if err != nil {
		m.logger.WarnContext(ctx, "Rejected items", slog.String("error", err.Error()))
		return err
	}

	startTime := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New(errors.ErrCodeSourceClosed, "memory backend is closed")
	}

	for _, entity := range entities {
		m.entities[keyOf(entity)] = entity
	}
	for _, rel := range relationships {
		m.relationships[relationshipKeyOf(rel)] = rel
	}

	duration := time.Since(startTime)
	m.metrics.RecordSourceQuery("memory", "put_items", duration)
	m.logger.InfoContext(ctx, "Stored items in memory",
		slog.Int("entities", len(entities)),
		slog.Int("relationships", len(relationships)),
		slog.Duration("duration", duration),
		slog.Int("total_entities", len(m.entities)),
	)

	return nil
}

// Items streams a snapshot of the matching items taken when iteration starts
func (m *MemoryBackend) Items(ctx context.Context, q Query) iter.Seq2[insights.Item, error] {
	return func(yield func(insights.Item, error) bool) {
		startTime := time.Now()
		items, err := m.snapshot(q)
		m.metrics.RecordSourceQuery("memory", "items", time.Since(startTime))
		if err != nil {
			yield(nil, err)
			return
		}

		m.logger.DebugContext(ctx, "Replaying items from memory",
			slog.Int("count", len(items)),
		)

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				yield(nil, errors.Wrap(err, errors.ErrCodeContextCanceled, "item replay canceled"))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (m *MemoryBackend) snapshot(q Query) ([]insights.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errors.New(errors.ErrCodeSourceClosed, "memory backend is closed")
	}

	entityKeys := make([]entityKey, 0, len(m.entities))
	for key := range m.entities {
		if q.matchesType(key.entityType) {
			entityKeys = append(entityKeys, key)
		}
	}
	slices.SortFunc(entityKeys, compareEntityKeys)

	var relationshipKeys []relationshipKey
	if q.IncludeRelationships {
		for key, rel := range m.relationships {
			if q.matchesRelationship(rel) {
				relationshipKeys = append(relationshipKeys, key)
			}
		}
		slices.SortFunc(relationshipKeys, compareRelationshipKeys)
	}

	items := make([]insights.Item, 0, len(entityKeys)+len(relationshipKeys))
	for _, key := range entityKeys {
		items = append(items, m.entities[key])
	}
	for _, key := range relationshipKeys {
		items = append(items, m.relationships[key])
	}

	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

// Statistics returns item counts, with entity counts per type under
// "type_<name>"
func (m *MemoryBackend) Statistics(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errors.New(errors.ErrCodeSourceClosed, "memory backend is closed")
	}

	stats := map[string]int{
		"entities":      len(m.entities),
		"relationships": len(m.relationships),
	}
	for key := range m.entities {
		stats[statisticKey(key.entityType)]++
	}

	m.logger.DebugContext(ctx, "Calculated memory statistics",
		slog.Int("entities", len(m.entities)),
		slog.Int("relationships", len(m.relationships)),
	)
	return stats, nil
}

// Close releases the stored items
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entities = nil
	m.relationships = nil
	m.logger.Info("Memory backend closed")
	return nil
}
