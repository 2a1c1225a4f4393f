// Package source stores gateway items and replays them on request
package source

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
)

// Backend holds entities and relationships
type Backend interface {
	// PutItems stores entities and relationships, replacing stored items with
	// the same key. Log items are rejected.
	PutItems(ctx context.Context, items []insights.Item) error

	// Items streams the stored items matching q: entities first, then
	// relationships, each ordered by key. Rows are read lazily and released
	// when the consumer stops.
	Items(ctx context.Context, q Query) iter.Seq2[insights.Item, error]

	Statistics(ctx context.Context) (map[string]int, error)
	Close() error
}

// Query selects the items to replay
type Query struct {
	// EntityTypes restricts entities to these types, and relationships to
	// those whose endpoints both have one of them. Empty selects everything.
	EntityTypes []string

	IncludeRelationships bool

	// Limit caps the number of items; zero means no limit
	Limit int
}

func (q Query) matchesType(entityType string) bool {
	return len(q.EntityTypes) == 0 || slices.Contains(q.EntityTypes, entityType)
}

func (q Query) matchesRelationship(rel insights.Relationship) bool {
	return q.matchesType(rel.FromEntityType) && q.matchesType(rel.ToEntityType)
}

type entityKey struct {
	entityType string
	id         string
}

type relationshipKey struct {
	fromType string
	fromID   string
	toType   string
	toID     string
}

func keyOf(e insights.Entity) entityKey {
	return entityKey{entityType: e.Type, id: e.ID}
}

func relationshipKeyOf(r insights.Relationship) relationshipKey {
	return relationshipKey{fromType: r.FromEntityType, fromID: r.FromEntityID, toType: r.ToEntityType, toID: r.ToEntityID}
}

func compareEntityKeys(a, b entityKey) int {
	if c := strings.Compare(a.entityType, b.entityType); c != 0 {
		return c
	}
	return strings.Compare(a.id, b.id)
}

func compareRelationshipKeys(a, b relationshipKey) int {
	for _, pair := range [][2]string{{a.fromType, b.fromType}, {a.fromID, b.fromID}, {a.toType, b.toType}, {a.toID, b.toID}} {
		if c := strings.Compare(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	return 0
}

// split validates items and separates them by kind
func split(items []insights.Item) ([]insights.Entity, []insights.Relationship, error) {
	var (
		entities      []insights.Entity
		relationships []insights.Relationship
	)
	for i, item := range items {
		switch item := deref(item).(type) {
		case insights.Entity:
			if field := blank("id", item.ID, "type", item.Type); field != "" {
				return nil, nil, errors.ValidationRequired(fmt.Sprintf("item %d entity %s", i, field))
			}
			entities = append(entities, item)
		case insights.Relationship:
			if field := blank("fromEntityId", item.FromEntityID, "toEntityId", item.ToEntityID); field != "" {
				return nil, nil, errors.ValidationRequired(fmt.Sprintf("item %d relationship %s", i, field))
			}
			relationships = append(relationships, item)
		case nil:
			return nil, nil, errors.ValidationRequired(fmt.Sprintf("item %d", i))
		default:
			return nil, nil, errors.Newf(errors.ErrCodeValidationType, "item %d: cannot store %T", i, item)
		}
	}
	return entities, relationships, nil
}

func deref(item insights.Item) insights.Item {
	switch item := item.(type) {
	case *insights.Entity:
		if item != nil {
			return *item
		}
		return nil
	case *insights.Relationship:
		if item != nil {
			return *item
		}
		return nil
	}
	return item
}

func statisticKey(entityType string) string {
	return fmt.Sprintf("type_%s", entityType)
}

// blank takes name, value pairs and returns the name of the first value that
// is empty after trimming
func blank(pairs ...string) string {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return pairs[i]
		}
	}
	return ""
}
