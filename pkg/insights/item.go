package insights

import (
	"context"
	"iter"
	"sort"
)

// Level is the severity of a Log item
type Level int

const (
	LevelAlert Level = iota
	LevelInfo
)

// String returns the wire tag for the level
func (l Level) String() string {
	switch l {
	case LevelAlert:
		return "alert"
	case LevelInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Assignments maps attribute type identifiers to values. Keys are unique per
// item; iteration order carries no meaning.
type Assignments map[string]Value

// SortedKeys returns the attribute type identifiers in lexical order
func (a Assignments) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for key := range a {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Item is one unit produced by a gateway. The set of implementations is
// closed: Entity, Relationship and Log.
type Item interface {
	isItem()
}

// Entity is a node of the imported graph
type Entity struct {
	ID          string
	Type        string
	Name        string
	Assignments Assignments
}

// Relationship is a directed edge between two entities
type Relationship struct {
	FromEntityID   string
	FromEntityType string
	ToEntityID     string
	ToEntityType   string
	Assignments    Assignments
}

// Log is a diagnostic message emitted during an import
type Log struct {
	Level   Level
	Message string
}

func (Entity) isItem()       {}
func (Relationship) isItem() {}
func (Log) isItem()          {}

// Alert creates an alert-level Log item
func Alert(message string) Log {
	return Log{Level: LevelAlert, Message: message}
}

// Info creates an info-level Log item
func Info(message string) Log {
	return Log{Level: LevelInfo, Message: message}
}

// Handler produces the items of one import. It is invoked exactly once per
// call with the decoded request fields. The returned sequence is consumed at
// most once; a consumer that stops early ends the range loop, so resources
// acquired inside the sequence must be released with defer.
type Handler func(ctx context.Context, fields map[string]any) iter.Seq2[Item, error]

// Items adapts a fixed list of items to a sequence. Useful for tests and
// gateways whose data fits in memory.
func Items(items ...Item) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Fail returns a sequence that yields the given items followed by err
func Fail(err error, items ...Item) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
		yield(nil, err)
	}
}
