package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/JamesPrial/custom-gateway-core/internal/codec"
	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

// SqliteBackend stores items in a SQLite database. Assignments are kept as
// their wire JSON.
type SqliteBackend struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *logging.MetricsCollector
}

// NewSqliteBackend creates a new SQLite backend with the specified database path and WAL mode setting
func NewSqliteBackend(dbPath string, walMode bool) (*SqliteBackend, error) {
	// Configure connection string with appropriate settings
	connStr := dbPath
	if walMode {
		connStr += "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000"
	} else {
		connStr += "?_synchronous=FULL&_cache_size=1000"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceConnection, "failed to open database")
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeSourceConnection, "failed to ping database")
	}

	backend := &SqliteBackend{
		db:      db,
		logger:  logging.GetGlobalLogger("source.sqlite"),
		metrics: logging.GetGlobalMetricsCollector(),
	}

	// Initialize the database schema
	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeSourceInitialization, "failed to initialize schema")
	}

	backend.logger.Info("SQLite backend opened",
		slog.String("path", dbPath),
		slog.Bool("wal_mode", walMode),
	)
	return backend, nil
}

// initSchema creates the necessary tables for the database
func (s *SqliteBackend) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS entities (
		entity_type TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		assignments TEXT NOT NULL, -- JSON array of wire attribute assignments
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (entity_type, id)
	);

	CREATE TABLE IF NOT EXISTS relationships (
		from_entity_type TEXT NOT NULL,
		from_entity_id TEXT NOT NULL,
		to_entity_type TEXT NOT NULL,
		to_entity_id TEXT NOT NULL,
		assignments TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (from_entity_type, from_entity_id, to_entity_type, to_entity_id)
	);

	CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_entity_type, to_entity_id);
	`)
	return err
}

// PutItems upserts entities and relationships in one transaction
func (s *SqliteBackend) PutItems(ctx context.Context, items []insights.Item) error {
	if len(items) == 0 {
		return nil
	}

	entities, relationships, err := split(items)
	if err != nil {
		return err
	}

	startTime := time.Now()
	defer func() {
		s.metrics.RecordSourceQuery("sqlite", "put_items", time.Since(startTime))
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceTransaction, "failed to begin transaction")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if len(entities) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO entities (entity_type, id, name, assignments, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(entity_type, id) DO UPDATE SET
				name = excluded.name,
				assignments = excluded.assignments,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSourceQuery, "failed to prepare entity statement")
		}
		defer stmt.Close()

		for _, entity := range entities {
			assignments, err := marshalAssignments(entity.Assignments)
			if err != nil {
				return errors.Wrapf(err, errors.ErrCodeInvalidItem, "entity %s: %s", entity.ID, errors.GetMessage(err))
			}
			if _, err := stmt.ExecContext(ctx, entity.Type, entity.ID, entity.Name, assignments, now); err != nil {
				return errors.Wrapf(err, errors.ErrCodeSourceQuery, "failed to insert entity %s", entity.ID)
			}
		}
	}

	if len(relationships) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO relationships (from_entity_type, from_entity_id, to_entity_type, to_entity_id, assignments, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(from_entity_type, from_entity_id, to_entity_type, to_entity_id) DO UPDATE SET
				assignments = excluded.assignments,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSourceQuery, "failed to prepare relationship statement")
		}
		defer stmt.Close()

		for _, rel := range relationships {
			assignments, err := marshalAssignments(rel.Assignments)
			if err != nil {
				return errors.Wrapf(err, errors.ErrCodeInvalidItem, "relationship %s -> %s: %s",
					rel.FromEntityID, rel.ToEntityID, errors.GetMessage(err))
			}
			if _, err := stmt.ExecContext(ctx,
				rel.FromEntityType,
				rel.FromEntityID,
				rel.ToEntityType,
				rel.ToEntityID,
				assignments,
				now,
			); err != nil {
				return errors.Wrapf(err, errors.ErrCodeSourceQuery, "failed to insert relationship %s -> %s",
					rel.FromEntityID, rel.ToEntityID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceTransaction, "failed to commit items")
	}

	s.logger.InfoContext(ctx, "Stored items in SQLite",
		slog.Int("entities", len(entities)),
		slog.Int("relationships", len(relationships)),
	)
	return nil
}

// Items streams matching rows. The open result set is closed when the
// consumer stops or the rows run out.
func (s *SqliteBackend) Items(ctx context.Context, q Query) iter.Seq2[insights.Item, error] {
	return func(yield func(insights.Item, error) bool) {
		startTime := time.Now()
		defer func() {
			s.metrics.RecordSourceQuery("sqlite", "items", time.Since(startTime))
		}()

		remaining := q.Limit
		emit := func(item insights.Item) bool {
			if !yield(item, nil) {
				return false
			}
			if q.Limit > 0 {
				remaining--
				return remaining > 0
			}
			return true
		}

		more, err := s.queryEntities(ctx, q, emit)
		if err != nil {
			yield(nil, err)
			return
		}
		if !more || !q.IncludeRelationships {
			return
		}

		query := q
		query.Limit = remaining
		if _, err := s.queryRelationships(ctx, query, emit); err != nil {
			yield(nil, err)
		}
	}
}

// queryEntities emits matching entities and reports whether the consumer
// wants more
func (s *SqliteBackend) queryEntities(ctx context.Context, q Query, emit func(insights.Item) bool) (bool, error) {
	where, args := typeFilter(q.EntityTypes, "entity_type")
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, id, name, assignments
		FROM entities`+where+`
		ORDER BY entity_type, id`+limitClause(q.Limit), args...)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSourceQuery, "failed to query entities")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entity      insights.Entity
			assignments string
		)
		if err := rows.Scan(&entity.Type, &entity.ID, &entity.Name, &assignments); err != nil {
			return false, errors.Wrap(err, errors.ErrCodeSourceQuery, "failed to scan entity")
		}
		if entity.Assignments, err = unmarshalAssignments(assignments); err != nil {
			return false, errors.Wrapf(err, errors.ErrCodeSourceQuery, "entity %s has corrupt assignments", entity.ID)
		}
		if !emit(entity) {
			return false, nil
		}
	}

	if err := rows.Err(); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSourceQuery, "error iterating over entity rows")
	}
	return true, nil
}

func (s *SqliteBackend) queryRelationships(ctx context.Context, q Query, emit func(insights.Item) bool) (bool, error) {
	fromWhere, fromArgs := typeFilter(q.EntityTypes, "from_entity_type")
	toWhere, toArgs := typeFilter(q.EntityTypes, "to_entity_type")
	where := fromWhere
	if toWhere != "" {
		where += " AND" + strings.TrimPrefix(toWhere, " WHERE")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT from_entity_type, from_entity_id, to_entity_type, to_entity_id, assignments
		FROM relationships`+where+`
		ORDER BY from_entity_type, from_entity_id, to_entity_type, to_entity_id`+limitClause(q.Limit),
		append(fromArgs, toArgs...)...)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSourceQuery, "failed to query relationships")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rel         insights.Relationship
			assignments string
		)
		if err := rows.Scan(&rel.FromEntityType, &rel.FromEntityID, &rel.ToEntityType, &rel.ToEntityID, &assignments); err != nil {
			return false, errors.Wrap(err, errors.ErrCodeSourceQuery, "failed to scan relationship")
		}
		if rel.Assignments, err = unmarshalAssignments(assignments); err != nil {
			return false, errors.Wrapf(err, errors.ErrCodeSourceQuery, "relationship %s -> %s has corrupt assignments",
				rel.FromEntityID, rel.ToEntityID)
		}
		if !emit(rel) {
			return false, nil
		}
	}

	if err := rows.Err(); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSourceQuery, "error iterating over relationship rows")
	}
	return true, nil
}

// Statistics returns statistics about the items in the database
func (s *SqliteBackend) Statistics(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)

	var entities, relationships int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&entities); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceQuery, "failed to get entity count")
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM relationships").Scan(&relationships); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceQuery, "failed to get relationship count")
	}
	stats["entities"] = entities
	stats["relationships"] = relationships

	// Get entity counts by type
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, COUNT(*)
		FROM entities
		GROUP BY entity_type
	`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceQuery, "failed to query entity counts by type")
	}
	defer rows.Close()

	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSourceQuery, "failed to scan entity type count")
		}
		stats[statisticKey(entityType)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceQuery, "error iterating over entity type rows")
	}

	return stats, nil
}

// Close closes the database connection
func (s *SqliteBackend) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func typeFilter(types []string, column string) (string, []any) {
	if len(types) == 0 {
		return "", nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(types)), ", ")
	args := make([]any, len(types))
	for i, t := range types {
		args[i] = t
	}
	return fmt.Sprintf(" WHERE %s IN (%s)", column, placeholders), args
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func marshalAssignments(assignments insights.Assignments) (string, error) {
	encoded, err := codec.EncodeAssignments(assignments)
	if err != nil {
		return "", err
	}
	if encoded == nil {
		encoded = []wire.AttributeAssignment{}
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalAssignments(data string) (insights.Assignments, error) {
	var assignments []wire.AttributeAssignment
	if err := json.Unmarshal([]byte(data), &assignments); err != nil {
		return nil, err
	}
	return codec.DecodeAssignments(assignments)
}
