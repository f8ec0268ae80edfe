// Package persistence implements the durable memory repository on SQLite
// via the pure-Go modernc.org/sqlite driver.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// SQLiteMemoryRepository implements memory.Repository. One row per memory,
// upsert on id.
type SQLiteMemoryRepository struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteMemoryRepository opens (or creates) a SQLite-backed repository.
// Use ":memory:" for an in-memory database.
func NewSQLiteMemoryRepository(path string) (*SQLiteMemoryRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// WAL improves concurrent read behavior.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id               TEXT PRIMARY KEY,
		type             TEXT NOT NULL,
		content          TEXT NOT NULL,
		created_at       INTEGER NOT NULL,
		last_accessed_at INTEGER,
		metadata         TEXT,
		event_type       TEXT,
		fact_confidence  REAL,
		plan_summary     TEXT,
		success_rate     REAL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteMemoryRepository{db: db}, nil
}

type metadataRow struct {
	Source string   `json:"source,omitempty"`
	GoalID string   `json:"goalId,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// Save upserts the memory row keyed by id.
func (r *SQLiteMemoryRepository) Save(ctx context.Context, item *valueobject.MemoryItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	metaJSON, err := json.Marshal(metadataRow{
		Source: item.Metadata.Source,
		GoalID: item.Metadata.GoalID,
		Tags:   item.Metadata.Tags,
	})
	if err != nil {
		return fmt.Errorf("marshal metadata for %q: %w", item.ID, err)
	}

	var lastAccessed sql.NullInt64
	if item.LastAccessedAt != nil {
		lastAccessed = sql.NullInt64{Int64: *item.LastAccessedAt, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO memories
			(id, type, content, created_at, last_accessed_at, metadata,
			 event_type, fact_confidence, plan_summary, success_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type             = excluded.type,
			content          = excluded.content,
			created_at       = excluded.created_at,
			last_accessed_at = excluded.last_accessed_at,
			metadata         = excluded.metadata,
			event_type       = excluded.event_type,
			fact_confidence  = excluded.fact_confidence,
			plan_summary     = excluded.plan_summary,
			success_rate     = excluded.success_rate`,
		item.ID, string(item.Kind), item.Content, item.CreatedAt, lastAccessed,
		string(metaJSON), item.EventType, item.FactConfidence, item.PlanSummary, item.SuccessRate,
	)
	if err != nil {
		return fmt.Errorf("save memory %q: %w", item.ID, err)
	}
	return nil
}

// Get returns the memory with the given id, or a NotFound AppError.
func (r *SQLiteMemoryRepository) Get(ctx context.Context, id string) (*valueobject.MemoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, content, created_at, last_accessed_at, metadata,
		       event_type, fact_confidence, plan_summary, success_rate
		FROM memories WHERE id = ?`, id)

	item, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("memory not found: " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %q: %w", id, err)
	}
	return item, nil
}

// Delete removes a memory row; deleting an unknown id is not an error.
func (r *SQLiteMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete memory %q: %w", id, err)
	}
	return nil
}

// UpdateAccess sets last_accessed_at on the row.
func (r *SQLiteMemoryRepository) UpdateAccess(ctx context.Context, id string, accessedAtMS int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		"UPDATE memories SET last_accessed_at = ? WHERE id = ?", accessedAtMS, id)
	if err != nil {
		return fmt.Errorf("update access for %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError("memory not found: " + id)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *SQLiteMemoryRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*valueobject.MemoryItem, error) {
	var (
		item         valueobject.MemoryItem
		kind         string
		lastAccessed sql.NullInt64
		metaJSON     sql.NullString
		eventType    sql.NullString
		factConf     sql.NullFloat64
		planSummary  sql.NullString
		successRate  sql.NullFloat64
	)
	if err := row.Scan(&item.ID, &kind, &item.Content, &item.CreatedAt, &lastAccessed,
		&metaJSON, &eventType, &factConf, &planSummary, &successRate); err != nil {
		return nil, err
	}

	item.Kind = valueobject.MemoryKind(kind)
	if lastAccessed.Valid {
		v := lastAccessed.Int64
		item.LastAccessedAt = &v
	}
	if metaJSON.Valid && metaJSON.String != "" {
		var meta metadataRow
		if err := json.Unmarshal([]byte(metaJSON.String), &meta); err == nil {
			item.Metadata = valueobject.MemoryMetadata{
				Source: meta.Source,
				GoalID: meta.GoalID,
				Tags:   meta.Tags,
			}
		}
	}
	item.EventType = eventType.String
	item.FactConfidence = factConf.Float64
	item.PlanSummary = planSummary.String
	item.SuccessRate = successRate.Float64
	return &item, nil
}
