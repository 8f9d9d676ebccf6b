// Package sqlite implements the entity record store on an embedded SQLite
// database using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/logger"
)

// EntityStore persists denormalized entity records keyed by unique_id.
// Upserts are single statements, so consistency is whatever SQLite
// guarantees for them; the store itself takes no locks.
type EntityStore struct {
	db *sql.DB
}

// NewEntityStore opens (or creates) the entity database at dbPath and ensures
// the schema exists. Use ":memory:" for an ephemeral store.
func NewEntityStore(dbPath string) (*EntityStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open entity db: %w", err)
	}

	s := &EntityStore{db: db}
	if err := s.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *EntityStore) createTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entities (
			unique_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			summary TEXT,
			details TEXT,
			code TEXT,
			source TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create entities table: %w", err)
	}
	return nil
}

// AddEntity inserts or replaces the record with the entity's UniqueID.
func (s *EntityStore) AddEntity(ctx context.Context, entity common.Entity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entities (unique_id, type, summary, details, code, source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entity.UniqueID, entity.Type, entity.Summary, entity.Details, entity.Code, entity.Source,
	)
	return err
}

// GetEntity returns the record with the given ID, or nil if none exists.
func (s *EntityStore) GetEntity(ctx context.Context, uniqueID string) (*common.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT unique_id, type, summary, details, code, source FROM entities WHERE unique_id = ?`,
		uniqueID,
	)

	var e common.Entity
	err := row.Scan(&e.UniqueID, &e.Type, &e.Summary, &e.Details, &e.Code, &e.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// FindEntitiesByType returns all records matching the given type.
func (s *EntityStore) FindEntitiesByType(ctx context.Context, entityType string) ([]common.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unique_id, type, summary, details, code, source FROM entities WHERE type = ?`,
		entityType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntities(rows)
}

// GetAllEntities returns every record in the store.
func (s *EntityStore) GetAllEntities(ctx context.Context) ([]common.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unique_id, type, summary, details, code, source FROM entities`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntities(rows)
}

// UpdateSummary sets the summary of an existing record. Summary is the only
// entity field mutated after ingestion; a missing ID is not an error.
func (s *EntityStore) UpdateSummary(ctx context.Context, uniqueID string, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entities SET summary = ? WHERE unique_id = ?`,
		summary, uniqueID,
	)
	return err
}

// Clear deletes all records.
func (s *EntityStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return err
	}
	logger.Debug("[Store][Entity] Cleared all entity records")
	return nil
}

// Close closes the underlying database handle.
func (s *EntityStore) Close() error {
	return s.db.Close()
}

func scanEntities(rows *sql.Rows) ([]common.Entity, error) {
	out := make([]common.Entity, 0)
	for rows.Next() {
		var e common.Entity
		if err := rows.Scan(&e.UniqueID, &e.Type, &e.Summary, &e.Details, &e.Code, &e.Source); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
