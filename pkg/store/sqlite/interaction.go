package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/logger"
)

// InteractionLog persists the episodic memory in its own SQLite database.
// Entries are append-only; ordering follows insertion order.
type InteractionLog struct {
	db *sql.DB
}

// NewInteractionLog opens (or creates) the episodic database at dbPath and
// ensures the schema exists. Use ":memory:" for an ephemeral log.
func NewInteractionLog(dbPath string) (*InteractionLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open episodic db: %w", err)
	}

	l := &InteractionLog{db: db}
	if err := l.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *InteractionLog) createTable() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			interaction_type TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		return fmt.Errorf("create interactions table: %w", err)
	}
	return nil
}

// AddInteraction appends one entry. A zero Timestamp is filled with the
// current time.
func (l *InteractionLog) AddInteraction(ctx context.Context, interaction common.Interaction) error {
	ts := interaction.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	metadata := "{}"
	if interaction.Metadata != nil {
		raw, err := json.Marshal(interaction.Metadata)
		if err != nil {
			return fmt.Errorf("marshal interaction metadata: %w", err)
		}
		metadata = string(raw)
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO interactions (timestamp, agent_name, interaction_type, content, metadata)
		 VALUES (?, ?, ?, ?, ?)`,
		ts.Format(time.RFC3339Nano), interaction.AgentName, interaction.Type, interaction.Content, metadata,
	)
	return err
}

// RecentInteractions returns up to limit entries, newest first.
func (l *InteractionLog) RecentInteractions(ctx context.Context, limit int) ([]common.Interaction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, timestamp, agent_name, interaction_type, content, metadata
		 FROM interactions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// InteractionsByAgent returns up to limit entries recorded by the named
// agent, newest first.
func (l *InteractionLog) InteractionsByAgent(ctx context.Context, agentName string, limit int) ([]common.Interaction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, timestamp, agent_name, interaction_type, content, metadata
		 FROM interactions WHERE agent_name = ? ORDER BY id DESC LIMIT ?`,
		agentName, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// Clear deletes all entries.
func (l *InteractionLog) Clear(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM interactions`); err != nil {
		return err
	}
	logger.Debug("[Store][Episodic] Cleared all interactions")
	return nil
}

// Close closes the underlying database handle.
func (l *InteractionLog) Close() error {
	return l.db.Close()
}

func scanInteractions(rows *sql.Rows) ([]common.Interaction, error) {
	out := make([]common.Interaction, 0)
	for rows.Next() {
		var in common.Interaction
		var ts, metadata string
		if err := rows.Scan(&in.ID, &ts, &in.AgentName, &in.Type, &in.Content, &metadata); err != nil {
			return nil, err
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			in.Timestamp = parsed
		}
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &in.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
