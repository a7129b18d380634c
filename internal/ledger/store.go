// Package ledger persists workflow executions, node executions, form
// responses, and service metrics to a single-file relational store.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflow_executions (
	id TEXT PRIMARY KEY,
	workflow_name TEXT NOT NULL,
	status TEXT NOT NULL,
	current_node_id TEXT,
	state_data TEXT NOT NULL,
	graph_json TEXT NOT NULL,
	parent_execution_id TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS node_executions (
	id TEXT PRIMARY KEY,
	workflow_execution_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	node_type TEXT NOT NULL,
	node_label TEXT,
	status TEXT NOT NULL,
	request_data TEXT,
	response_data TEXT,
	error_message TEXT,
	execution_time_ms INTEGER,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	FOREIGN KEY (workflow_execution_id) REFERENCES workflow_executions(id)
);

CREATE INDEX IF NOT EXISTS idx_node_executions_workflow ON node_executions(workflow_execution_id, started_at);

CREATE TABLE IF NOT EXISTS form_responses (
	id TEXT PRIMARY KEY,
	workflow_execution_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	form_data TEXT NOT NULL,
	submitted_at TIMESTAMP NOT NULL,
	FOREIGN KEY (workflow_execution_id) REFERENCES workflow_executions(id)
);

CREATE TABLE IF NOT EXISTS service_metrics (
	node_id TEXT PRIMARY KEY,
	total_calls INTEGER NOT NULL DEFAULT 0,
	successes INTEGER NOT NULL DEFAULT 0,
	failures INTEGER NOT NULL DEFAULT 0,
	avg_time_ms REAL NOT NULL DEFAULT 0,
	last_called TIMESTAMP
);
`

// Store wraps a single-file relational connection and exposes the
// execution-ledger operations: upsertWorkflowExecution, appendNodeExecution,
// appendFormResponse, updateServiceMetric, getWorkflowExecution,
// listRecentExecutions, listNodeExecutions.
type Store struct {
	db *sql.DB
}

// Open connects to the sqlite file at path (created if absent) and applies
// the schema. path may be ":memory:" for ephemeral use in tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	// A file-backed sqlite connection does not benefit from concurrent
	// writers; serialize to avoid "database is locked" under the
	// sequential-by-design execution model this store serves.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping ledger store: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Health pings the backing store.
func (s *Store) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
