package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpdateServiceMetric performs the read-modify-write that keeps
// service_metrics current for one node_id: increments total_calls and the
// success/failure counter, and folds execTimeMs into avg_time_ms via
// incremental mean. A nil execTimeMs leaves the average unchanged. The
// read-modify-write runs inside a transaction so concurrent calls for the
// same node_id serialize rather than race.
func (s *Store) UpdateServiceMetric(ctx context.Context, nodeID string, success bool, execTimeMs *int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin metric update: %w", err)
	}
	defer tx.Rollback()

	var total, successes, failures int64
	var avg float64
	row := tx.QueryRowContext(ctx, `
		SELECT total_calls, successes, failures, avg_time_ms FROM service_metrics WHERE node_id = ?
	`, nodeID)
	err = row.Scan(&total, &successes, &failures, &avg)
	now := time.Now().UTC()

	switch {
	case err == sql.ErrNoRows:
		total = 1
		if success {
			successes, failures = 1, 0
		} else {
			successes, failures = 0, 1
		}
		if execTimeMs != nil {
			avg = float64(*execTimeMs)
		} else {
			avg = 0
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO service_metrics (node_id, total_calls, successes, failures, avg_time_ms, last_called)
			VALUES (?, ?, ?, ?, ?, ?)
		`, nodeID, total, successes, failures, avg, now)
	case err != nil:
		return fmt.Errorf("failed to read service metric: %w", err)
	default:
		total++
		if success {
			successes++
		} else {
			failures++
		}
		if execTimeMs != nil {
			avg = ((avg * float64(total-1)) + float64(*execTimeMs)) / float64(total)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE service_metrics
			SET total_calls = ?, successes = ?, failures = ?, avg_time_ms = ?, last_called = ?
			WHERE node_id = ?
		`, total, successes, failures, avg, now, nodeID)
	}
	if err != nil {
		return fmt.Errorf("failed to write service metric: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metric update: %w", err)
	}
	return nil
}

// GetServiceMetric retrieves the aggregate metric for node_id. Returns
// ErrNotFound when no calls have been recorded for it yet.
func (s *Store) GetServiceMetric(ctx context.Context, nodeID string) (*ServiceMetric, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT node_id, total_calls, successes, failures, avg_time_ms, last_called
		FROM service_metrics WHERE node_id = ?
	`, nodeID)

	m := &ServiceMetric{}
	err := row.Scan(&m.NodeID, &m.TotalCalls, &m.Successes, &m.Failures, &m.AvgTimeMs, &m.LastCalled)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("service metric %s: %w", nodeID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get service metric: %w", err)
	}
	return m, nil
}
