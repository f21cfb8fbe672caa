package store

import (
	"context"
	"fmt"

	"github.com/roach88/tally/internal/pipeline"
)

// SaveRun persists one completed batch run in a single transaction: the
// batch row, every enriched record, every failure, and the org registry
// snapshot. A crash mid-save leaves no partial batch behind.
//
// The batch token is the primary key; saving the same token twice is an
// error, not an overwrite. Re-running a batch means deleting it first.
func (s *Store) SaveRun(ctx context.Context, res *pipeline.Result, sends int) error {
	metricsJSON, err := marshalMetrics(res.Metrics)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches
		(token, started_at, finished_at, sends, enriched, failures, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		res.BatchToken,
		dbTime(res.Started),
		dbTime(res.Finished),
		sends,
		len(res.Records),
		len(res.Failures),
		metricsJSON,
	)
	if err != nil {
		return fmt.Errorf("save run: insert batch: %w", err)
	}

	for seq, r := range res.Records {
		attrsJSON, err := marshalAttrs(r.Attrs)
		if err != nil {
			return fmt.Errorf("save run: record %d: %w", seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO enriched_records
			(batch_token, seq, identity_key, email, sender, sent_at,
			 offset_seconds, views, clicks, last_opened, org_key, org_id, attrs)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			res.BatchToken,
			seq,
			r.IdentityKey,
			r.Email,
			r.Sender,
			dbTime(r.Timestamp),
			r.Offset,
			r.Views,
			r.Clicks,
			dbTime(r.LastOpened),
			r.OrgKey,
			r.OrgID,
			attrsJSON,
		)
		if err != nil {
			return fmt.Errorf("save run: insert record %d: %w", seq, err)
		}
	}

	for seq, f := range res.Failures {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO failure_records
			(batch_token, seq, stage, reason, identity_key, email, sender, sent_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			res.BatchToken,
			seq,
			string(f.Stage),
			string(f.Reason),
			f.IdentityKey,
			f.Email,
			f.Sender,
			dbTime(f.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("save run: insert failure %d: %w", seq, err)
		}
	}

	for _, entry := range res.Registry.Snapshot() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO org_registry (batch_token, org_id, org_key)
			VALUES (?, ?, ?)
		`,
			res.BatchToken,
			entry.OrgID,
			entry.OrgKey,
		)
		if err != nil {
			return fmt.Errorf("save run: insert registry entry %d: %w", entry.OrgID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: commit: %w", err)
	}
	return nil
}

// DeleteBatch removes a batch and everything hanging off it. Records,
// failures, and registry rows go with the batch via ON DELETE CASCADE.
// Returns whether a batch with that token existed.
func (s *Store) DeleteBatch(ctx context.Context, token string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE token = ?`, token)
	if err != nil {
		return false, fmt.Errorf("delete batch: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete batch: rows affected: %w", err)
	}
	return n > 0, nil
}
