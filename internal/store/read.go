package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tally/internal/pipeline"
	"github.com/roach88/tally/internal/record"
)

// ErrBatchNotFound is returned when a token names no stored batch.
var ErrBatchNotFound = errors.New("batch not found")

// BatchSummary is one row of the batch history listing.
type BatchSummary struct {
	Token    string
	Started  time.Time
	Finished time.Time
	Sends    int
	Enriched int
	Failures int
	Metrics  pipeline.Metrics
}

// ListBatches returns every stored batch, newest first. Tokens are UUIDv7,
// so token order is creation order; started_at breaks ties for batches
// saved with externally supplied tokens.
func (s *Store) ListBatches(ctx context.Context) ([]BatchSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, started_at, finished_at, sends, enriched, failures, metrics
		FROM batches
		ORDER BY token DESC, started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("list batches: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return out, nil
}

// GetBatch returns one batch summary by token.
func (s *Store) GetBatch(ctx context.Context, token string) (BatchSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, started_at, finished_at, sends, enriched, failures, metrics
		FROM batches
		WHERE token = ?
	`, token)

	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return BatchSummary{}, fmt.Errorf("get batch %q: %w", token, ErrBatchNotFound)
	}
	if err != nil {
		return BatchSummary{}, fmt.Errorf("get batch %q: %w", token, err)
	}
	return b, nil
}

// LatestBatch returns the most recently created batch.
func (s *Store) LatestBatch(ctx context.Context) (BatchSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, started_at, finished_at, sends, enriched, failures, metrics
		FROM batches
		ORDER BY token DESC, started_at DESC
		LIMIT 1
	`)

	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return BatchSummary{}, fmt.Errorf("latest batch: %w", ErrBatchNotFound)
	}
	if err != nil {
		return BatchSummary{}, fmt.Errorf("latest batch: %w", err)
	}
	return b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(r rowScanner) (BatchSummary, error) {
	var b BatchSummary
	var started, finished *string
	var metricsJSON string

	if err := r.Scan(&b.Token, &started, &finished, &b.Sends, &b.Enriched, &b.Failures, &metricsJSON); err != nil {
		return BatchSummary{}, err
	}

	var err error
	if b.Started, err = scanTime(started); err != nil {
		return BatchSummary{}, err
	}
	if b.Finished, err = scanTime(finished); err != nil {
		return BatchSummary{}, err
	}
	if b.Metrics, err = unmarshalMetrics(metricsJSON); err != nil {
		return BatchSummary{}, err
	}
	return b, nil
}

// RecordFilter narrows ReadRecords. Zero values leave that dimension
// unfiltered.
type RecordFilter struct {
	From   time.Time // inclusive lower bound on sent_at
	To     time.Time // inclusive upper bound on sent_at
	OrgID  int
	Sender string
}

// ReadRecords returns a batch's enriched records in batch order, optionally
// narrowed by filter. Time bounds are applied in SQL: RFC 3339 strings
// compare lexicographically in timestamp order, so BETWEEN works on the
// stored text.
func (s *Store) ReadRecords(ctx context.Context, token string, filter RecordFilter) ([]record.EnrichedRecord, error) {
	query := `
		SELECT identity_key, email, sender, sent_at, offset_seconds,
		       views, clicks, last_opened, org_key, org_id, attrs
		FROM enriched_records
		WHERE batch_token = ?
	`
	args := []any{token}

	if !filter.From.IsZero() {
		query += " AND sent_at >= ?"
		args = append(args, filter.From.UTC().Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		query += " AND sent_at <= ?"
		args = append(args, filter.To.UTC().Format(time.RFC3339))
	}
	if filter.OrgID != 0 {
		query += " AND org_id = ?"
		args = append(args, filter.OrgID)
	}
	if filter.Sender != "" {
		query += " AND sender = ?"
		args = append(args, filter.Sender)
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	defer rows.Close()

	var out []record.EnrichedRecord
	for rows.Next() {
		var r record.EnrichedRecord
		var sentAt, lastOpened *string
		var attrsJSON string

		err := rows.Scan(&r.IdentityKey, &r.Email, &r.Sender, &sentAt, &r.Offset,
			&r.Views, &r.Clicks, &lastOpened, &r.OrgKey, &r.OrgID, &attrsJSON)
		if err != nil {
			return nil, fmt.Errorf("read records: scan: %w", err)
		}
		if r.Timestamp, err = scanTime(sentAt); err != nil {
			return nil, fmt.Errorf("read records: %w", err)
		}
		if r.LastOpened, err = scanTime(lastOpened); err != nil {
			return nil, fmt.Errorf("read records: %w", err)
		}
		if r.Attrs, err = unmarshalAttrs(attrsJSON); err != nil {
			return nil, fmt.Errorf("read records: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return out, nil
}

// ReadFailures returns a batch's failure records in batch order.
func (s *Store) ReadFailures(ctx context.Context, token string) ([]record.FailureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, reason, identity_key, email, sender, sent_at
		FROM failure_records
		WHERE batch_token = ?
		ORDER BY seq
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read failures: %w", err)
	}
	defer rows.Close()

	var out []record.FailureRecord
	for rows.Next() {
		var f record.FailureRecord
		var stage, reason string
		var sentAt *string

		if err := rows.Scan(&stage, &reason, &f.IdentityKey, &f.Email, &f.Sender, &sentAt); err != nil {
			return nil, fmt.Errorf("read failures: scan: %w", err)
		}
		f.Stage = record.Stage(stage)
		f.Reason = record.Reason(reason)
		if f.Timestamp, err = scanTime(sentAt); err != nil {
			return nil, fmt.Errorf("read failures: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read failures: %w", err)
	}
	return out, nil
}

// ReadRegistry returns a batch's org registry snapshot ordered by org ID.
func (s *Store) ReadRegistry(ctx context.Context, token string) ([]pipeline.RegistryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT org_id, org_key
		FROM org_registry
		WHERE batch_token = ?
		ORDER BY org_id
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	defer rows.Close()

	var out []pipeline.RegistryEntry
	for rows.Next() {
		var e pipeline.RegistryEntry
		if err := rows.Scan(&e.OrgID, &e.OrgKey); err != nil {
			return nil, fmt.Errorf("read registry: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return out, nil
}
