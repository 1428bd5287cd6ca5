// Package sqldriver provides storage operations over a database/sql
// connection. It is database-agnostic and is embedded by the sqlite and
// postgres drivers.
package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/unistreamhq/unistream/pkg/storage"
	"github.com/unistreamhq/unistream/pkg/usage"
)

// Placeholder selects the bind-parameter style of the underlying database.
type Placeholder int

const (
	// Question uses "?" placeholders (SQLite).
	Question Placeholder = iota

	// Dollar uses "$1".."$n" placeholders (PostgreSQL).
	Dollar
)

const schema = `
CREATE TABLE IF NOT EXISTS streams (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	dialect TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	http_status INTEGER NOT NULL DEFAULT 0,
	usage_json TEXT
);

CREATE TABLE IF NOT EXISTS stream_events (
	stream_id TEXT NOT NULL REFERENCES streams(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	event_type TEXT NOT NULL,
	event_id TEXT NOT NULL DEFAULT '',
	data_json TEXT,
	PRIMARY KEY (stream_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_streams_started_at ON streams (started_at);
`

// SQLDriver provides storage operations using a *sql.DB.
type SQLDriver struct {
	DB          *sql.DB
	Placeholder Placeholder
}

// Migrate creates the schema if it does not exist. The DDL is append-only
// and shared between the sqlite and postgres dialects.
func (d *SQLDriver) Migrate(ctx context.Context) error {
	if _, err := d.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}

// SaveStream stores a stream record with its events inside a single
// transaction, replacing any previous transcript with the same id.
func (d *SQLDriver) SaveStream(ctx context.Context, record *storage.StreamRecord) error {
	if record == nil {
		return errors.New("cannot store nil stream record")
	}
	if record.ID == "" {
		return errors.New("cannot store stream record without id")
	}

	var usageJSON sql.NullString
	if record.Usage != nil {
		data, err := json.Marshal(record.Usage)
		if err != nil {
			return fmt.Errorf("marshaling usage: %w", err)
		}
		usageJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Replace semantics: clear any previous transcript for this id.
	if _, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM stream_events WHERE stream_id = ?`), record.ID); err != nil {
		return fmt.Errorf("clearing events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM streams WHERE id = ?`), record.ID); err != nil {
		return fmt.Errorf("clearing stream: %w", err)
	}

	_, err = tx.ExecContext(ctx, d.rebind(`
		INSERT INTO streams (id, provider, dialect, model, started_at, completed_at, duration_ms, http_status, usage_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		record.ID,
		record.Provider,
		record.Dialect,
		record.Model,
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		record.CompletedAt.UTC().Format(time.RFC3339Nano),
		record.DurationMs,
		record.HTTPStatus,
		usageJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting stream: %w", err)
	}

	for _, event := range record.Events {
		var dataJSON sql.NullString
		if len(event.Data) > 0 {
			dataJSON = sql.NullString{String: string(event.Data), Valid: true}
		}

		_, err = tx.ExecContext(ctx, d.rebind(`
			INSERT INTO stream_events (stream_id, seq, event_type, event_id, data_json)
			VALUES (?, ?, ?, ?, ?)`),
			record.ID,
			event.Seq,
			event.Type,
			event.ID,
			dataJSON,
		)
		if err != nil {
			return fmt.Errorf("inserting event %d: %w", event.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// GetStream retrieves a stream record by id, events included.
func (d *SQLDriver) GetStream(ctx context.Context, id string) (*storage.StreamRecord, error) {
	row := d.DB.QueryRowContext(ctx, d.rebind(`
		SELECT id, provider, dialect, model, started_at, completed_at, duration_ms, http_status, usage_json
		FROM streams WHERE id = ?`), id)

	record, err := scanStream(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.NotFoundError{ID: id}
		}
		return nil, err
	}

	rows, err := d.DB.QueryContext(ctx, d.rebind(`
		SELECT seq, event_type, event_id, data_json
		FROM stream_events WHERE stream_id = ? ORDER BY seq`), id)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			event    storage.StoredEvent
			dataJSON sql.NullString
		)
		if err := rows.Scan(&event.Seq, &event.Type, &event.ID, &dataJSON); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if dataJSON.Valid {
			event.Data = json.RawMessage(dataJSON.String)
		}
		record.Events = append(record.Events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return record, nil
}

// ListStreams returns up to limit records, most recently started first,
// without events.
func (d *SQLDriver) ListStreams(ctx context.Context, limit int) ([]*storage.StreamRecord, error) {
	query := `
		SELECT id, provider, dialect, model, started_at, completed_at, duration_ms, http_status, usage_json
		FROM streams ORDER BY started_at DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = d.DB.QueryContext(ctx, d.rebind(query+` LIMIT ?`), limit)
	} else {
		rows, err = d.DB.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("querying streams: %w", err)
	}
	defer rows.Close()

	var records []*storage.StreamRecord
	for rows.Next() {
		record, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating streams: %w", err)
	}

	return records, nil
}

// DeleteStream removes a stream record and its events.
func (d *SQLDriver) DeleteStream(ctx context.Context, id string) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM stream_events WHERE stream_id = ?`), id); err != nil {
		return fmt.Errorf("deleting events: %w", err)
	}

	result, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM streams WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting stream: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deletion: %w", err)
	}
	if affected == 0 {
		return storage.NotFoundError{ID: id}
	}

	return tx.Commit()
}

// Close closes the underlying database connection.
func (d *SQLDriver) Close() error {
	return d.DB.Close()
}

// rebind converts "?" placeholders to the driver's bind style.
func (d *SQLDriver) rebind(query string) string {
	if d.Placeholder == Question {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStream(row rowScanner) (*storage.StreamRecord, error) {
	var (
		record      storage.StreamRecord
		startedAt   string
		completedAt string
		usageJSON   sql.NullString
	)

	err := row.Scan(
		&record.ID,
		&record.Provider,
		&record.Dialect,
		&record.Model,
		&startedAt,
		&completedAt,
		&record.DurationMs,
		&record.HTTPStatus,
		&usageJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning stream: %w", err)
	}

	if record.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if record.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
		return nil, fmt.Errorf("parsing completed_at: %w", err)
	}

	if usageJSON.Valid {
		var u usage.Usage
		if err := json.Unmarshal([]byte(usageJSON.String), &u); err != nil {
			return nil, fmt.Errorf("unmarshaling usage: %w", err)
		}
		record.Usage = &u
	}

	return &record, nil
}
