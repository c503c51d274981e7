package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names for SQLSink.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLSink persists entries to an audit_entries table. It works with the
// pure-Go SQLite driver and with PostgreSQL.
type SQLSink struct {
	db     *sql.DB
	driver string
}

// OpenSQLSink opens a database and prepares the audit table.
func OpenSQLSink(ctx context.Context, driver, dsn string) (*SQLSink, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	s, err := NewSQLSink(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLSink wraps an open database. The table is created if missing.
func NewSQLSink(ctx context.Context, db *sql.DB, driver string) (*SQLSink, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported audit database driver: %q", driver)
	}
	s := &SQLSink{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate audit table: %w", err)
	}
	return s, nil
}

func (s *SQLSink) migrate(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS audit_entries (
        sequence BIGINT PRIMARY KEY,
        entry_id TEXT NOT NULL,
        agent TEXT NOT NULL,
        action TEXT NOT NULL,
        outcome TEXT NOT NULL,
        timestamp TEXT NOT NULL,
        previous_hash TEXT NOT NULL,
        hash TEXT NOT NULL
    );`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// placeholders returns n bind parameters in the driver's syntax.
func (s *SQLSink) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		if s.driver == DriverPostgres {
			ph[i] = "$" + strconv.Itoa(i+1)
		} else {
			ph[i] = "?"
		}
	}
	return strings.Join(ph, ", ")
}

// Write implements Sink.
func (s *SQLSink) Write(ctx context.Context, e Entry) error {
	query := `INSERT INTO audit_entries (sequence, entry_id, agent, action, outcome, timestamp, previous_hash, hash) VALUES (` +
		s.placeholders(8) + `)`
	_, err := s.db.ExecContext(ctx, query,
		int64(e.Sequence), e.ID, e.Agent, e.Action, e.Outcome,
		e.Timestamp.UTC().Format(time.RFC3339Nano), e.PreviousHash, e.Hash)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry %d: %w", e.Sequence, err)
	}
	return nil
}

// Load reads every persisted entry in sequence order.
func (s *SQLSink) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT sequence, entry_id, agent, action, outcome, timestamp, previous_hash, hash
        FROM audit_entries
        ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e   Entry
			seq int64
			ts  string
		)
		if err := rows.Scan(&seq, &e.ID, &e.Agent, &e.Action, &e.Outcome, &ts, &e.PreviousHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Sequence = uint64(seq)
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("audit entry %d has malformed timestamp %q: %w", seq, ts, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *SQLSink) Close() error {
	return s.db.Close()
}
