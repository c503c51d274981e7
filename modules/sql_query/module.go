package sql_query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
	_ "modernc.org/sqlite"
)

// DefaultMaxRows bounds the rows returned by one query.
const DefaultMaxRows = 1000

const schema = `{
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": {"type": "string", "minLength": 1},
    "args": {"type": "array"},
    "max_rows": {"type": "integer", "minimum": 0}
  }
}`

// Module implements the registry.Module interface for this package.
type Module struct {
	// Driver is a database/sql driver name, "sqlite" or "postgres".
	Driver string
	// DSN is the data source name passed to the driver.
	DSN string
	// DB overrides Driver and DSN.
	DB *sql.DB

	once    sync.Once
	db      *sql.DB
	owned   bool
	initErr error
}

// Input defines the parameters of the sql_query tool.
type Input struct {
	Query   string `param:"query"`
	Args    []any  `param:"args"`
	MaxRows int    `param:"max_rows"`
}

// Result holds rows for queries and the affected count for statements.
type Result struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowCount     int              `json:"row_count"`
	RowsAffected int64            `json:"rows_affected,omitempty"`
	Truncated    bool             `json:"truncated,omitempty"`
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("sql_query", schema, m.Query))
}

func (m *Module) database() (*sql.DB, error) {
	m.once.Do(func() {
		if m.DB != nil {
			m.db = m.DB
			return
		}
		if m.Driver == "" || m.DSN == "" {
			m.initErr = errors.New("sql_query has no database configured")
			return
		}
		db, err := sql.Open(m.Driver, m.DSN)
		if err != nil {
			m.initErr = fmt.Errorf("failed to open database: %w", err)
			return
		}
		m.db, m.owned = db, true
	})
	return m.db, m.initErr
}

// Query runs a statement. Statements starting with SELECT, WITH, PRAGMA,
// EXPLAIN, SHOW or VALUES return rows; anything else reports the number of
// affected rows.
func (m *Module) Query(ctx context.Context, params map[string]any) (any, error) {
	var in Input
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	db, err := m.database()
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)

	if !returnsRows(in.Query) {
		res, err := db.ExecContext(ctx, in.Query, in.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to execute statement: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read affected rows: %w", err)
		}
		logger.Debug("Executed statement", "rows_affected", affected)
		return Result{RowsAffected: affected}, nil
	}

	limit := in.MaxRows
	if limit <= 0 {
		limit = DefaultMaxRows
	}

	rows, err := db.QueryContext(ctx, in.Query, in.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	res := Result{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	res.RowCount = len(res.Rows)

	logger.Debug("Ran query", "rows", res.RowCount, "truncated", res.Truncated)
	return res, nil
}

// Close closes the database if the module opened it.
func (m *Module) Close() error {
	if m.owned && m.db != nil {
		return m.db.Close()
	}
	return nil
}

func returnsRows(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(strings.TrimLeft(fields[0], "(")) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "SHOW", "VALUES":
		return true
	}
	return false
}
