package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"librarydesk/internal/domain"
)

// dialect holds what differs between the SQL engines.
type dialect struct {
	name        string
	types       map[string]string // column kind → SQL type
	numbered    bool              // $1, $2 placeholders instead of ?
	listTables  string
	listColumns string
}

func (d dialect) placeholder(i int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func (d dialect) createTable(t table) string {
	defs := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		def := c.name + " " + d.types[c.kind]
		if c.primary {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.name, strings.Join(defs, ", "))
}

func (d dialect) insert(t table) string {
	marks := make([]string, len(t.columns))
	for i := range marks {
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(t.columnNames(), ", "), strings.Join(marks, ", "))
}

var (
	sqliteDialect = dialect{
		name:  "sqlite",
		types: map[string]string{"id": "TEXT", "text": "TEXT", "real": "REAL", "int": "INTEGER"},
		listTables: `SELECT name FROM sqlite_master
			WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	}
	mysqlDialect = dialect{
		name:  "mysql",
		types: map[string]string{"id": "VARCHAR(64)", "text": "TEXT", "real": "DOUBLE", "int": "INT"},
		listTables: `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME`,
		listColumns: `SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`,
	}
	postgresDialect = dialect{
		name:     "postgres",
		types:    map[string]string{"id": "VARCHAR(64)", "text": "TEXT", "real": "DOUBLE PRECISION", "int": "INTEGER"},
		numbered: true,
		listTables: `SELECT table_name FROM information_schema.tables
			WHERE table_schema = current_schema() ORDER BY table_name`,
		listColumns: `SELECT column_name, data_type FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`,
	}
)

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	dialect dialect
	db      *sql.DB
}

func newSQLConnector(driverName string, d dialect, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlConnector{dialect: d, db: db}, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *sqlConnector) WriteSnapshot(ctx context.Context, snap domain.Snapshot) (*WriteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result := &WriteResult{Tables: make(map[string]int)}
	for _, t := range snapshotTables(snap) {
		if _, err := tx.ExecContext(ctx, c.dialect.createTable(t)); err != nil {
			return nil, fmt.Errorf("create %s: %w", t.name, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.name); err != nil {
			return nil, fmt.Errorf("clear %s: %w", t.name, err)
		}
		if err := insertRows(ctx, tx, c.dialect.insert(t), t.rows); err != nil {
			return nil, fmt.Errorf("insert %s: %w", t.name, err)
		}
		result.Tables[t.name] = len(t.rows)
		result.Total += len(t.rows)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return err
		}
	}
	return nil
}

// isReadQuery detects if a query is a read (SELECT, WITH, SHOW, DESCRIBE, EXPLAIN, PRAGMA).
func isReadQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA"} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

func (c *sqlConnector) Query(ctx context.Context, query string, limit int) (*QueryPage, error) {
	if !isReadQuery(query) {
		return nil, fmt.Errorf("only read queries are allowed")
	}
	if limit <= 0 {
		limit = 1000
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	page := &QueryPage{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(page.Rows) == limit {
			page.HasMore = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]any, len(cols))
		for j, v := range values {
			row[j] = formatValue(v)
		}
		page.Rows = append(page.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return page, nil
}

// formatValue converts a database value to something JSON can carry.
func formatValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

func (c *sqlConnector) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	names, err := c.tableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	schema := &SchemaInfo{}
	for _, tbl := range names {
		cols, err := c.tableColumns(ctx, tbl)
		if err != nil {
			schema.Tables = append(schema.Tables, TableInfo{Name: tbl})
			continue
		}
		schema.Tables = append(schema.Tables, TableInfo{Name: tbl, Columns: cols})
	}
	return schema, nil
}

func (c *sqlConnector) tableNames(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *sqlConnector) tableColumns(ctx context.Context, tbl string) ([]ColumnInfo, error) {
	if c.dialect.name == "sqlite" {
		return c.sqliteColumns(ctx, tbl)
	}

	rows, err := c.db.QueryContext(ctx, c.dialect.listColumns, tbl)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var ci ColumnInfo
		if err := rows.Scan(&ci.Name, &ci.Type); err != nil {
			return nil, err
		}
		cols = append(cols, ci)
	}
	return cols, rows.Err()
}

// sqliteColumns uses PRAGMA table_info; the table name comes from sqlite_master.
func (c *sqlConnector) sqliteColumns(ctx context.Context, tbl string) ([]ColumnInfo, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(tbl, "'", "''")))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notNull, pk  int
			defaultValue sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{Name: name, Type: typ})
	}
	return cols, rows.Err()
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}
