// Package store keeps converted long tables in a SQLite database so several
// exports can be queried together.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/tinafang86/OM-to-ROI-data-process/internal/pivot"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// TableName is the table every conversion is written to.
const TableName = "roi_media"

// Store is a SQLite-backed sink for long tables.
type Store struct {
	db   *sql.DB
	path string
}

// StoredRow is one row read back from the table.
type StoredRow struct {
	Source string
	Date   string
	Media  string
	Values map[vocabulary.MetricID]decimal.Decimal
}

// Open opens (or creates) the database at path. All access goes through a
// single connection so concurrent watch conversions never see SQLITE_BUSY.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path}, nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// quoteIdent quotes a metric id for use as a column name.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ensureSchema creates the table and adds a REAL column for every target the
// table does not have yet.
func (s *Store) ensureSchema(ctx context.Context, tx *sql.Tx, targets []vocabulary.Metric) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS ` + TableName + ` (
			source TEXT NOT NULL,
			date TEXT NOT NULL,
			media TEXT NOT NULL,
			loaded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + TableName + `_source_date ON ` + TableName + `(source, date)`,
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	existing, err := columns(ctx, tx)
	if err != nil {
		return err
	}
	for _, m := range targets {
		if existing[string(m.ID)] {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s REAL NOT NULL DEFAULT 0`, TableName, quoteIdent(string(m.ID)))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", m.ID, err)
		}
	}
	return nil
}

func columns(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info('`+TableName+`')`)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// SaveTable replaces every row previously saved for source with the rows of
// table, in one transaction. It returns the number of rows written.
func (s *Store) SaveTable(ctx context.Context, source string, vocab *vocabulary.Vocabulary, table *pivot.Table) (int, error) {
	targets := vocab.Targets()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensureSchema(ctx, tx, targets); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+TableName+` WHERE source = ?`, source); err != nil {
		return 0, fmt.Errorf("clear previous rows: %w", err)
	}

	cols := []string{"source", "date", "media", "loaded_at"}
	for _, m := range targets {
		cols = append(cols, quoteIdent(string(m.ID)))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		TableName, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	loadedAt := time.Now().UTC().Unix()
	args := make([]any, len(cols))
	for _, r := range table.Rows {
		args[0], args[1], args[2], args[3] = source, r.Date, r.Media, loadedAt
		for i, v := range r.Values {
			args[4+i] = v.InexactFloat64()
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert %s/%s: %w", r.Date, r.Media, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(table.Rows), nil
}

// Rows returns the rows saved for source in insertion order, reading the
// metrics named by vocab.
func (s *Store) Rows(ctx context.Context, source string, vocab *vocabulary.Vocabulary) ([]StoredRow, error) {
	targets := vocab.Targets()

	cols := []string{"source", "date", "media"}
	for _, m := range targets {
		cols = append(cols, quoteIdent(string(m.ID)))
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE source = ? ORDER BY rowid`,
		strings.Join(cols, ", "), TableName), source)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var r StoredRow
		values := make([]float64, len(targets))
		dest := []any{&r.Source, &r.Date, &r.Media}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Values = make(map[vocabulary.MetricID]decimal.Decimal, len(targets))
		for i, m := range targets {
			r.Values[m.ID] = decimal.NewFromFloat(values[i])
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sources returns every source with saved rows and its row count.
func (s *Store) Sources(ctx context.Context) (map[string]int, error) {
	cols, err := columns(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int)
	if len(cols) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM `+TableName+` GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out[source] = n
	}
	return out, rows.Err()
}
