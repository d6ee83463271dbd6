// Package sqlite is the warehouse backend for local runs, backed by
// the pure Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"footstats/internal/schema"
	"footstats/internal/warehouse"
	"footstats/pkg/records"
)

func init() {
	warehouse.Register("sqlite", New)
}

// Repo implements warehouse.Repository for SQLite.
//
// Dates and timestamps are declared TEXT and stored as the ISO
// strings the transform emits. SQLite has no native temporal types
// and round-tripping strings is the reliable option.
type Repo struct {
	db *sql.DB
}

func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureTable(ctx context.Context, table string, desc schema.Descriptor) error {
	q, err := buildCreateSQL(table, desc)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// LoadRows inserts the batch in one statement. OR IGNORE relies on
// UNIQUE indexes, so without one this is a plain append.
func (r *Repo) LoadRows(ctx context.Context, table string, columns []string, rows []records.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("load %s: no columns", table)
	}
	q, args := buildInsertSQL(table, columns, rows)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func typeFor(k records.Kind) string {
	switch k {
	case records.KindInteger:
		return "INTEGER"
	case records.KindFloat:
		return "REAL"
	case records.KindBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func buildCreateSQL(table string, desc schema.Descriptor) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(desc.Columns) == 0 {
		return "", fmt.Errorf("create %s: descriptor has no columns", table)
	}

	defs := make([]string, 0, len(desc.Columns))
	for _, c := range desc.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("create %s: empty column name", table)
		}
		defs = append(defs, fmt.Sprintf("%s %s", sqlIdent(c.Name), typeFor(c.Kind)))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", table, strings.Join(defs, ",\n  ")), nil
}

func buildInsertSQL(table string, columns []string, rows []records.Row) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for j := range columns {
			if j < len(row) {
				args = append(args, warehouse.BindValue(row[j]))
			} else {
				args = append(args, nil)
			}
		}
	}

	return b.String(), args
}
