// Package mssql is the SQL Server warehouse backend.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"footstats/internal/schema"
	"footstats/internal/warehouse"
	"footstats/pkg/records"
)

func init() {
	warehouse.Register("mssql", New)
}

// Repo implements warehouse.Repository for Microsoft SQL Server.
type Repo struct {
	db *sql.DB
}

func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Conservative defaults for bursty category loads.
	db.SetMaxOpenConns(64)
	db.SetMaxIdleConns(64)

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

// LoadRows inserts the batch, chunked so no statement exceeds the
// SQL Server parameter limit (2100).
func (r *Repo) LoadRows(ctx context.Context, table string, columns []string, rows []records.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("load %s: no columns", table)
	}

	maxRows := 2000 / len(columns)
	if maxRows < 1 {
		maxRows = 1
	}

	var total int64
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}

		q, args := buildInsertSQL(table, columns, rows[start:end])
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("load %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent bracket-quotes schema-qualified names, so
// "dbo.players" becomes [dbo].[players].
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func typeFor(k records.Kind) string {
	switch k {
	case records.KindInteger:
		return "bigint"
	case records.KindFloat:
		return "float"
	case records.KindBoolean:
		return "bit"
	case records.KindDate:
		return "date"
	case records.KindTimestamp:
		return "datetimeoffset"
	default:
		return "nvarchar(max)"
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
		defs = append(defs, fmt.Sprintf("%s %s", mssqlIdent(c.Name), typeFor(c.Kind)))
	}

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		table,
		mssqlTableIdent(table),
		strings.Join(defs, ", "),
	), nil
}

func buildInsertSQL(table string, columns []string, rows []records.Row) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			p++
			if j < len(row) {
				args = append(args, warehouse.BindValue(row[j]))
			} else {
				args = append(args, nil)
			}
		}
		b.WriteString(")")
	}

	return b.String(), args
}
