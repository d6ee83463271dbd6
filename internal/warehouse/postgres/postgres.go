// Package postgres is the pgx-backed warehouse backend.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"footstats/internal/schema"
	"footstats/internal/warehouse"
	"footstats/pkg/records"
)

func init() {
	warehouse.Register("postgres", New)
}

// Repo implements warehouse.Repository on a pgx connection pool.
type Repo struct {
	pool *pgxpool.Pool
}

// New opens a connection pool for cfg.DSN. The pool connects lazily,
// so a bad DSN surfaces on first use rather than here.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() { r.pool.Close() }

// EnsureTable creates the table from the descriptor when it is
// missing. Schema-qualified names also get their schema created.
func (r *Repo) EnsureTable(ctx context.Context, table string, desc schema.Descriptor) error {
	schemaSQL, tableSQL, err := buildCreateSQL(table, desc)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", table, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// LoadRows bulk-inserts the batch in one statement. Rows that
// conflict with a unique index an operator added out of band are
// dropped, which keeps replays of a run idempotent.
func (r *Repo) LoadRows(ctx context.Context, table string, columns []string, rows []records.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("load %s: no columns", table)
	}
	q, args := buildInsertSQL(table, columns, rows)
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// typeFor maps an inferred kind to the Postgres column type. An
// empty kind means the batch had only nulls for that column; it
// stays text so a later batch can settle the type without a rewrite.
func typeFor(k records.Kind) string {
	switch k {
	case records.KindInteger:
		return "bigint"
	case records.KindFloat:
		return "double precision"
	case records.KindBoolean:
		return "boolean"
	case records.KindDate:
		return "date"
	case records.KindTimestamp:
		return "timestamptz"
	default:
		return "text"
	}
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// splitQualifiedName splits "analytics.players" into its schema and
// table parts. Only a single dot is handled; anything else is
// treated as unqualified.
func splitQualifiedName(name string) (schemaName, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func buildCreateSQL(table string, desc schema.Descriptor) (schemaSQL, tableSQL string, err error) {
	if strings.TrimSpace(table) == "" {
		return "", "", fmt.Errorf("table name is empty")
	}
	if len(desc.Columns) == 0 {
		return "", "", fmt.Errorf("create %s: descriptor has no columns", table)
	}

	if schemaName, _ := splitQualifiedName(table); schemaName != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schemaName))
	}

	defs := make([]string, 0, len(desc.Columns))
	for _, c := range desc.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", "", fmt.Errorf("create %s: empty column name", table)
		}
		defs = append(defs, fmt.Sprintf("%s %s", pgIdent(c.Name), typeFor(c.Kind)))
	}

	tableSQL = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", table, strings.Join(defs, ",\n  "))
	return schemaSQL, tableSQL, nil
}

// buildInsertSQL renders one multi-row INSERT with $n placeholders.
// Rows narrower than the column list pad with NULLs, mirroring how
// inference counts a missing tail.
func buildInsertSQL(table string, columns []string, rows []records.Row) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, pgIdent(c))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	n := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
			if j < len(row) {
				args = append(args, warehouse.BindValue(row[j]))
			} else {
				args = append(args, nil)
			}
		}
		b.WriteString(")")
	}
	b.WriteString(" ON CONFLICT DO NOTHING;")

	return b.String(), args
}
