// Package catalog maintains the table metadata the analytics side
// reads: column names and types per (database, table), plus the
// crawlers that fold new files into partitions.
//
// The pipeline only ever adds. New columns are created, existing ones
// may widen, and anything that would narrow a type is logged and left
// alone. Tables themselves are created by the crawler on its first
// pass, so a missing table just means the crawler has not seen the
// category yet.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTableNotFound reports a (database, table) pair the catalog does
// not know. Backends wrap their native not-found errors so callers can
// errors.Is against this one.
var ErrTableNotFound = errors.New("table not found in catalog")

// Column is one catalog column.
type Column struct {
	Name string
	Type string
}

// Catalog is the metadata interface the sync step drives.
type Catalog interface {
	// TableSchema returns the current column types of a table.
	TableSchema(ctx context.Context, database, table string) (map[string]string, error)
	// AddColumn appends a new column to a table.
	AddColumn(ctx context.Context, database, table string, col Column) error
	// UpdateColumnType changes the type of an existing column.
	UpdateColumnType(ctx context.Context, database, table string, col Column) error
	// StartCrawler asks the catalog to re-crawl a data location.
	// Backends treat an already-running crawler as success.
	StartCrawler(ctx context.Context, name string) error
}

// Config selects and configures a backend.
type Config struct {
	Backend string            `json:"backend"`
	Options map[string]string `json:"options,omitempty"`
}

// Factory builds a Catalog from its configuration.
type Factory func(ctx context.Context, cfg Config) (Catalog, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a backend available under a kind name. It panics on
// empty kinds, nil factories and duplicate registration.
func Register(kind string, f Factory) {
	if kind == "" {
		panic("catalog: Register called with empty kind")
	}
	if f == nil {
		panic("catalog: Register called with nil factory")
	}
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("catalog: Register called twice for kind " + kind)
	}
	factories[kind] = f
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (Catalog, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported catalog backend=%s", cfg.Backend)
	}
	return f(ctx, cfg)
}
