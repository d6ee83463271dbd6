// Package warehouse loads transformed batches into a relational
// database, one table per category. The warehouse is an optional
// sink: the object store stays the source of truth, the database
// exists for ad hoc SQL over the freshest run.
//
// Backends register themselves by kind. Destination tables are
// created from the inferred batch schema with every column nullable,
// since any scraped cell can legitimately be empty after conversion.
package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"footstats/internal/schema"
	"footstats/pkg/records"
)

// Repository is the relational sink the engine loads into.
type Repository interface {
	// EnsureTable creates the destination table when it is missing.
	// Existing tables are left untouched even when the descriptor
	// differs; widening is the catalog's job, not the warehouse's.
	EnsureTable(ctx context.Context, table string, desc schema.Descriptor) error
	// LoadRows appends one transformed batch and reports how many
	// rows the database accepted.
	LoadRows(ctx context.Context, table string, columns []string, rows []records.Row) (int64, error)
	// Close releases connections. Call once at shutdown.
	Close()
}

// Config selects and configures a backend. An empty Backend means
// the warehouse stage is disabled.
type Config struct {
	Backend string `json:"backend"`
	DSN     string `json:"dsn,omitempty"`
}

// Factory builds a Repository from its configuration.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a backend available under a kind name. It panics on
// empty kinds, nil factories and duplicate registration.
func Register(kind string, f Factory) {
	if kind == "" {
		panic("warehouse: Register called with empty kind")
	}
	if f == nil {
		panic("warehouse: Register called with nil factory")
	}
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("warehouse: Register called twice for kind " + kind)
	}
	factories[kind] = f
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (Repository, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported warehouse backend=%s", cfg.Backend)
	}
	return f(ctx, cfg)
}

// BindValue converts one field to a driver-level argument. Null
// fields become nil so the database stores NULL rather than a
// sentinel. Dates and timestamps travel as their ISO strings and the
// server parses them against the column type.
func BindValue(f records.Field) any {
	if f.IsNull() {
		return nil
	}
	switch v := f.Value.(type) {
	case string, int64, float64, bool:
		return v
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if fl, err := v.Float64(); err == nil {
			return fl
		}
		return v.String()
	default:
		return f.Render("")
	}
}
