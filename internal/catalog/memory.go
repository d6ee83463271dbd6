package catalog

import (
	"context"
	"fmt"
	"sync"
)

func init() {
	Register("memory", func(ctx context.Context, cfg Config) (Catalog, error) {
		return NewMemory(), nil
	})
}

// Memory is an in-process catalog for local runs and tests. It records
// every crawler start instead of running anything.
type Memory struct {
	mu       sync.Mutex
	tables   map[string]map[string]string
	crawlers []string
}

func NewMemory() *Memory {
	return &Memory{tables: map[string]map[string]string{}}
}

func tableKey(database, table string) string { return database + "." + table }

// SetTable seeds or replaces a table definition.
func (m *Memory) SetTable(database, table string, columns map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(columns))
	for k, v := range columns {
		cp[k] = v
	}
	m.tables[tableKey(database, table)] = cp
}

func (m *Memory) TableSchema(ctx context.Context, database, table string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cols, ok := m.tables[tableKey(database, table)]
	if !ok {
		return nil, fmt.Errorf("memory catalog: %s.%s: %w", database, table, ErrTableNotFound)
	}
	cp := make(map[string]string, len(cols))
	for k, v := range cols {
		cp[k] = v
	}
	return cp, nil
}

func (m *Memory) AddColumn(ctx context.Context, database, table string, col Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cols, ok := m.tables[tableKey(database, table)]
	if !ok {
		return fmt.Errorf("memory catalog: %s.%s: %w", database, table, ErrTableNotFound)
	}
	if _, exists := cols[col.Name]; exists {
		return fmt.Errorf("memory catalog: %s.%s: column %s already exists", database, table, col.Name)
	}
	cols[col.Name] = col.Type
	return nil
}

func (m *Memory) UpdateColumnType(ctx context.Context, database, table string, col Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cols, ok := m.tables[tableKey(database, table)]
	if !ok {
		return fmt.Errorf("memory catalog: %s.%s: %w", database, table, ErrTableNotFound)
	}
	if _, exists := cols[col.Name]; !exists {
		return fmt.Errorf("memory catalog: %s.%s: column %s does not exist", database, table, col.Name)
	}
	cols[col.Name] = col.Type
	return nil
}

func (m *Memory) StartCrawler(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crawlers = append(m.crawlers, name)
	return nil
}

// StartedCrawlers returns every crawler start in order.
func (m *Memory) StartedCrawlers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.crawlers...)
}

var _ Catalog = (*Memory)(nil)
