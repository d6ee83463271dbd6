// Package objectstore abstracts where run artifacts live: raw payload
// dumps, transformed flat files and control data such as watermarks.
//
// Backends register themselves by kind; production uses the s3 backend
// and local runs plus tests use the fs backend. Keys are slash-
// separated and bucket-relative regardless of backend.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrNotExist reports a key with no object behind it. Backends wrap
// their native not-found errors so callers can errors.Is against this
// one.
var ErrNotExist = errors.New("object does not exist")

// Object describes one stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the minimal object interface the pipeline needs. Put must
// leave no partial object behind on failure.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

// Config selects and configures a backend.
type Config struct {
	Backend string            `json:"backend"`
	Options map[string]string `json:"options,omitempty"`
}

// Factory builds a Store from its configuration.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a backend available under a kind name. It panics on
// empty kinds, nil factories and duplicate registration, all of which
// are wiring bugs.
func Register(kind string, f Factory) {
	if kind == "" {
		panic("objectstore: Register called with empty kind")
	}
	if f == nil {
		panic("objectstore: Register called with nil factory")
	}
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("objectstore: Register called twice for kind " + kind)
	}
	factories[kind] = f
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported object store backend=%s", cfg.Backend)
	}
	return f(ctx, cfg)
}

// Key layout shared by every backend. Raw payloads, transformed flat
// files and control data live under separate top-level prefixes so
// lifecycle rules and crawlers can target them independently.
const (
	RawPrefix         = "raw_data"
	TransformedPrefix = "transformed_data"
	ControlPrefix     = "control_data"
)

// RawKey places a raw payload dump for one category.
func RawKey(category, file string) string {
	return RawPrefix + "/" + category + "/" + file
}

// TransformedKey places a transformed flat file for one category.
func TransformedKey(category, file string) string {
	return TransformedPrefix + "/" + category + "/" + file
}

// ControlKey places a control artifact such as a watermark table.
func ControlKey(file string) string {
	return ControlPrefix + "/" + file
}
