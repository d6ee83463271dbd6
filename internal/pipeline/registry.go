package pipeline

import (
	"context"
	"sort"
	"sync"

	"footstats/internal/fetch"
	"footstats/internal/league"
	"footstats/internal/objectstore"
	"footstats/internal/transform"
	"footstats/internal/watermark"
	"footstats/pkg/records"
)

// Logger is the minimal logging seam, satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

// Need names the roster data a category's fetch depends on. The engine
// resolves the deepest need among the selected categories once per run
// and shares the result read-only with every fetch.
type Need int

const (
	// NeedNone marks a self-sufficient fetch, like the standings
	// scrape.
	NeedNone Need = iota

	// NeedClubs requires the competition clubs payload.
	NeedClubs

	// NeedPlayers additionally requires the per-club squads and the
	// flattened player id list.
	NeedPlayers
)

// Roster is the id chain resolved at the start of a run: the competition
// clubs payload, the squad payload per club, and every player id seen
// in those squads. Fields beyond the resolved need stay empty.
type Roster struct {
	Competition records.Raw
	ClubIDs     []string
	ClubPlayers []records.Raw
	PlayerIDs   []string
}

// Env is what a category fetch runs against. It is shared by the
// per-category workers and must be treated as read-only.
type Env struct {
	API    *fetch.Client
	League *league.Scraper
	Season string
	Roster *Roster
	Logger Logger

	// Debug enables per-call timing logs in the fetch loops.
	Debug bool
}

func (env *Env) logf(format string, v ...any) {
	if env.Logger != nil {
		env.Logger.Printf(format, v...)
	}
}

// FetchFunc acquires one category's raw records.
type FetchFunc func(ctx context.Context, env *Env) ([]records.Raw, error)

// Category declares one pipeline data source end to end: how its records
// are fetched, how they map onto flat rows, and which catalog table and
// crawler they land in.
type Category struct {
	Name    string
	Table   string
	Crawler string
	Need    Need
	Spec    transform.Spec
	Fetch   FetchFunc
}

var (
	regMu      sync.RWMutex
	registered = map[string]Category{}
)

// Register makes a category available to the engine. Table defaults to
// the category name, the name the crawler's first pass gives the table
// it creates from the stored files. It panics on empty names, nil fetch
// functions and duplicate registration, all of which are wiring bugs.
func Register(c Category) {
	if c.Name == "" {
		panic("pipeline: Register called with empty category name")
	}
	if c.Fetch == nil {
		panic("pipeline: Register called with nil fetch for category " + c.Name)
	}
	if c.Table == "" {
		c.Table = c.Name
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registered[c.Name]; dup {
		panic("pipeline: Register called twice for category " + c.Name)
	}
	registered[c.Name] = c
}

// Lookup returns a registered category by name.
func Lookup(name string) (Category, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	c, ok := registered[name]
	return c, ok
}

// Categories lists every registration sorted by name.
func Categories() []Category {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]Category, 0, len(registered))
	for _, c := range registered {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Sources maps categories onto control-table sources. Every category is
// fetched league-wide in one pass, so completeness is tracked once per
// source rather than per team.
func Sources(cats []Category) []watermark.Source {
	out := make([]watermark.Source, 0, len(cats))
	for _, cat := range cats {
		out = append(out, watermark.Source{Name: cat.Name, Prefix: objectstore.RawKey(cat.Name, "")})
	}
	return out
}
