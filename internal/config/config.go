// Package config defines the JSON pipeline configuration and its
// validation.
//
// The file is decoded with encoding/json and Load fills defaults
// afterwards, so a minimal config runs locally out of the box: fs
// store, memory catalog, no warehouse. Validation never stops at the
// first problem; ValidatePipeline returns every issue it can find so
// an operator fixes the file in one pass.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"footstats/internal/catalog"
	"footstats/internal/objectstore"
	"footstats/internal/transform"
	"footstats/internal/warehouse"
)

// Defaults shared by Load and the cmds.
const (
	DefaultJob        = "footstats"
	DefaultAPIBaseURL = "https://transfermarkt-api.fly.dev"
	DefaultDatabase   = "transfermarket_analytics"
	DefaultFSRoot     = "data"
)

// Pipeline is the root configuration document.
type Pipeline struct {
	Job         string             `json:"job"`
	API         APIConfig          `json:"api"`
	Competition CompetitionConfig  `json:"competition"`
	League      LeagueConfig       `json:"league"`
	Categories  []CategoryConfig   `json:"categories"`
	Store       objectstore.Config `json:"store"`
	Catalog     CatalogConfig      `json:"catalog"`
	Warehouse   warehouse.Config   `json:"warehouse"`
	Output      OutputConfig       `json:"output"`
	Parse       ParseConfig        `json:"parse"`
	Watermark   WatermarkConfig    `json:"watermark"`
	Retention   RetentionConfig    `json:"retention"`
	Runtime     RuntimeConfig      `json:"runtime"`
}

// APIConfig configures the statistics API client. Durations are
// milliseconds; zero falls back to the client defaults.
type APIConfig struct {
	BaseURL      string `json:"base_url"`
	TimeoutMS    int    `json:"timeout_ms"`
	MaxAttempts  int    `json:"max_attempts"`
	BackoffMS    int    `json:"backoff_ms"`
	BackoffMaxMS int    `json:"backoff_max_ms"`
	JitterMS     int    `json:"jitter_ms"`
}

// CompetitionConfig names the competition one run covers. An empty
// season means the API's current season.
type CompetitionConfig struct {
	ID     string `json:"id"`
	Season string `json:"season"`
}

// LeagueConfig configures the standings scrape. BaseURL empty falls
// back to the scraper default; Name is the league's site slug source,
// e.g. "major league soccer".
type LeagueConfig struct {
	BaseURL string `json:"base_url"`
	Name    string `json:"name"`
}

// CategoryConfig selects and tunes one registered category. Table
// defaults to the category name and Crawler to "<name>_crawler"; a
// Spec overrides the built-in column mapping wholesale.
type CategoryConfig struct {
	Name    string          `json:"name"`
	Enabled *bool           `json:"enabled,omitempty"`
	Table   string          `json:"table,omitempty"`
	Crawler string          `json:"crawler,omitempty"`
	Spec    *transform.Spec `json:"spec,omitempty"`
}

// On reports whether the category is selected; absent means enabled.
func (c CategoryConfig) On() bool { return c.Enabled == nil || *c.Enabled }

// CatalogConfig adds the pipeline-level database name to the catalog
// backend selection.
type CatalogConfig struct {
	catalog.Config
	Database string `json:"database"`
}

// OutputConfig shapes the delimited flat files.
type OutputConfig struct {
	Delimiter    string `json:"delimiter"`
	NullSentinel string `json:"null_sentinel"`
}

// ParseConfig extends the value parser. Nil maps and empty slices
// keep the built-in tables.
type ParseConfig struct {
	Suffixes    map[string]float64 `json:"suffixes,omitempty"`
	DateLayouts []string           `json:"date_layouts,omitempty"`
	Separator   string             `json:"separator,omitempty"`
}

// WatermarkConfig controls the control-table bookkeeping. Enabled
// turns the bookkeeping on; Smart additionally skips team/category
// fetches whose data is present, fresh and above the quality floor.
type WatermarkConfig struct {
	Enabled     bool    `json:"enabled"`
	Smart       bool    `json:"smart"`
	MaxAgeHours int     `json:"max_age_hours"`
	MinQuality  float64 `json:"min_quality"`
}

// RetentionConfig bounds how many runs stay in the object store per
// category prefix. Zero keeps everything.
type RetentionConfig struct {
	KeepRuns int `json:"keep_runs"`
}

// RuntimeConfig controls engine execution.
type RuntimeConfig struct {
	// CategoryWorkers caps concurrent categories. Zero means one
	// goroutine per category.
	CategoryWorkers int `json:"category_workers"`

	// DebugTimings enables per-stage duration logs.
	DebugTimings bool `json:"debug_timings"`
}

// Load reads, decodes and defaults a pipeline config.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var p Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	p.applyDefaults()
	return p, nil
}

func (p *Pipeline) applyDefaults() {
	if p.Job == "" {
		p.Job = DefaultJob
	}
	if p.API.BaseURL == "" {
		p.API.BaseURL = DefaultAPIBaseURL
	}
	if p.Store.Backend == "" {
		p.Store.Backend = "fs"
	}
	if p.Store.Backend == "fs" && p.Store.Options["root"] == "" {
		if p.Store.Options == nil {
			p.Store.Options = map[string]string{}
		}
		p.Store.Options["root"] = DefaultFSRoot
	}
	if p.Catalog.Backend == "" {
		p.Catalog.Backend = "memory"
	}
	if p.Catalog.Database == "" {
		p.Catalog.Database = DefaultDatabase
	}
	if p.Output.Delimiter == "" {
		p.Output.Delimiter = "|"
	}
	if p.Parse.Separator == "" {
		p.Parse.Separator = ","
	}
}

// Severity ranks an Issue. Errors make the config unusable; warnings
// run anyway.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in a config, addressed by a dotted path
// into the document.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// ValidatePipeline checks a loaded config and returns every issue
// found.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	errf := func(path, format string, v ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, v...)})
	}
	warnf := func(path, format string, v ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, v...)})
	}

	if p.API.BaseURL == "" {
		errf("api.base_url", "must not be empty")
	}
	if p.API.TimeoutMS < 0 {
		errf("api.timeout_ms", "must not be negative")
	}
	if p.API.MaxAttempts < 0 {
		errf("api.max_attempts", "must not be negative")
	}
	if p.API.BackoffMS < 0 {
		errf("api.backoff_ms", "must not be negative")
	}
	if p.API.BackoffMaxMS < 0 {
		errf("api.backoff_max_ms", "must not be negative")
	}
	if p.API.JitterMS < 0 {
		errf("api.jitter_ms", "must not be negative")
	}
	if p.API.BackoffMaxMS > 0 && p.API.BackoffMS > p.API.BackoffMaxMS {
		errf("api.backoff_ms", "exceeds backoff_max_ms")
	}

	if p.Competition.ID == "" {
		errf("competition.id", "must not be empty")
	}

	seen := map[string]int{}
	leagueSelected := len(p.Categories) == 0
	for i, c := range p.Categories {
		path := fmt.Sprintf("categories[%d]", i)
		if c.Name == "" {
			errf(path+".name", "must not be empty")
			continue
		}
		if prev, dup := seen[c.Name]; dup {
			errf(path+".name", "duplicate of categories[%d]", prev)
		} else {
			seen[c.Name] = i
		}
		if c.Name == "league_table" && c.On() {
			leagueSelected = true
		}
		if c.Spec != nil {
			if c.Spec.Category != "" && c.Spec.Category != c.Name {
				errf(path+".spec.category", "declares %q, want %q", c.Spec.Category, c.Name)
			}
			spec := *c.Spec
			if spec.Category == "" {
				spec.Category = c.Name
			}
			for _, msg := range spec.Validate() {
				errf(path+".spec", "%s", msg)
			}
		}
	}
	if leagueSelected && p.League.Name == "" {
		errf("league.name", "must not be empty when league_table runs")
	}

	switch p.Store.Backend {
	case "":
		errf("store.backend", "must not be empty")
	case "fs":
		if p.Store.Options["root"] == "" {
			errf("store.options.root", "fs backend needs a root directory")
		}
	case "s3":
		if p.Store.Options["bucket"] == "" {
			errf("store.options.bucket", "s3 backend needs a bucket")
		}
	default:
		warnf("store.backend", "unknown backend %q", p.Store.Backend)
	}

	switch p.Catalog.Backend {
	case "", "memory", "glue":
	default:
		warnf("catalog.backend", "unknown backend %q", p.Catalog.Backend)
	}
	if p.Catalog.Database == "" {
		errf("catalog.database", "must not be empty")
	}

	if p.Warehouse.Backend != "" && p.Warehouse.DSN == "" {
		errf("warehouse.dsn", "backend %q needs a dsn", p.Warehouse.Backend)
	}

	if len(p.Output.Delimiter) > 1 {
		errf("output.delimiter", "must be a single character")
	}

	for s, f := range p.Parse.Suffixes {
		if f <= 0 {
			errf("parse.suffixes."+s, "factor must be positive")
		}
	}

	if p.Watermark.Smart && !p.Watermark.Enabled {
		warnf("watermark.smart", "smart skipping has no effect while the watermark is disabled")
	}
	if p.Watermark.MaxAgeHours < 0 {
		errf("watermark.max_age_hours", "must not be negative")
	}
	if p.Watermark.MinQuality < 0 || p.Watermark.MinQuality > 1 {
		errf("watermark.min_quality", "must be between 0 and 1")
	}

	if p.Retention.KeepRuns < 0 {
		errf("retention.keep_runs", "must not be negative")
	}
	if p.Runtime.CategoryWorkers < 0 {
		errf("runtime.category_workers", "must not be negative")
	}

	return issues
}

// HasErrors reports whether any issue is severity error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
