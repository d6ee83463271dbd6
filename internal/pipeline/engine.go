// Package pipeline ties the scrape together: a registry of declarative
// categories and an engine that runs fetch, transform, store, warehouse
// load and catalog sync for each of them in parallel.
//
// The engine assumes a single writer per category: two pipeline
// instances must not run against the same store and catalog at the same
// time. Nothing enforces this; scheduling is the operator's job.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"footstats/internal/catalog"
	"footstats/internal/config"
	"footstats/internal/fetch"
	"footstats/internal/league"
	"footstats/internal/metrics"
	"footstats/internal/objectstore"
	"footstats/internal/parse"
	"footstats/internal/schema"
	"footstats/internal/transform"
	"footstats/internal/warehouse"
	"footstats/internal/watermark"
	"footstats/pkg/records"
)

var errNoRecords = errors.New("no records fetched")

// Result reports one category's run.
type Result struct {
	Category  string
	Records   int
	Rows      int
	OutputKey string
	Quality   float64
	Skipped   bool
	Duration  time.Duration
	Err       error
}

// Engine runs the selected categories against a store and a catalog.
// Warehouse is optional; a nil repository skips the load stage. Only
// narrows the run to the named categories, empty meaning all enabled.
type Engine struct {
	Cfg       config.Pipeline
	Store     objectstore.Store
	Catalog   catalog.Catalog
	Warehouse warehouse.Repository
	API       *fetch.Client
	League    *league.Scraper
	Logger    Logger
	Only      []string

	now func() time.Time
}

func (e *Engine) logf(format string, v ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, v...)
	}
}

func (e *Engine) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

// Run executes every selected category: fan-out one worker per category
// (bounded by Runtime.CategoryWorkers), fan-in after all complete.
// Results come back sorted by category name. The returned error joins
// the per-category failures; a partial run is still a run, and the
// successes have already been persisted by the time it returns.
func (e *Engine) Run(ctx context.Context) ([]Result, error) {
	if e.Store == nil {
		return nil, errors.New("pipeline: Store is required")
	}
	if e.Catalog == nil {
		return nil, errors.New("pipeline: Catalog is required")
	}

	cats, err := e.selected()
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return nil, errors.New("pipeline: no categories selected")
	}

	runStart := time.Now()
	runID := uuid.NewString()
	date := e.clock().UTC().Format("2006-01-02")
	e.logf("stage=run run_id=%s date=%s categories=%d", runID, date, len(cats))

	tr := transform.New(transform.Options{
		Logger:      e.Logger,
		Suffixes:    parse.Suffixes(e.Cfg.Parse.Suffixes),
		DateLayouts: e.Cfg.Parse.DateLayouts,
		Separator:   e.Cfg.Parse.Separator,
	})

	var results []Result

	// Control-table bookkeeping. In smart mode a source that is
	// present, fresh and above the quality floor is not re-fetched.
	var mgr *watermark.Manager
	if e.Cfg.Watermark.Enabled {
		mgr = watermark.NewManager(e.Store, e.Logger)
		tbl, err := mgr.LoadOrCreate(ctx, date, nil, Sources(cats))
		if err != nil {
			return nil, fmt.Errorf("pipeline: watermark: %w", err)
		}
		if e.Cfg.Watermark.Smart {
			maxAge := time.Duration(e.Cfg.Watermark.MaxAgeHours) * time.Hour
			var stale []Category
			for _, cat := range cats {
				if tbl.NeedsFetch(cat.Name, e.clock().UTC(), maxAge, e.Cfg.Watermark.MinQuality) {
					stale = append(stale, cat)
					continue
				}
				e.logf("stage=skip category=%s reason=fresh", cat.Name)
				results = append(results, Result{Category: cat.Name, Skipped: true})
			}
			cats = stale
		}
	}

	// The id chain is shared by every roster-backed category, so it is
	// resolved once up front. When it fails those categories fail with
	// it; self-sufficient ones still run.
	need := NeedNone
	for _, cat := range cats {
		if cat.Need > need {
			need = cat.Need
		}
	}
	roster, rosterErr := e.resolveRoster(ctx, need)
	if rosterErr != nil {
		var runnable []Category
		for _, cat := range cats {
			if cat.Need == NeedNone {
				runnable = append(runnable, cat)
				continue
			}
			results = append(results, Result{Category: cat.Name, Err: fmt.Errorf("resolve roster: %w", rosterErr)})
		}
		cats = runnable
	}

	env := &Env{
		API:    e.API,
		League: e.League,
		Season: e.Cfg.Competition.Season,
		Roster: roster,
		Logger: e.Logger,
		Debug:  e.Cfg.Runtime.DebugTimings,
	}

	if len(cats) > 0 {
		workers := e.Cfg.Runtime.CategoryWorkers
		if workers <= 0 || workers > len(cats) {
			workers = len(cats)
		}

		catCh := make(chan Category)
		resCh := make(chan Result, len(cats))
		var wg sync.WaitGroup
		wg.Add(workers)
		for w := 0; w < workers; w++ {
			go func() {
				defer wg.Done()
				for cat := range catCh {
					resCh <- e.runCategory(ctx, cat, env, tr)
				}
			}()
		}
		for _, cat := range cats {
			catCh <- cat
		}
		close(catCh)
		wg.Wait()
		close(resCh)
		for r := range resCh {
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Category < results[j].Category })

	// The control table is one shared object, so outcome marks stay on
	// this goroutine after the fan-in.
	if mgr != nil {
		for _, r := range results {
			if r.Skipped {
				continue
			}
			count, score := int64(r.Rows), r.Quality
			if r.Err != nil {
				count, score = -1, -1
			}
			if err := mgr.MarkSource(ctx, date, r.Category, r.Err == nil, count, score); err != nil {
				e.logf("warn=watermark_mark category=%s err=%v", r.Category, err)
			}
		}
	}

	var errs []error
	ok, failed, skipped := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Err != nil:
			failed++
			errs = append(errs, fmt.Errorf("category %s: %w", r.Category, r.Err))
		default:
			ok++
		}
	}
	e.logf("stage=done run_id=%s ok=%d failed=%d skipped=%d duration=%s", runID, ok, failed, skipped, durMS(runStart))
	return results, errors.Join(errs...)
}

// selected merges the registry with the config overrides and the Only
// narrowing. A config entry may retarget table, crawler or the whole
// spec; naming an unregistered category is an error rather than a
// silent no-op.
func (e *Engine) selected() ([]Category, error) {
	overrides := make(map[string]config.CategoryConfig, len(e.Cfg.Categories))
	for _, cc := range e.Cfg.Categories {
		if _, ok := Lookup(cc.Name); !ok {
			return nil, fmt.Errorf("pipeline: unknown category %q in config", cc.Name)
		}
		overrides[cc.Name] = cc
	}

	var only map[string]bool
	if len(e.Only) > 0 {
		only = make(map[string]bool, len(e.Only))
		for _, name := range e.Only {
			if _, ok := Lookup(name); !ok {
				return nil, fmt.Errorf("pipeline: unknown category %q", name)
			}
			only[name] = true
		}
	}

	var out []Category
	for _, cat := range Categories() {
		if only != nil && !only[cat.Name] {
			continue
		}
		cc, has := overrides[cat.Name]
		if has && !cc.On() {
			continue
		}
		if has {
			if cc.Table != "" {
				cat.Table = cc.Table
			}
			if cc.Crawler != "" {
				cat.Crawler = cc.Crawler
			}
			if cc.Spec != nil {
				cat.Spec = *cc.Spec
			}
		}
		out = append(out, cat)
	}
	return out, nil
}

// resolveRoster walks the competition's id chain as deep as the run
// needs. A club whose squad fetch fails is logged and skipped, the same
// forgiveness the per-player fetches get; only the competition clubs
// call itself is fatal, because nothing downstream can run without it.
func (e *Engine) resolveRoster(ctx context.Context, need Need) (*Roster, error) {
	r := &Roster{}
	if need == NeedNone {
		return r, nil
	}
	if e.API == nil {
		return nil, errors.New("no api client configured")
	}

	start := time.Now()
	comp, ok, err := e.API.CompetitionClubs(ctx, e.Cfg.Competition.ID, e.Cfg.Competition.Season)
	if err != nil {
		return nil, fmt.Errorf("competition clubs %s: %w", e.Cfg.Competition.ID, err)
	}
	if !ok {
		return nil, fmt.Errorf("competition %s: no clubs payload", e.Cfg.Competition.ID)
	}
	r.Competition = comp
	r.ClubIDs = idList(comp["clubs"])

	if need < NeedPlayers {
		e.logf("stage=roster clubs=%d duration=%s", len(r.ClubIDs), durMS(start))
		return r, nil
	}

	for _, clubID := range r.ClubIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, ok, err := e.API.ClubPlayers(ctx, clubID)
		if err != nil {
			e.logf("warn=club_fetch_failed club=%s err=%v", clubID, err)
			continue
		}
		if !ok {
			e.logf("warn=club_no_data club=%s", clubID)
			continue
		}
		r.ClubPlayers = append(r.ClubPlayers, records.Raw{"club_id": clubID, "players": resp})
		r.PlayerIDs = append(r.PlayerIDs, idList(resp["players"])...)
	}
	e.logf("stage=roster clubs=%d players=%d duration=%s", len(r.ClubIDs), len(r.PlayerIDs), durMS(start))
	return r, nil
}

// rawPayload mirrors the upstream dump layout: one object wrapping the
// record list, so raw files stay readable by anything that consumed the
// previous scraper's output.
type rawPayload struct {
	Data []records.Raw `json:"data"`
}

// runCategory is one worker's whole job: fetch, persist raw, transform,
// persist flat rows, optional warehouse load, catalog sync, retention.
// Every stage is logged and measured; the first failing stage ends the
// category.
func (e *Engine) runCategory(ctx context.Context, cat Category, env *Env, tr *transform.Transformer) (res Result) {
	res.Category = cat.Name
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	var recs []records.Raw
	if res.Err = e.step(cat.Name, "fetch", func() error {
		var err error
		recs, err = cat.Fetch(ctx, env)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return errNoRecords
		}
		return nil
	}); res.Err != nil {
		return res
	}
	res.Records = len(recs)
	metrics.RecordRecords(cat.Name, "records", len(recs))

	// One stamp names both files so a raw dump and the flat file it
	// produced can be matched later.
	ts := e.clock().UTC()

	if res.Err = e.step(cat.Name, "raw", func() error {
		payload, err := json.Marshal(rawPayload{Data: recs})
		if err != nil {
			return fmt.Errorf("marshal raw payload: %w", err)
		}
		key := objectstore.RawKey(cat.Name, transform.RawFileName(cat.Name, ts))
		return e.Store.Put(ctx, key, bytes.NewReader(payload))
	}); res.Err != nil {
		return res
	}

	var batch *transform.Batch
	if res.Err = e.step(cat.Name, "transform", func() error {
		var err error
		batch, err = tr.Apply(cat.Spec, recs)
		return err
	}); res.Err != nil {
		return res
	}
	res.Rows = len(batch.Rows)
	res.Quality = watermark.Score(batch.Rows)
	metrics.RecordRecords(cat.Name, "rows", len(batch.Rows))
	metrics.RecordBatch()

	outKey := objectstore.TransformedKey(cat.Name, transform.FileName(cat.Name, ts))
	if res.Err = e.step(cat.Name, "store", func() error {
		var buf bytes.Buffer
		if err := transform.RenderBatch(&buf, batch, transform.RenderOptions{
			Delimiter:    e.Cfg.Output.Delimiter,
			NullSentinel: e.Cfg.Output.NullSentinel,
		}); err != nil {
			return err
		}
		return e.Store.Put(ctx, outKey, &buf)
	}); res.Err != nil {
		return res
	}
	res.OutputKey = outKey

	desc := schema.ApplyOverrides(schema.Infer(batch.Columns, batch.Rows), schema.DefaultOverrides())

	if e.Warehouse != nil {
		if res.Err = e.step(cat.Name, "warehouse", func() error {
			if err := e.Warehouse.EnsureTable(ctx, cat.Table, desc); err != nil {
				return err
			}
			n, err := e.Warehouse.LoadRows(ctx, cat.Table, batch.Columns, batch.Rows)
			if err != nil {
				return err
			}
			e.logf("stage=warehouse category=%s table=%s loaded=%d", cat.Name, cat.Table, n)
			return nil
		}); res.Err != nil {
			return res
		}
	}

	if res.Err = e.step(cat.Name, "catalog", func() error {
		_, err := catalog.Sync(ctx, e.Catalog, catalog.SyncInput{
			Database: e.Cfg.Catalog.Database,
			Table:    cat.Table,
			Crawler:  cat.Crawler,
			Desc:     desc,
		}, e.Logger)
		return err
	}); res.Err != nil {
		return res
	}

	if keep := e.Cfg.Retention.KeepRuns; keep > 0 {
		if res.Err = e.step(cat.Name, "retention", func() error {
			for _, prefix := range []string{objectstore.RawKey(cat.Name, ""), objectstore.TransformedKey(cat.Name, "")} {
				if _, err := objectstore.Prune(ctx, e.Store, prefix, keep); err != nil {
					return err
				}
			}
			return nil
		}); res.Err != nil {
			return res
		}
	}
	return res
}

// step runs one stage with the standard log line and metrics around it.
func (e *Engine) step(category, stage string, f func() error) error {
	start := time.Now()
	err := f()
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStep(category, stage, status, time.Since(start))
	if err != nil {
		e.logf("stage=%s category=%s status=error duration=%s err=%v", stage, category, durMS(start), err)
	} else {
		e.logf("stage=%s category=%s ok duration=%s", stage, category, durMS(start))
	}
	return err
}

// idList pulls the id from every object in a decoded JSON list.
// Non-object elements and empty ids are dropped.
func idList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if id := idString(obj["id"]); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	default:
		return ""
	}
}
