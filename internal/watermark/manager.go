package watermark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"footstats/internal/objectstore"
)

type Logger interface {
	Printf(format string, v ...any)
}

// Source describes one tracked data source: where its raw files live and
// whether completeness is tracked per team or once for the whole league.
type Source struct {
	Name    string
	Prefix  string
	PerTeam bool
}

// Manager loads, builds and updates control tables in the object store.
type Manager struct {
	store objectstore.Store
	log   Logger

	now func() time.Time
}

func NewManager(store objectstore.Store, logger Logger) *Manager {
	return &Manager{store: store, log: logger, now: time.Now}
}

func (m *Manager) logf(format string, v ...any) {
	if m.log != nil {
		m.log.Printf(format, v...)
	}
}

// Load reads the control table for a date. The second return is false when
// no table exists yet.
func (m *Manager) Load(ctx context.Context, date string) (*Table, bool, error) {
	rc, err := m.store.Get(ctx, objectstore.ControlKey(Key(date)))
	if errors.Is(err, objectstore.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load watermark %s: %w", date, err)
	}
	defer rc.Close()

	t, err := Decode(rc)
	if err != nil {
		return nil, false, fmt.Errorf("load watermark %s: %w", date, err)
	}
	t.Date = date
	return t, true, nil
}

// Save writes the table back under its date's control key.
func (m *Manager) Save(ctx context.Context, t *Table) error {
	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return err
	}
	if err := m.store.Put(ctx, objectstore.ControlKey(Key(t.Date)), &buf); err != nil {
		return fmt.Errorf("save watermark %s: %w", t.Date, err)
	}
	return nil
}

// Create builds a fresh table by probing the object store for each source's
// raw file: per-team sources get one entry per team, league-wide sources a
// single ALL entry. The table is saved before it is returned.
func (m *Manager) Create(ctx context.Context, date string, teams []string, sources []Source) (*Table, error) {
	type state struct {
		exists bool
		size   int64
	}
	states := make(map[string]state, len(sources))
	for _, src := range sources {
		obj, ok := m.findRaw(ctx, src, date)
		states[src.Name] = state{exists: ok, size: obj.Size}
	}

	checked := m.now().UTC().Format(time.RFC3339)
	entry := func(teamID string, src Source) Entry {
		st := states[src.Name]
		return Entry{
			Date:             date,
			TeamID:           teamID,
			DataSource:       src.Name,
			DataExists:       st.exists,
			LastChecked:      checked,
			FileSizeBytes:    st.size,
			RecordCount:      -1,
			DataQualityScore: -1,
			NeedsRefresh:     !st.exists,
		}
	}

	t := &Table{Date: date}
	for _, teamID := range teams {
		for _, src := range sources {
			if !src.PerTeam {
				continue
			}
			t.Entries = append(t.Entries, entry(teamID, src))
		}
	}
	for _, src := range sources {
		if src.PerTeam {
			continue
		}
		t.Entries = append(t.Entries, entry(TeamAll, src))
	}

	if err := m.Save(ctx, t); err != nil {
		return nil, err
	}
	m.logf("stage=watermark op=create date=%s entries=%d", date, len(t.Entries))
	return t, nil
}

// LoadOrCreate returns the existing table for a date or builds one.
func (m *Manager) LoadOrCreate(ctx context.Context, date string, teams []string, sources []Source) (*Table, error) {
	t, found, err := m.Load(ctx, date)
	if err != nil {
		return nil, err
	}
	if found {
		return t, nil
	}
	return m.Create(ctx, date, teams, sources)
}

// MarkSource records a fetch outcome for every team tracking the source.
// Negative counts and scores leave the prior measurements in place. A
// missing table is only warned about: the engine creates the table at the
// start of a run, so this happens when runs race a manual delete.
func (m *Manager) MarkSource(ctx context.Context, date, source string, success bool, recordCount int64, score float64) error {
	t, found, err := m.Load(ctx, date)
	if err != nil {
		return err
	}
	if !found {
		m.logf("warn=watermark_missing date=%s source=%s", date, source)
		return nil
	}

	checked := m.now().UTC().Format(time.RFC3339)
	matched := 0
	for i := range t.Entries {
		e := &t.Entries[i]
		if e.DataSource != source {
			continue
		}
		matched++
		e.DataExists = success
		e.NeedsRefresh = !success
		e.LastChecked = checked
		if recordCount >= 0 {
			e.RecordCount = recordCount
		}
		if score >= 0 {
			e.DataQualityScore = score
		}
	}
	if matched == 0 {
		m.logf("warn=watermark_no_entry date=%s source=%s", date, source)
		return nil
	}
	if err := m.Save(ctx, t); err != nil {
		return err
	}
	m.logf("stage=watermark op=mark date=%s source=%s success=%t entries=%d", date, source, success, matched)
	return nil
}

// MarkRefresh flags entries for a forced re-fetch and returns how many
// matched. Empty teamID or source match everything, so ("", "") flags the
// whole table.
func (m *Manager) MarkRefresh(ctx context.Context, date, teamID, source string) (int, error) {
	t, found, err := m.Load(ctx, date)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("no watermark table for %s", date)
	}

	matched := 0
	for i := range t.Entries {
		e := &t.Entries[i]
		if teamID != "" && e.TeamID != teamID {
			continue
		}
		if source != "" && e.DataSource != source {
			continue
		}
		e.NeedsRefresh = true
		matched++
	}
	if matched == 0 {
		return 0, nil
	}
	if err := m.Save(ctx, t); err != nil {
		return 0, err
	}
	return matched, nil
}

// findRaw locates the newest raw object for a source on a date. Raw file
// names embed a compact timestamp, so the date is matched in 20060102 form.
func (m *Manager) findRaw(ctx context.Context, src Source, date string) (objectstore.Object, bool) {
	objs, err := m.store.List(ctx, src.Prefix)
	if err != nil {
		m.logf("warn=watermark_list_failed prefix=%s err=%v", src.Prefix, err)
		return objectstore.Object{}, false
	}

	token := strings.ReplaceAll(date, "-", "")
	var best objectstore.Object
	found := false
	for _, obj := range objs {
		if !strings.Contains(obj.Key, token) {
			continue
		}
		if !found || obj.LastModified.After(best.LastModified) {
			best = obj
			found = true
		}
	}
	return best, found
}
