package league

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"footstats/pkg/records"
)

// standingsPage mirrors the live site's shape: season selector, a chrome
// table without a Pts column, one table per conference, and a third
// standings-shaped table that must be ignored.
const standingsPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Table</title></head>
<body>
<div class="box">
<select name="saison_id">
<option value="2024" selected>24/25</option>
<option value="2023">23/24</option>
</select>
</div>
<table class="chrome"><tr><th>Filter</th></tr><tr><td>All</td></tr></table>
<table class="items">
<thead><tr><th>#</th><th colspan="2">Club</th><th></th><th>W</th><th>D</th><th>L</th><th>Goals</th><th>+/-</th><th>Pts</th></tr></thead>
<tbody>
<tr><td>1</td><td><img src="miami.png"/></td><td><a href="/inter-miami">Inter Miami CF</a></td><td>34</td><td>22</td><td>8</td><td>4</td><td>79:49</td><td>30</td><td>74</td></tr>
<tr><td>2</td><td><img src="cincy.png"/></td><td><a href="/fc-cincinnati">FC Cincinnati</a></td><td>34</td><td>20</td><td>9</td><td>5</td><td>64:39</td><td>25</td><td>69</td></tr>
<tr class="spacer"><td colspan="10">Playoffs</td></tr>
</tbody>
</table>
<table class="items">
<thead><tr><th>#</th><th colspan="2">Club</th><th></th><th>W</th><th>D</th><th>L</th><th>Goals</th><th>+/-</th><th>Pts</th></tr></thead>
<tbody>
<tr><td>1</td><td><img src="lafc.png"/></td><td><a href="/los-angeles-fc">Los Angeles FC</a></td><td>34</td><td>19</td><td>7</td><td>8</td><td>68:49</td><td></td><td>64</td></tr>
</tbody>
</table>
<table class="items">
<thead><tr><th>#</th><th>Club</th><th>Pts</th></tr></thead>
<tbody><tr><td>1</td><td>Ignored FC</td><td>99</td></tr></tbody>
</table>
</body></html>`

//
// ParseStandings
//

func TestParseStandings(t *testing.T) {
	t.Parallel()

	recs, err := ParseStandings([]byte(standingsPage), "2024")
	if err != nil {
		t.Fatalf("ParseStandings: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}

	want := records.Raw{
		"position":        "1",
		"club_name":       "Inter Miami CF",
		"matches_played":  "34",
		"wins":            "22",
		"draws":           "8",
		"losses":          "4",
		"goals":           "79:49",
		"goal_difference": "30",
		"points":          "74",
		"conference":      "eastern",
		"year":            "2024",
	}
	if !reflect.DeepEqual(recs[0], want) {
		t.Fatalf("first record =\n%#v\nwant\n%#v", recs[0], want)
	}

	if recs[1]["club_name"] != "FC Cincinnati" || recs[1]["conference"] != "eastern" {
		t.Fatalf("second record = %#v", recs[1])
	}

	west := recs[2]
	if west["club_name"] != "Los Angeles FC" || west["conference"] != "western" {
		t.Fatalf("western record = %#v", west)
	}
	if v, present := west["goal_difference"]; !present || v != nil {
		t.Fatalf("empty cell = %#v, want explicit null", v)
	}

	for _, rec := range recs {
		if rec["club_name"] == "Ignored FC" {
			t.Fatal("third standings table leaked into output")
		}
	}
}

func TestParseStandingsNoTable(t *testing.T) {
	t.Parallel()

	_, err := ParseStandings([]byte(`<html><body><p>maintenance</p></body></html>`), "2024")
	if err == nil {
		t.Fatal("ParseStandings on a page without tables succeeded")
	}
}

//
// ParseSeasons
//

func TestParseSeasons(t *testing.T) {
	t.Parallel()

	seasons, err := ParseSeasons([]byte(standingsPage))
	if err != nil {
		t.Fatalf("ParseSeasons: %v", err)
	}
	want := []string{"2024", "2023"}
	if !reflect.DeepEqual(seasons, want) {
		t.Fatalf("seasons = %v, want %v", seasons, want)
	}

	if _, err := ParseSeasons([]byte(`<html><body></body></html>`)); err == nil {
		t.Fatal("ParseSeasons without a selector succeeded")
	}
}

//
// header mapping
//

func TestAliasHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			"live site shape",
			[]string{"#", "Club", "Club", "", "W", "D", "L", "Goals", "+/-", "Pts"},
			[]string{"position", "", "club_name", "matches_played", "wins", "draws", "losses", "goals", "goal_difference", "points"},
		},
		{
			"single club column",
			[]string{"#", "Club", "Pts"},
			[]string{"position", "club_name", "points"},
		},
		{
			"unknown columns dropped",
			[]string{"#", "Club", "Form", "Pts"},
			[]string{"position", "club_name", "", "points"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := aliasHeader(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("aliasHeader(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

//
// URLs
//

func TestTableURL(t *testing.T) {
	t.Parallel()

	got := TableURL(DefaultBaseURL, "Major League Soccer", "MLS1", "2024")
	want := "https://www.transfermarkt.us/major-league-soccer/tabelle/wettbewerb/MLS1/saison_id/2024"
	if got != want {
		t.Fatalf("TableURL = %q, want %q", got, want)
	}

	got = TableURL(DefaultBaseURL+"/", "major  league soccer", "MLS1", "")
	want = "https://www.transfermarkt.us/major-league-soccer/tabelle/wettbewerb/MLS1"
	if got != want {
		t.Fatalf("TableURL current season = %q, want %q", got, want)
	}
}

//
// Scraper
//

type fakeFetcher struct {
	pages map[string][]byte
	urls  []string
	err   error
}

func (f *fakeFetcher) GetBytes(_ context.Context, _ string, url string) ([]byte, bool, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, false, f.err
	}
	page, ok := f.pages[url]
	if !ok {
		return nil, false, nil
	}
	return page, true, nil
}

type testLogger struct {
	lines []string
}

func (l *testLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func (l *testLogger) contains(substr string) bool {
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func newTestScraper(pages map[string][]byte) (*Scraper, *fakeFetcher, *testLogger) {
	ff := &fakeFetcher{pages: pages}
	lg := &testLogger{}
	s := NewScraper(ff, Options{
		League:        "Major League Soccer",
		CompetitionID: "MLS1",
		Logger:        lg,
		now: func() time.Time {
			return time.Date(2024, 11, 10, 8, 30, 0, 0, time.UTC)
		},
	})
	return s, ff, lg
}

func TestScraperStandings(t *testing.T) {
	t.Parallel()

	seasonURL := "https://www.transfermarkt.us/major-league-soccer/tabelle/wettbewerb/MLS1/saison_id/2024"
	s, ff, _ := newTestScraper(map[string][]byte{seasonURL: []byte(standingsPage)})

	recs, err := s.Standings(context.Background(), "2024")
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
	if len(ff.urls) != 1 || ff.urls[0] != seasonURL {
		t.Fatalf("fetched %v, want [%s]", ff.urls, seasonURL)
	}
	for _, rec := range recs {
		if rec["league_updated_at"] != "2024-11-10T08:30:00Z" {
			t.Fatalf("league_updated_at = %v", rec["league_updated_at"])
		}
	}
}

func TestScraperStandingsMissingPage(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestScraper(nil)
	if _, err := s.Standings(context.Background(), "2024"); err == nil {
		t.Fatal("Standings against a missing page succeeded")
	}
}

func TestScraperStandingsFetchError(t *testing.T) {
	t.Parallel()

	s, ff, _ := newTestScraper(nil)
	ff.err = errors.New("boom")
	if _, err := s.Standings(context.Background(), "2024"); !errors.Is(err, ff.err) {
		t.Fatalf("Standings = %v, want wrapped fetch error", err)
	}
}

// TestScraperHistory scrapes every listed season and skips the ones that
// fail instead of aborting the run.
func TestScraperHistory(t *testing.T) {
	t.Parallel()

	currentURL := "https://www.transfermarkt.us/major-league-soccer/tabelle/wettbewerb/MLS1"
	season2024 := currentURL + "/saison_id/2024"
	s, ff, lg := newTestScraper(map[string][]byte{
		currentURL: []byte(standingsPage),
		season2024: []byte(standingsPage),
		// 2023 intentionally absent
	})

	recs, err := s.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3 (2024 only)", len(recs))
	}
	if len(ff.urls) != 3 {
		t.Fatalf("fetched %d pages, want 3", len(ff.urls))
	}
	if !lg.contains("warn=season_failed season=2023") {
		t.Fatalf("missing season warn, logs: %v", lg.lines)
	}
	for _, rec := range recs {
		if rec["year"] != "2024" {
			t.Fatalf("year = %v, want 2024", rec["year"])
		}
	}
}

//
// charset handling
//

func TestDecodeHTML(t *testing.T) {
	t.Parallel()

	latin := []byte("<html><head><meta http-equiv=\"Content-Type\" content=\"text/html; charset=windows-1252\"></head><body>Am\xe9rica</body></html>")
	decoded := DecodeHTML(latin)
	if !strings.Contains(string(decoded), "América") {
		t.Fatalf("decoded page missing re-encoded text: %q", decoded)
	}

	utf8Page := []byte(`<html><head><meta charset="utf-8"></head><body>América</body></html>`)
	if got := DecodeHTML(utf8Page); !reflect.DeepEqual(got, utf8Page) {
		t.Fatal("utf-8 page was rewritten")
	}

	plain := []byte(`<html><body>no declaration</body></html>`)
	if got := DecodeHTML(plain); !reflect.DeepEqual(got, plain) {
		t.Fatal("undeclared page was rewritten")
	}

	unknown := []byte(`<html><head><meta charset="x-klingon"></head><body>ok</body></html>`)
	if got := DecodeHTML(unknown); !reflect.DeepEqual(got, unknown) {
		t.Fatal("unknown charset page was rewritten")
	}
}
