// Package league scrapes league standings pages into raw records for the
// league_table category.
//
// The statistics API has no standings endpoint, so this package goes to the
// website directly: one standings page per season, one table per conference.
// goquery does the extraction; pages that declare a non UTF-8 charset are
// re-encoded first.
package league

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"footstats/pkg/records"
)

// DefaultBaseURL is the public site the standings tables live on.
const DefaultBaseURL = "https://www.transfermarkt.us"

// job tags HTTP metrics and log lines from this scraper.
const job = "league_table"

// Fetcher is the transport seam. The second return reports whether the page
// exists at all (a 404 is not a transport error).
type Fetcher interface {
	GetBytes(ctx context.Context, job, url string) ([]byte, bool, error)
}

type Logger interface {
	Printf(format string, v ...any)
}

// Options configures a Scraper.
type Options struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// League is the display name used in page URLs, e.g. "major league
	// soccer". Spaces become dashes, case is lowered.
	League string

	// CompetitionID is the site's competition code, e.g. "MLS1".
	CompetitionID string

	Logger Logger

	now func() time.Time
}

// Scraper fetches and parses standings pages.
type Scraper struct {
	opts Options
	f    Fetcher
}

func NewScraper(f Fetcher, opts Options) *Scraper {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Scraper{opts: opts, f: f}
}

func (s *Scraper) logf(format string, v ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Printf(format, v...)
	}
}

// Slug converts a league display name into its URL path segment.
func Slug(league string) string {
	return strings.Join(strings.Fields(strings.ToLower(league)), "-")
}

// TableURL builds the standings page URL for one competition season. An
// empty seasonID addresses the current season.
func TableURL(base, league, competitionID, seasonID string) string {
	u := fmt.Sprintf("%s/%s/tabelle/wettbewerb/%s",
		strings.TrimRight(base, "/"), Slug(league), url.PathEscape(competitionID))
	if seasonID != "" {
		u += "/saison_id/" + url.PathEscape(seasonID)
	}
	return u
}

// Standings scrapes one season and returns a record per club row, stamped
// with the season and the scrape time.
func (s *Scraper) Standings(ctx context.Context, seasonID string) ([]records.Raw, error) {
	page, err := s.page(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	recs, err := ParseStandings(page, seasonID)
	if err != nil {
		return nil, err
	}
	stamp := s.opts.now().UTC().Format(time.RFC3339)
	for _, rec := range recs {
		rec["league_updated_at"] = stamp
	}
	s.logf("stage=league_scrape season=%s records=%d", seasonID, len(recs))
	return recs, nil
}

// History scrapes every season the page's season selector offers. A season
// that fails to scrape is logged and skipped so the remaining seasons still
// load; only the initial page fetch is fatal.
func (s *Scraper) History(ctx context.Context) ([]records.Raw, error) {
	first, err := s.page(ctx, "")
	if err != nil {
		return nil, err
	}
	seasons, err := ParseSeasons(first)
	if err != nil {
		return nil, err
	}

	var out []records.Raw
	for _, season := range seasons {
		recs, err := s.Standings(ctx, season)
		if err != nil {
			s.logf("warn=season_failed season=%s err=%v", season, err)
			continue
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (s *Scraper) page(ctx context.Context, seasonID string) ([]byte, error) {
	u := TableURL(s.opts.BaseURL, s.opts.League, s.opts.CompetitionID, seasonID)
	body, ok, err := s.f.GetBytes(ctx, job, u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("league: standings page not found: %s", u)
	}
	return DecodeHTML(body), nil
}
