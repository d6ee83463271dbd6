package league

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"footstats/pkg/records"

	"github.com/PuerkitoBio/goquery"
)

// conferences labels standings tables in page order.
var conferences = [...]string{"eastern", "western"}

// ParseStandings extracts club records from the standings tables of one
// season page.
//
// A standings table is any table whose header row contains "Pts"; the page
// carries plenty of other tables (season selector chrome, top scorers) that
// must not leak into the output. The first standings table is the eastern
// conference, the second the western, matching page order. Rows whose cell
// count does not match the header are spacers and are skipped.
//
// Cell values stay strings; typing happens downstream in the transformer.
// Empty cells become explicit nulls. seasonID, when non-empty, is stamped on
// every record as "year".
func ParseStandings(page []byte, seasonID string) ([]records.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("league: parse html: %w", err)
	}

	var out []records.Raw
	tables := 0
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		header := headerCells(tbl)
		if !slices.Contains(header, "Pts") {
			return
		}
		if tables >= len(conferences) {
			return
		}
		conference := conferences[tables]
		tables++

		cols := aliasHeader(header)
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			rec := rowRecord(tr, cols)
			if rec == nil {
				return
			}
			rec["conference"] = conference
			if seasonID != "" {
				rec["year"] = seasonID
			}
			out = append(out, rec)
		})
	})

	if tables == 0 {
		return nil, errors.New("league: no standings table in page")
	}
	return out, nil
}

// ParseSeasons lists the season ids offered by the page's season selector,
// in page order (newest first on the live site).
func ParseSeasons(page []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("league: parse html: %w", err)
	}

	var out []string
	doc.Find(`select[name="saison_id"] option`).Each(func(_ int, opt *goquery.Selection) {
		v, ok := opt.Attr("value")
		if !ok {
			return
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	})
	if len(out) == 0 {
		return nil, errors.New("league: no season selector in page")
	}
	return out, nil
}

// headerCells returns the header texts of the table's first header row, with
// colspan cells expanded so positions line up with body cells. The club
// column spans two cells on the live site (badge plus name).
func headerCells(tbl *goquery.Selection) []string {
	row := tbl.Find("thead tr").First()
	if row.Length() == 0 {
		row = tbl.Find("tr").First()
	}

	var cells []string
	row.Find("th").Each(func(_ int, th *goquery.Selection) {
		text := cellText(th)
		span := 1
		if v, ok := th.Attr("colspan"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 1 {
				span = n
			}
		}
		for i := 0; i < span; i++ {
			cells = append(cells, text)
		}
	})
	return cells
}

// aliasHeader maps expanded header texts to output column names. An empty
// name drops the column. The last "Club" cell is the club name; earlier ones
// are the badge. The one unnamed column on the live site is matches played.
func aliasHeader(cells []string) []string {
	clubs := 0
	for _, c := range cells {
		if c == "Club" {
			clubs++
		}
	}

	out := make([]string, len(cells))
	clubSeen, emptySeen := 0, 0
	for i, c := range cells {
		switch c {
		case "#":
			out[i] = "position"
		case "Club":
			clubSeen++
			if clubSeen == clubs {
				out[i] = "club_name"
			}
		case "":
			emptySeen++
			if emptySeen == 1 {
				out[i] = "matches_played"
			}
		case "W":
			out[i] = "wins"
		case "D":
			out[i] = "draws"
		case "L":
			out[i] = "losses"
		case "Goals":
			out[i] = "goals"
		case "+/-":
			out[i] = "goal_difference"
		case "Pts":
			out[i] = "points"
		}
	}
	return out
}

// rowRecord converts one body row into a record, or nil for rows that are
// not club rows (header rows have no td cells, spacer rows have the wrong
// cell count).
func rowRecord(tr *goquery.Selection, cols []string) records.Raw {
	tds := tr.Find("td")
	if tds.Length() != len(cols) {
		return nil
	}

	rec := records.Raw{}
	tds.Each(func(i int, td *goquery.Selection) {
		name := cols[i]
		if name == "" {
			return
		}
		if text := cellText(td); text != "" {
			rec[name] = text
		} else {
			rec[name] = nil
		}
	})
	if len(rec) == 0 {
		return nil
	}
	return rec
}

// cellText extracts a cell's text with runs of whitespace collapsed; club
// cells nest links and hidden spans that would otherwise leave stray
// newlines inside the value.
func cellText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
