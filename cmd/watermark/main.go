package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"footstats/internal/config"
	"footstats/internal/objectstore"
	"footstats/internal/pipeline"
	"footstats/internal/watermark"

	_ "footstats/internal/objectstore/s3"
)

// main is the control-table operator tool: report a date's completeness,
// flag entries for a forced re-fetch, or rebuild the table by probing
// the object store. The pipeline maintains its own table during runs;
// this exists for the morning-after check and manual repair.
func main() { os.Exit(realMain()) }

func realMain() int {
	_ = godotenv.Load()

	var (
		cfgPath string
		date    string
		rebuild bool
		refresh bool
		team    string
		source  string
	)

	flag.StringVar(&cfgPath, "config", "configs/pipeline.json", "pipeline config JSON path")
	flag.StringVar(&date, "date", "", "table date YYYY-MM-DD (default: today UTC)")
	flag.BoolVar(&rebuild, "rebuild", false, "rebuild the table by probing the object store")
	flag.BoolVar(&refresh, "refresh", false, "flag entries for a forced re-fetch")
	flag.StringVar(&team, "team", "", "narrow -refresh to one team id")
	flag.StringVar(&source, "source", "", "narrow -refresh to one source")

	flag.Parse()

	log.SetFlags(0)

	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	p, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	ctx := context.Background()
	store, err := objectstore.New(ctx, p.Store)
	if err != nil {
		log.Printf("object store: %v", err)
		return 1
	}
	mgr := watermark.NewManager(store, log.Default())

	switch {
	case refresh:
		n, err := mgr.MarkRefresh(ctx, date, team, source)
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		log.Printf("flagged %d entries for refresh", n)
		return 0

	case rebuild:
		tbl, err := mgr.Create(ctx, date, nil, pipeline.Sources(pipeline.Categories()))
		if err != nil {
			log.Printf("rebuild: %v", err)
			return 1
		}
		printReport(os.Stdout, tbl)
		return 0

	default:
		tbl, found, err := mgr.Load(ctx, date)
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		if !found {
			log.Printf("no control table for %s", date)
			return 1
		}
		printReport(os.Stdout, tbl)
		return 0
	}
}

// printReport renders the completeness summary the way the daily check
// reads it: the headline percentage, per-source counts, then what is
// still missing and for whom.
func printReport(w io.Writer, tbl *watermark.Table) {
	r := watermark.BuildReport(tbl)
	fmt.Fprintf(w, "date %s: %.2f%% complete (%d/%d present, %d missing)\n",
		r.Date, r.Completeness, r.Complete, r.Expected, r.Missing)

	sources := make([]string, 0, len(r.BySource))
	for name := range r.BySource {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "source\tcomplete\texpected\trecords\tbytes")
	for _, name := range sources {
		s := r.BySource[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", name, s.Complete, s.Expected, s.Records, s.Bytes)
	}
	tw.Flush()

	missing := tbl.Missing()
	if len(missing) == 0 {
		return
	}
	teams := make([]string, 0, len(missing))
	for id := range missing {
		teams = append(teams, id)
	}
	sort.Strings(teams)

	fmt.Fprintln(w, "missing:")
	for _, id := range teams {
		fmt.Fprintf(w, "  %s: %s\n", id, strings.Join(missing[id], ", "))
	}
}
