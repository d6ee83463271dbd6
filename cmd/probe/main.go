// Command probe proposes a category spec by sampling raw records.
//
// Pointed at a payload file (or stdin), or at the latest raw object the
// pipeline stored for a category, it infers columns, transforms and the
// row-expansion path, then prints a config fragment ready to be merged
// into the pipeline config:
//
//	probe -file players.json -name players_data > fragment.json
//	probe -config configs/pipeline.json -store players_data -report
//
// Report mode prints a review table instead of JSON: one line per
// proposed column with the catalog type the sample settled on. Guesses
// are conservative; a column the probe leaves untransformed is a column
// the sample could not prove anything about.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"footstats/internal/config"
	"footstats/internal/objectstore"
	"footstats/internal/parse"
	"footstats/internal/probe"

	_ "footstats/internal/objectstore/s3"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var (
		flagFile    = flag.String("file", "", "Raw payload to sample; \"-\" reads stdin")
		flagConfig  = flag.String("config", "configs/pipeline.json", "Pipeline config, used with -store to reach the object store")
		flagStore   = flag.String("store", "", "Sample the latest stored raw object of this category instead of a file")
		flagName    = flag.String("name", "", "Category name for the emitted spec; defaults to -store")
		flagExpand  = flag.String("expand", "", "Force the row-expansion path instead of auto-selecting")
		flagRecords = flag.Int("records", 200, "Cap on sampled records")
		flagReport  = flag.Bool("report", false, "Print a review table instead of config JSON")
		flagPretty  = flag.Bool("pretty", true, "Pretty-print JSON output")
	)
	flag.Parse()
	log.SetFlags(0)

	if (*flagFile == "") == (*flagStore == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -file or -store is required")
		flag.Usage()
		return 2
	}
	name := strings.TrimSpace(*flagName)
	if name == "" {
		name = strings.TrimSpace(*flagStore)
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "missing -name")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	opt := probe.Options{
		Category:   name,
		MaxRecords: *flagRecords,
		Expand:     *flagExpand,
	}

	var in io.Reader
	switch {
	case *flagFile == "-":
		in = os.Stdin
	case *flagFile != "":
		f, err := os.Open(*flagFile)
		if err != nil {
			log.Printf("open sample: %v", err)
			return 1
		}
		defer f.Close()
		in = f
	default:
		p, err := config.Load(*flagConfig)
		if err != nil {
			log.Printf("load config: %v", err)
			return 1
		}
		opt.Suffixes = parse.Suffixes(p.Parse.Suffixes)
		opt.DateLayouts = p.Parse.DateLayouts

		store, err := objectstore.New(ctx, p.Store)
		if err != nil {
			log.Printf("open object store: %v", err)
			return 1
		}
		key, ok, err := objectstore.LatestKey(ctx, store, objectstore.RawKey(*flagStore, ""))
		if err != nil {
			log.Printf("list raw objects: %v", err)
			return 1
		}
		if !ok {
			log.Printf("no raw objects stored for category %s", *flagStore)
			return 1
		}
		body, err := store.Get(ctx, key)
		if err != nil {
			log.Printf("get %s: %v", key, err)
			return 1
		}
		payload, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			log.Printf("read %s: %v", key, err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "sampling %s (%d bytes)\n", key, len(payload))
		in = bytes.NewReader(payload)
	}

	recs, err := probe.Sample(in, *flagRecords)
	if err != nil {
		log.Printf("sample: %v", err)
		return 1
	}
	res, err := probe.Infer(recs, opt)
	if err != nil {
		log.Printf("infer: %v", err)
		return 1
	}

	if *flagReport {
		fmt.Fprintln(os.Stdout, probe.FormatReport(res))
		return 0
	}

	out := struct {
		Categories []config.CategoryConfig `json:"categories"`
	}{
		Categories: []config.CategoryConfig{{Name: name, Spec: &res.Spec}},
	}
	enc := json.NewEncoder(os.Stdout)
	if *flagPretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		log.Printf("encode config: %v", err)
		return 1
	}
	return 0
}
