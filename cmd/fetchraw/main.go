// Command fetchraw bulk-fetches API paths into one raw payload object.
//
// It reads API paths (one per line, # comments), fetches them through
// the configured client with the pipeline's retry and politeness
// policy, and stores the responses as a single raw payload under the
// category's raw prefix, where the pipeline, the probe and a watermark
// rebuild all expect raw data to live:
//
//	fetchraw -config configs/pipeline.json -category players_data -i paths.txt
//
// Each fetch is logged as one JSON line on stdout. A path the API does
// not know (404) is skipped, not failed; the run exits nonzero when any
// path fails outright, after trying the rest.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"footstats/internal/config"
	"footstats/internal/fetch"
	"footstats/internal/metrics"
	"footstats/internal/metrics/datadog"
	"footstats/internal/objectstore"
	"footstats/internal/transform"
	"footstats/pkg/records"

	_ "footstats/internal/objectstore/s3"
)

// fetchLine is emitted as one JSON line per path. Additions are safe;
// renames break downstream log consumers.
type fetchLine struct {
	Timestamp  string `json:"ts"`
	Path       string `json:"path"`
	OK         bool   `json:"ok"`
	Found      bool   `json:"found"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	_ = godotenv.Load()

	var (
		flagConfig   = flag.String("config", "configs/pipeline.json", "Pipeline config path")
		flagInput    = flag.String("i", "", "File of API paths, one per line")
		flagCategory = flag.String("category", "", "Category whose raw prefix receives the payload")
		flagWorkers  = flag.Int("n", 4, "Concurrent fetch workers")
		flagMetrics  = flag.String("metrics-backend", "none", "Metrics backend: none|datadog")
	)
	flag.Parse()
	log.SetFlags(0)

	if *flagInput == "" {
		fmt.Fprintln(os.Stderr, "missing -i <paths file>")
		return 2
	}
	if *flagCategory == "" {
		fmt.Fprintln(os.Stderr, "missing -category")
		return 2
	}

	paths, err := readPaths(*flagInput)
	if err != nil {
		log.Printf("read paths: %v", err)
		return 2
	}
	if len(paths) == 0 {
		log.Printf("no paths in %s", *flagInput)
		return 2
	}

	p, err := config.Load(*flagConfig)
	if err != nil {
		log.Printf("load config: %v", err)
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch *flagMetrics {
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    p.Job,
			Tags:       datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics backend: %v", err)
			return 2
		}
		metrics.SetBackend(b)
		defer b.Close()
	case "", "none":
	default:
		log.Printf("warn=unknown_metrics_backend backend=%s", *flagMetrics)
	}

	store, err := objectstore.New(ctx, p.Store)
	if err != nil {
		log.Printf("open object store: %v", err)
		return 2
	}

	client := fetch.New(fetch.Options{
		BaseURL:     p.API.BaseURL,
		Timeout:     time.Duration(p.API.TimeoutMS) * time.Millisecond,
		MaxAttempts: p.API.MaxAttempts,
		BackoffBase: time.Duration(p.API.BackoffMS) * time.Millisecond,
		BackoffMax:  time.Duration(p.API.BackoffMaxMS) * time.Millisecond,
		JitterMax:   time.Duration(p.API.JitterMS) * time.Millisecond,
		Logger:      log.Default(),
	})

	logCh := make(chan fetchLine, 64)
	var logWG sync.WaitGroup
	logWG.Add(1)
	go func() {
		defer logWG.Done()
		enc := json.NewEncoder(os.Stdout)
		for line := range logCh {
			_ = enc.Encode(line)
		}
	}()

	// Responses keep input order; each worker owns the slots it drew.
	results := make([]records.Raw, len(paths))
	errs := make([]error, len(paths))

	workers := *flagWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				start := time.Now()
				rec, found, err := client.GetJSON(ctx, *flagCategory, paths[idx], nil)
				line := fetchLine{
					Timestamp:  time.Now().UTC().Format(time.RFC3339),
					Path:       paths[idx],
					OK:         err == nil,
					Found:      found,
					DurationMs: time.Since(start).Milliseconds(),
				}
				if err != nil {
					line.Error = err.Error()
					errs[idx] = err
				} else if found {
					results[idx] = rec
				}
				logCh <- line
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(logCh)
	logWG.Wait()

	var recs []records.Raw
	failed, missing := 0, 0
	for i := range paths {
		switch {
		case errs[i] != nil:
			failed++
		case results[i] == nil:
			missing++
		default:
			recs = append(recs, results[i])
		}
	}

	if len(recs) == 0 {
		log.Printf("no records fetched: failed=%d missing=%d", failed, missing)
		return 1
	}

	payload, err := json.Marshal(struct {
		Data []records.Raw `json:"data"`
	}{Data: recs})
	if err != nil {
		log.Printf("encode payload: %v", err)
		return 1
	}

	key := objectstore.RawKey(*flagCategory, transform.RawFileName(*flagCategory, time.Now().UTC()))
	if err := store.Put(ctx, key, bytes.NewReader(payload)); err != nil {
		log.Printf("store payload: %v", err)
		return 1
	}

	log.Printf("stored %s records=%d failed=%d missing=%d", key, len(recs), failed, missing)
	if failed > 0 {
		return 1
	}
	return 0
}

// readPaths loads API paths, skipping blanks and # comments. A missing
// leading slash is added so lines can be bare endpoint paths.
func readPaths(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			line = "/" + line
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}
