package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"footstats/internal/catalog"
	"footstats/internal/config"
	"footstats/internal/fetch"
	"footstats/internal/league"
	"footstats/internal/metrics"
	"footstats/internal/metrics/datadog"
	"footstats/internal/objectstore"
	"footstats/internal/pipeline"
	"footstats/internal/warehouse"

	// register the non-default backends with their factories.
	// config names which one runs but support for all is built in.
	_ "footstats/internal/catalog/glue"
	_ "footstats/internal/objectstore/s3"
	_ "footstats/internal/warehouse/mssql"
	_ "footstats/internal/warehouse/postgres"
	_ "footstats/internal/warehouse/sqlite"
)

// main is the entry point for the pipeline binary. It loads the config,
// optionally initializes a metrics backend, and runs the selected
// categories. The real work lives in realMain so deferred cleanup
// (metrics flush, warehouse close) still happens on failure exits.
func main() { os.Exit(realMain()) }

func realMain() int {
	// A .env is optional; AWS credentials and metrics keys usually
	// arrive through the real environment in production.
	_ = godotenv.Load()

	var (
		cfgPath        string
		categoriesCSV  string
		metricsBackend string
		validate       bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipeline.json", "pipeline config JSON path")
	flag.StringVar(&categoriesCSV, "categories", "", "comma-separated category names to run (default: all enabled)")
	flag.StringVar(&metricsBackend, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	log.SetFlags(0)

	p, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid: %v", cfgPath)
		return 1
	}

	// If validate flag is set, only validate the configuration and exit.
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		return 0
	}

	// Decide metrics backend: flag → env → none.
	backendName := metricsBackend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		// Buffers and submits periodically so long runs produce a real
		// time series; Close stops the loop and submits once more.
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    p.Job,
			Tags:       datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v", backendName, p.Job)
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()

	store, err := objectstore.New(ctx, p.Store)
	if err != nil {
		log.Printf("object store: %v", err)
		return 1
	}
	cat, err := catalog.New(ctx, p.Catalog.Config)
	if err != nil {
		log.Printf("catalog: %v", err)
		return 1
	}

	var repo warehouse.Repository
	if p.Warehouse.Backend != "" {
		repo, err = warehouse.New(ctx, p.Warehouse)
		if err != nil {
			log.Printf("warehouse: %v", err)
			return 1
		}
		defer repo.Close()
	}

	api := fetch.New(fetch.Options{
		BaseURL:     p.API.BaseURL,
		Timeout:     time.Duration(p.API.TimeoutMS) * time.Millisecond,
		MaxAttempts: p.API.MaxAttempts,
		BackoffBase: time.Duration(p.API.BackoffMS) * time.Millisecond,
		BackoffMax:  time.Duration(p.API.BackoffMaxMS) * time.Millisecond,
		JitterMax:   time.Duration(p.API.JitterMS) * time.Millisecond,
		Logger:      log.Default(),
	})
	scraper := league.NewScraper(api, league.Options{
		BaseURL:       p.League.BaseURL,
		League:        p.League.Name,
		CompetitionID: p.Competition.ID,
		Logger:        log.Default(),
	})

	eng := &pipeline.Engine{
		Cfg:       p,
		Store:     store,
		Catalog:   cat,
		Warehouse: repo,
		API:       api,
		League:    scraper,
		Logger:    log.Default(),
		Only:      splitCSV(categoriesCSV),
	}

	start := time.Now()
	results, runErr := eng.Run(ctx)
	for _, r := range results {
		switch {
		case r.Skipped:
			log.Printf("category=%s skipped=1", r.Category)
		case r.Err != nil:
			log.Printf("category=%s status=error err=%v", r.Category, r.Err)
		default:
			log.Printf("category=%s records=%d rows=%d quality=%.2f output=%s",
				r.Category, r.Records, r.Rows, r.Quality, r.OutputKey)
		}
	}
	if runErr != nil {
		log.Printf("run failed: %v", runErr)
		return 1
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	return 0
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
