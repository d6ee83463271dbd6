package catalog

import (
	"context"
	"errors"
	"fmt"

	"footstats/internal/schema"
)

// Logger is the minimal logging seam, satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

// SyncError marks a catalog sync that failed for one table. The
// category it belongs to fails; other categories are not affected.
type SyncError struct {
	Database string
	Table    string
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("catalog sync %s.%s: %v", e.Database, e.Table, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// SyncInput names the table one category's batch lands in and the
// crawler that folds new files into it.
type SyncInput struct {
	Database string
	Table    string
	Crawler  string
	Desc     schema.Descriptor
}

// SyncResult reports what one sync did.
type SyncResult struct {
	Added          int
	Widened        int
	Conflicts      []schema.Conflict
	TableMissing   bool
	CrawlerStarted bool
}

// Sync reconciles an inferred descriptor into the catalog. Narrowing
// conflicts are logged and skipped, never applied. When the table does
// not exist yet the column work is skipped entirely and only the
// crawler runs; its first pass creates the table from the files.
func Sync(ctx context.Context, cat Catalog, in SyncInput, logger Logger) (*SyncResult, error) {
	logf := func(format string, v ...any) {
		if logger != nil {
			logger.Printf(format, v...)
		}
	}

	res := &SyncResult{}

	existing, err := cat.TableSchema(ctx, in.Database, in.Table)
	switch {
	case err == nil:
		changes, conflicts := schema.Reconcile(in.Desc, existing)
		res.Conflicts = conflicts
		for _, c := range conflicts {
			logf("warn=schema_conflict table=%s.%s column=%s catalog_type=%s inferred_type=%s",
				in.Database, in.Table, c.Column, c.CatalogType, c.InferredType)
		}
		for _, ch := range changes {
			switch ch.Kind {
			case schema.ChangeAdd:
				if err := cat.AddColumn(ctx, in.Database, in.Table, Column{Name: ch.Column, Type: ch.ToType}); err != nil {
					return res, &SyncError{Database: in.Database, Table: in.Table, Err: err}
				}
				res.Added++
				logf("stage=catalog_sync op=add_column table=%s.%s column=%s type=%s",
					in.Database, in.Table, ch.Column, ch.ToType)
			case schema.ChangeWiden:
				if err := cat.UpdateColumnType(ctx, in.Database, in.Table, Column{Name: ch.Column, Type: ch.ToType}); err != nil {
					return res, &SyncError{Database: in.Database, Table: in.Table, Err: err}
				}
				res.Widened++
				logf("stage=catalog_sync op=widen_column table=%s.%s column=%s from=%s to=%s",
					in.Database, in.Table, ch.Column, ch.FromType, ch.ToType)
			}
		}

	case errors.Is(err, ErrTableNotFound):
		res.TableMissing = true
		logf("stage=catalog_sync table=%s.%s table_missing=1 crawler=%s", in.Database, in.Table, in.Crawler)

	default:
		return res, &SyncError{Database: in.Database, Table: in.Table, Err: err}
	}

	if in.Crawler != "" {
		if err := cat.StartCrawler(ctx, in.Crawler); err != nil {
			return res, &SyncError{Database: in.Database, Table: in.Table, Err: fmt.Errorf("start crawler %s: %w", in.Crawler, err)}
		}
		res.CrawlerStarted = true
		logf("stage=catalog_sync op=start_crawler crawler=%s", in.Crawler)
	}

	return res, nil
}
