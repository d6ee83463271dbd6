// Package glue implements the catalog on AWS Glue. Column changes go
// through a read-merge-update of the table definition because Glue has
// no per-column mutation call.
package glue

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsglue "github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"

	"footstats/internal/catalog"
)

func init() {
	catalog.Register("glue", func(ctx context.Context, cfg catalog.Config) (catalog.Catalog, error) {
		return New(ctx, cfg.Options)
	})
}

// client is the slice of the Glue SDK the catalog needs, split out so
// tests can fake it.
type client interface {
	GetTable(ctx context.Context, in *awsglue.GetTableInput, opts ...func(*awsglue.Options)) (*awsglue.GetTableOutput, error)
	UpdateTable(ctx context.Context, in *awsglue.UpdateTableInput, opts ...func(*awsglue.Options)) (*awsglue.UpdateTableOutput, error)
	StartCrawler(ctx context.Context, in *awsglue.StartCrawlerInput, opts ...func(*awsglue.Options)) (*awsglue.StartCrawlerOutput, error)
}

// Catalog drives one AWS Glue data catalog.
type Catalog struct {
	api client
}

// New builds a Glue catalog from backend options: region (optional,
// AWS environment otherwise).
func New(ctx context.Context, opts map[string]string) (*Catalog, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := opts["region"]; region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("glue catalog: load aws config: %w", err)
	}
	return &Catalog{api: awsglue.NewFromConfig(awsCfg)}, nil
}

func (c *Catalog) getTable(ctx context.Context, database, table string) (*types.Table, error) {
	out, err := c.api.GetTable(ctx, &awsglue.GetTableInput{
		DatabaseName: aws.String(database),
		Name:         aws.String(table),
	})
	if err != nil {
		var notFound *types.EntityNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("glue catalog: %s.%s: %w", database, table, catalog.ErrTableNotFound)
		}
		return nil, fmt.Errorf("glue catalog: get table %s.%s: %w", database, table, err)
	}
	if out.Table == nil {
		return nil, fmt.Errorf("glue catalog: %s.%s: %w", database, table, catalog.ErrTableNotFound)
	}
	return out.Table, nil
}

func (c *Catalog) TableSchema(ctx context.Context, database, table string) (map[string]string, error) {
	t, err := c.getTable(ctx, database, table)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if t.StorageDescriptor != nil {
		for _, col := range t.StorageDescriptor.Columns {
			out[aws.ToString(col.Name)] = aws.ToString(col.Type)
		}
	}
	return out, nil
}

func (c *Catalog) AddColumn(ctx context.Context, database, table string, col catalog.Column) error {
	return c.mergeColumn(ctx, database, table, col, false)
}

func (c *Catalog) UpdateColumnType(ctx context.Context, database, table string, col catalog.Column) error {
	return c.mergeColumn(ctx, database, table, col, true)
}

// mergeColumn re-reads the table, splices the column into the storage
// descriptor and writes the whole definition back.
func (c *Catalog) mergeColumn(ctx context.Context, database, table string, col catalog.Column, mustExist bool) error {
	t, err := c.getTable(ctx, database, table)
	if err != nil {
		return err
	}
	if t.StorageDescriptor == nil {
		t.StorageDescriptor = &types.StorageDescriptor{}
	}

	found := false
	columns := make([]types.Column, 0, len(t.StorageDescriptor.Columns)+1)
	for _, existing := range t.StorageDescriptor.Columns {
		if aws.ToString(existing.Name) == col.Name {
			found = true
			existing.Type = aws.String(col.Type)
		}
		columns = append(columns, existing)
	}
	if !found {
		if mustExist {
			return fmt.Errorf("glue catalog: %s.%s: column %s does not exist", database, table, col.Name)
		}
		columns = append(columns, types.Column{Name: aws.String(col.Name), Type: aws.String(col.Type)})
	} else if !mustExist {
		return fmt.Errorf("glue catalog: %s.%s: column %s already exists", database, table, col.Name)
	}
	t.StorageDescriptor.Columns = columns

	_, err = c.api.UpdateTable(ctx, &awsglue.UpdateTableInput{
		DatabaseName: aws.String(database),
		TableInput:   tableInput(t),
	})
	if err != nil {
		return fmt.Errorf("glue catalog: update table %s.%s: %w", database, table, err)
	}
	return nil
}

// StartCrawler kicks off a crawler run. A crawler that is already
// running counts as started.
func (c *Catalog) StartCrawler(ctx context.Context, name string) error {
	_, err := c.api.StartCrawler(ctx, &awsglue.StartCrawlerInput{Name: aws.String(name)})
	if err != nil {
		var running *types.CrawlerRunningException
		if errors.As(err, &running) {
			return nil
		}
		return fmt.Errorf("glue catalog: start crawler %s: %w", name, err)
	}
	return nil
}

// tableInput converts a fetched table into the input shape UpdateTable
// wants, keeping the fields Glue requires to round-trip.
func tableInput(t *types.Table) *types.TableInput {
	return &types.TableInput{
		Name:              t.Name,
		Description:       t.Description,
		Owner:             t.Owner,
		Parameters:        t.Parameters,
		PartitionKeys:     t.PartitionKeys,
		Retention:         t.Retention,
		StorageDescriptor: t.StorageDescriptor,
		TableType:         t.TableType,
	}
}

var _ catalog.Catalog = (*Catalog)(nil)
