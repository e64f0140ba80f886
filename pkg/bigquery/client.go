package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/sourcing-backend/pkg/config"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// TableSpec describes a table the service streams into. Schema, partitioning
// and clustering are only used when the table has to be created.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
	Clustering     []string
}

func (s TableSpec) metadata() *bigquery.TableMetadata {
	md := &bigquery.TableMetadata{Schema: s.Schema}
	if s.PartitionField != "" {
		md.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: s.PartitionField}
	}
	if len(s.Clustering) > 0 {
		md.Clustering = &bigquery.Clustering{Fields: s.Clustering}
	}
	return md
}

// Client is the analytics dataset handle. It checks at startup that every
// table it will stream into exists, creating missing ones when
// SOURCING_BIGQUERY_CREATE_TABLES is set.
type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	specs   []TableSpec
	create  bool
	logg    *logger.Logger
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, tables ...TableSpec) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	specs, err := normalizeSpecs(tables)
	if err != nil {
		return nil, err
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		client:  bq,
		dataset: bq.Dataset(datasetID),
		specs:   specs,
		create:  cfg.CreateTables,
		logg:    logg,
	}
	if err := c.ensure(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	return c, nil
}

func normalizeSpecs(tables []TableSpec) ([]TableSpec, error) {
	if len(tables) == 0 {
		return nil, errTableNameRequired
	}
	out := make([]TableSpec, 0, len(tables))
	for _, spec := range tables {
		spec.Name = strings.TrimSpace(spec.Name)
		if spec.Name == "" {
			return nil, errTableNameRequired
		}
		out = append(out, spec)
	}
	return out, nil
}

// Application default credentials apply when no inline JSON is configured.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if strings.TrimSpace(gcp.CredentialsJSON) == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
}

func (c *Client) ensure(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}

	for _, spec := range c.specs {
		table := c.dataset.Table(spec.Name)
		_, err := table.Metadata(ctx)
		switch {
		case err == nil:
			continue
		case !isNotFound(err):
			return fmt.Errorf("checking table %q: %w", spec.Name, err)
		case !c.create:
			return fmt.Errorf("table %q does not exist", spec.Name)
		}
		if err := table.Create(ctx, spec.metadata()); err != nil {
			return fmt.Errorf("creating table %q: %w", spec.Name, err)
		}
		if c.logg != nil {
			c.logg.Info(c.logg.WithField(ctx, "table", spec.Name), "bigquery table created")
		}
	}
	return nil
}

// Ping re-checks that the dataset and tables are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errClientNotInitialized
	}
	return c.ensure(ctx)
}

// InsertRows streams rows into table. Rows that implement bigquery.ValueSaver
// control their own insert ids.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
