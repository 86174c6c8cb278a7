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

	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// TableSpec names a table the client depends on. Schema and PartitionField
// are only used when the table has to be created.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

// InferTable builds a TableSpec from a row struct's bigquery tags.
func InferTable(name string, row any, partitionField string) (TableSpec, error) {
	schema, err := bigquery.InferSchema(row)
	if err != nil {
		return TableSpec{}, fmt.Errorf("infer schema for %s: %w", name, err)
	}
	return TableSpec{Name: strings.TrimSpace(name), Schema: schema, PartitionField: partitionField}, nil
}

// Client wraps one dataset and the tables callers declared on it.
type Client struct {
	client     *bigquery.Client
	dataset    *bigquery.Dataset
	tables     []TableSpec
	autoCreate bool
}

// NewClient connects and checks the dataset and tables. With
// cfg.AutoCreate set, a missing dataset or table is created instead.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, tables ...TableSpec) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	for _, t := range tables {
		if strings.TrimSpace(t.Name) == "" {
			return nil, errTableNameRequired
		}
	}

	bq, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		client:     bq,
		dataset:    bq.Dataset(datasetID),
		tables:     tables,
		autoCreate: cfg.AutoCreate,
	}
	created, err := c.provision(ctx)
	if err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"tables":  c.tableNames(),
			"created": created,
		}), "bigquery client initialized")
	}
	return c, nil
}

func (c *Client) tableNames() []string {
	names := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		names = append(names, t.Name)
	}
	return names
}

// provision returns the names of anything it had to create.
func (c *Client) provision(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	var created []string
	if _, err := c.dataset.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
		}
		if !c.autoCreate {
			return nil, fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		if err := c.dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
			return nil, fmt.Errorf("creating dataset %q: %w", c.dataset.DatasetID, err)
		}
		created = append(created, c.dataset.DatasetID)
	}

	for _, spec := range c.tables {
		table := c.dataset.Table(spec.Name)
		_, err := table.Metadata(ctx)
		switch {
		case err == nil:
			continue
		case !isNotFound(err):
			return nil, fmt.Errorf("checking table %q: %w", spec.Name, err)
		case !c.autoCreate || len(spec.Schema) == 0:
			return nil, fmt.Errorf("table %q does not exist", spec.Name)
		}
		if err := table.Create(ctx, tableMetadata(spec)); err != nil {
			return nil, fmt.Errorf("creating table %q: %w", spec.Name, err)
		}
		created = append(created, spec.Name)
	}
	return created, nil
}

func tableMetadata(spec TableSpec) *bigquery.TableMetadata {
	md := &bigquery.TableMetadata{Schema: spec.Schema}
	if spec.PartitionField != "" {
		md.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: spec.PartitionField,
		}
	}
	return md
}

// Ping checks that the dataset and declared tables are reachable. It never
// creates anything.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()
	if _, err := c.dataset.Metadata(ctx); err != nil {
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}
	for _, spec := range c.tables {
		if _, err := c.dataset.Table(spec.Name).Metadata(ctx); err != nil {
			return fmt.Errorf("checking table %q: %w", spec.Name, err)
		}
	}
	return nil
}

// InsertRows streams rows into table.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
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

// Dataset returns the configured dataset id.
func (c *Client) Dataset() string {
	if c == nil || c.dataset == nil {
		return ""
	}
	return c.dataset.DatasetID
}

// Query runs a parameterised query.
func (c *Client) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	if c == nil || c.client == nil {
		return nil, errClientNotInitialized
	}
	if strings.TrimSpace(sql) == "" {
		return nil, errors.New("sql query is required")
	}
	q := c.client.Query(sql)
	q.Parameters = params
	return q.Read(ctx)
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
