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

	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

const (
	metadataCheckTimeout = 10 * time.Second
)

type Client struct {
	client    *bigquery.Client
	dataset   *bigquery.Dataset
	projectID string
	tables    []string
	specs     map[string]TableSpec
	cfg       config.BigQueryConfig
	logg      *logger.Logger
}

// TableSpec describes a table the client may create when
// CAMPUSAID_BIGQUERY_CREATE_TABLES is set and the table is missing.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// NewClient creates a BigQuery client and verifies the dataset and lifecycle table exist.
// A missing table with a matching spec is created when cfg.CreateTables is set.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, specs ...TableSpec) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}

	tables := configuredTables(cfg)
	if len(tables) == 0 {
		return nil, errTableNameRequired
	}

	opts := clientOptions(gcp)
	bqClient, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}

	client := &Client{
		client:    bqClient,
		dataset:   bqClient.Dataset(datasetID),
		projectID: projectID,
		tables:    tables,
		specs:     indexSpecs(specs),
		cfg:       cfg,
		logg:      logg,
	}

	if err := client.ensureDatasetAndTables(ctx); err != nil {
		_ = bqClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"tables":  strings.Join(tables, ","),
		}), "bigquery.client_initialized")
	}

	return client, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

func configuredTables(cfg config.BigQueryConfig) []string {
	tables := []string{}
	if trimmed := strings.TrimSpace(cfg.LifecycleEventsTable); trimmed != "" {
		tables = append(tables, trimmed)
	}
	return tables
}

func (c *Client) ensureDatasetAndTables(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}

	for _, name := range c.tables {
		_, err := c.dataset.Table(name).Metadata(ctx)
		switch {
		case err == nil:
			continue
		case !isNotFound(err):
			return fmt.Errorf("checking table %q: %w", name, err)
		}
		spec, ok := c.specs[name]
		if !c.cfg.CreateTables || !ok {
			return fmt.Errorf("table %q does not exist", name)
		}
		if err := c.createTable(ctx, spec); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) createTable(ctx context.Context, spec TableSpec) error {
	meta, err := tableMetadata(spec)
	if err != nil {
		return err
	}
	if err := c.dataset.Table(spec.Name).Create(ctx, meta); err != nil {
		if isAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("creating table %q: %w", spec.Name, err)
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "table", spec.Name), "bigquery.table_created")
	}
	return nil
}

// tableMetadata builds the create request. The partition field, when set, must be
// a TIMESTAMP or DATE column of the schema and gets daily partitions.
func tableMetadata(spec TableSpec) (*bigquery.TableMetadata, error) {
	if len(spec.Schema) == 0 {
		return nil, fmt.Errorf("table %q has no schema", spec.Name)
	}
	meta := &bigquery.TableMetadata{Schema: spec.Schema}
	if spec.PartitionField == "" {
		return meta, nil
	}
	for _, field := range spec.Schema {
		if field.Name != spec.PartitionField {
			continue
		}
		if field.Type != bigquery.TimestampFieldType && field.Type != bigquery.DateFieldType {
			return nil, fmt.Errorf("partition field %q of %q must be TIMESTAMP or DATE", field.Name, spec.Name)
		}
		meta.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: field.Name,
		}
		return meta, nil
	}
	return nil, fmt.Errorf("partition field %q not in %q schema", spec.PartitionField, spec.Name)
}

func indexSpecs(specs []TableSpec) map[string]TableSpec {
	out := make(map[string]TableSpec, len(specs))
	for _, spec := range specs {
		if name := strings.TrimSpace(spec.Name); name != "" {
			spec.Name = name
			out[name] = spec
		}
	}
	return out
}

// Ping verifies the dataset + tables are accessible.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errClientNotInitialized
	}
	return c.ensureDatasetAndTables(ctx)
}

// InsertRows sends rows to the given table in the configured dataset.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	if strings.TrimSpace(table) == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return c.dataset.Table(strings.TrimSpace(table)).Inserter().Put(ctx, rows)
}

// Close releases the BigQuery client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func isAlreadyExists(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr != nil && apiErr.Code == code
}
