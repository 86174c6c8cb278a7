package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/profitlens/pkg/config"
)

type sampleRow struct {
	ID        string    `bigquery:"id"`
	Amount    float64   `bigquery:"amount"`
	CreatedAt time.Time `bigquery:"created_at"`
}

func TestInferTableBuildsSchema(t *testing.T) {
	table, err := InferTable(" samples ", sampleRow{}, "created_at")
	require.NoError(t, err)

	assert.Equal(t, "samples", table.Name)
	require.Len(t, table.Schema, 3)
	assert.Equal(t, "created_at", table.Schema[2].Name)
	assert.Equal(t, bigquery.TimestampFieldType, table.Schema[2].Type)

	md := tableMetadata(table)
	require.NotNil(t, md.TimePartitioning)
	assert.Equal(t, "created_at", md.TimePartitioning.Field)
	assert.Equal(t, bigquery.DayPartitioningType, md.TimePartitioning.Type)
}

func TestTableMetadataWithoutPartition(t *testing.T) {
	md := tableMetadata(TableSpec{Name: "t"})
	assert.Nil(t, md.TimePartitioning)
}

func TestInferTableRejectsNonStruct(t *testing.T) {
	_, err := InferTable("bad", 42, "")
	assert.Error(t, err)
}

func TestNewClientValidatesInputs(t *testing.T) {
	ctx := context.Background()
	_, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "d"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: " "}, nil)
	assert.ErrorIs(t, err, errDatasetRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d"}, nil, TableSpec{Name: " "})
	assert.ErrorIs(t, err, errTableNameRequired)
}

func TestIsNotFound(t *testing.T) {
	notFound := &googleapi.Error{Code: http.StatusNotFound}
	assert.True(t, isNotFound(notFound))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", notFound)))
	assert.False(t, isNotFound(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isNotFound(errors.New("boom")))
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	assert.Empty(t, c.Dataset())
	assert.NoError(t, c.Close())
	assert.Error(t, c.InsertRows(context.Background(), "t", []any{1}))
	assert.Error(t, c.Ping(context.Background()))
}
