package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	cloudbigquery "cloud.google.com/go/bigquery"
	"github.com/angelmondragon/profitlens/internal/analytics/types"
	"github.com/angelmondragon/profitlens/pkg/bigquery"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"google.golang.org/api/iterator"
)

const (
	monthLayout    = "2006-01"
	defaultTopSKUs = 5
	maxTopSKUs     = 50

	// Several snapshots can share a month; only the latest one counts.
	latestSnapshotsCTE = `
WITH latest AS (
  SELECT month, ARRAY_AGG(snapshot_id ORDER BY taken_at DESC LIMIT 1)[OFFSET(0)] AS snapshot_id
  FROM %s
  WHERE month BETWEEN @from AND @to
  GROUP BY month
)`

	monthlyTrendSQL = latestSnapshotsCTE + `
SELECT
  r.month AS month,
  r.platform_id AS platform_id,
  SUM(r.monthly_profit) AS monthly_profit,
  AVG(r.margin) AS average_margin,
  COUNT(DISTINCT r.sku_id) AS skus
FROM %s r
JOIN latest l ON r.month = l.month AND r.snapshot_id = l.snapshot_id
WHERE TRUE%s
GROUP BY month, platform_id
ORDER BY month ASC, platform_id ASC
`

	topSKUsSQL = latestSnapshotsCTE + `
SELECT
  COALESCE(NULLIF(r.sku_code, ''), r.sku_name) AS label,
  SUM(r.monthly_profit) AS value
FROM %s r
JOIN latest l ON r.month = l.month AND r.snapshot_id = l.snapshot_id
WHERE TRUE%s
GROUP BY label
ORDER BY value DESC
LIMIT @topN
`
)

// TrendService reads month over month profitability from exported snapshots.
type TrendService interface {
	Trends(ctx context.Context, req types.TrendRequest) (*types.TrendReport, error)
}

type trendService struct {
	client   *bigquery.Client
	tableRef string
}

// NewTrendService builds a service backed by the snapshot_results table.
func NewTrendService(client *bigquery.Client, project, dataset, table string) (TrendService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if project == "" || dataset == "" || table == "" {
		return nil, fmt.Errorf("project, dataset, and table are required")
	}
	return &trendService{
		client:   client,
		tableRef: fmt.Sprintf("`%s.%s.%s`", project, dataset, table),
	}, nil
}

func (s *trendService) Trends(ctx context.Context, req types.TrendRequest) (*types.TrendReport, error) {
	req, err := NormalizeTrendRequest(req)
	if err != nil {
		return nil, err
	}
	params := trendParams(req)
	clause := platformClause(req.PlatformID)

	points, err := s.queryPoints(ctx, fmt.Sprintf(monthlyTrendSQL, s.tableRef, s.tableRef, clause), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query monthly trends")
	}
	top, err := s.queryTopLabels(ctx, fmt.Sprintf(topSKUsSQL, s.tableRef, s.tableRef, clause), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query top skus")
	}

	return &types.TrendReport{
		From:    req.From,
		To:      req.To,
		Points:  points,
		TopSKUs: top,
	}, nil
}

// NormalizeTrendRequest trims and validates req. A blank To means From, and
// TopN is clamped to 1..50 with 5 as the default.
func NormalizeTrendRequest(req types.TrendRequest) (types.TrendRequest, error) {
	req.PlatformID = strings.TrimSpace(req.PlatformID)
	req.From = strings.TrimSpace(req.From)
	req.To = strings.TrimSpace(req.To)
	if req.To == "" {
		req.To = req.From
	}
	from, err := time.Parse(monthLayout, req.From)
	if err != nil {
		return req, pkgerrors.New(pkgerrors.CodeValidation, "from must be YYYY-MM").WithDetails(map[string]any{"from": req.From})
	}
	to, err := time.Parse(monthLayout, req.To)
	if err != nil {
		return req, pkgerrors.New(pkgerrors.CodeValidation, "to must be YYYY-MM").WithDetails(map[string]any{"to": req.To})
	}
	if to.Before(from) {
		return req, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	switch {
	case req.TopN <= 0:
		req.TopN = defaultTopSKUs
	case req.TopN > maxTopSKUs:
		req.TopN = maxTopSKUs
	}
	return req, nil
}

func platformClause(platformID string) string {
	if platformID == "" {
		return ""
	}
	return "\n  AND r.platform_id = @platform"
}

func trendParams(req types.TrendRequest) []cloudbigquery.QueryParameter {
	params := []cloudbigquery.QueryParameter{
		{Name: "from", Value: req.From},
		{Name: "to", Value: req.To},
		{Name: "topN", Value: int64(req.TopN)},
	}
	if req.PlatformID != "" {
		params = append(params, cloudbigquery.QueryParameter{Name: "platform", Value: req.PlatformID})
	}
	return params
}

func (s *trendService) queryPoints(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.TrendPoint, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query trend points: %w", err)
	}

	points := []types.TrendPoint{}
	for {
		var row struct {
			Month         string                    `bigquery:"month"`
			PlatformID    string                    `bigquery:"platform_id"`
			MonthlyProfit cloudbigquery.NullFloat64 `bigquery:"monthly_profit"`
			AverageMargin cloudbigquery.NullFloat64 `bigquery:"average_margin"`
			SKUs          int64                     `bigquery:"skus"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading trend row: %w", err)
		}
		points = append(points, types.TrendPoint{
			Month:         row.Month,
			PlatformID:    row.PlatformID,
			MonthlyProfit: row.MonthlyProfit.Float64,
			AverageMargin: row.AverageMargin.Float64,
			SKUs:          row.SKUs,
		})
	}
	return points, nil
}

func (s *trendService) queryTopLabels(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.LabelValue, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query top labels: %w", err)
	}

	result := []types.LabelValue{}
	for {
		var row struct {
			Label string                    `bigquery:"label"`
			Value cloudbigquery.NullFloat64 `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading top label row: %w", err)
		}
		result = append(result, types.LabelValue{Label: row.Label, Value: row.Value.Float64})
	}
	return result, nil
}
