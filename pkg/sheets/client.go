// Package sheets wraps the Google Sheets values API for whole-tab reads and writes.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	valueInputRaw  = "RAW"
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

var (
	errSpreadsheetRequired  = errors.New("spreadsheet id is required")
	errClientNotInitialized = errors.New("sheets client not initialized")
)

// Client reads and replaces whole tabs of one spreadsheet. Calls are paced
// by a token bucket to stay inside the Sheets API per-user quota.
type Client struct {
	values        valuesAPI
	spreadsheetID string
	limiter       *rate.Limiter
	logg          *logger.Logger
	sleep         func(context.Context, time.Duration) error
}

type valuesAPI interface {
	batchGet(ctx context.Context, spreadsheetID string, ranges []string) ([]*gsheets.ValueRange, error)
	clear(ctx context.Context, spreadsheetID, rng string) error
	update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
}

// NewClient builds a Sheets client authenticated like the other GCP clients.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.SheetsConfig, logg *logger.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errSpreadsheetRequired
	}

	opts := append(gcp.ClientOptions(), option.WithScopes(gsheets.SpreadsheetsScope))
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "spreadsheet_id", spreadsheetID), "sheets client initialized")
	}
	return newClient(&serviceValues{svc: svc}, spreadsheetID, cfg, logg), nil
}

func newClient(values valuesAPI, spreadsheetID string, cfg config.SheetsConfig, logg *logger.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		values:        values,
		spreadsheetID: spreadsheetID,
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
		logg:          logg,
		sleep:         sleepContext,
	}
}

// TabRange returns the A1 range covering every cell of tab. Wide tabs grow
// a column group per platform, so no fixed column bound is used.
func TabRange(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// ReadTabs fetches every tab in one request. Missing tabs and empty tabs map
// to nil. Cells are returned as their displayed strings.
func (c *Client) ReadTabs(ctx context.Context, tabs ...string) (map[string][][]string, error) {
	if c == nil || c.values == nil {
		return nil, errClientNotInitialized
	}
	ranges := make([]string, len(tabs))
	for i, tab := range tabs {
		ranges[i] = TabRange(tab)
	}

	var resp []*gsheets.ValueRange
	err := c.do(ctx, "read tabs", func(ctx context.Context) error {
		var err error
		resp, err = c.values.batchGet(ctx, c.spreadsheetID, ranges)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string][][]string, len(tabs))
	for i, tab := range tabs {
		if i < len(resp) && resp[i] != nil {
			out[tab] = toStrings(resp[i].Values)
		} else {
			out[tab] = nil
		}
	}
	return out, nil
}

// WriteTab clears tab and writes rows starting at A1 as raw values.
func (c *Client) WriteTab(ctx context.Context, tab string, rows [][]any) error {
	if c == nil || c.values == nil {
		return errClientNotInitialized
	}
	if err := c.do(ctx, "clear "+tab, func(ctx context.Context) error {
		return c.values.clear(ctx, c.spreadsheetID, TabRange(tab))
	}); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return c.do(ctx, "update "+tab, func(ctx context.Context) error {
		return c.values.update(ctx, c.spreadsheetID, TabRange(tab)+"!A1", rows)
	})
}

// SpreadsheetID returns the configured spreadsheet.
func (c *Client) SpreadsheetID() string {
	if c == nil {
		return ""
	}
	return c.spreadsheetID
}

func (c *Client) do(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("sheets %s: %w", op, err)
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !isRetryable(err) || attempt == maxAttempts {
			break
		}
		if c.logg != nil {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"operation": op,
				"attempt":   attempt,
				"error":     err.Error(),
			}), "sheets call failed, retrying")
		}
		if serr := c.sleep(ctx, backoff); serr != nil {
			return fmt.Errorf("sheets %s: %w", op, serr)
		}
		backoff *= 2
	}
	return fmt.Errorf("sheets %s: %w", op, err)
}

func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return false
}

func toStrings(values [][]any) [][]string {
	if len(values) == 0 {
		return nil
	}
	out := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type serviceValues struct {
	svc *gsheets.Service
}

func (s *serviceValues) batchGet(ctx context.Context, spreadsheetID string, ranges []string) ([]*gsheets.ValueRange, error) {
	resp, err := s.svc.Spreadsheets.Values.BatchGet(spreadsheetID).Ranges(ranges...).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.ValueRanges, nil
}

func (s *serviceValues) clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (s *serviceValues) update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	body := &gsheets.ValueRange{Values: rows}
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, body).ValueInputOption(valueInputRaw).Context(ctx).Do()
	return err
}
