// Package sheetsync mirrors the workspace to a Google Sheets spreadsheet,
// one tab per entity, and loads it back.
package sheetsync

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/changelog"
	"github.com/angelmondragon/profitlens/internal/settings"
	"github.com/angelmondragon/profitlens/internal/snapshots"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

const (
	directionPull = "pull"
	directionPush = "push"
)

// Summary counts what a sync run moved.
type Summary struct {
	Products         int     `json:"skus"`
	Platforms        int     `json:"platforms"`
	ChangeLog        int     `json:"feeChangeLogs"`
	Snapshots        int     `json:"snapshots"`
	GlobalAdsPercent float64 `json:"globalAdsPercent"`
}

func summarize(data Data) Summary {
	return Summary{
		Products:         len(data.Products),
		Platforms:        len(data.Platforms),
		ChangeLog:        len(data.ChangeLog),
		Snapshots:        len(data.Snapshots),
		GlobalAdsPercent: data.GlobalAdsPercent,
	}
}

// Service moves data between the database and the spreadsheet.
type Service interface {
	// Pull replaces local data with the spreadsheet's contents.
	Pull(ctx context.Context) (Summary, error)
	// Push overwrites every tab with local data.
	Push(ctx context.Context) (Summary, error)
}

type tabClient interface {
	ReadTabs(ctx context.Context, tabs ...string) (map[string][][]string, error)
	WriteTab(ctx context.Context, tab string, rows [][]any) error
}

type productStore interface {
	List(ctx context.Context, query string) ([]calc.Product, error)
	ReplaceAll(ctx context.Context, items []calc.Product) error
}

type platformStore interface {
	List(ctx context.Context) ([]calc.Platform, error)
	ReplaceAll(ctx context.Context, platforms []calc.Platform) error
}

type settingsStore interface {
	Get(ctx context.Context) (settings.Settings, error)
	Replace(ctx context.Context, s settings.Settings) (settings.Settings, error)
}

type changeStore interface {
	All(ctx context.Context) ([]changelog.Entry, error)
	ReplaceAll(ctx context.Context, entries []changelog.Entry) error
}

type snapshotStore interface {
	List(ctx context.Context) ([]snapshots.Snapshot, error)
	ReplaceAll(ctx context.Context, snapshots []snapshots.Snapshot) error
}

type runRecorder interface {
	IncRun(direction string, err error)
	AddRows(direction, tab string, n int)
}

// ServiceParams wires the sync service.
type ServiceParams struct {
	Sheets    tabClient
	Products  productStore
	Platforms platformStore
	Settings  settingsStore
	ChangeLog changeStore
	Snapshots snapshotStore
	Metrics   runRecorder
	Logger    *logger.Logger
}

type service struct {
	sheets    tabClient
	products  productStore
	platforms platformStore
	settings  settingsStore
	changes   changeStore
	snapshots snapshotStore
	metrics   runRecorder
	logg      *logger.Logger
}

// NewService validates dependencies and builds the sync service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Sheets == nil:
		return nil, fmt.Errorf("sheets client required")
	case params.Products == nil:
		return nil, fmt.Errorf("products service required")
	case params.Platforms == nil:
		return nil, fmt.Errorf("platforms service required")
	case params.Settings == nil:
		return nil, fmt.Errorf("settings service required")
	case params.ChangeLog == nil:
		return nil, fmt.Errorf("changelog service required")
	case params.Snapshots == nil:
		return nil, fmt.Errorf("snapshots service required")
	}
	return &service{
		sheets:    params.Sheets,
		products:  params.Products,
		platforms: params.Platforms,
		settings:  params.Settings,
		changes:   params.ChangeLog,
		snapshots: params.Snapshots,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

func (s *service) Pull(ctx context.Context) (summary Summary, err error) {
	defer func() { s.finish(ctx, directionPull, summary, err) }()

	tabs, err := s.sheets.ReadTabs(ctx, Tabs...)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read spreadsheet")
	}
	for tab, rows := range tabs {
		if len(rows) > 1 {
			s.addRows(directionPull, tab, len(rows)-1)
		}
	}

	data := Decode(tabs)
	if err := s.platforms.ReplaceAll(ctx, data.Platforms); err != nil {
		return Summary{}, err
	}
	if err := s.products.ReplaceAll(ctx, data.Products); err != nil {
		return Summary{}, err
	}
	if _, err := s.settings.Replace(ctx, data.Settings); err != nil {
		return Summary{}, err
	}
	if err := s.changes.ReplaceAll(ctx, data.ChangeLog); err != nil {
		return Summary{}, err
	}
	if err := s.snapshots.ReplaceAll(ctx, data.Snapshots); err != nil {
		return Summary{}, err
	}
	return summarize(data), nil
}

// Push writes every tab even when one fails, so a single quota error does
// not leave the remaining tabs stale. The failures are combined.
func (s *service) Push(ctx context.Context) (summary Summary, err error) {
	defer func() { s.finish(ctx, directionPush, summary, err) }()

	data, err := s.load(ctx)
	if err != nil {
		return Summary{}, err
	}

	encoded := Encode(data)
	var errs error
	for _, tab := range Tabs {
		rows := encoded[tab]
		if werr := s.sheets.WriteTab(ctx, tab, rows); werr != nil {
			errs = multierr.Append(errs, fmt.Errorf("write %s: %w", tab, werr))
			continue
		}
		s.addRows(directionPush, tab, len(rows)-1)
	}
	if errs != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "write spreadsheet")
	}
	return summarize(data), nil
}

func (s *service) load(ctx context.Context) (Data, error) {
	products, err := s.products.List(ctx, "")
	if err != nil {
		return Data{}, err
	}
	platforms, err := s.platforms.List(ctx)
	if err != nil {
		return Data{}, err
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return Data{}, err
	}
	entries, err := s.changes.All(ctx)
	if err != nil {
		return Data{}, err
	}
	snaps, err := s.snapshots.List(ctx)
	if err != nil {
		return Data{}, err
	}
	return Data{
		Products:         products,
		Platforms:        platforms,
		GlobalAdsPercent: st.GlobalAdsPercent,
		ChangeLog:        entries,
		Snapshots:        snaps,
		Settings:         st,
	}, nil
}

func (s *service) addRows(direction, tab string, n int) {
	if s.metrics != nil {
		s.metrics.AddRows(direction, tab, n)
	}
}

func (s *service) finish(ctx context.Context, direction string, summary Summary, err error) {
	if s.metrics != nil {
		s.metrics.IncRun(direction, err)
	}
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"direction":   direction,
		"skus":        summary.Products,
		"platforms":   summary.Platforms,
		"fee_logs":    summary.ChangeLog,
		"snapshots":   summary.Snapshots,
		"ads_percent": summary.GlobalAdsPercent,
	})
	if err != nil {
		s.logg.Error(logCtx, "sheets sync failed", err)
		return
	}
	s.logg.Info(logCtx, "sheets sync completed")
}
