package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/profitlens/internal/workspace"
	"github.com/angelmondragon/profitlens/pkg/enums"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

// AlertReport is the filtered alert list with counts over the unfiltered set.
type AlertReport struct {
	Threshold float64     `json:"threshold"`
	Counts    AlertCounts `json:"counts"`
	Alerts    []Alert     `json:"alerts"`
}

// HeatmapReport is a heatmap plus its column footers.
type HeatmapReport struct {
	Heatmap
	Summaries []PlatformSummary `json:"summaries"`
}

// Service loads the workspace and runs the analytics derivations over it.
type Service interface {
	Alerts(ctx context.Context, platformID string, severity enums.AlertSeverity) (AlertReport, error)
	Heatmap(ctx context.Context, metric enums.HeatmapMetric) (HeatmapReport, error)
	Marketplace(ctx context.Context, platformID, query string) (MarketplaceRollup, error)
	Recommendations(ctx context.Context) ([]Recommendation, error)
	Dashboard(ctx context.Context) (DashboardSummary, error)
}

type inputsLoader interface {
	Load(ctx context.Context) (workspace.Inputs, error)
}

type recorder interface {
	ObserveCalculation(operation string, pairs int, took time.Duration)
	SetAlerts(severity string, count int)
}

// ServiceParams wires the analytics service.
type ServiceParams struct {
	Inputs  inputsLoader
	Metrics recorder
	Logger  *logger.Logger
}

type service struct {
	inputs  inputsLoader
	metrics recorder
	logg    *logger.Logger
}

// NewService builds an analytics service.
func NewService(params ServiceParams) (Service, error) {
	if params.Inputs == nil {
		return nil, fmt.Errorf("inputs loader required")
	}
	return &service{inputs: params.Inputs, metrics: params.Metrics, logg: params.Logger}, nil
}

func (s *service) Alerts(ctx context.Context, platformID string, severity enums.AlertSeverity) (AlertReport, error) {
	if severity != "" && !severity.IsValid() {
		return AlertReport{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid severity").
			WithDetails(map[string]any{"severity": severity})
	}
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return AlertReport{}, err
	}
	start := time.Now()
	all := Alerts(in.Products, in.Platforms, in.GlobalAdsPercent(), in.Settings.Calc())
	s.observe("alerts", in, start)

	counts := CountBySeverity(all)
	if s.metrics != nil {
		s.metrics.SetAlerts(string(enums.AlertSeverityLoss), counts.Loss)
		s.metrics.SetAlerts(string(enums.AlertSeverityLow), counts.Low)
	}
	return AlertReport{
		Threshold: in.Settings.MinMarginAlert,
		Counts:    counts,
		Alerts:    FilterAlerts(all, platformID, severity),
	}, nil
}

func (s *service) Heatmap(ctx context.Context, metric enums.HeatmapMetric) (HeatmapReport, error) {
	if metric == "" {
		metric = enums.HeatmapMetricProfit
	}
	if !metric.IsValid() {
		return HeatmapReport{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid heatmap metric").
			WithDetails(map[string]any{"metric": metric})
	}
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return HeatmapReport{}, err
	}
	start := time.Now()
	hm := BuildHeatmap(in.Products, in.Platforms, in.GlobalAdsPercent(), metric)
	s.observe("heatmap", in, start)
	return HeatmapReport{Heatmap: hm, Summaries: PlatformSummaries(hm)}, nil
}

func (s *service) Marketplace(ctx context.Context, platformID, query string) (MarketplaceRollup, error) {
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return MarketplaceRollup{}, err
	}
	platform, ok := in.Platform(platformID)
	if !ok {
		return MarketplaceRollup{}, pkgerrors.New(pkgerrors.CodeNotFound, "platform not found").
			WithDetails(map[string]any{"platformId": platformID})
	}
	start := time.Now()
	out := Rollup(in.Products, platform, in.GlobalAdsPercent(), query)
	if s.metrics != nil {
		s.metrics.ObserveCalculation("marketplace", len(in.Products), time.Since(start))
	}
	return out, nil
}

func (s *service) Recommendations(ctx context.Context) ([]Recommendation, error) {
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out := RecommendAll(in.Products, in.Platforms, in.GlobalAdsPercent())
	s.observe("recommendations", in, start)
	return out, nil
}

func (s *service) Dashboard(ctx context.Context) (DashboardSummary, error) {
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	start := time.Now()
	out := Dashboard(in.Products, in.Platforms, in.GlobalAdsPercent(), in.Settings.Calc())
	s.observe("dashboard", in, start)
	if s.logg != nil && out.Alerts.Loss > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"loss_alerts": out.Alerts.Loss,
			"low_alerts":  out.Alerts.Low,
		}), "loss making pairs present")
	}
	return out, nil
}

func (s *service) observe(operation string, in workspace.Inputs, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveCalculation(operation, len(in.Products)*len(in.Platforms), time.Since(start))
}
