// Package pricing serves on-demand profit calculations for stored or ad hoc
// products: single pair, all platforms, break-even search, price simulation
// and the results CSV.
package pricing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/csvio"
	"github.com/angelmondragon/profitlens/internal/workspace"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

// ComputeInput selects a product (stored by ID or supplied inline) and a
// platform. GlobalAdsPercent overrides the stored setting when set.
type ComputeInput struct {
	ProductID        string
	Product          *calc.Product
	PlatformID       string
	GlobalAdsPercent *float64
}

// BreakEven is the solver outcome at a target margin.
type BreakEven struct {
	ProductID    string      `json:"productId"`
	PlatformID   string      `json:"platformId"`
	TargetMargin float64     `json:"targetMargin"`
	Price        float64     `json:"price"`
	Result       calc.Result `json:"result"`
}

// SimulateInput is a what-if selling price (and optional MRP) for one pair.
type SimulateInput struct {
	ProductID    string
	PlatformID   string
	SellingPrice float64
	MRP          float64
}

// Simulation pairs the current and simulated results.
type Simulation struct {
	Current     calc.Result `json:"current"`
	Simulated   calc.Result `json:"simulated"`
	ProfitDelta float64     `json:"profitDelta"`
	MarginDelta float64     `json:"marginDelta"`
}

// Export is a rendered results CSV.
type Export struct {
	Filename string
	Body     []byte
}

// Service evaluates products against platforms.
type Service interface {
	Compute(ctx context.Context, input ComputeInput) (calc.Result, error)
	ComputeAll(ctx context.Context, productID string) ([]calc.Result, error)
	BreakEven(ctx context.Context, productID, platformID string, targetMargin float64) (BreakEven, error)
	Simulate(ctx context.Context, input SimulateInput) (Simulation, error)
	ExportResults(ctx context.Context, productID string) (Export, error)
}

type inputsLoader interface {
	Load(ctx context.Context) (workspace.Inputs, error)
}

type recorder interface {
	ObserveCalculation(operation string, pairs int, took time.Duration)
}

// ServiceParams wires the pricing service.
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

// NewService builds a pricing service.
func NewService(params ServiceParams) (Service, error) {
	if params.Inputs == nil {
		return nil, fmt.Errorf("inputs loader required")
	}
	return &service{inputs: params.Inputs, metrics: params.Metrics, logg: params.Logger}, nil
}

func (s *service) Compute(ctx context.Context, input ComputeInput) (calc.Result, error) {
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return calc.Result{}, err
	}

	var product calc.Product
	switch {
	case input.Product != nil:
		product = *input.Product
	case strings.TrimSpace(input.ProductID) != "":
		if product, err = findProduct(in, input.ProductID); err != nil {
			return calc.Result{}, err
		}
	default:
		return calc.Result{}, pkgerrors.New(pkgerrors.CodeValidation, "product_id or product is required")
	}
	platform, err := findPlatform(in, input.PlatformID)
	if err != nil {
		return calc.Result{}, err
	}

	ads := in.GlobalAdsPercent()
	if input.GlobalAdsPercent != nil {
		ads = *input.GlobalAdsPercent
	}
	start := time.Now()
	res := calc.ComputeResult(product, platform, ads)
	s.observe("compute", 1, start)
	return res, nil
}

func (s *service) ComputeAll(ctx context.Context, productID string) ([]calc.Result, error) {
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return nil, err
	}
	product, err := findProduct(in, productID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out := calc.ComputeAllResults(product, in.Platforms, in.GlobalAdsPercent())
	s.observe("compute_all", len(out), start)
	return out, nil
}

func (s *service) BreakEven(ctx context.Context, productID, platformID string, targetMargin float64) (BreakEven, error) {
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return BreakEven{}, err
	}
	product, err := findProduct(in, productID)
	if err != nil {
		return BreakEven{}, err
	}
	platform, err := findPlatform(in, platformID)
	if err != nil {
		return BreakEven{}, err
	}

	start := time.Now()
	price, err := calc.FindBreakEvenPrice(product, platform, targetMargin, in.GlobalAdsPercent())
	s.observe("break_even", 1, start)
	if err != nil {
		var oor *calc.OutOfRangeError
		if errors.As(err, &oor) {
			return BreakEven{}, pkgerrors.Wrap(pkgerrors.CodeTargetUnreachable, err, err.Error()).
				WithDetails(map[string]any{
					"target_margin": oor.TargetMargin,
					"best_margin":   oor.BestMargin,
					"max_price":     oor.MaxPrice,
				})
		}
		return BreakEven{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "break-even search")
	}

	return BreakEven{
		ProductID:    product.ID,
		PlatformID:   platform.ID,
		TargetMargin: targetMargin,
		Price:        price,
		Result:       calc.Simulate(product, platform, price, max(price, product.MRP), in.GlobalAdsPercent()),
	}, nil
}

func (s *service) Simulate(ctx context.Context, input SimulateInput) (Simulation, error) {
	if input.SellingPrice <= 0 {
		return Simulation{}, pkgerrors.New(pkgerrors.CodeValidation, "selling price must be positive")
	}
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return Simulation{}, err
	}
	product, err := findProduct(in, input.ProductID)
	if err != nil {
		return Simulation{}, err
	}
	platform, err := findPlatform(in, input.PlatformID)
	if err != nil {
		return Simulation{}, err
	}

	start := time.Now()
	current := calc.ComputeResult(product, platform, in.GlobalAdsPercent())
	simulated := calc.Simulate(product, platform, input.SellingPrice, input.MRP, in.GlobalAdsPercent())
	s.observe("simulate", 2, start)
	return Simulation{
		Current:     current,
		Simulated:   simulated,
		ProfitDelta: simulated.Profit - current.Profit,
		MarginDelta: simulated.ProfitMargin - current.ProfitMargin,
	}, nil
}

func (s *service) ExportResults(ctx context.Context, productID string) (Export, error) {
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return Export{}, err
	}
	product, err := findProduct(in, productID)
	if err != nil {
		return Export{}, err
	}
	results := calc.ComputeAllResults(product, in.Platforms, in.GlobalAdsPercent())

	var buf bytes.Buffer
	if err := csvio.ExportResults(&buf, results); err != nil {
		return Export{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render results csv")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithProductID(ctx, product.ID), "results exported")
	}
	return Export{Filename: csvio.ResultsFilename(product.SKU), Body: buf.Bytes()}, nil
}

func (s *service) observe(operation string, pairs int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveCalculation(operation, pairs, time.Since(start))
}

func findProduct(in workspace.Inputs, id string) (calc.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return calc.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	product, ok := in.Product(id)
	if !ok {
		return calc.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"productId": id})
	}
	return product, nil
}

func findPlatform(in workspace.Inputs, id string) (calc.Platform, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return calc.Platform{}, pkgerrors.New(pkgerrors.CodeValidation, "platform_id is required")
	}
	platform, ok := in.Platform(id)
	if !ok {
		return calc.Platform{}, pkgerrors.New(pkgerrors.CodeNotFound, "platform not found").
			WithDetails(map[string]any{"platformId": id})
	}
	return platform, nil
}
