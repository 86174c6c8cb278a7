package controllers

import (
	"net/http"

	"github.com/angelmondragon/profitlens/api/responses"
	"github.com/angelmondragon/profitlens/api/validators"
	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/pricing"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

type computeRequest struct {
	ProductID        string                `json:"product_id,omitempty" validate:"required_without=Product"`
	Product          *inlineProductRequest `json:"product,omitempty" validate:"omitempty"`
	PlatformID       string                `json:"platform_id" validate:"required"`
	GlobalAdsPercent *float64              `json:"global_ads_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// inlineProductRequest evaluates a product that has not been saved.
type inlineProductRequest struct {
	Name            string                    `json:"name"`
	SKU             string                    `json:"sku"`
	CostPrice       float64                   `json:"cost_price" validate:"gte=0"`
	GSTPercent      float64                   `json:"gst_percent" validate:"gte=0,lte=100"`
	Weight          float64                   `json:"weight" validate:"gte=0"`
	MRP             float64                   `json:"mrp" validate:"gte=0"`
	SellingPrice    float64                   `json:"selling_price" validate:"gte=0"`
	PlatformPricing map[string]pricingRequest `json:"platform_pricing,omitempty" validate:"omitempty,dive"`
}

func (r inlineProductRequest) toProduct() calc.Product {
	return calc.Product{
		Name:            r.Name,
		SKU:             r.SKU,
		CostPrice:       r.CostPrice,
		GSTPercent:      r.GSTPercent,
		Weight:          r.Weight,
		MRP:             r.MRP,
		SellingPrice:    r.SellingPrice,
		PlatformPricing: toPricingMap(r.PlatformPricing),
	}
}

type computeAllRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

type breakEvenRequest struct {
	ProductID    string   `json:"product_id" validate:"required"`
	PlatformID   string   `json:"platform_id" validate:"required"`
	TargetMargin *float64 `json:"target_margin" validate:"required,gte=-100,lte=100"`
}

type simulateRequest struct {
	ProductID    string  `json:"product_id" validate:"required"`
	PlatformID   string  `json:"platform_id" validate:"required"`
	SellingPrice float64 `json:"selling_price" validate:"gt=0"`
	MRP          float64 `json:"mrp,omitempty" validate:"gte=0"`
}

func ComputeResult(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload computeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := pricing.ComputeInput{
			ProductID:        payload.ProductID,
			PlatformID:       payload.PlatformID,
			GlobalAdsPercent: payload.GlobalAdsPercent,
		}
		if payload.Product != nil {
			product := payload.Product.toProduct()
			input.Product = &product
		}

		result, err := svc.Compute(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ComputeAllResults(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload computeAllRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := svc.ComputeAll(r.Context(), payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, results)
	}
}

// BreakEven answers 422 TARGET_UNREACHABLE with the best achievable margin
// when no price in the search bracket reaches the target.
func BreakEven(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload breakEvenRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.BreakEven(r.Context(), payload.ProductID, payload.PlatformID, *payload.TargetMargin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func Simulate(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload simulateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.Simulate(r.Context(), pricing.SimulateInput{
			ProductID:    payload.ProductID,
			PlatformID:   payload.PlatformID,
			SellingPrice: payload.SellingPrice,
			MRP:          payload.MRP,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// ExportResults streams one product's results on every platform as CSV.
func ExportResults(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.ExportResults(r.Context(), validators.QueryString(r, "product_id", maxSearchLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCSV(w, out.Filename, out.Body)
	}
}
