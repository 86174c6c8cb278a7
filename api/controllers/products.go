package controllers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/multierr"

	"github.com/angelmondragon/profitlens/api/responses"
	"github.com/angelmondragon/profitlens/api/validators"
	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/csvio"
	platformsvc "github.com/angelmondragon/profitlens/internal/platforms"
	productsvc "github.com/angelmondragon/profitlens/internal/products"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

const (
	maxSearchLen   = 128
	maxImportBytes = 5 << 20
)

type pricingRequest struct {
	MRP           float64  `json:"mrp" validate:"gte=0"`
	SellingPrice  float64  `json:"selling_price" validate:"gte=0"`
	Settlement    *float64 `json:"settlement,omitempty" validate:"omitempty,gte=0"`
	ReturnPercent float64  `json:"return_percent" validate:"gte=0,lte=100"`
	MonthlyVolume float64  `json:"monthly_volume" validate:"gte=0"`
}

func (p pricingRequest) toPricing() calc.PlatformPricing {
	return calc.PlatformPricing{
		MRP:           p.MRP,
		SellingPrice:  p.SellingPrice,
		Settlement:    p.Settlement,
		ReturnPercent: p.ReturnPercent,
		MonthlyVolume: p.MonthlyVolume,
	}
}

func toPricingMap(in map[string]pricingRequest) map[string]calc.PlatformPricing {
	out := make(map[string]calc.PlatformPricing, len(in))
	for id, p := range in {
		out[id] = p.toPricing()
	}
	return out
}

type createProductRequest struct {
	Name            string                    `json:"name" validate:"required,max=200"`
	SKU             string                    `json:"sku" validate:"required,max=100"`
	CostPrice       float64                   `json:"cost_price" validate:"gte=0"`
	GSTPercent      *float64                  `json:"gst_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	Weight          float64                   `json:"weight" validate:"gte=0"`
	MRP             float64                   `json:"mrp" validate:"gte=0"`
	SellingPrice    float64                   `json:"selling_price" validate:"gte=0"`
	Notes           string                    `json:"notes" validate:"max=2000"`
	PlatformPricing map[string]pricingRequest `json:"platform_pricing,omitempty" validate:"omitempty,dive"`
}

func (r createProductRequest) toInput() productsvc.ProductInput {
	gst := 18.0
	if r.GSTPercent != nil {
		gst = *r.GSTPercent
	}
	return productsvc.ProductInput{
		Name:            validators.SanitizeString(r.Name, 200),
		SKU:             validators.SanitizeString(r.SKU, 100),
		CostPrice:       r.CostPrice,
		GSTPercent:      gst,
		Weight:          r.Weight,
		MRP:             r.MRP,
		SellingPrice:    r.SellingPrice,
		Notes:           r.Notes,
		PlatformPricing: toPricingMap(r.PlatformPricing),
	}
}

type updateProductRequest struct {
	Name            *string                    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	SKU             *string                    `json:"sku,omitempty" validate:"omitempty,max=100"`
	CostPrice       *float64                   `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	GSTPercent      *float64                   `json:"gst_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	Weight          *float64                   `json:"weight,omitempty" validate:"omitempty,gte=0"`
	MRP             *float64                   `json:"mrp,omitempty" validate:"omitempty,gte=0"`
	SellingPrice    *float64                   `json:"selling_price,omitempty" validate:"omitempty,gte=0"`
	Notes           *string                    `json:"notes,omitempty" validate:"omitempty,max=2000"`
	PlatformPricing *map[string]pricingRequest `json:"platform_pricing,omitempty"`
}

func (r updateProductRequest) toInput() productsvc.UpdateProductInput {
	input := productsvc.UpdateProductInput{
		Name:         r.Name,
		SKU:          r.SKU,
		CostPrice:    r.CostPrice,
		GSTPercent:   r.GSTPercent,
		Weight:       r.Weight,
		MRP:          r.MRP,
		SellingPrice: r.SellingPrice,
		Notes:        r.Notes,
	}
	if r.PlatformPricing != nil {
		pricing := toPricingMap(*r.PlatformPricing)
		input.PlatformPricing = &pricing
	}
	return input
}

func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), validators.QueryString(r, "q", maxSearchLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := svc.Get(r.Context(), chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func CreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func UpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id := chi.URLParam(r, "productId")
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProductID(ctx, id)
		}
		product, err := svc.Update(ctx, id, payload.toInput())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func DeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "productId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type importResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportProducts reads a CSV upload. Rows that parse are imported even when
// others fail; the failures are listed in the response.
func ImportProducts(svc productsvc.Service, platforms platformsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read csv upload"))
			return
		}

		available, err := platforms.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items, parseErr := csvio.ParseProducts(bytes.NewReader(body), available)
		rowErrs := rowErrors(parseErr)
		if parseErr != nil && len(rowErrs) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid csv"))
			return
		}
		if len(items) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no valid rows in csv").
				WithDetails(map[string]any{"errors": rowErrs}))
			return
		}
		result := importResult{Errors: rowErrs}

		imported, err := svc.Import(ctx, items)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result.Imported = imported

		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"imported":   imported,
				"row_errors": len(result.Errors),
				"csv_bytes":  len(body),
			}), "products imported")
		}
		responses.WriteSuccess(w, result)
	}
}

func rowErrors(err error) []string {
	var out []string
	for _, e := range multierr.Errors(err) {
		var rowErr *csvio.RowError
		if errors.As(e, &rowErr) {
			out = append(out, rowErr.Error())
		}
	}
	return out
}

// ExportProductTemplate returns the import template, prefilled with the
// current catalogue.
func ExportProductTemplate(svc productsvc.Service, platforms platformsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		items, err := svc.List(ctx, "")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		available, err := platforms.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var buf bytes.Buffer
		if err := csvio.ExportTemplate(&buf, items, available); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render template"))
			return
		}
		responses.WriteCSV(w, "profitlens-sku-template.csv", buf.Bytes())
	}
}
