package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/profitlens/internal/calc"
	platformsvc "github.com/angelmondragon/profitlens/internal/platforms"
	productsvc "github.com/angelmondragon/profitlens/internal/products"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
)

type stubProductService struct {
	created  productsvc.ProductInput
	updated  productsvc.UpdateProductInput
	imported []calc.Product
	deleted  string
	query    string
}

func (s *stubProductService) List(_ context.Context, query string) ([]calc.Product, error) {
	s.query = query
	return []calc.Product{{ID: "p1", Name: "Baby Lotion", SKU: "BL-200"}}, nil
}

func (s *stubProductService) Get(_ context.Context, id string) (calc.Product, error) {
	if id != "p1" {
		return calc.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return calc.Product{ID: "p1"}, nil
}

func (s *stubProductService) Create(_ context.Context, input productsvc.ProductInput) (calc.Product, error) {
	s.created = input
	return calc.Product{ID: "new", Name: input.Name, SKU: input.SKU}, nil
}

func (s *stubProductService) Update(_ context.Context, id string, input productsvc.UpdateProductInput) (calc.Product, error) {
	s.updated = input
	return calc.Product{ID: id}, nil
}

func (s *stubProductService) Delete(_ context.Context, id string) error {
	s.deleted = id
	return nil
}

func (s *stubProductService) Import(_ context.Context, items []calc.Product) (int, error) {
	s.imported = items
	return len(items), nil
}

func (s *stubProductService) ReplaceAll(context.Context, []calc.Product) error { return nil }

type stubPlatformService struct {
	platformsvc.Service
	created platformsvc.CreatePlatformInput
	updated platformsvc.UpdatePlatformInput
}

func (s *stubPlatformService) List(context.Context) ([]calc.Platform, error) {
	return calc.DefaultPlatforms(), nil
}

func (s *stubPlatformService) Create(_ context.Context, input platformsvc.CreatePlatformInput) (calc.Platform, error) {
	s.created = input
	return calc.Platform{ID: "my_shop", Name: input.Name, Type: input.Type}, nil
}

func (s *stubPlatformService) Update(_ context.Context, id string, input platformsvc.UpdatePlatformInput) (calc.Platform, error) {
	s.updated = input
	return calc.Platform{ID: id}, nil
}

func TestCreateProduct(t *testing.T) {
	stub := &stubProductService{}
	rec := httptest.NewRecorder()
	body := `{"name":" Baby Lotion ","sku":"BL-200","cost_price":140,"mrp":799,"selling_price":699,
		"platform_pricing":{"blinkit":{"mrp":799,"selling_price":649,"return_percent":2,"monthly_volume":120}}}`
	CreateProduct(stub, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/products", body, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Baby Lotion", stub.created.Name)
	assert.Equal(t, 18.0, stub.created.GSTPercent, "gst defaults to 18")
	assert.Equal(t, 649.0, stub.created.PlatformPricing["blinkit"].SellingPrice)
	assert.Equal(t, 120.0, stub.created.PlatformPricing["blinkit"].MonthlyVolume)
}

func TestCreateProductValidation(t *testing.T) {
	stub := &stubProductService{}
	rec := httptest.NewRecorder()
	CreateProduct(stub, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/products", `{"sku":"X","cost_price":-1}`, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)
	assert.Contains(t, env.Error.Details, "name")
	assert.Contains(t, env.Error.Details, "cost_price")
	assert.Empty(t, stub.created.SKU)
}

func TestUpdateProductPartial(t *testing.T) {
	stub := &stubProductService{}
	rec := httptest.NewRecorder()
	req := newJSONRequest(http.MethodPut, "/api/v1/products/p1", `{"selling_price":649}`, map[string]string{"productId": "p1"})
	UpdateProduct(stub, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.updated.SellingPrice)
	assert.Equal(t, 649.0, *stub.updated.SellingPrice)
	assert.Nil(t, stub.updated.Name)
	assert.Nil(t, stub.updated.PlatformPricing)
}

func TestGetProductNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	req := newJSONRequest(http.MethodGet, "/api/v1/products/nope", "", map[string]string{"productId": "nope"})
	GetProduct(&stubProductService{}, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteProduct(t *testing.T) {
	stub := &stubProductService{}
	rec := httptest.NewRecorder()
	req := newJSONRequest(http.MethodDelete, "/api/v1/products/p1", "", map[string]string{"productId": "p1"})
	DeleteProduct(stub, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "p1", stub.deleted)
}

func TestListProductsSearch(t *testing.T) {
	stub := &stubProductService{}
	rec := httptest.NewRecorder()
	ListProducts(stub, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?q=%20lotion", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lotion", stub.query)
}

func TestImportProductsReportsRowErrors(t *testing.T) {
	stub := &stubProductService{}
	csv := strings.Join([]string{
		"Name,SKU,Cost Price,GST%,MRP,Selling Price",
		"Baby Lotion,BL-200,140,18,799,699",
		"Broken,BR-1,abc,18,100,90",
		"Hair Oil,HO-100,60,,299,249",
	}, "\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	ImportProducts(stub, &stubPlatformService{}, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, stub.imported, 2)
	assert.Equal(t, "HO-100", stub.imported[1].SKU)
	assert.Equal(t, 18.0, stub.imported[1].GSTPercent)
	assert.Contains(t, rec.Body.String(), `"imported":2`)
	assert.Contains(t, rec.Body.String(), "line 3")
}

func TestImportProductsRejectsEmptyCSV(t *testing.T) {
	stub := &stubProductService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import", strings.NewReader("Name,SKU\n"))
	rec := httptest.NewRecorder()
	ImportProducts(stub, &stubPlatformService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, stub.imported)
}

func TestExportProductTemplate(t *testing.T) {
	rec := httptest.NewRecorder()
	ExportProductTemplate(&stubProductService{}, &stubPlatformService{}, testLogger()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exports/sku-template.csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "profitlens-sku-template.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), `"`))
}

func TestCreatePlatformRejectsUnknownType(t *testing.T) {
	stub := &stubPlatformService{}
	rec := httptest.NewRecorder()
	CreatePlatform(stub, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/platforms", `{"name":"My Shop","type":"barter"}`, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.created.Name)
}

func TestCreatePlatform(t *testing.T) {
	stub := &stubPlatformService{}
	rec := httptest.NewRecorder()
	body := `{"name":"My Shop","type":"sp_commission","commission_percent":12.5,"ads_percent":3}`
	CreatePlatform(stub, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/platforms", body, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, stub.created.CommissionPercent)
	assert.Equal(t, 12.5, *stub.created.CommissionPercent)
	assert.Equal(t, 3.0, stub.created.AdsPercent)
}

func TestUpdatePlatformPartial(t *testing.T) {
	stub := &stubPlatformService{}
	rec := httptest.NewRecorder()
	req := newJSONRequest(http.MethodPatch, "/api/v1/platforms/blinkit", `{"ads_percent":4}`, map[string]string{"platformId": "blinkit"})
	UpdatePlatform(stub, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.updated.AdsPercent)
	assert.Equal(t, 4.0, *stub.updated.AdsPercent)
	assert.Nil(t, stub.updated.Type)
}
