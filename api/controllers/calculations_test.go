package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/pricing"
	"github.com/angelmondragon/profitlens/internal/sheetsync"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
)

type stubPricingService struct {
	compute  pricing.ComputeInput
	simulate pricing.SimulateInput
	target   float64
	err      error
}

func (s *stubPricingService) Compute(_ context.Context, input pricing.ComputeInput) (calc.Result, error) {
	s.compute = input
	return calc.Result{PlatformID: input.PlatformID, Profit: 42}, s.err
}

func (s *stubPricingService) ComputeAll(_ context.Context, productID string) ([]calc.Result, error) {
	return []calc.Result{{PlatformID: "a"}, {PlatformID: "b"}}, s.err
}

func (s *stubPricingService) BreakEven(_ context.Context, productID, platformID string, target float64) (pricing.BreakEven, error) {
	s.target = target
	if s.err != nil {
		return pricing.BreakEven{}, s.err
	}
	return pricing.BreakEven{ProductID: productID, PlatformID: platformID, TargetMargin: target, Price: 420}, nil
}

func (s *stubPricingService) Simulate(_ context.Context, input pricing.SimulateInput) (pricing.Simulation, error) {
	s.simulate = input
	return pricing.Simulation{ProfitDelta: 10}, s.err
}

func (s *stubPricingService) ExportResults(_ context.Context, productID string) (pricing.Export, error) {
	if s.err != nil {
		return pricing.Export{}, s.err
	}
	return pricing.Export{Filename: "profitlens-" + productID + "-profit.csv", Body: []byte(`"Platform"`)}, nil
}

func TestComputeResultInlineProduct(t *testing.T) {
	stub := &stubPricingService{}
	rec := httptest.NewRecorder()
	body := `{"product":{"name":"Draft","cost_price":50,"gst_percent":18,"mrp":200,"selling_price":180},"platform_id":"meesho","global_ads_percent":0}`
	ComputeResult(stub, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/calculations/compute", body, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, stub.compute.Product)
	assert.Equal(t, 180.0, stub.compute.Product.SellingPrice)
	require.NotNil(t, stub.compute.GlobalAdsPercent)
	assert.Equal(t, 0.0, *stub.compute.GlobalAdsPercent)
}

func TestComputeResultRequiresProduct(t *testing.T) {
	stub := &stubPricingService{}
	rec := httptest.NewRecorder()
	ComputeResult(stub, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/calculations/compute", `{"platform_id":"meesho"}`, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBreakEvenRequiresTarget(t *testing.T) {
	stub := &stubPricingService{}
	rec := httptest.NewRecorder()
	BreakEven(stub, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/calculations/break-even", `{"product_id":"p1","platform_id":"meesho"}`, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBreakEvenZeroTargetIsAccepted(t *testing.T) {
	stub := &stubPricingService{}
	rec := httptest.NewRecorder()
	BreakEven(stub, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/calculations/break-even", `{"product_id":"p1","platform_id":"meesho","target_margin":0}`, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0.0, stub.target)
}

func TestBreakEvenUnreachable(t *testing.T) {
	cause := &calc.OutOfRangeError{TargetMargin: 90, BestMargin: 20, MaxPrice: calc.BreakEvenMaxPrice}
	stub := &stubPricingService{
		err: pkgerrors.Wrap(pkgerrors.CodeTargetUnreachable, cause, cause.Error()).
			WithDetails(map[string]any{"best_margin": 20.0}),
	}
	rec := httptest.NewRecorder()
	BreakEven(stub, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/calculations/break-even", `{"product_id":"p1","platform_id":"meesho","target_margin":90}`, nil))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(pkgerrors.CodeTargetUnreachable), env.Error.Code)
	assert.Equal(t, 20.0, env.Error.Details["best_margin"])
}

func TestSimulatePassesPrices(t *testing.T) {
	stub := &stubPricingService{}
	rec := httptest.NewRecorder()
	Simulate(stub, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/calculations/simulate", `{"product_id":"p1","platform_id":"blinkit","selling_price":599,"mrp":699}`, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 599.0, stub.simulate.SellingPrice)
	assert.Equal(t, 699.0, stub.simulate.MRP)
}

func TestSimulateRejectsZeroPrice(t *testing.T) {
	rec := httptest.NewRecorder()
	Simulate(&stubPricingService{}, testLogger()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/calculations/simulate", `{"product_id":"p1","platform_id":"blinkit","selling_price":0}`, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportResultsCSV(t *testing.T) {
	rec := httptest.NewRecorder()
	ExportResults(&stubPricingService{}, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exports/results.csv?product_id=p1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "profitlens-p1-profit.csv")
}

func TestSyncDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	SyncPush(nil, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/push", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubSync struct {
	pulls, pushes int
	err           error
}

func (s *stubSync) Pull(context.Context) (sheetsync.Summary, error) {
	s.pulls++
	return sheetsync.Summary{Products: 3}, s.err
}

func (s *stubSync) Push(context.Context) (sheetsync.Summary, error) {
	s.pushes++
	return sheetsync.Summary{Products: 3}, s.err
}

func TestSyncPullAndPush(t *testing.T) {
	stub := &stubSync{}
	rec := httptest.NewRecorder()
	SyncPull(stub, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/pull", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"skus":3`)

	stub.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("quota"), "write spreadsheet")
	rec = httptest.NewRecorder()
	SyncPush(stub, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/push", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1, stub.pulls)
	assert.Equal(t, 1, stub.pushes)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthReady(t *testing.T) {
	cfg := testConfig()
	rec := httptest.NewRecorder()
	HealthReady(cfg, testLogger(),
		ReadinessCheck{Name: "db", Pinger: stubPinger{}},
		ReadinessCheck{Name: "redis"},
	).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"disabled"`)
	assert.Equal(t, "test", rec.Header().Get("X-ProfitLens-Env"))

	rec = httptest.NewRecorder()
	HealthReady(cfg, testLogger(), ReadinessCheck{Name: "db", Pinger: stubPinger{err: errors.New("refused")}}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}
