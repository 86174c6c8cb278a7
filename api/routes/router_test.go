package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/profitlens/api/controllers"
	"github.com/angelmondragon/profitlens/internal/app"
	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"github.com/angelmondragon/profitlens/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:5173"}},
		FeatureFlags: config.FeatureFlagsConfig{
			SeedDefault: true,
		},
		Calc: config.CalcConfig{
			DefaultMinMarginAlert: 15,
			ChangeLogLimit:        500,
		},
	}
}

type testServer struct {
	handler  http.Handler
	registry *prometheus.Registry
}

func newTestServer(t *testing.T, readiness ...controllers.ReadinessCheck) testServer {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	reg := prometheus.NewRegistry()

	svc, err := app.Build(app.Params{
		Config:      cfg,
		DB:          db.NewFromConn(conn),
		Logger:      logg,
		CalcMetrics: metrics.NewCalculationMetrics(reg),
	})
	require.NoError(t, err)

	handler := NewRouter(cfg, logg, Infra{
		Readiness:   readiness,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Metrics:     metrics.Handler(reg),
	}, svc)
	return testServer{handler: handler, registry: reg}
}

func (s testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func createProduct(t *testing.T, s testServer) calc.Product {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/products",
		`{"name":"Face Wash","sku":"FW-100","cost_price":120,"gst_percent":18,"weight":250,"mrp":499,"selling_price":399}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var product calc.Product
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &product))
	require.NotEmpty(t, product.ID)
	return product
}

func TestHealthLiveReportsEnv(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "test", resp.Header().Get("X-ProfitLens-Env"))
}

func TestHealthReadyFailsWhenDependencyDown(t *testing.T) {
	s := newTestServer(t,
		controllers.ReadinessCheck{Name: "db", Pinger: stubPinger{}},
		controllers.ReadinessCheck{Name: "redis", Pinger: stubPinger{err: errors.New("refused")}},
		controllers.ReadinessCheck{Name: "bigquery"},
	)
	resp := s.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestPlatformsSeedDefaults(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/api/v1/platforms", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var list []calc.Platform
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &list))
	assert.Len(t, list, len(calc.DefaultPlatformIDs))
}

func TestProductComputeAndBreakEven(t *testing.T) {
	s := newTestServer(t)
	product := createProduct(t, s)

	resp := s.do(t, http.MethodPost, "/api/v1/calculations/compute",
		fmt.Sprintf(`{"product_id":%q,"platform_id":"zepto"}`, product.ID))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var result calc.Result
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &result))
	assert.Equal(t, "zepto", result.PlatformID)

	resp = s.do(t, http.MethodPost, "/api/v1/calculations/break-even",
		fmt.Sprintf(`{"product_id":%q,"platform_id":"zepto","target_margin":99}`, product.ID))
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code, resp.Body.String())
	env := decode(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TARGET_UNREACHABLE", env.Error.Code)
	assert.Contains(t, env.Error.Details, "best_margin")
}

func TestUnknownProductIsNotFound(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/api/v1/products/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestResultsExportIsCSV(t *testing.T) {
	s := newTestServer(t)
	product := createProduct(t, s)

	resp := s.do(t, http.MethodGet, "/api/v1/exports/results.csv?product_id="+product.ID, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "attachment")
}

func TestSyncUnavailableWithoutSheets(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodPost, "/api/v1/sync/pull", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestTrendsUnavailableWithoutWarehouse(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/api/v1/analytics/trends?from=2026-01", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestSnapshotCompareNeedsTwoSnapshots(t *testing.T) {
	s := newTestServer(t)
	createProduct(t, s)

	resp := s.do(t, http.MethodPost, "/api/v1/snapshots", "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = s.do(t, http.MethodGet, "/api/v1/snapshots/compare", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMetricsEndpointReportsRoutes(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/api/v1/settings", "")

	resp := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `route="/api/v1/settings"`)
}
