package products

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func newTestService(t *testing.T) Service {
	t.Helper()
	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn), NewTxRunner(db.NewFromConn(conn)))
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresRepo(t *testing.T) {
	_, err := NewService(nil, nil)
	require.Error(t, err)
}

func TestCreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	settlement := 410.0
	created, err := svc.Create(ctx, ProductInput{
		Name:         "  Baby Lotion ",
		SKU:          "BL-200",
		CostPrice:    140,
		GSTPercent:   18,
		MRP:          799,
		SellingPrice: 699,
		PlatformPricing: map[string]calc.PlatformPricing{
			"myntra": {SellingPrice: 699, Settlement: &settlement, MonthlyVolume: 10},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Baby Lotion", created.Name)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Contains(t, got.PlatformPricing, "myntra")
	require.NotNil(t, got.PlatformPricing["myntra"].Settlement)
	assert.Equal(t, 410.0, *got.PlatformPricing["myntra"].Settlement)

	price := 749.0
	updated, err := svc.Update(ctx, created.ID, UpdateProductInput{SellingPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, 749.0, updated.SellingPrice)
	assert.Equal(t, 140.0, updated.CostPrice)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	err = svc.Delete(ctx, created.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)

	cases := []ProductInput{
		{SKU: "X"},
		{Name: "X"},
		{Name: "X", SKU: "X", CostPrice: -1},
		{Name: "X", SKU: "X", GSTPercent: 120},
		{Name: "X", SKU: "X", PlatformPricing: map[string]calc.PlatformPricing{"zepto": {ReturnPercent: 150}}},
	}
	for i, input := range cases {
		_, err := svc.Create(context.Background(), input)
		require.Error(t, err, "case %d", i)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code(), "case %d", i)
	}
}

func TestListOrderAndSearch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for _, name := range []string{"Zinc Cream", "Aloe Gel", "Baby Wipes"} {
		_, err := svc.Create(ctx, ProductInput{Name: name, SKU: strings.ToUpper(name[:3]) + "-1"})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Zinc Cream", all[0].Name)
	assert.Equal(t, "Baby Wipes", all[2].Name)

	found, err := svc.List(ctx, "ALOE")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Aloe Gel", found[0].Name)

	bySKU, err := svc.List(ctx, "bab-")
	require.NoError(t, err)
	require.Len(t, bySKU, 1)
}

func TestImportAndReplaceAll(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Create(ctx, ProductInput{Name: "Existing", SKU: "EX-1"})
	require.NoError(t, err)

	n, err := svc.Import(ctx, []calc.Product{
		{Name: "Imported A", SKU: "IM-A"},
		{ID: "fixed-id", Name: "Imported B", SKU: "IM-B"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Existing", all[0].Name)
	assert.Equal(t, "fixed-id", all[2].ID)

	_, err = svc.Import(ctx, []calc.Product{{Name: "", SKU: "BAD"}})
	require.Error(t, err)

	require.NoError(t, svc.ReplaceAll(ctx, []calc.Product{
		{ID: "s2", Name: "Second", SKU: "S-2"},
		{ID: "s1", Name: "First", SKU: "S-1"},
	}))
	all, err = svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s2", all[0].ID)
	assert.Equal(t, "s1", all[1].ID)
}
