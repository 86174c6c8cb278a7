package platforms

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/changelog"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	"github.com/angelmondragon/profitlens/pkg/enums"
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
	if err := conn.AutoMigrate(&models.Platform{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

type recorder struct {
	entries []changelog.Entry
	err     error
}

func (r *recorder) Record(_ context.Context, entries []changelog.Entry) error {
	r.entries = append(r.entries, entries...)
	return r.err
}

func recorderFor(changes ChangeRecorder) func(*gorm.DB) ChangeRecorder {
	if changes == nil {
		return nil
	}
	return func(*gorm.DB) ChangeRecorder { return changes }
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, changes ChangeRecorder) Service {
	t.Helper()
	conn := newTestDB(t)
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Tx:      NewTxRunner(db.NewFromConn(conn), recorderFor(changes)),
		Changes: changes,
		Clock:   func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresRepo(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestListSeedsDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(calc.DefaultPlatformIDs))
	for i, id := range calc.DefaultPlatformIDs {
		assert.Equal(t, id, list[i].ID)
	}

	again, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, again, len(calc.DefaultPlatformIDs))
	assert.Nil(t, again[8].CommissionPercent, "myntra keeps commission unset")
	require.NotNil(t, again[1].CommissionPercent)
	assert.Equal(t, 32.0, *again[1].CommissionPercent)
}

func TestUpdateRecordsChanges(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	svc := newTestService(t, rec)
	_, err := svc.List(ctx)
	require.NoError(t, err)

	commission := 30.0
	ads := 6.0
	updated, err := svc.Update(ctx, "zepto", UpdatePlatformInput{CommissionPercent: &commission, AdsPercent: &ads})
	require.NoError(t, err)
	assert.Equal(t, 30.0, *updated.CommissionPercent)
	assert.Equal(t, 6.0, updated.AdsPercent)

	require.Len(t, rec.entries, 2)
	assert.Equal(t, changelog.FieldCommissionPercent, rec.entries[0].Field)
	assert.Equal(t, 36.0, rec.entries[0].OldValue)
	assert.True(t, fixedNow.Equal(rec.entries[0].Date))

	name := "Zepto Now"
	_, err = svc.Update(ctx, "zepto", UpdatePlatformInput{Name: &name})
	require.NoError(t, err)
	assert.Len(t, rec.entries, 2, "renames are not fee changes")

	got, err := svc.Get(ctx, "zepto")
	require.NoError(t, err)
	assert.Equal(t, "Zepto Now", got.Name)
}

func TestUpdateRollsBackWhenChangeLogFails(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &recorder{err: pkgerrors.New(pkgerrors.CodeDependency, "record fee changes")})
	_, err := svc.List(ctx)
	require.NoError(t, err)

	ads := 3.0
	_, err = svc.Update(ctx, "meesho", UpdatePlatformInput{AdsPercent: &ads})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())

	got, err := svc.Get(ctx, "meesho")
	require.NoError(t, err)
	assert.NotEqual(t, 3.0, got.AdsPercent, "platform edit must not outlive its change log entry")
}

func TestUpdateWritesChangeLogInSameTransaction(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	require.NoError(t, conn.AutoMigrate(&models.FeeChangeLog{}))
	svc, err := NewService(ServiceParams{
		Repo: NewRepository(conn),
		Tx: NewTxRunner(db.NewFromConn(conn), func(tx *gorm.DB) ChangeRecorder {
			return changelog.Bind(tx, nil, 0, nil)
		}),
		Clock: func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	_, err = svc.List(ctx)
	require.NoError(t, err)

	commission := 28.0
	_, err = svc.Update(ctx, "zepto", UpdatePlatformInput{CommissionPercent: &commission})
	require.NoError(t, err)

	var rows []models.FeeChangeLog
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "zepto", rows[0].PlatformID)
	assert.Equal(t, 28.0, rows[0].NewValue)
}

func TestUpdateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	_, err := svc.List(ctx)
	require.NoError(t, err)

	bad := 150.0
	_, err = svc.Update(ctx, "nykaa", UpdatePlatformInput{CommissionPercent: &bad})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	typ := enums.PlatformType("barter")
	_, err = svc.Update(ctx, "nykaa", UpdatePlatformInput{Type: &typ})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Update(ctx, "missing", UpdatePlatformInput{})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestCreateDeleteAndReset(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	commission := 25.0
	created, err := svc.Create(ctx, CreatePlatformInput{
		Name:              "Tata Cliq",
		Type:              enums.PlatformTypeSPCommission,
		CommissionPercent: &commission,
	})
	require.NoError(t, err)
	assert.Equal(t, "tata_cliq", created.ID)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(calc.DefaultPlatformIDs)+1)
	assert.Equal(t, "tata_cliq", list[len(list)-1].ID)

	_, err = svc.Create(ctx, CreatePlatformInput{Name: "Tata Cliq", Type: enums.PlatformTypeSPCommission})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	require.NoError(t, svc.Delete(ctx, "tata_cliq"))
	err = svc.Delete(ctx, "tata_cliq")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	ads := 9.0
	_, err = svc.Update(ctx, "blinkit", UpdatePlatformInput{AdsPercent: &ads})
	require.NoError(t, err)

	reset, err := svc.Reset(ctx)
	require.NoError(t, err)
	require.Len(t, reset, len(calc.DefaultPlatformIDs))

	blinkit, err := svc.Get(ctx, "blinkit")
	require.NoError(t, err)
	assert.Equal(t, 0.0, blinkit.AdsPercent)
}

func TestReplaceAllValidates(t *testing.T) {
	svc := newTestService(t, nil)
	err := svc.ReplaceAll(context.Background(), []calc.Platform{{ID: "x", Name: "X", Type: "nope"}})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestPlatformID(t *testing.T) {
	assert.Equal(t, "amazon_fba", platformID("Amazon FBA"))
	assert.Equal(t, "first_cry_india", platformID("  First Cry India "))
}
