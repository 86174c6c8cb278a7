package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	"github.com/angelmondragon/profitlens/pkg/enums"
	"github.com/angelmondragon/profitlens/pkg/outbox"
	"github.com/angelmondragon/profitlens/pkg/outbox/payloads"
	"github.com/angelmondragon/profitlens/pkg/pagination"
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
	if err := conn.AutoMigrate(&models.FeeChangeLog{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

type failingQueue struct{}

func (failingQueue) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func newTestService(t *testing.T, params ServiceParams) Service {
	t.Helper()
	svc, _ := newQueuedTestService(t, params, nil)
	return svc
}

func newQueuedTestService(t *testing.T, params ServiceParams, events EventQueue) (Service, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	params.Repo = NewRepository(conn, events)
	params.Tx = NewTxRunner(db.NewFromConn(conn), events)
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc, conn
}

func TestNewServiceRequiresRepo(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestRecordOrdersNewestFirstAndQueuesEvents(t *testing.T) {
	ctx := context.Background()
	svc, conn := newOutboxTestService(t)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	old := calc.Platform{ID: "zepto", Name: "Zepto", CommissionPercent: floatPtr(36), AdsPercent: 5}
	updated := calc.Platform{ID: "zepto", Name: "Zepto", CommissionPercent: floatPtr(30), AdsPercent: 8}

	require.NoError(t, svc.Record(ctx, Diff(old, updated, now)))

	page, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, FieldAdsPercent, page.Entries[0].Field)
	assert.Equal(t, FieldCommissionPercent, page.Entries[1].Field)
	assert.True(t, page.Entries[0].Date.After(page.Entries[1].Date))
	assert.Empty(t, page.NextCursor)

	var events []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&events).Error)
	require.Len(t, events, 2)
	ids := map[string]bool{page.Entries[0].ID: true, page.Entries[1].ID: true}
	for _, ev := range events {
		assert.Equal(t, enums.EventFeeChanged, ev.EventType)
		assert.Equal(t, enums.AggregatePlatform, ev.AggregateType)
		assert.Equal(t, "zepto", ev.AggregateID)

		var env outbox.PayloadEnvelope
		require.NoError(t, json.Unmarshal(ev.Payload, &env))
		assert.True(t, ids[env.EventID], "event id should match a change log id")

		var body payloads.FeeChangedEvent
		require.NoError(t, json.Unmarshal(env.Data, &body))
		assert.Equal(t, env.EventID, body.ID)
		assert.Equal(t, "Zepto", body.PlatformName)
	}
}

func TestRecordRollsBackWhenQueueFails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newQueuedTestService(t, ServiceParams{}, failingQueue{})

	err := svc.Record(ctx, []Entry{{PlatformID: "nykaa", PlatformName: "Nykaa", Field: FieldAdsPercent, OldValue: 1, NewValue: 2}})
	require.Error(t, err)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func newOutboxTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	queue := outbox.NewService(outbox.NewRepository(conn), nil)
	svc, err := NewService(ServiceParams{
		Repo: NewRepository(conn, queue),
		Tx:   NewTxRunner(db.NewFromConn(conn), queue),
	})
	require.NoError(t, err)
	return svc, conn
}

func TestRecordTrimsToLimit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ServiceParams{Limit: 3})

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Record(ctx, []Entry{{
			ID:         fmt.Sprintf("e%d", i),
			PlatformID: "blinkit",
			Field:      FieldAdsPercent,
			NewValue:   float64(i),
			Date:       start.Add(time.Duration(i) * time.Minute),
		}}))
	}

	all, err := svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e4", all[0].ID)
	assert.Equal(t, "e2", all[2].ID)
}

func TestListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ServiceParams{})

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var entries []Entry
	for i := 0; i < 4; i++ {
		platform := "amazon_fba"
		if i%2 == 1 {
			platform = "meesho"
		}
		entries = append(entries, Entry{
			ID:         fmt.Sprintf("e%d", i),
			PlatformID: platform,
			Field:      FieldAdsPercent,
			Date:       start.Add(time.Duration(i) * time.Hour),
		})
	}
	require.NoError(t, svc.Record(ctx, entries))

	meesho, err := svc.List(ctx, Filter{PlatformID: "meesho"})
	require.NoError(t, err)
	require.Len(t, meesho.Entries, 2)
	assert.Equal(t, "e3", meesho.Entries[0].ID)

	none, err := svc.List(ctx, Filter{Field: FieldCommissionPercent})
	require.NoError(t, err)
	assert.Empty(t, none.Entries)

	first, err := svc.List(ctx, Filter{Params: pagination.Params{Limit: 3}})
	require.NoError(t, err)
	require.Len(t, first.Entries, 3)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, Filter{Params: pagination.Params{Limit: 3, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Entries, 1)
	assert.Equal(t, "e0", second.Entries[0].ID)

	_, err = svc.List(ctx, Filter{Params: pagination.Params{Cursor: "%%%"}})
	require.Error(t, err)
}

func TestClearAndReplaceAll(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ServiceParams{})

	require.NoError(t, svc.Record(ctx, []Entry{{PlatformID: "zepto", Field: FieldAdsPercent}}))
	require.NoError(t, svc.Clear(ctx))
	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.ReplaceAll(ctx, []Entry{
		{ID: "newest", PlatformID: "zepto", Field: FieldAdsPercent, Date: now},
		{ID: "older", PlatformID: "zepto", Field: FieldAdsPercent, Date: now.Add(-time.Hour)},
	}))
	all, err = svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "newest", all[0].ID)
}
