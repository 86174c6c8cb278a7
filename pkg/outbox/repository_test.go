package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/profitlens/pkg/db/models"
	"github.com/angelmondragon/profitlens/pkg/enums"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}, &models.OutboxDLQ{}))
	return conn
}

func feeChanged(id string) DomainEvent {
	return DomainEvent{
		EventID:       id,
		EventType:     enums.EventFeeChanged,
		AggregateType: enums.AggregatePlatform,
		AggregateID:   "zepto",
		Data:          map[string]any{"id": id, "field": "adsPercent"},
		OccurredAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestEmitStoresEnvelope(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))

	require.NoError(t, svc.Emit(context.Background(), conn, feeChanged("chg-1")))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "zepto", rows[0].AggregateID)
	assert.Equal(t, enums.EventFeeChanged, rows[0].EventType)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, "chg-1", env.EventID)
	assert.Equal(t, 1, env.Version)
	assert.JSONEq(t, `{"id":"chg-1","field":"adsPercent"}`, string(env.Data))
}

func TestEmitValidatesEvent(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, feeChanged("a")))

	bad := feeChanged("b")
	bad.EventType = "order_created"
	require.Error(t, svc.Emit(ctx, conn, bad))

	missing := feeChanged("c")
	missing.AggregateID = ""
	require.Error(t, svc.Emit(ctx, conn, missing))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, feeChanged("chg-1")); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPublishLifecycle(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Emit(ctx, conn, feeChanged(id)))
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New(strings.Repeat("x", 2000))))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[2].ID, errors.New("bad payload"), 3))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rows[1].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Len(t, *pending[0].LastError, maxLastErrorLen)
}

func TestDeletePublishedBefore(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	published := old.Add(time.Hour)
	rows := []models.OutboxEvent{
		{EventType: enums.EventFeeChanged, AggregateType: enums.AggregatePlatform, AggregateID: "a", Payload: json.RawMessage(`{}`), CreatedAt: old, PublishedAt: &published},
		{EventType: enums.EventFeeChanged, AggregateType: enums.AggregatePlatform, AggregateID: "b", Payload: json.RawMessage(`{}`), CreatedAt: old, AttemptCount: 10},
		{EventType: enums.EventFeeChanged, AggregateType: enums.AggregatePlatform, AggregateID: "c", Payload: json.RawMessage(`{}`), CreatedAt: old, AttemptCount: 1},
	}
	for _, row := range rows {
		require.NoError(t, repo.Insert(conn, row))
	}

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, old.Add(24*time.Hour), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "c", remaining[0].AggregateID)
}

func TestDLQInsertTruncatesMessage(t *testing.T) {
	conn := newTestDB(t)
	dlq := NewDLQRepository(conn)
	msg := strings.Repeat("e", 3000)

	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventType:     enums.EventFeeChanged,
		AggregateType: enums.AggregatePlatform,
		AggregateID:   "zepto",
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
		FailedAt:      time.Now().UTC(),
	}))
	require.Error(t, dlq.InsertTx(nil, models.OutboxDLQ{}))

	var stored models.OutboxDLQ
	require.NoError(t, conn.First(&stored).Error)
	require.NotNil(t, stored.ErrorMessage)
	assert.Len(t, *stored.ErrorMessage, maxDLQErrorLen)
}
