package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/profitlens/internal/analytics/types"
	"github.com/angelmondragon/profitlens/internal/changelog"
	"github.com/angelmondragon/profitlens/pkg/enums"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"github.com/google/uuid"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router := newTestRouter(t, &fakeWriter{}, nil)
	env := types.Envelope{
		EventType: enums.AnalyticsEventType("unsupported"),
		Payload:   []byte(`{"foo":"bar"}`),
	}
	err := router.Handle(context.Background(), env)
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestRouterRoutesToOverride(t *testing.T) {
	handler := &stubHandler{}
	router := newTestRouter(t, &fakeWriter{}, map[enums.AnalyticsEventType]Handler{
		enums.AnalyticsEventFeeChanged: handler,
	})
	env := feeChangedEnvelope(t, changelog.Entry{ID: uuid.NewString(), PlatformID: "zepto", Field: "fixedFee", OldValue: 5, NewValue: 8})
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handler.called {
		t.Fatalf("handler not invoked")
	}
	if _, ok := handler.payload.(*changelog.Entry); !ok {
		t.Fatalf("expected decoded entry, got %T", handler.payload)
	}
}

func TestRouterRejectsEmptyPayload(t *testing.T) {
	router := newTestRouter(t, &fakeWriter{}, nil)
	env := types.Envelope{EventType: enums.AnalyticsEventFeeChanged}
	if err := router.Handle(context.Background(), env); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestFeeChangedHandlerInsertsRow(t *testing.T) {
	writer := &fakeWriter{}
	router := newTestRouter(t, writer, nil)
	id := uuid.NewString()
	env := feeChangedEnvelope(t, changelog.Entry{
		ID:           id,
		PlatformID:   "zepto",
		PlatformName: "Zepto",
		Field:        "commissionPercent",
		OldValue:     18,
		NewValue:     20,
	})

	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected one row, got %d", len(writer.inserted))
	}
	row := writer.inserted[0]
	if row.EventID != id || row.PlatformID != "zepto" || row.PlatformName != "Zepto" {
		t.Fatalf("unexpected identity %+v", row)
	}
	if row.Field != "commissionPercent" || row.OldValue != 18 || row.NewValue != 20 {
		t.Fatalf("unexpected values %+v", row)
	}
	if !row.ChangedAt.Equal(env.OccurredAt) {
		t.Fatalf("expected changed_at %v, got %v", env.OccurredAt, row.ChangedAt)
	}
	if !row.Payload.Valid {
		t.Fatal("expected payload json")
	}
}

func TestFeeChangedHandlerRejectsMissingField(t *testing.T) {
	writer := &fakeWriter{}
	router := newTestRouter(t, writer, nil)
	env := feeChangedEnvelope(t, changelog.Entry{ID: uuid.NewString(), PlatformID: "zepto"})
	if err := router.Handle(context.Background(), env); err == nil {
		t.Fatal("expected error without field")
	}
	if len(writer.inserted) != 0 {
		t.Fatal("no row should be written")
	}
}

func TestFeeChangedHandlerPropagatesWriterError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("quota")}
	router := newTestRouter(t, writer, nil)
	env := feeChangedEnvelope(t, changelog.Entry{ID: uuid.NewString(), PlatformID: "zepto", Field: "fixedFee"})
	if err := router.Handle(context.Background(), env); err == nil {
		t.Fatal("expected writer error")
	}
}

func feeChangedEnvelope(t *testing.T, entry changelog.Entry) types.Envelope {
	t.Helper()
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}
	return types.Envelope{
		EventID:    entry.ID,
		EventType:  enums.AnalyticsEventFeeChanged,
		PlatformID: entry.PlatformID,
		OccurredAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Payload:    data,
	}
}

func newTestRouter(t *testing.T, writer Writer, overrides map[enums.AnalyticsEventType]Handler) *Router {
	t.Helper()
	router, err := NewRouter(writer, logger.New(logger.Options{ServiceName: "router-test"}), overrides)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router
}

type stubHandler struct {
	called  bool
	payload any
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	s.called = true
	s.payload = payload
	return nil
}
