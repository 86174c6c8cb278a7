package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/profitlens/internal/analytics/types"
	"github.com/angelmondragon/profitlens/internal/analytics/writer"
	"github.com/angelmondragon/profitlens/internal/changelog"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

type feeChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newFeeChangedHandler(w Writer, logg *logger.Logger) Handler {
	return &feeChangedHandler{writer: w, logg: logg}
}

func (h *feeChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	entry, ok := payload.(*changelog.Entry)
	if !ok {
		return fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":  envelope.EventType,
		"platform_id": envelope.PlatformID,
		"field":       entry.Field,
	})

	row, err := buildFeeChangeRow(envelope, *entry)
	if err != nil {
		h.logg.Error(logCtx, "failed to build fee change row", err)
		return err
	}
	if err := h.writer.InsertFeeChange(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert fee change row", err)
		return err
	}

	h.logg.Info(logCtx, "fee change row inserted")
	return nil
}

// buildFeeChangeRow prefers the envelope for identity and timing since the
// worker already resolved attribute fallbacks there.
func buildFeeChangeRow(envelope types.Envelope, entry changelog.Entry) (types.FeeChangeRow, error) {
	field := strings.TrimSpace(entry.Field)
	if field == "" {
		return types.FeeChangeRow{}, fmt.Errorf("fee change %s has no field", envelope.EventID)
	}
	payload, err := writer.EncodeJSON(entry)
	if err != nil {
		return types.FeeChangeRow{}, err
	}
	name := entry.PlatformName
	if name == "" {
		name = envelope.PlatformID
	}
	return types.FeeChangeRow{
		EventID:      envelope.EventID,
		PlatformID:   envelope.PlatformID,
		PlatformName: name,
		Field:        field,
		OldValue:     entry.OldValue,
		NewValue:     entry.NewValue,
		ChangedAt:    envelope.OccurredAt.UTC(),
		Payload:      payload,
	}, nil
}
