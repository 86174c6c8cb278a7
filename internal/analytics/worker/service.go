package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/profitlens/internal/analytics/router"
	"github.com/angelmondragon/profitlens/internal/analytics/types"
	"github.com/angelmondragon/profitlens/pkg/enums"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"github.com/angelmondragon/profitlens/pkg/outbox"
	"github.com/google/uuid"
)

// ConsumerName scopes idempotency keys for the warehouse worker.
const ConsumerName = "fee-change-warehouse"

// Handler defines how to process fee change envelopes.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// HandlerFunc adapts functions to the Handler interface.
type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

// Handle calls the underlying function.
func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Service consumes fee change events from Pub/Sub while honoring Redis idempotency.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewService creates a new warehouse worker service.
func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("fee change subscription is required")
	}
	if handler == nil {
		return nil, errors.New("fee change handler is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	return &Service{
		subscription: subscription,
		handler:      handler,
		manager:      manager,
		logg:         logg,
	}, nil
}

// outcome is how a message leaves the worker. Dropped messages are acked
// because redelivery cannot fix them.
type outcome int

const (
	outcomeAck outcome = iota
	outcomeNack
	outcomeDrop
)

// Run consumes fee change messages until ctx is canceled and logs how many
// were handled, retried and dropped.
func (s *Service) Run(ctx context.Context) error {
	var handled, retried, dropped atomic.Int64
	err := s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		switch s.process(innerCtx, msg) {
		case outcomeNack:
			retried.Add(1)
			msg.Nack()
		case outcomeDrop:
			dropped.Add(1)
			msg.Ack()
		default:
			handled.Add(1)
			msg.Ack()
		}
	})
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"handled": handled.Load(),
		"retried": retried.Load(),
		"dropped": dropped.Load(),
	}), "fee change consumer stopped")
	return err
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) outcome {
	fields := map[string]any{"message_id": msg.ID}
	envelope, err := buildEnvelope(msg)
	if err != nil {
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "invalid fee change envelope")
		return outcomeDrop
	}
	fields["event_id"] = envelope.EventID
	fields["event_type"] = envelope.EventType
	fields["platform_id"] = envelope.PlatformID
	fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	logCtx := s.logg.WithFields(ctx, fields)

	eventID := idempotencyKey(envelope.EventID)

	already, err := s.manager.CheckAndMarkProcessed(logCtx, ConsumerName, eventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return outcomeNack
	}
	if already {
		s.logg.Debug(logCtx, "event already processed")
		return outcomeAck
	}

	if err := s.handler.Handle(logCtx, *envelope); err != nil {
		if errors.Is(err, router.ErrUnsupportedEventType) {
			s.logg.Warn(logCtx, "unsupported event type")
			return outcomeDrop
		}
		s.logg.Error(logCtx, "handler error", err)
		if delErr := s.manager.Delete(logCtx, ConsumerName, eventID); delErr != nil {
			s.logg.Error(logCtx, "release idempotency marker", delErr)
		}
		return outcomeNack
	}

	s.logg.Info(logCtx, "fee change event handled")
	return outcomeAck
}

// buildEnvelope decodes the outbox envelope the publisher relays as the
// message body. Routing comes from the attributes; the entry itself is the
// payload.
func buildEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseAnalyticsEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}

	if _, err := enums.ParseOutboxAggregateType(strings.TrimSpace(msg.Attributes["aggregate_type"])); err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}

	platformID := strings.TrimSpace(msg.Attributes["aggregate_id"])
	if platformID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if created := strings.TrimSpace(msg.Attributes["created_at"]); created != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, created); err == nil {
				occurredAt = parsed
			}
		}
	}
	if occurredAt.IsZero() {
		occurredAt = msg.PublishTime
	}

	return &types.Envelope{
		EventID:    eventID,
		EventType:  eventType,
		PlatformID: platformID,
		OccurredAt: occurredAt.UTC(),
		Payload:    stored.Data,
	}, nil
}

// idempotencyKey maps an event id onto the uuid the idempotency store keys
// on. Imported change log ids need not be uuids, so those hash to a stable
// name-based uuid.
func idempotencyKey(eventID string) uuid.UUID {
	if id, err := uuid.Parse(eventID); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(eventID))
}
